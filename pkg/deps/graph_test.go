package deps

import (
	"testing"

	"github.com/lemanyk/moppi/pkg/errors"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Werkzeug", "werkzeug"},
		{"typing_extensions", "typing-extensions"},
		{"  MarkupSafe ", "markupsafe"},
		{"flask", "flask"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddDirectClassExclusivity(t *testing.T) {
	g := NewGraph()

	g.AddDirect("pytest", "8.0.0", "", true)
	if _, class, ok := g.Lookup("pytest"); !ok || class != ClassDev {
		t.Fatalf("expected pytest in dev class, got class %v ok=%v", class, ok)
	}

	// Re-adding as runtime moves it out of dev
	g.AddDirect("pytest", "8.0.0", "", false)
	if _, class, _ := g.Lookup("pytest"); class != ClassDirect {
		t.Errorf("expected pytest moved to direct, got %v", class)
	}
	if len(g.Dev()) != 0 {
		t.Error("pytest should no longer be in the dev class")
	}
}

func TestAddDirectPromotesIndirect(t *testing.T) {
	g := NewGraph()
	g.AddDirect("flask", "2.2.2", "", false)
	g.UpsertIndirect("werkzeug", "2.2.2", "", "flask")

	// Explicitly requesting werkzeug promotes it; provenance is dropped
	g.AddDirect("werkzeug", "2.2.2", "", false)
	e, class, ok := g.Lookup("werkzeug")
	if !ok || class != ClassDirect {
		t.Fatalf("expected werkzeug promoted to direct, got class %v ok=%v", class, ok)
	}
	if e.NeededBy != nil {
		t.Error("promoted entry should not keep NeededBy")
	}
	if len(g.Indirect()) != 0 {
		t.Error("indirect class should be empty after promotion")
	}
}

func TestRemoveDirectNotTracked(t *testing.T) {
	g := NewGraph()
	g.UpsertIndirect("markupsafe", "2.1.1", "", "werkzeug")

	err := g.RemoveDirect("markupsafe")
	if !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("expected PACKAGE_NOT_FOUND for indirect entry, got %v", err)
	}
	if err := g.RemoveDirect("nonexistent"); !errors.Is(err, errors.ErrCodePackageNotFound) {
		t.Errorf("expected PACKAGE_NOT_FOUND for unknown name, got %v", err)
	}
}

func TestUpsertIndirectMergesParents(t *testing.T) {
	g := NewGraph()
	g.AddDirect("flask", "2.2.2", "", false)
	g.AddDirect("jinja2", "3.1.2", "", false)

	g.UpsertIndirect("MarkupSafe", "2.1.0", "", "jinja2")
	g.UpsertIndirect("markupsafe", "2.1.1", "abc123", "flask")
	g.UpsertIndirect("markupsafe", "2.1.1", "", "flask") // duplicate parent

	e, class, ok := g.Lookup("markupsafe")
	if !ok || class != ClassIndirect {
		t.Fatalf("expected markupsafe indirect, got class %v ok=%v", class, ok)
	}
	if e.Version != "2.1.1" {
		t.Errorf("version not updated: got %s", e.Version)
	}
	if e.SHA256 != "abc123" {
		t.Errorf("empty sha256 should not replace stored one: got %q", e.SHA256)
	}
	parents := e.Parents()
	if len(parents) != 2 || parents[0] != "flask" || parents[1] != "jinja2" {
		t.Errorf("unexpected parents: %v", parents)
	}
}

func TestPruneOrphansFixpoint(t *testing.T) {
	g := NewGraph()
	g.AddDirect("flask", "2.2.2", "", false)
	g.UpsertIndirect("werkzeug", "2.2.2", "", "flask")
	g.UpsertIndirect("markupsafe", "2.1.1", "", "werkzeug")

	// Removing flask orphans werkzeug, which in turn orphans markupsafe
	if err := g.RemoveDirect("flask"); err != nil {
		t.Fatal(err)
	}
	g.DropNeededBy("flask")

	pruned := g.PruneOrphans()
	if len(pruned) != 2 || pruned[0] != "markupsafe" || pruned[1] != "werkzeug" {
		t.Errorf("unexpected pruned set: %v", pruned)
	}
	if !g.Empty() {
		t.Errorf("graph should be empty, has %d entries", g.Len())
	}
}

func TestPruneOrphansKeepsMultiParent(t *testing.T) {
	g := NewGraph()
	g.AddDirect("flask", "2.2.2", "", false)
	g.AddDirect("jinja2", "3.1.2", "", false)
	g.UpsertIndirect("markupsafe", "2.1.1", "", "flask")
	g.UpsertIndirect("markupsafe", "2.1.1", "", "jinja2")

	if err := g.RemoveDirect("flask"); err != nil {
		t.Fatal(err)
	}
	g.DropNeededBy("flask")

	if pruned := g.PruneOrphans(); len(pruned) != 0 {
		t.Errorf("markupsafe still needed by jinja2, pruned: %v", pruned)
	}
	e, _, ok := g.Lookup("markupsafe")
	if !ok {
		t.Fatal("markupsafe should survive")
	}
	if parents := e.Parents(); len(parents) != 1 || parents[0] != "jinja2" {
		t.Errorf("unexpected surviving parents: %v", parents)
	}
}

func TestLookupIsCaseInsensitive(t *testing.T) {
	g := NewGraph()
	g.AddDirect("Werkzeug", "2.2.2", "", false)

	e, _, ok := g.Lookup("werkzeug")
	if !ok {
		t.Fatal("lookup by normalized name failed")
	}
	// Display casing is preserved from input
	if e.Name != "Werkzeug" {
		t.Errorf("display name changed: %s", e.Name)
	}
	if _, _, ok := g.Lookup("WERKZEUG"); !ok {
		t.Error("lookup should be case-insensitive")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := NewGraph()
	g.AddDirect("flask", "2.2.2", "", false)
	g.UpsertIndirect("werkzeug", "2.2.2", "", "flask")

	c := g.Clone()
	if !g.Equal(c) {
		t.Fatal("clone should equal original")
	}

	c.UpsertIndirect("werkzeug", "2.3.0", "", "flask")
	if g.Equal(c) {
		t.Error("mutating clone must not affect original")
	}
	if e, _, _ := g.Lookup("werkzeug"); e.Version != "2.2.2" {
		t.Errorf("original mutated: %s", e.Version)
	}
}

func TestEqual(t *testing.T) {
	a := NewGraph()
	b := NewGraph()
	if !a.Equal(b) {
		t.Error("empty graphs should be equal")
	}

	a.AddDirect("flask", "2.2.2", "", false)
	if a.Equal(b) {
		t.Error("graphs with different entries should differ")
	}

	b.AddDirect("flask", "2.2.2", "", true) // same name, different class
	if a.Equal(b) {
		t.Error("class matters for equality")
	}
}
