package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMatchesPackage(t *testing.T) {
	tests := []struct {
		filename string
		key      string
		want     bool
	}{
		{"werkzeug", "werkzeug", true},
		{"werkzeug-2.2.2.dist-info", "werkzeug", true},
		{"Werkzeug-2.2.2.dist-info", "werkzeug", true},
		{"markupsafe.libs", "markupsafe", true},
		{"typing_extensions.py", "typing-extensions", true},
		{"werkzeug", "markupsafe", false},
		{"werkzeug-extras", "werkzeug", true}, // matches on the name prefix before "-"
		{"flask-2.2.2.dist-info", "werkzeug", false},
	}
	for _, tt := range tests {
		if got := matchesPackage(tt.filename, tt.key); got != tt.want {
			t.Errorf("matchesPackage(%q, %q) = %v, want %v", tt.filename, tt.key, got, tt.want)
		}
	}
}

func TestUninstallRemovesMatchingEntries(t *testing.T) {
	site := t.TempDir()
	for _, dir := range []string{"werkzeug", "werkzeug-2.2.2.dist-info", "flask"} {
		if err := os.MkdirAll(filepath.Join(site, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(site, "flask-2.2.2.dist-info"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewPyPI(nil, site, nil)
	if err := p.Uninstall(context.Background(), "Werkzeug"); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(site)
	if err != nil {
		t.Fatal(err)
	}
	for _, ent := range entries {
		if ent.Name() == "werkzeug" || ent.Name() == "werkzeug-2.2.2.dist-info" {
			t.Errorf("entry not removed: %s", ent.Name())
		}
	}
	if _, err := os.Stat(filepath.Join(site, "flask")); err != nil {
		t.Error("unrelated package removed")
	}
}

func TestUninstallToleratesAbsence(t *testing.T) {
	// Metadata-only mode: no site dir at all
	p := NewPyPI(nil, "", nil)
	if err := p.Uninstall(context.Background(), "werkzeug"); err != nil {
		t.Errorf("metadata-only uninstall: %v", err)
	}

	// Package never downloaded into this environment
	p = NewPyPI(nil, t.TempDir(), nil)
	if err := p.Uninstall(context.Background(), "werkzeug"); err != nil {
		t.Errorf("uninstall of absent package: %v", err)
	}

	// Site dir itself missing
	p = NewPyPI(nil, filepath.Join(t.TempDir(), "gone"), nil)
	if err := p.Uninstall(context.Background(), "werkzeug"); err != nil {
		t.Errorf("uninstall with missing site dir: %v", err)
	}
}

func TestDetectSitePackages(t *testing.T) {
	venv := t.TempDir()
	site := filepath.Join(venv, "lib", "python3.12", "site-packages")
	if err := os.MkdirAll(site, 0o755); err != nil {
		t.Fatal(err)
	}

	t.Setenv("VIRTUAL_ENV", venv)
	if got := DetectSitePackages(); got != site {
		t.Errorf("DetectSitePackages() = %q, want %q", got, site)
	}

	// No virtualenv active
	t.Setenv("VIRTUAL_ENV", "")
	if got := DetectSitePackages(); got != "" {
		t.Errorf("expected metadata-only mode, got %q", got)
	}

	// Virtualenv set but layout unrecognized
	t.Setenv("VIRTUAL_ENV", t.TempDir())
	if got := DetectSitePackages(); got != "" {
		t.Errorf("expected empty for unrecognized layout, got %q", got)
	}
}
