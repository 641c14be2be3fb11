package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/lemanyk/moppi/pkg/deps"
	"github.com/lemanyk/moppi/pkg/errors"
	"github.com/lemanyk/moppi/pkg/manifest"
)

// fakeInstaller serves canned reports and can be told to fail.
type fakeInstaller struct {
	reports map[string]*deps.InstallReport
	fail    bool
}

func (f *fakeInstaller) Install(ctx context.Context, name, version string) (*deps.InstallReport, error) {
	if f.fail {
		return nil, fmt.Errorf("registry unavailable")
	}
	if report, ok := f.reports[deps.Normalize(name)]; ok {
		return report, nil
	}
	return nil, fmt.Errorf("no such package: %s", name)
}

func (f *fakeInstaller) Uninstall(ctx context.Context, name string) error {
	if f.fail {
		return fmt.Errorf("registry unavailable")
	}
	return nil
}

func (f *fakeInstaller) ResolveAll(ctx context.Context, names []string) ([]deps.Resolved, error) {
	if f.fail {
		return nil, fmt.Errorf("registry unavailable")
	}
	var out []deps.Resolved
	for _, name := range names {
		if report, ok := f.reports[deps.Normalize(name)]; ok {
			out = append(out, deps.Resolved{Name: report.Name, Version: report.Version, SHA256: report.SHA256})
		}
	}
	return out, nil
}

func werkzeugReports() map[string]*deps.InstallReport {
	return map[string]*deps.InstallReport{
		"werkzeug": {
			Name: "werkzeug", Version: "2.2.2", SHA256: "w-sha",
			Transitive: []deps.TransitiveDep{
				{Name: "markupsafe", Version: "2.1.1", SHA256: "m-sha", Parent: "werkzeug"},
			},
		},
	}
}

func newTestRunner(inst deps.Installer) *Runner {
	return NewRunner(&manifest.Pyproject{}, inst, nil)
}

func TestRunnerAddCreatesManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	r := newTestRunner(&fakeInstaller{reports: werkzeugReports()})

	g, err := r.Add(context.Background(), path, []string{"werkzeug"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if r.State() != StatePersisted {
		t.Errorf("state = %s, want persisted", r.State())
	}
	if !g.Has("werkzeug") || !g.Has("markupsafe") {
		t.Error("graph missing installed packages")
	}

	// The manifest file was created and reloads to the same graph
	loaded, err := (&manifest.Pyproject{}).Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Equal(loaded) {
		t.Error("persisted manifest differs from returned graph")
	}
}

func TestRunnerAddRejectsInvalidName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	r := newTestRunner(&fakeInstaller{reports: werkzeugReports()})

	_, err := r.Add(context.Background(), path, []string{"../etc/passwd"}, false)
	if !errors.Is(err, errors.ErrCodeInvalidPackage) {
		t.Fatalf("expected INVALID_PACKAGE, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("manifest should not be created for invalid input")
	}
}

func TestRunnerInstallerFailureLeavesManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	ok := newTestRunner(&fakeInstaller{reports: werkzeugReports()})
	if _, err := ok.Add(context.Background(), path, []string{"werkzeug"}, false); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	r := newTestRunner(&fakeInstaller{fail: true})
	_, err := r.Add(context.Background(), path, []string{"flask"}, false)
	if !errors.Is(err, errors.ErrCodeInstaller) {
		t.Fatalf("expected INSTALLER_ERROR, got %v", err)
	}
	if r.State() != StateFailed {
		t.Errorf("state = %s, want failed", r.State())
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("failed operation modified the manifest")
	}
}

func TestRunnerRemoveMissingManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	r := newTestRunner(&fakeInstaller{})

	// Only add tolerates a missing manifest
	_, err := r.Remove(context.Background(), path, []string{"werkzeug"})
	if !errors.Is(err, errors.ErrCodeManifestNotFound) {
		t.Errorf("expected MANIFEST_NOT_FOUND, got %v", err)
	}
}

func TestRunnerRemoveCascades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	inst := &fakeInstaller{reports: werkzeugReports()}
	r := newTestRunner(inst)

	if _, err := r.Add(context.Background(), path, []string{"werkzeug"}, false); err != nil {
		t.Fatal(err)
	}
	g, err := r.Remove(context.Background(), path, []string{"werkzeug"})
	if err != nil {
		t.Fatal(err)
	}
	if !g.Empty() {
		t.Errorf("expected empty graph, got %d entries", g.Len())
	}

	loaded, err := (&manifest.Pyproject{}).Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Empty() {
		t.Error("manifest still tracks removed packages")
	}
}

func TestRunnerApplyNeverWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	inst := &fakeInstaller{reports: werkzeugReports()}
	r := newTestRunner(inst)

	if _, err := r.Add(context.Background(), path, []string{"werkzeug"}, false); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)
	stat, _ := os.Stat(path)

	if _, err := r.Apply(context.Background(), path, false); err != nil {
		t.Fatal(err)
	}
	after, _ := os.ReadFile(path)
	stat2, _ := os.Stat(path)
	if string(before) != string(after) || !stat.ModTime().Equal(stat2.ModTime()) {
		t.Error("apply must not write the manifest")
	}
}

func TestRunnerUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pyproject.toml")
	inst := &fakeInstaller{reports: werkzeugReports()}
	r := newTestRunner(inst)

	if _, err := r.Add(context.Background(), path, []string{"werkzeug"}, false); err != nil {
		t.Fatal(err)
	}

	inst.reports["werkzeug"].Version = "2.3.0"
	g, err := r.Update(context.Background(), path, []string{"werkzeug"})
	if err != nil {
		t.Fatal(err)
	}
	if e, _, _ := g.Lookup("werkzeug"); e.Version != "2.3.0" {
		t.Errorf("version not updated: %s", e.Version)
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateIdle:        "idle",
		StateLoaded:      "loaded",
		StateInstalling:  "installing",
		StateReconciling: "reconciling",
		StatePersisted:   "persisted",
		StateFailed:      "failed",
		State(99):        "unknown",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("State(%d).String() = %s, want %s", s, s.String(), want)
		}
	}
}
