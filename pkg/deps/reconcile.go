package deps

import (
	"context"

	"github.com/lemanyk/moppi/pkg/errors"
)

// Reconciler translates installer-reported outcomes into graph mutations.
// It owns the add/remove/update/apply algorithms; persistence is the
// caller's concern (see pipeline.Runner).
type Reconciler struct {
	Installer Installer
	Logger    func(string, ...any) // Warning callback (optional)
}

// NewReconciler creates a reconciler driving the given installer capability.
func NewReconciler(installer Installer, logger func(string, ...any)) *Reconciler {
	if logger == nil {
		logger = func(string, ...any) {}
	}
	return &Reconciler{Installer: installer, Logger: logger}
}

// Add installs each requested package and records it as a direct (or dev)
// entry with the version the installer resolved. Every other package the
// installer reports as newly present is recorded as an indirect entry with
// the reported single-hop provenance. Nothing is removed on add.
func (r *Reconciler) Add(ctx context.Context, g *Graph, names []string, dev bool) error {
	for _, name := range names {
		report, err := r.Installer.Install(ctx, name, "")
		if err != nil {
			return errors.Wrap(errors.ErrCodeInstaller, err, "install %s", name)
		}
		g.AddDirect(report.Name, report.Version, report.SHA256, dev)
		r.mergeTransitive(g, report)
	}
	return nil
}

// Remove is all-or-nothing across the batch: every name must be tracked as a
// direct or dev entry before anything is uninstalled or mutated. Installer
// failures abort with the graph unmodified. Indirect entries orphaned by the
// removal are pruned and their files uninstalled best-effort.
func (r *Reconciler) Remove(ctx context.Context, g *Graph, names []string) error {
	for _, name := range names {
		if _, class, ok := g.Lookup(name); !ok || class == ClassIndirect {
			return errors.New(errors.ErrCodePackageNotFound, "package %q is not tracked", name)
		}
	}

	// Uninstall before mutating so an installer failure leaves the graph
	// exactly as loaded.
	for _, name := range names {
		if err := r.Installer.Uninstall(ctx, name); err != nil {
			return errors.Wrap(errors.ErrCodeInstaller, err, "uninstall %s", name)
		}
	}

	for _, name := range names {
		_ = g.RemoveDirect(name) // validated above
		g.DropNeededBy(name)
	}

	for _, orphan := range g.PruneOrphans() {
		if err := r.Installer.Uninstall(ctx, orphan); err != nil {
			r.logf("uninstall orphan failed: %s: %v", orphan, err)
		}
	}
	return nil
}

// Update re-resolves packages. With names it is a targeted add+replace cycle
// that preserves each name's direct/dev classification. Without names every
// tracked direct and dev entry is re-resolved and the indirect class is
// rebuilt wholesale from the fresh report; stale indirect entries are
// dropped.
func (r *Reconciler) Update(ctx context.Context, g *Graph, names []string) error {
	if len(names) > 0 {
		return r.updateTargeted(ctx, g, names)
	}
	return r.updateAll(ctx, g)
}

func (r *Reconciler) updateTargeted(ctx context.Context, g *Graph, names []string) error {
	classes := make([]Class, len(names))
	for i, name := range names {
		_, class, ok := g.Lookup(name)
		if !ok || class == ClassIndirect {
			return errors.New(errors.ErrCodePackageNotFound, "package %q is not tracked", name)
		}
		classes[i] = class
	}

	for i, name := range names {
		report, err := r.Installer.Install(ctx, name, "")
		if err != nil {
			return errors.Wrap(errors.ErrCodeInstaller, err, "update %s", name)
		}
		g.AddDirect(report.Name, report.Version, report.SHA256, classes[i] == ClassDev)
		r.mergeTransitive(g, report)
	}
	return nil
}

func (r *Reconciler) updateAll(ctx context.Context, g *Graph) error {
	var names []string
	for _, e := range g.Direct() {
		names = append(names, e.Name)
	}
	for _, e := range g.Dev() {
		names = append(names, e.Name)
	}
	if len(names) == 0 {
		return nil
	}

	resolved, err := r.Installer.ResolveAll(ctx, names)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInstaller, err, "resolve %d packages", len(names))
	}

	reported := make(map[string]Resolved, len(resolved))
	for _, res := range resolved {
		reported[Normalize(res.Name)] = res
	}

	for _, e := range g.Direct() {
		if res, ok := reported[Normalize(e.Name)]; ok {
			g.AddDirect(res.Name, res.Version, res.SHA256, false)
		} else {
			r.logf("update: %s missing from installer report, keeping %s", e.Name, e.Version)
		}
	}
	for _, e := range g.Dev() {
		if res, ok := reported[Normalize(e.Name)]; ok {
			g.AddDirect(res.Name, res.Version, res.SHA256, true)
		} else {
			r.logf("update: %s missing from installer report, keeping %s", e.Name, e.Version)
		}
	}

	// Full indirect rebuild: provenance comes entirely from the fresh report.
	g.ClearIndirect()
	for _, res := range resolved {
		if _, class, ok := g.Lookup(res.Name); ok && class != ClassIndirect {
			continue
		}
		for _, parent := range res.Parents {
			g.UpsertIndirect(res.Name, res.Version, res.SHA256, parent)
		}
	}
	return nil
}

// Apply installs every direct entry (and every dev entry when devAlso) at
// its pinned version. The graph is not mutated; apply reconstructs an
// environment from the manifest, the inverse of add.
func (r *Reconciler) Apply(ctx context.Context, g *Graph, devAlso bool) error {
	entries := g.Direct()
	if devAlso {
		entries = append(entries, g.Dev()...)
	}
	for _, e := range entries {
		if _, err := r.Installer.Install(ctx, e.Name, e.Version); err != nil {
			return errors.Wrap(errors.ErrCodeInstaller, err, "install %s==%s", e.Name, e.Version)
		}
	}
	return nil
}

func (r *Reconciler) mergeTransitive(g *Graph, report *InstallReport) {
	for _, t := range report.Transitive {
		if _, class, ok := g.Lookup(t.Name); ok && class != ClassIndirect {
			continue // explicitly requested packages keep their class
		}
		g.UpsertIndirect(t.Name, t.Version, t.SHA256, t.Parent)
	}
}

func (r *Reconciler) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger(format, args...)
	}
}
