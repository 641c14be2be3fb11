// Package pipeline orchestrates a full bookkeeping cycle: load the
// manifest, hand the graph to the reconciler, and persist the result. The
// runner is the only component that touches both the codec and the
// reconciler; each operation is one load→reconcile→save pass.
package pipeline

import (
	"context"

	"github.com/lemanyk/moppi/pkg/deps"
	"github.com/lemanyk/moppi/pkg/errors"
	"github.com/lemanyk/moppi/pkg/manifest"
)

// State tracks a runner's progress through one operation. It is advisory,
// for logging and tests; transitions are linear and a failure at any stage
// moves to StateFailed with the manifest untouched.
type State int

const (
	StateIdle State = iota
	StateLoaded
	StateInstalling
	StateReconciling
	StatePersisted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateInstalling:
		return "installing"
	case StateReconciling:
		return "reconciling"
	case StatePersisted:
		return "persisted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Runner drives dependency operations end to end against one manifest file.
//
// A Runner is single-use per operation but reusable across operations; it is
// not safe for concurrent use.
type Runner struct {
	codec      manifest.Codec
	reconciler *deps.Reconciler
	logger     func(string, ...any)
	state      State
}

// NewRunner creates a runner persisting through codec and reconciling
// through installer. logger receives progress messages (optional).
func NewRunner(codec manifest.Codec, installer deps.Installer, logger func(string, ...any)) *Runner {
	if logger == nil {
		logger = func(string, ...any) {}
	}
	return &Runner{
		codec:      codec,
		reconciler: deps.NewReconciler(installer, logger),
		logger:     logger,
		state:      StateIdle,
	}
}

// State returns the stage the last operation reached.
func (r *Runner) State() State { return r.state }

// Add installs packages and records them in the manifest at path. A missing
// manifest is not an error for add: bookkeeping starts from an empty graph
// and the save creates the file.
func (r *Runner) Add(ctx context.Context, path string, names []string, dev bool) (*deps.Graph, error) {
	for _, name := range names {
		if err := errors.ValidatePackageName(name); err != nil {
			return nil, err
		}
	}

	g, err := r.load(path, true)
	if err != nil {
		return nil, r.fail(err)
	}

	r.state = StateInstalling
	if err := r.reconciler.Add(ctx, g, names, dev); err != nil {
		return nil, r.fail(err)
	}

	return r.persist(g, path)
}

// Remove uninstalls packages and drops them, with any orphaned indirect
// entries, from the manifest at path. The batch is all-or-nothing: one
// untracked name fails the whole operation before anything changes.
func (r *Runner) Remove(ctx context.Context, path string, names []string) (*deps.Graph, error) {
	g, err := r.load(path, false)
	if err != nil {
		return nil, r.fail(err)
	}

	r.state = StateReconciling
	if err := r.reconciler.Remove(ctx, g, names); err != nil {
		return nil, r.fail(err)
	}

	return r.persist(g, path)
}

// Update re-resolves packages to their latest versions. With names only
// those entries are updated; without names every tracked direct and dev
// entry is re-resolved and the indirect class rebuilt.
func (r *Runner) Update(ctx context.Context, path string, names []string) (*deps.Graph, error) {
	g, err := r.load(path, false)
	if err != nil {
		return nil, r.fail(err)
	}

	r.state = StateInstalling
	if err := r.reconciler.Update(ctx, g, names); err != nil {
		return nil, r.fail(err)
	}

	return r.persist(g, path)
}

// Apply installs everything the manifest pins, without mutating or saving
// it. With devAlso the dev class is installed too.
func (r *Runner) Apply(ctx context.Context, path string, devAlso bool) (*deps.Graph, error) {
	g, err := r.load(path, false)
	if err != nil {
		return nil, r.fail(err)
	}

	r.state = StateInstalling
	if err := r.reconciler.Apply(ctx, g, devAlso); err != nil {
		return nil, r.fail(err)
	}

	r.state = StatePersisted
	return g, nil
}

// Load reads the manifest without reconciling, for read-only commands.
func (r *Runner) Load(path string) (*deps.Graph, error) {
	g, err := r.load(path, false)
	if err != nil {
		return nil, r.fail(err)
	}
	return g, nil
}

func (r *Runner) load(path string, tolerateMissing bool) (*deps.Graph, error) {
	g, err := r.codec.Load(path)
	if err != nil {
		if tolerateMissing && errors.Is(err, errors.ErrCodeManifestNotFound) {
			r.logger("no manifest at %s, starting fresh", path)
			g = deps.NewGraph()
		} else {
			return nil, err
		}
	}
	r.state = StateLoaded
	return g, nil
}

func (r *Runner) persist(g *deps.Graph, path string) (*deps.Graph, error) {
	r.state = StateReconciling
	if err := r.codec.Save(g, path); err != nil {
		return nil, r.fail(err)
	}
	r.state = StatePersisted
	return g, nil
}

func (r *Runner) fail(err error) error {
	r.state = StateFailed
	return err
}
