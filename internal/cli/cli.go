package cli

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lemanyk/moppi/pkg/buildinfo"
	"github.com/lemanyk/moppi/pkg/cache"
	"github.com/lemanyk/moppi/pkg/errors"
	"github.com/lemanyk/moppi/pkg/installer"
	"github.com/lemanyk/moppi/pkg/integrations/pypi"
	"github.com/lemanyk/moppi/pkg/manifest"
	"github.com/lemanyk/moppi/pkg/pipeline"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "moppi"

	// defaultManifest is the manifest filename used when neither --manifest
	// nor a known manifest in the working directory selects one.
	defaultManifest = "pyproject.toml"

	// cacheTTL is how long registry responses stay valid in the file cache.
	cacheTTL = 24 * time.Hour
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "moppi",
		Short:        "Moppi keeps Python dependency manifests in sync",
		Long:         `Moppi is a minimalist Python package manager front-end: it installs packages from PyPI and keeps the manifest's record of direct, dev and indirect dependencies consistent with every install, removal and update.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.addCommand())
	root.AddCommand(c.removeCommand())
	root.AddCommand(c.updateCommand())
	root.AddCommand(c.applyCommand())
	root.AddCommand(c.showCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// runnerOpts holds the persistent flags shared by all manifest commands.
type runnerOpts struct {
	manifest string // manifest path (auto-detected if empty)
	noCache  bool   // bypass the HTTP response cache
}

// registerFlags attaches the shared manifest flags to cmd.
func (o *runnerOpts) registerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.manifest, "manifest", "m", "", "manifest file (default: auto-detect)")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "bypass the HTTP response cache")
}

// newRunner creates a pipeline runner for the resolved manifest path.
// The codec is selected by filename before any business logic runs.
func (c *CLI) newRunner(opts *runnerOpts) (*pipeline.Runner, string, error) {
	path := resolveManifest(opts.manifest)
	if err := errors.ValidateManifestPath(path); err != nil {
		return nil, "", err
	}
	codec, err := manifest.Detect(path)
	if err != nil {
		return nil, "", err
	}

	backend := newCache(opts.noCache)
	client := pypi.NewClient(backend, cacheTTL)
	site := installer.DetectSitePackages()
	if site == "" {
		c.Logger.Debug("no virtualenv detected, running in metadata-only mode")
	}

	logf := func(msg string, args ...any) { c.Logger.Debugf(msg, args...) }
	inst := installer.NewPyPI(client, site, logf)
	return pipeline.NewRunner(codec, inst, logf), path, nil
}

func newCache(noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return fc
}

// =============================================================================
// Paths
// =============================================================================

// resolveManifest picks the manifest path: an explicit flag wins, then a
// known manifest in the working directory, then the default name (which add
// will create).
func resolveManifest(flag string) string {
	if flag != "" {
		return flag
	}
	for _, name := range []string{"pyproject.toml", "moppi.yaml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return defaultManifest
}

// cacheDir returns the cache directory using XDG standard (~/.cache/moppi/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
