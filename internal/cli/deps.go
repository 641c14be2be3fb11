package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lemanyk/moppi/pkg/deps"
)

// addCommand creates the add command.
//
// Add installs each package at its latest version, records it as a direct
// (or, with --dev, dev) dependency, and records everything it pulls in as
// indirect dependencies with their provenance.
func (c *CLI) addCommand() *cobra.Command {
	var opts runnerOpts
	var dev bool

	cmd := &cobra.Command{
		Use:   "add <package>...",
		Short: "Install packages and record them in the manifest",
		Long: `Install packages from PyPI and record them in the manifest.

Each package is installed at its latest version and recorded as a direct
dependency. Everything it pulls in transitively is recorded as an indirect
dependency, annotated with the packages that need it.

Examples:
  moppi add werkzeug              # Add a runtime dependency
  moppi add --dev pytest ruff     # Add dev dependencies
  moppi add -m moppi.yaml flask   # Use an explicit manifest`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, path, err := c.newRunner(&opts)
			if err != nil {
				return err
			}

			logger := loggerFromContext(cmd.Context())
			logger.Infof("Adding %s to %s", strings.Join(args, ", "), path)

			prog := newProgress(logger)
			g, err := c.withSpinner(fmt.Sprintf("Installing %s", strings.Join(args, ", ")), func() (*deps.Graph, error) {
				return runner.Add(cmd.Context(), path, args, dev)
			})
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Added %d packages", len(args)))

			printSuccess("Added %s", strings.Join(args, ", "))
			printGraphStats(g)
			return nil
		},
	}

	opts.registerFlags(cmd)
	cmd.Flags().BoolVarP(&dev, "dev", "d", false, "record as dev dependencies")
	return cmd
}

// removeCommand creates the remove command.
func (c *CLI) removeCommand() *cobra.Command {
	var opts runnerOpts

	cmd := &cobra.Command{
		Use:     "remove <package>...",
		Aliases: []string{"rm"},
		Short:   "Uninstall packages and drop them from the manifest",
		Long: `Uninstall packages and remove them from the manifest.

Every named package must be tracked as a direct or dev dependency; one
unknown name fails the whole batch before anything changes. Indirect
dependencies no longer needed by any remaining package are removed too.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, path, err := c.newRunner(&opts)
			if err != nil {
				return err
			}

			logger := loggerFromContext(cmd.Context())
			logger.Infof("Removing %s from %s", strings.Join(args, ", "), path)

			prog := newProgress(logger)
			g, err := runner.Remove(cmd.Context(), path, args)
			if err != nil {
				return err
			}
			prog.done(fmt.Sprintf("Removed %d packages", len(args)))

			printSuccess("Removed %s", strings.Join(args, ", "))
			printGraphStats(g)
			return nil
		},
	}

	opts.registerFlags(cmd)
	return cmd
}

// updateCommand creates the update command.
func (c *CLI) updateCommand() *cobra.Command {
	var opts runnerOpts

	cmd := &cobra.Command{
		Use:   "update [package]...",
		Short: "Re-resolve packages to their latest versions",
		Long: `Re-resolve packages to their latest versions.

With package names only those entries are updated. Without arguments every
tracked direct and dev dependency is re-resolved and the indirect
dependency record is rebuilt from scratch, dropping stale entries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, path, err := c.newRunner(&opts)
			if err != nil {
				return err
			}

			logger := loggerFromContext(cmd.Context())
			what := "all packages"
			if len(args) > 0 {
				what = strings.Join(args, ", ")
			}
			logger.Infof("Updating %s in %s", what, path)

			prog := newProgress(logger)
			g, err := c.withSpinner(fmt.Sprintf("Updating %s", what), func() (*deps.Graph, error) {
				return runner.Update(cmd.Context(), path, args)
			})
			if err != nil {
				return err
			}
			prog.done("Update complete")

			printSuccess("Updated %s", what)
			printGraphStats(g)
			return nil
		},
	}

	opts.registerFlags(cmd)
	return cmd
}

// applyCommand creates the apply command.
func (c *CLI) applyCommand() *cobra.Command {
	var opts runnerOpts
	var devAlso bool

	cmd := &cobra.Command{
		Use:     "apply",
		Aliases: []string{"install"},
		Short:   "Install everything the manifest pins",
		Long: `Install every dependency the manifest pins, at its pinned version.

Apply reconstructs an environment from the manifest without changing it:
the manifest file is read but never written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, path, err := c.newRunner(&opts)
			if err != nil {
				return err
			}

			logger := loggerFromContext(cmd.Context())
			logger.Infof("Applying %s", path)

			prog := newProgress(logger)
			g, err := c.withSpinner("Installing pinned packages", func() (*deps.Graph, error) {
				return runner.Apply(cmd.Context(), path, devAlso)
			})
			if err != nil {
				return err
			}
			count := len(g.Direct())
			if devAlso {
				count += len(g.Dev())
			}
			prog.done(fmt.Sprintf("Installed %d packages", count))

			printSuccess("Applied %s", path)
			printGraphStats(g)
			return nil
		},
	}

	opts.registerFlags(cmd)
	cmd.Flags().BoolVarP(&devAlso, "dev", "d", false, "install dev dependencies too")
	return cmd
}

// withSpinner runs fn with a progress spinner when the logger is not in
// debug mode. Debug runs skip the spinner so log lines stay readable.
func (c *CLI) withSpinner(message string, fn func() (*deps.Graph, error)) (*deps.Graph, error) {
	if c.Logger.GetLevel() <= LogDebug {
		return fn()
	}
	sp := newSpinner(message)
	sp.Start()
	g, err := fn()
	sp.Stop()
	return g, err
}
