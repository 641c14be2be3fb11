package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lemanyk/moppi/pkg/deps"
)

// showCommand creates the show command for inspecting the tracked graph.
func (c *CLI) showCommand() *cobra.Command {
	var opts runnerOpts

	cmd := &cobra.Command{
		Use:     "show",
		Aliases: []string{"list", "ls"},
		Short:   "Print the tracked dependency graph",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, path, err := c.newRunner(&opts)
			if err != nil {
				return err
			}

			g, err := runner.Load(path)
			if err != nil {
				return err
			}

			printKeyValue("Manifest", path)
			printNewline()
			printClass("Dependencies", g.Direct())
			printClass("Dev dependencies", g.Dev())
			printClass("Indirect", g.Indirect())
			return nil
		},
	}

	opts.registerFlags(cmd)
	return cmd
}

// printClass prints one dependency class as an indented block.
// Indirect entries show their provenance in dim text.
func printClass(title string, entries []*deps.Entry) {
	if len(entries) == 0 {
		return
	}
	fmt.Println(StyleTitle.Render(title))
	for _, e := range entries {
		line := "  " + StyleValue.Render(e.Name) + StyleDim.Render("==") + StyleNumber.Render(e.Version)
		if parents := e.Parents(); len(parents) > 0 {
			line += " " + StyleDim.Render("needed by "+strings.Join(parents, ", "))
		}
		fmt.Println(line)
	}
	printNewline()
}

// printGraphStats prints a one-line summary of the graph after an operation.
func printGraphStats(g *deps.Graph) {
	printStats(len(g.Direct()), len(g.Dev()), len(g.Indirect()))
}
