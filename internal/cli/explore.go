package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/orbit/pkg/graph"
)

// exploreCommand creates the interactive terminal explorer.
func (c *CLI) exploreCommand() *cobra.Command {
	var (
		flags viewFlags
		save  string
	)

	cmd := &cobra.Command{
		Use:   "explore [graph.json]",
		Short: "Explore an author graph interactively in the terminal",
		Long: `Explore an author graph interactively in the terminal.

The explorer lists visible authors and applies filters as you type: select
authors to see their neighbourhood, toggle tiers, raise the minimum link
weight or search by name. With --save the final view is written as a
layout.json that 'render' accepts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := flags.inputArg(args)
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, c, input)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			ctrl, err := c.newController(ctx, opts, &flags)
			if err != nil {
				return err
			}

			final, err := tea.NewProgram(NewExploreModel(ctrl), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if err != nil {
				return fmt.Errorf("run explorer: %w", err)
			}
			if save == "" {
				return nil
			}
			m, ok := final.(ExploreModel)
			if !ok {
				return nil
			}
			if err := graph.WriteLayoutFile(graph.FromFrame(m.Frame(), nil), save); err != nil {
				return fmt.Errorf("write %s: %w", save, err)
			}
			printSuccess("Saved view")
			printFile(save)
			printNextStep("Render", appName+" render "+save)
			return nil
		},
	}

	cmd.Flags().StringVar(&save, "save", "", "write the final view to this layout.json")
	flags.register(cmd.Flags())
	registerViewCompletions(cmd)

	return cmd
}
