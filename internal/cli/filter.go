package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/interact"
	"github.com/matzehuels/orbit/pkg/graph"
	"github.com/matzehuels/orbit/pkg/pipeline"
)

// filterCommand creates the filter command, which lists the authors a
// filter combination leaves visible.
func (c *CLI) filterCommand() *cobra.Command {
	var (
		flags   viewFlags
		asJSON  bool
		explain bool
	)

	cmd := &cobra.Command{
		Use:   "filter [graph.json]",
		Short: "List the authors visible under a filter combination",
		Long: `List the authors visible under a filter combination.

Filters compose: the allowlist (--top, --allow), tiers, attributes and score
range narrow the base set; a selection (--select) then restricts it to the
selected authors and their neighbours, otherwise community and focus filters
apply. --query only highlights matches. Use --explain to see which step hid
each remaining author.`,
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
			ctrl, err := c.newController(cmd.Context(), opts, &flags)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(graph.FromFrame(ctrl.Frame(), nil))
			}
			printFilterResult(ctrl, explain)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the filtered layout as JSON")
	cmd.Flags().BoolVar(&explain, "explain", false, "list hidden authors with the filter that hid them")
	flags.register(cmd.Flags())
	registerViewCompletions(cmd)

	return cmd
}

// newController loads the input and builds an interactive controller.
func (c *CLI) newController(ctx context.Context, opts pipeline.Options, flags *viewFlags) (*interact.Controller, error) {
	runner, err := c.newRunner(ctx, flags.noCache, flags.snapshot != "")
	if err != nil {
		return nil, fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	loaded, err := runner.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	ctrl, err := pipeline.NewController(loaded.Snapshot, opts)
	if err != nil {
		return nil, err
	}
	prog.done("Built view", "authors", loaded.Snapshot.NodeCount(), "links", loaded.Snapshot.EdgeCount())
	return ctrl, nil
}

func printFilterResult(ctrl *interact.Controller, explain bool) {
	f := ctrl.Frame()
	fmt.Println(StyleTitle.Render("Visible authors") + "  " + StyleDim.Render(filterSummary(f)))
	fmt.Println(nodeTable(f.Nodes, -1).Render())

	placed := graph.FromFrame(f, nil)
	counts := placed.TierCounts()
	printStats(len(f.Nodes), f.TotalNodes, len(f.Edges), false)
	printTiers(counts)
	printKeyValue("Selection", f.Selection)

	if !explain || len(f.Nodes) == f.TotalNodes {
		return
	}
	printNewline()
	fmt.Println(StyleTitle.Render("Hidden authors"))
	snap := ctrl.Snapshot()
	ev := filter.NewEvaluator(ctrl.State(), snap)
	for _, id := range snap.IDs() {
		if r := ev.Check(id); r != filter.ReasonVisible {
			n, _ := snap.Node(id)
			printDetail("%-24s %s", n.Label, r)
		}
	}
}
