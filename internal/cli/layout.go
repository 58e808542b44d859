package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orbit/pkg/graph"
	"github.com/matzehuels/orbit/pkg/pipeline"
)

// layoutCommand creates the layout command for computing radial layouts.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output string
		flags  viewFlags
	)

	cmd := &cobra.Command{
		Use:   "layout [graph.json]",
		Short: "Compute a tiered radial layout from an author graph",
		Long: `Compute a tiered radial layout from an author graph.

The layout command reads a graph file (or a stored snapshot with --snapshot),
classifies authors into core, periphery and outer tiers, places them in
community sectors and applies any filter flags. The result is a layout.json
file (same format as 'render -f json') that 'render' can turn into SVG, PNG
or DOT without recomputing positions.

Results are cached locally for faster subsequent runs.`,
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
			return c.runLayout(cmd.Context(), opts, &flags, input, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	flags.register(cmd.Flags())
	registerViewCompletions(cmd)

	return cmd
}

// runLayout loads the snapshot, computes the layout, and writes output.
func (c *CLI) runLayout(ctx context.Context, opts pipeline.Options, flags *viewFlags, input, output string) error {
	runner, err := c.newRunner(ctx, flags.noCache, flags.snapshot != "")
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	loaded, err := runner.Load(ctx, opts)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Loaded %d authors", loaded.Snapshot.NodeCount()))
	if loaded.Stats.DroppedEdges > 0 {
		printWarning("Dropped %d edges with unknown or duplicate endpoints", loaded.Stats.DroppedEdges)
	}

	spinner := newSpinnerWithContext(ctx, "Computing radial layout...")
	spinner.Start()

	l, cacheHit, err := runner.LayoutWithCacheInfo(ctx, loaded, opts)
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	outputPath := output
	if outputPath == "" {
		outputPath = basePath("", flags.source(input)) + ".layout.json"
	}
	if err := graph.WriteLayoutFile(l, outputPath); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(len(l.Nodes), l.TotalNodes, len(l.Links), cacheHit)
	printTiers(l.TierCounts())
	printNewline()
	printNextStep("Render", appName+" render "+outputPath)

	return nil
}
