package cli

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/orbit/pkg/graph"
	"github.com/matzehuels/orbit/pkg/pipeline"
)

// renderCommand creates the render command. It accepts either a graph file
// (running the full pipeline) or a layout.json produced by 'layout'.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		output     string
		formatsStr string
		flags      viewFlags
	)
	renderOpts := pipeline.Options{}

	cmd := &cobra.Command{
		Use:   "render [graph.json | layout.json]",
		Short: "Render an author graph or layout to SVG, PNG, DOT or JSON",
		Long: `Render an author graph or a precomputed layout.

Given a graph file or --snapshot, render runs load, layout and render in
one go; layout and filter flags apply as in 'layout'. Given a file ending in
.layout.json, positions are taken as they are and only the render options
apply. Multiple formats are rendered concurrently and written next to the
input (or to --output).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderOpts.Formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(renderOpts.Formats); err != nil {
				return err
			}
			input, err := flags.inputArg(args)
			if err != nil {
				return err
			}
			if isLayoutFile(input) {
				return c.renderLayoutFile(cmd.Context(), input, output, renderOpts, flags.noCache)
			}
			opts, err := flags.options(cmd, c, input)
			if err != nil {
				return err
			}
			opts.Formats = renderOpts.Formats
			opts.NodeRadius = renderOpts.NodeRadius
			opts.Labels = renderOpts.Labels
			opts.NoBands = renderOpts.NoBands
			return c.runRender(cmd.Context(), opts, &flags, input, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, dot, json (comma-separated)")
	cmd.Flags().Float64Var(&renderOpts.NodeRadius, "node-radius", pipeline.DefaultNodeRadius, "node radius in pixels")
	cmd.Flags().BoolVar(&renderOpts.Labels, "labels", false, "label highlighted nodes")
	cmd.Flags().BoolVar(&renderOpts.NoBands, "no-bands", false, "omit tier band outlines")
	flags.register(cmd.Flags())
	registerViewCompletions(cmd)
	registerFormatCompletion(cmd)

	return cmd
}

func isLayoutFile(path string) bool {
	return strings.HasSuffix(path, ".layout.json")
}

// runRender runs the full pipeline and writes every artifact.
func (c *CLI) runRender(ctx context.Context, opts pipeline.Options, flags *viewFlags, input, output string) error {
	runner, err := c.newRunner(ctx, flags.noCache, flags.snapshot != "")
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Rendering "+strings.Join(opts.Formats, ", ")+"...")
	spinner.Start()
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	paths, err := writeArtifacts(result.Artifacts, opts.Formats, basePath(output, flags.source(input)), output)
	if err != nil {
		return err
	}

	printSuccess("Render complete")
	for _, p := range paths {
		printFile(p)
	}
	printStats(result.Stats.VisibleNodes, result.Stats.NodeCount, result.Stats.VisibleEdges,
		result.CacheInfo.LayoutHit && result.CacheInfo.RenderHit)
	return nil
}

// renderLayoutFile renders a precomputed layout.
func (c *CLI) renderLayoutFile(ctx context.Context, input, output string, opts pipeline.Options, noCache bool) error {
	l, err := graph.ReadLayoutFile(input)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, noCache, false)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts.Logger = c.Logger
	artifacts, cacheHit, err := runner.RenderWithCacheInfo(ctx, l, opts)
	if err != nil {
		return err
	}
	paths, err := writeArtifacts(artifacts, opts.Formats, basePath(output, input), output)
	if err != nil {
		return err
	}

	printSuccess("Render complete")
	for _, p := range paths {
		printFile(p)
	}
	printStats(len(l.Nodes), l.TotalNodes, len(l.Links), cacheHit)
	return nil
}

// writeArtifacts writes one file per format. A single format is written to
// output verbatim when one is given.
func writeArtifacts(artifacts map[string][]byte, formats []string, base, output string) ([]string, error) {
	paths := make([]string, 0, len(formats))
	for _, format := range slices.Compact(slices.Clone(formats)) {
		path := base + "." + format
		if len(formats) == 1 && output != "" {
			path = output
		}
		if err := os.WriteFile(path, artifacts[format], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
