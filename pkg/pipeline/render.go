package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/orbit/pkg/core/render"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/graph"
)

// Render generates output artifacts for every format in opts. Formats are
// rendered concurrently; the first failure cancels the rest.
func Render(ctx context.Context, l graph.Layout, opts Options) (map[string][]byte, error) {
	return renderFormats(ctx, l, opts, opts.Formats)
}

func renderFormats(ctx context.Context, l graph.Layout, opts Options, formats []string) (map[string][]byte, error) {
	f := graph.ToFrame(l)
	p := render.NewPalette(f.Communities)

	var (
		mu        sync.Mutex
		artifacts = make(map[string][]byte, len(formats))
	)
	g, ctx := errgroup.WithContext(ctx)
	for _, format := range formats {
		g.Go(func() error {
			data, err := renderFormat(ctx, f, p, l, format, opts)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInternal, err, "render %s", format)
			}
			mu.Lock()
			artifacts[format] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func renderFormat(ctx context.Context, f *render.Frame, p *render.Palette, l graph.Layout, format string, opts Options) ([]byte, error) {
	switch format {
	case FormatSVG:
		return render.RenderSVG(f, svgOptions(p, opts)...), nil
	case FormatPNG:
		return render.RenderPNG(ctx, f, p)
	case FormatDOT:
		return []byte(render.ToDOT(f, p)), nil
	case FormatJSON:
		return graph.MarshalLayout(l)
	}
	return nil, ValidateFormat(format)
}

func svgOptions(p *render.Palette, opts Options) []render.SVGOption {
	out := []render.SVGOption{render.WithPalette(p)}
	if opts.NodeRadius > 0 {
		out = append(out, render.WithNodeRadius(opts.NodeRadius))
	}
	if opts.Labels {
		out = append(out, render.WithLabels())
	}
	if opts.NoBands {
		out = append(out, render.WithoutBands())
	}
	return out
}
