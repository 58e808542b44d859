package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
)

// relax runs the fixed number of pairwise repulsion passes. Pairs closer
// than MinSeparation move apart by half the deficit each along the line
// between them; both are then clamped back into their own band.
func (e *Engine) relax(res *Result, nodes []*snapshot.Node) {
	minSep := e.opts.MinSeparation
	if minSep <= 0 {
		return
	}
	for pass := 0; pass < e.opts.RelaxPasses; pass++ {
		for i := 0; i < len(nodes); i++ {
			a := nodes[i]
			for j := i + 1; j < len(nodes); j++ {
				b := nodes[j]
				d := r2.Sub(b.Pos, a.Pos)
				dist := r2.Norm(d)
				if dist >= minSep {
					continue
				}
				var dir r2.Vec
				if dist > 0 {
					dir = r2.Unit(d)
				} else {
					// Coincident: separate tangentially around the centre.
					t := r2.Sub(a.Pos, res.Center)
					if r2.Norm(t) == 0 {
						t = r2.Vec{X: 1}
					}
					dir = r2.Unit(r2.Vec{X: -t.Y, Y: t.X})
				}
				push := r2.Scale((minSep-dist)/2, dir)
				a.Pos = clampToBand(r2.Sub(a.Pos, push), res.Center, res.Bands[a.Tier])
				b.Pos = clampToBand(r2.Add(b.Pos, push), res.Center, res.Bands[b.Tier])
			}
		}
	}
}

// clampToBand moves p radially so its distance from c lies within b.
func clampToBand(p, c r2.Vec, b Band) r2.Vec {
	v := r2.Sub(p, c)
	r := r2.Norm(v)
	switch {
	case r == 0:
		if b.Inner == 0 {
			return p
		}
		return r2.Add(c, r2.Vec{X: b.Inner})
	case r < b.Inner:
		return r2.Add(c, r2.Scale(b.Inner/r, v))
	case r > b.Outer:
		return r2.Add(c, r2.Scale(b.Outer/r, v))
	}
	return p
}

// RadiusOf returns the distance of n from the layout centre.
func (r *Result) RadiusOf(n *snapshot.Node) float64 {
	return r2.Norm(r2.Sub(n.Pos, r.Center))
}

// InBand reports whether n lies within the band of its tier.
func (r *Result) InBand(n *snapshot.Node) bool {
	return r.Bands[n.Tier].Contains(r.RadiusOf(n), 1e-9*math.Max(1, r.Radius))
}
