package layout

import (
	"math"
	"math/rand/v2"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
)

// innerToOuter is the order in which bands are stacked from the centre.
var innerToOuter = [snapshot.NumTiers]snapshot.Tier{snapshot.TierCore, snapshot.TierPeriphery, snapshot.TierOuter}

// sizeBands fills res.Radius, res.Hole and res.Bands.
func (e *Engine) sizeBands(res *Result, nodes []*snapshot.Node, canvas Canvas) {
	half := math.Min(canvas.Width, canvas.Height) / 2
	radius := half - e.opts.Margin
	if radius <= 0 {
		radius = half
	}
	res.Radius = radius
	res.Hole = radius * e.opts.InnerHole

	var counts [snapshot.NumTiers]int
	for _, n := range nodes {
		counts[n.Tier]++
	}
	widths := BandWidths(counts, res.Usable(), e.opts.BandFloor)

	inner := res.Hole
	for i, t := range innerToOuter {
		outer := inner + widths[t]
		if i == len(innerToOuter)-1 {
			outer = res.Radius
		}
		res.Bands[t] = Band{Tier: t, Inner: inner, Outer: outer, Count: counts[t]}
		inner = outer
	}
}

// BandWidths splits usable into one width per tier. Each band gets floor *
// usable plus a share of the remainder proportional to its population. The
// widths sum to usable exactly: the outermost band absorbs rounding.
//
// When floor * NumTiers >= 1 there is nothing left to distribute and the
// floor itself would overflow, so every band gets usable / NumTiers.
func BandWidths(counts [snapshot.NumTiers]int, usable, floor float64) [snapshot.NumTiers]float64 {
	var widths [snapshot.NumTiers]float64
	total := 0
	for _, c := range counts {
		total += c
	}

	k := float64(snapshot.NumTiers)
	if floor*k >= 1 || total == 0 {
		for t := range widths {
			widths[t] = usable / k
		}
	} else {
		spare := 1 - floor*k
		for t, c := range counts {
			widths[t] = usable * (floor + spare*float64(c)/float64(total))
		}
	}

	sum := 0.0
	for _, t := range innerToOuter[:snapshot.NumTiers-1] {
		sum += widths[t]
	}
	widths[snapshot.TierOuter] = usable - sum
	return widths
}

// assignRadii returns the pre-relaxation radius of every node.
func (e *Engine) assignRadii(res *Result, nodes []*snapshot.Node, rng *rand.Rand) map[string]float64 {
	type extent struct{ lo, hi float64 }
	var ext [snapshot.NumTiers]extent
	for t := range ext {
		ext[t] = extent{lo: math.Inf(1), hi: math.Inf(-1)}
	}
	for _, n := range nodes {
		if !n.HasScore() {
			continue
		}
		s := n.Score()
		ext[n.Tier].lo = math.Min(ext[n.Tier].lo, s)
		ext[n.Tier].hi = math.Max(ext[n.Tier].hi, s)
	}

	radii := make(map[string]float64, len(nodes))
	for _, n := range nodes {
		b := res.Bands[n.Tier]
		if !n.HasScore() {
			radii[n.ID] = b.Mid()
			continue
		}
		r := b.Mid()
		span := ext[n.Tier].hi - ext[n.Tier].lo
		if span > 1e-12 {
			pad := b.Width() * e.opts.BandPadding
			lo, hi := b.Inner+pad, b.Outer-pad
			frac := (n.Score() - ext[n.Tier].lo) / span
			r = hi - frac*(hi-lo)
		}
		r += (rng.Float64()*2 - 1) * e.opts.RadialJitter * b.Width()
		radii[n.ID] = clamp(r, b.Inner, b.Outer)
	}
	return radii
}

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
