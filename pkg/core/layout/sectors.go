package layout

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
)

// startAngle puts the first sector at twelve o'clock.
const startAngle = -math.Pi / 2

// SectorOrder returns the order in which communities receive sectors:
// entries of preferred that have members come first, then the rest by
// descending population, ties broken by ascending id.
func SectorOrder(sizes map[snapshot.CommunityID]int, preferred []snapshot.CommunityID) []snapshot.CommunityID {
	order := make([]snapshot.CommunityID, 0, len(sizes))
	seen := make(map[snapshot.CommunityID]bool, len(sizes))
	for _, c := range preferred {
		if sizes[c] > 0 && !seen[c] {
			order = append(order, c)
			seen[c] = true
		}
	}
	var rest []snapshot.CommunityID
	for c, n := range sizes {
		if n > 0 && !seen[c] {
			rest = append(rest, c)
		}
	}
	slices.SortFunc(rest, func(a, b snapshot.CommunityID) int {
		if d := cmp.Compare(sizes[b], sizes[a]); d != 0 {
			return d
		}
		return cmp.Compare(a, b)
	})
	return append(order, rest...)
}

// assignSectors fills res.Sectors and res.Noise and returns the angle of
// every node.
func (e *Engine) assignSectors(res *Result, nodes []*snapshot.Node, key string, rng *rand.Rand) map[string]float64 {
	buckets := make(map[snapshot.CommunityID][]*snapshot.Node)
	var noise []*snapshot.Node
	sizes := make(map[snapshot.CommunityID]int)
	for _, n := range nodes {
		c := n.Community(key)
		if !c.Assigned() {
			noise = append(noise, n)
			continue
		}
		buckets[c] = append(buckets[c], n)
		sizes[c]++
	}

	angles := make(map[string]float64, len(nodes))
	order := SectorOrder(sizes, e.opts.CommunityOrder)
	k := float64(len(order))
	gap := e.opts.SectorGap
	if k*gap >= 2*math.Pi {
		gap = 0
	}
	width := 0.0
	if k > 0 {
		width = (2*math.Pi - k*gap) / k
	}

	res.Sectors = make([]Sector, 0, len(order))
	for i, c := range order {
		start := startAngle + float64(i)*(width+gap) + gap/2
		members := buckets[c]
		slices.SortStableFunc(members, byScoreDesc)

		step := width / float64(len(members))
		for j, n := range members {
			a := start + (float64(j)+0.5)*step
			a += (rng.Float64()*2 - 1) * e.opts.AngularJitter * step / 2
			angles[n.ID] = a
		}
		res.Sectors = append(res.Sectors, Sector{Community: c, Start: start, End: start + width, Count: len(members)})
	}

	for _, n := range noise {
		angles[n.ID] = rng.Float64() * 2 * math.Pi
	}
	res.Noise = len(noise)
	return angles
}

// byScoreDesc orders by descending score with missing scores last. Callers
// pass id-sorted input and rely on the sort being stable.
func byScoreDesc(a, b *snapshot.Node) int {
	ha, hb := a.HasScore(), b.HasScore()
	switch {
	case ha && !hb:
		return -1
	case !ha && hb:
		return 1
	case !ha && !hb:
		return 0
	}
	return cmp.Compare(b.Score(), a.Score())
}
