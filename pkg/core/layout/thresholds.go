package layout

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
)

const (
	// DefaultPeripheryQuantile is the score quantile at which the periphery
	// tier begins.
	DefaultPeripheryQuantile = 0.40

	// DefaultCoreQuantile is the score quantile at which the core tier
	// begins.
	DefaultCoreQuantile = 0.85
)

// Thresholds are the two score cut-offs that split nodes into tiers. A
// score >= Core is core, a score >= Periphery is periphery, anything lower
// or missing is outer.
type Thresholds struct {
	Periphery float64 `json:"periphery" toml:"periphery"`
	Core      float64 `json:"core" toml:"core"`
}

// DefaultThresholds are used when no finite score exists to sample from.
var DefaultThresholds = Thresholds{Periphery: 0.4, Core: 0.85}

// Validate checks that both thresholds are numbers and Periphery <= Core.
func (t Thresholds) Validate() error {
	return errors.ValidateRange("threshold", t.Periphery, t.Core)
}

// Classify returns the tier implied by score. Non-finite scores count as
// missing and classify as outer.
func (t Thresholds) Classify(score float64) snapshot.Tier {
	switch {
	case math.IsNaN(score) || math.IsInf(score, 0):
		return snapshot.TierOuter
	case score >= t.Core:
		return snapshot.TierCore
	case score >= t.Periphery:
		return snapshot.TierPeriphery
	}
	return snapshot.TierOuter
}

// ComputeThresholds samples the finite values of scores at the two
// quantiles using the empirical CDF. The boolean is false when there was
// nothing to sample and DefaultThresholds were returned.
func ComputeThresholds(scores []float64, peripheryQ, coreQ float64) (Thresholds, bool) {
	xs := make([]float64, 0, len(scores))
	for _, s := range scores {
		if !math.IsNaN(s) && !math.IsInf(s, 0) {
			xs = append(xs, s)
		}
	}
	if len(xs) == 0 {
		return DefaultThresholds, false
	}
	slices.Sort(xs)
	return Thresholds{
		Periphery: stat.Quantile(peripheryQ, stat.Empirical, xs, nil),
		Core:      stat.Quantile(coreQ, stat.Empirical, xs, nil),
	}, true
}

// NodeThresholds is ComputeThresholds over the concentration scores of nodes.
func NodeThresholds(nodes []*snapshot.Node, peripheryQ, coreQ float64) (Thresholds, bool) {
	scores := make([]float64, 0, len(nodes))
	for _, n := range nodes {
		if n != nil {
			scores = append(scores, n.Score())
		}
	}
	return ComputeThresholds(scores, peripheryQ, coreQ)
}
