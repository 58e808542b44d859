// Package layout places a scored, community-tagged author graph on
// concentric radial tiers.
//
// # Overview
//
// The layout answers two questions for every node at once: how central is
// this author (distance from the centre) and which community do they belong
// to (angle). It runs five steps, each recomputed from scratch on every
// call:
//
//  1. Tier assignment. Concentration scores are classified into
//     [snapshot.TierOuter], [snapshot.TierPeriphery] or [snapshot.TierCore]
//     using two [Thresholds]. By default the thresholds are sampled from the
//     score distribution at fixed quantiles (see [ComputeThresholds]);
//     [Params.Thresholds] overrides them.
//  2. Band sizing. The usable radius is split into one band per tier,
//     proportionally to tier population but never below
//     [Options.BandFloor] of the total. Core is innermost.
//  3. Per-node radius. Within its band a node's radius is interpolated over
//     the tier-local score extent, so position shows rank inside the tier
//     rather than absolute score. Higher scores sit nearer the centre.
//  4. Sectors. Each community under [Params.CommunityKey] gets an equal
//     angular slice; members are spread across it by descending score with
//     a small seeded jitter. Unassigned nodes scatter at random angles.
//  5. Relaxation. A fixed number of O(n²) repulsion passes separate nodes
//     closer than [Options.MinSeparation]. Every push is followed by a clamp
//     back into the node's own band, so relaxation never changes a tier.
//
// # Degraded Input
//
// Missing or non-finite scores place a node in the outer tier at mid-band.
// Only an empty node list and a non-positive canvas are reported as errors.
//
// # Determinism
//
// All randomness comes from a PCG generator seeded by [Params.Seed]. Nodes
// are processed in id order, so the same input set and seed produce the same
// coordinates regardless of slice order.
package layout
