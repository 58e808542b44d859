// Package filter composes independent filter dimensions into one
// visibility and highlight decision per node and per edge.
//
// # Overview
//
// A [State] is a plain aggregate of orthogonal predicates: edge weight
// range, score range, tier set, community set, attribute set, text query,
// focus node, top-N allowlist and the ordered selection. [Evaluate] turns a
// State and a [snapshot.Snapshot] into a [Result] without caching anything
// between calls, so removing a filter restores hidden nodes immediately.
//
// # Precedence
//
// Node visibility short-circuits on the first failing step:
//
//  1. absent: the id is not in the snapshot
//  2. allowlist: top-N or explicit allowlist mode rejects the node
//  3. tier: the node's tier is not in the tier set
//  4. attribute: the node has none of the selected attribute keys
//  5. score: the concentration score is outside the score range
//  6. selection: with a non-empty selection, visibility is membership in
//     the selection neighbourhood and steps 7 and 8 are skipped
//  7. community: the node's community is not in the community set
//  8. focus: with a focus node, only it and its neighbours remain
//
// Steps 1 to 5 are the base filters. Nodes failing them are evicted from
// the selection by [State.Evict].
//
// # Edges
//
// An edge is visible when both endpoints are visible and its weight is in
// range. With a community filter and no selection, the endpoints must also
// share a community and at least one attribute. With a selection and
// [State.SharedOnly], both endpoints must be selected.
//
// # Isolates
//
// Weight filtering never hides nodes. A node whose edges all fall outside
// the weight range stays visible without edges.
package filter
