// Package interact turns pointer and keyboard events into filter, selection
// and viewport changes for one view of a snapshot.
//
// A [Controller] owns a private copy of the snapshot and keeps three
// derived structures consistent with it: the layout (positions, tiers,
// bands), the filter result (per-node Visible/ClusterVisible flags, visible
// edges, highlights) and a spatial index over visible nodes. What triggers a
// recompute:
//
//   - Load, Resize, SetThresholds, SetCommunityKey: relayout, re-filter, reindex
//   - Apply, ApplyDelta, ClearAll, selection changes, clicks: re-filter, reindex
//   - Pan, Zoom: nothing; the hit radius is divided by the zoom factor instead
//   - Hover: an index lookup only
//
// Every method takes the controller's mutex, so one controller can be shared
// between goroutines (the HTTP server does this).
package interact
