package filter

import (
	"cmp"
	"slices"
	"strings"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
)

// Reason names the filter step that hid a node.
type Reason int

const (
	ReasonVisible Reason = iota
	ReasonAbsent
	ReasonAllowlist
	ReasonTier
	ReasonAttribute
	ReasonScore
	ReasonSelection
	ReasonCommunity
	ReasonFocus
)

func (r Reason) String() string {
	switch r {
	case ReasonVisible:
		return "visible"
	case ReasonAbsent:
		return "absent"
	case ReasonAllowlist:
		return "allowlist"
	case ReasonTier:
		return "tier"
	case ReasonAttribute:
		return "attribute"
	case ReasonScore:
		return "score"
	case ReasonSelection:
		return "selection"
	case ReasonCommunity:
		return "community"
	case ReasonFocus:
		return "focus"
	}
	return "unknown"
}

type set map[string]struct{}

func (s set) has(id string) bool {
	_, ok := s[id]
	return ok
}

// Evaluator answers visibility questions for one State and Snapshot. It
// precomputes the allowlist, selection neighbourhood and focus set, so it
// must be rebuilt after either input changes. A focus node hidden by a base
// step restricts nothing.
type Evaluator struct {
	state *State
	snap  *snapshot.Snapshot

	tiers       map[snapshot.Tier]bool
	communities map[snapshot.CommunityID]bool
	attrs       set
	allow       set // nil when allowlist mode is off
	selected    set
	hood        set // nil when the selection is empty
	focus       set // nil when no focus node is set
	query       string
}

// NewEvaluator prepares an evaluator. The state and snapshot must not be
// changed while it is in use.
func NewEvaluator(state *State, snap *snapshot.Snapshot) *Evaluator {
	ev := &Evaluator{
		state:       state,
		snap:        snap,
		tiers:       make(map[snapshot.Tier]bool, len(state.Tiers)),
		communities: make(map[snapshot.CommunityID]bool, len(state.Communities)),
		attrs:       make(set, len(state.Attributes)),
		selected:    make(set, len(state.Selected)),
		query:       strings.ToLower(state.Query),
	}
	for _, t := range state.Tiers {
		ev.tiers[t] = true
	}
	for _, c := range state.Communities {
		ev.communities[c] = true
	}
	for _, a := range state.Attributes {
		ev.attrs[a] = struct{}{}
	}
	for _, id := range state.Selected {
		if _, ok := snap.Node(id); ok {
			ev.selected[id] = struct{}{}
		}
	}
	if state.AllowlistActive() {
		ev.allow = allowlist(state, snap)
	}
	if len(ev.selected) > 0 {
		ev.hood = ev.neighbourhood()
	}
	if state.Focus != "" && ev.checkBase(state.Focus) == ReasonVisible {
		ev.focus = set{state.Focus: {}}
		for _, e := range snap.Incident(state.Focus) {
			if state.Weight.Contains(e.Weight) {
				ev.focus[e.Key.Other(state.Focus)] = struct{}{}
			}
		}
	}
	return ev
}

// allowlist returns the explicit allowlist plus the TopN nodes by total
// weight, ties broken by id.
func allowlist(state *State, snap *snapshot.Snapshot) set {
	allow := make(set, len(state.Allowlist)+state.TopN)
	for _, id := range state.Allowlist {
		allow[id] = struct{}{}
	}
	if state.TopN > 0 {
		nodes := snap.Nodes()
		slices.SortFunc(nodes, func(a, b *snapshot.Node) int {
			if c := cmp.Compare(b.TotalWeight, a.TotalWeight); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		for _, n := range nodes[:min(state.TopN, len(nodes))] {
			allow[n.ID] = struct{}{}
		}
	}
	return allow
}

// neighbourhood returns the selection plus the nodes it pulls in: with a
// single selection every weight-visible neighbour, with several only when
// SharedOnly is off.
func (ev *Evaluator) neighbourhood() set {
	hood := make(set, len(ev.selected))
	for id := range ev.selected {
		hood[id] = struct{}{}
	}
	if len(ev.selected) > 1 && ev.state.SharedOnly {
		return hood
	}
	for id := range ev.selected {
		for _, e := range ev.snap.Incident(id) {
			if ev.state.Weight.Contains(e.Weight) {
				hood[e.Key.Other(id)] = struct{}{}
			}
		}
	}
	return hood
}

// Neighbourhood returns the selection neighbourhood, sorted. It is empty
// when nothing is selected.
func (ev *Evaluator) Neighbourhood() []string {
	out := make([]string, 0, len(ev.hood))
	for id := range ev.hood {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Check returns the first filter step that hides id, or ReasonVisible.
func (ev *Evaluator) Check(id string) Reason {
	if r := ev.checkBase(id); r != ReasonVisible {
		return r
	}
	if ev.hood != nil {
		if !ev.hood.has(id) {
			return ReasonSelection
		}
		return ReasonVisible
	}
	n, _ := ev.snap.Node(id)
	if len(ev.communities) > 0 && !ev.communities[n.Community(ev.state.CommunityKey)] {
		return ReasonCommunity
	}
	if ev.focus != nil && !ev.focus.has(id) {
		return ReasonFocus
	}
	return ReasonVisible
}

func (ev *Evaluator) checkBase(id string) Reason {
	n, ok := ev.snap.Node(id)
	if !ok {
		return ReasonAbsent
	}
	if ev.allow != nil && !ev.allow.has(id) {
		return ReasonAllowlist
	}
	if len(ev.tiers) > 0 && !ev.tiers[n.Tier] {
		return ReasonTier
	}
	if len(ev.attrs) > 0 && !ev.hasAttribute(n) {
		return ReasonAttribute
	}
	if !ev.state.Score.Contains(n.Score()) {
		return ReasonScore
	}
	return ReasonVisible
}

func (ev *Evaluator) hasAttribute(n *snapshot.Node) bool {
	for _, a := range n.Attributes {
		if ev.attrs.has(a.Key) {
			return true
		}
	}
	return false
}

// NodeVisible reports whether id passes every filter step.
func (ev *Evaluator) NodeVisible(id string) bool { return ev.Check(id) == ReasonVisible }

// BaseVisible reports whether id passes the selection-independent steps.
func (ev *Evaluator) BaseVisible(id string) bool { return ev.checkBase(id) == ReasonVisible }

// EdgeVisible reports whether e is drawn.
func (ev *Evaluator) EdgeVisible(e snapshot.Edge) bool {
	if !ev.state.Weight.Contains(e.Weight) {
		return false
	}
	if !ev.NodeVisible(e.Key.A) || !ev.NodeVisible(e.Key.B) {
		return false
	}
	if ev.hood != nil {
		if ev.state.SharedOnly && len(ev.selected) > 1 {
			return ev.selected.has(e.Key.A) && ev.selected.has(e.Key.B)
		}
		return true
	}
	if len(ev.communities) > 0 {
		a, _ := ev.snap.Node(e.Key.A)
		b, _ := ev.snap.Node(e.Key.B)
		ca := a.Community(ev.state.CommunityKey)
		if !ca.Assigned() || ca != b.Community(ev.state.CommunityKey) {
			return false
		}
		return a.SharesAttribute(b)
	}
	return true
}

// Matches reports whether the node's label or id contains the query.
func (ev *Evaluator) Matches(n *snapshot.Node) bool {
	if ev.query == "" {
		return false
	}
	return strings.Contains(strings.ToLower(n.Label), ev.query) ||
		strings.Contains(strings.ToLower(n.ID), ev.query)
}

// Highlighted reports whether a visible node is selected, focused or
// matches the query.
func (ev *Evaluator) Highlighted(id string) bool {
	if !ev.NodeVisible(id) {
		return false
	}
	if ev.selected.has(id) || id == ev.state.Focus {
		return true
	}
	n, _ := ev.snap.Node(id)
	return ev.Matches(n)
}

// =============================================================================
// Result
// =============================================================================

// Result is the outcome of one evaluation. Lists follow snapshot insertion
// order.
type Result struct {
	VisibleNodes []string           `json:"visibleNodes"`
	VisibleEdges []snapshot.EdgeKey `json:"visibleEdges"`
	Highlighted  []string           `json:"highlighted"`

	base    set
	visible set
}

// Evaluate computes node, edge and highlight visibility from scratch.
func Evaluate(state *State, snap *snapshot.Snapshot) *Result {
	ev := NewEvaluator(state, snap)
	res := &Result{
		VisibleNodes: []string{},
		VisibleEdges: []snapshot.EdgeKey{},
		Highlighted:  []string{},
		base:         make(set),
		visible:      make(set),
	}
	for _, id := range snap.IDs() {
		if ev.BaseVisible(id) {
			res.base[id] = struct{}{}
		}
		if ev.NodeVisible(id) {
			res.visible[id] = struct{}{}
			res.VisibleNodes = append(res.VisibleNodes, id)
			if ev.Highlighted(id) {
				res.Highlighted = append(res.Highlighted, id)
			}
		}
	}
	for _, e := range snap.Edges() {
		if ev.EdgeVisible(e) {
			res.VisibleEdges = append(res.VisibleEdges, e.Key)
		}
	}
	return res
}

// IsVisible reports whether id is in VisibleNodes.
func (r *Result) IsVisible(id string) bool { return r.visible.has(id) }

// Apply writes Visible (base filters) and ClusterVisible (all filters) onto
// every node of snap.
func (r *Result) Apply(snap *snapshot.Snapshot) {
	for _, n := range snap.Nodes() {
		n.Visible = r.base.has(n.ID)
		n.ClusterVisible = r.visible.has(n.ID)
	}
}
