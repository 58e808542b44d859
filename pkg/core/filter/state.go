package filter

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
)

// Range is a closed interval. Infinite bounds mean unbounded on that side
// and encode as JSON null.
type Range struct {
	Min float64
	Max float64
}

// Unbounded is the range that contains every number.
var Unbounded = Range{Min: math.Inf(-1), Max: math.Inf(1)}

// Contains reports whether v lies in the range. NaN is only contained in an
// unbounded range.
func (r Range) Contains(v float64) bool {
	if math.IsNaN(v) {
		return r.IsUnbounded()
	}
	return v >= r.Min && v <= r.Max
}

// IsUnbounded reports whether both bounds are infinite.
func (r Range) IsUnbounded() bool { return math.IsInf(r.Min, -1) && math.IsInf(r.Max, 1) }

// Validate rejects NaN bounds and inverted ranges.
func (r Range) Validate(name string) error { return errors.ValidateRange(name, r.Min, r.Max) }

type rangeJSON struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

// MarshalJSON implements json.Marshaler. An open side encodes as null; a
// range that cannot hold any finite value is rejected.
func (r Range) MarshalJSON() ([]byte, error) {
	if err := errors.ValidateRange("range", r.Min, r.Max); err != nil {
		return nil, err
	}
	var out rangeJSON
	if !math.IsInf(r.Min, -1) {
		out.Min = &r.Min
	}
	if !math.IsInf(r.Max, 1) {
		out.Max = &r.Max
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Range) UnmarshalJSON(b []byte) error {
	var in rangeJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Unbounded
	if in.Min != nil {
		r.Min = *in.Min
	}
	if in.Max != nil {
		r.Max = *in.Max
	}
	return nil
}

// SelectionMode is the state of the selection machine.
type SelectionMode int

const (
	SelectionEmpty SelectionMode = iota
	SelectionSingle
	SelectionMulti
)

func (m SelectionMode) String() string {
	switch m {
	case SelectionSingle:
		return "single"
	case SelectionMulti:
		return "multi"
	}
	return "empty"
}

// State is the full filter state of one view. Set-valued fields are kept
// sorted and duplicate-free; an empty set means no restriction.
type State struct {
	Weight Range `json:"weight"`
	Score  Range `json:"score"`

	Tiers []snapshot.Tier `json:"tiers,omitempty"`

	// CommunityKey is the algorithm Communities refers to.
	CommunityKey string                 `json:"communityKey,omitempty"`
	Communities  []snapshot.CommunityID `json:"communities,omitempty"`

	Attributes []string `json:"attributes,omitempty"`

	// Query highlights nodes whose label or id contains it, ignoring case.
	Query string `json:"query,omitempty"`

	// Focus restricts the view to one node and its neighbours while no
	// selection is active.
	Focus string `json:"focus,omitempty"`

	// Allowlist and TopN together form the allowlist mode. When either is
	// set, only listed nodes and the TopN heaviest nodes pass.
	Allowlist []string `json:"allowlist,omitempty"`
	TopN      int      `json:"topN,omitempty"`

	// Selected is ordered by selection time.
	Selected   []string `json:"selected,omitempty"`
	SharedOnly bool     `json:"sharedOnly,omitempty"`
}

// NewState returns a state with no active filters.
func NewState() *State {
	return &State{Weight: Unbounded, Score: Unbounded}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Tiers = slices.Clone(s.Tiers)
	c.Communities = slices.Clone(s.Communities)
	c.Attributes = slices.Clone(s.Attributes)
	c.Allowlist = slices.Clone(s.Allowlist)
	c.Selected = slices.Clone(s.Selected)
	return &c
}

// ClearAll resets every dimension, including the selection.
func (s *State) ClearAll() { *s = *NewState() }

// Validate checks ranges and tiers.
func (s *State) Validate() error {
	if err := s.Weight.Validate("weight"); err != nil {
		return err
	}
	if err := s.Score.Validate("score"); err != nil {
		return err
	}
	for _, t := range s.Tiers {
		if !t.Valid() {
			return errors.New(errors.ErrCodeInvalidTier, "unknown tier %d", int(t))
		}
	}
	if s.TopN < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "top-N must not be negative, got %d", s.TopN)
	}
	return nil
}

// AllowlistActive reports whether allowlist mode is on.
func (s *State) AllowlistActive() bool { return s.TopN > 0 || len(s.Allowlist) > 0 }

// CommunityActive reports whether a community filter is set.
func (s *State) CommunityActive() bool { return len(s.Communities) > 0 }

// ---- selection ----

// SelectionMode reports empty, single or multi selection.
func (s *State) SelectionMode() SelectionMode {
	switch len(s.Selected) {
	case 0:
		return SelectionEmpty
	case 1:
		return SelectionSingle
	}
	return SelectionMulti
}

// IsSelected reports whether id is in the selection.
func (s *State) IsSelected(id string) bool { return slices.Contains(s.Selected, id) }

// Select replaces the selection with id.
func (s *State) Select(id string) { s.Selected = []string{id} }

// Toggle adds id to the selection or removes it if present.
func (s *State) Toggle(id string) {
	if i := slices.Index(s.Selected, id); i >= 0 {
		s.Selected = slices.Delete(s.Selected, i, i+1)
		return
	}
	s.Selected = append(s.Selected, id)
}

// ClearSelection empties the selection.
func (s *State) ClearSelection() { s.Selected = nil }

// SetSelection replaces the selection, dropping empty and repeated ids.
func (s *State) SetSelection(ids []string) {
	s.Selected = nil
	for _, id := range ids {
		if id != "" && !slices.Contains(s.Selected, id) {
			s.Selected = append(s.Selected, id)
		}
	}
}

// Evict removes selected ids that are missing from snap or fail a base
// filter, and returns them. A focus node that fails a base filter is
// cleared as well.
func (s *State) Evict(snap *snapshot.Snapshot) []string {
	if len(s.Selected) == 0 && s.Focus == "" {
		return nil
	}
	ev := NewEvaluator(s, snap)
	if s.Focus != "" && !ev.BaseVisible(s.Focus) {
		s.Focus = ""
	}
	if len(s.Selected) == 0 {
		return nil
	}
	var evicted []string
	kept := s.Selected[:0]
	for _, id := range s.Selected {
		if ev.BaseVisible(id) {
			kept = append(kept, id)
		} else {
			evicted = append(evicted, id)
		}
	}
	if len(kept) == 0 {
		kept = nil
	}
	s.Selected = kept
	return evicted
}

func sortedSet[T cmp.Ordered](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
