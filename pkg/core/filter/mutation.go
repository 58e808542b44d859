package filter

import (
	"math"
	"strings"

	"github.com/matzehuels/orbit/pkg/core/snapshot"
	"github.com/matzehuels/orbit/pkg/errors"
)

// Mutation changes one dimension of a State.
type Mutation func(*State)

// Apply runs mutations in order.
func (s *State) Apply(muts ...Mutation) {
	for _, m := range muts {
		if m != nil {
			m(s)
		}
	}
}

func bound(v, inf float64) float64 {
	if math.IsNaN(v) {
		return inf
	}
	return v
}

// SetWeightRange sets the edge weight range. NaN bounds are unbounded.
func SetWeightRange(lo, hi float64) Mutation {
	return func(s *State) { s.Weight = Range{Min: bound(lo, math.Inf(-1)), Max: bound(hi, math.Inf(1))} }
}

// SetMinWeight changes only the lower weight bound.
func SetMinWeight(lo float64) Mutation {
	return func(s *State) { s.Weight.Min = bound(lo, math.Inf(-1)) }
}

// SetScoreRange sets the concentration score range. NaN bounds are
// unbounded.
func SetScoreRange(lo, hi float64) Mutation {
	return func(s *State) { s.Score = Range{Min: bound(lo, math.Inf(-1)), Max: bound(hi, math.Inf(1))} }
}

// SetTiers restricts visible tiers. No arguments clears the restriction.
func SetTiers(tiers ...snapshot.Tier) Mutation {
	return func(s *State) { s.Tiers = sortedSet(tiers) }
}

// SetCommunities restricts visible communities under key. No ids clears the
// restriction. snapshot.Unassigned may be listed to keep noise nodes.
func SetCommunities(key string, ids ...snapshot.CommunityID) Mutation {
	return func(s *State) {
		s.CommunityKey = key
		s.Communities = sortedSet(ids)
	}
}

// SetAttributes restricts nodes to those carrying one of keys.
func SetAttributes(keys ...string) Mutation {
	return func(s *State) { s.Attributes = sortedSet(keys) }
}

// SetQuery sets the highlight query.
func SetQuery(q string) Mutation {
	return func(s *State) { s.Query = strings.TrimSpace(q) }
}

// SetFocus sets or, with "", clears the focus node.
func SetFocus(id string) Mutation {
	return func(s *State) { s.Focus = id }
}

// SetAllowlist sets the explicit allowlist.
func SetAllowlist(ids ...string) Mutation {
	return func(s *State) { s.Allowlist = sortedSet(ids) }
}

// SetTopN allowlists the n heaviest nodes; 0 disables it.
func SetTopN(n int) Mutation {
	return func(s *State) { s.TopN = max(n, 0) }
}

// SetSharedOnly toggles "only edges between selected nodes".
func SetSharedOnly(on bool) Mutation {
	return func(s *State) { s.SharedOnly = on }
}

// Select replaces the selection with id.
func Select(id string) Mutation { return func(s *State) { s.Select(id) } }

// Toggle flips id's membership in the selection.
func Toggle(id string) Mutation { return func(s *State) { s.Toggle(id) } }

// ClearSelection empties the selection.
func ClearSelection() Mutation { return func(s *State) { s.ClearSelection() } }

// SetSelection replaces the selection.
func SetSelection(ids ...string) Mutation { return func(s *State) { s.SetSelection(ids) } }

// ClearAll resets the state.
func ClearAll() Mutation { return func(s *State) { s.ClearAll() } }

// =============================================================================
// Delta - partial update from the API
// =============================================================================

// Delta is a partial State update decoded from a request. Nil fields are
// left unchanged; a non-nil empty slice clears that set.
type Delta struct {
	Weight       *Range                  `json:"weight,omitempty"`
	Score        *Range                  `json:"score,omitempty"`
	Tiers        *[]snapshot.Tier        `json:"tiers,omitempty"`
	CommunityKey *string                 `json:"communityKey,omitempty"`
	Communities  *[]snapshot.CommunityID `json:"communities,omitempty"`
	Attributes   *[]string               `json:"attributes,omitempty"`
	Query        *string                 `json:"query,omitempty"`
	Focus        *string                 `json:"focus,omitempty"`
	Allowlist    *[]string               `json:"allowlist,omitempty"`
	TopN         *int                    `json:"topN,omitempty"`
	SharedOnly   *bool                   `json:"sharedOnly,omitempty"`
}

// IsEmpty reports whether the delta changes nothing.
func (d *Delta) IsEmpty() bool { return len(d.Mutations()) == 0 }

// Validate checks the fields that are set.
func (d *Delta) Validate() error {
	if d.Weight != nil {
		if err := d.Weight.Validate("weight"); err != nil {
			return err
		}
	}
	if d.Score != nil {
		if err := d.Score.Validate("score"); err != nil {
			return err
		}
	}
	if d.Tiers != nil {
		for _, t := range *d.Tiers {
			if !t.Valid() {
				return errors.New(errors.ErrCodeInvalidTier, "unknown tier %d", int(t))
			}
		}
	}
	if d.TopN != nil && *d.TopN < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "top-N must not be negative, got %d", *d.TopN)
	}
	return nil
}

// Mutations converts the delta into mutations. A CommunityKey without
// Communities keeps the current community set under the new key.
func (d *Delta) Mutations() []Mutation {
	var muts []Mutation
	if d.Weight != nil {
		muts = append(muts, SetWeightRange(d.Weight.Min, d.Weight.Max))
	}
	if d.Score != nil {
		muts = append(muts, SetScoreRange(d.Score.Min, d.Score.Max))
	}
	if d.Tiers != nil {
		muts = append(muts, SetTiers(*d.Tiers...))
	}
	switch {
	case d.Communities != nil:
		ids := *d.Communities
		key := d.CommunityKey
		muts = append(muts, func(s *State) {
			k := s.CommunityKey
			if key != nil {
				k = *key
			}
			SetCommunities(k, ids...)(s)
		})
	case d.CommunityKey != nil:
		key := *d.CommunityKey
		muts = append(muts, func(s *State) { s.CommunityKey = key })
	}
	if d.Attributes != nil {
		muts = append(muts, SetAttributes(*d.Attributes...))
	}
	if d.Query != nil {
		muts = append(muts, SetQuery(*d.Query))
	}
	if d.Focus != nil {
		muts = append(muts, SetFocus(*d.Focus))
	}
	if d.Allowlist != nil {
		muts = append(muts, SetAllowlist(*d.Allowlist...))
	}
	if d.TopN != nil {
		muts = append(muts, SetTopN(*d.TopN))
	}
	if d.SharedOnly != nil {
		muts = append(muts, SetSharedOnly(*d.SharedOnly))
	}
	return muts
}
