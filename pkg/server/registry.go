package server

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/orbit/pkg/core/interact"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/observability"
)

// View is one interactive session over a stored snapshot.
type View struct {
	ID         uuid.UUID
	Snapshot   string
	Controller *interact.Controller
	Created    time.Time

	lastUsed time.Time
}

// ViewInfo is the listing form of a View.
type ViewInfo struct {
	ID       string    `json:"id"`
	Snapshot string    `json:"snapshot"`
	Created  time.Time `json:"created"`
	LastUsed time.Time `json:"lastUsed"`
}

// Registry holds live views. When full, adding a view evicts the least
// recently used one.
type Registry struct {
	mu    sync.Mutex
	views map[uuid.UUID]*View
	max   int
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry creates a registry. max <= 0 means unbounded and ttl <= 0
// means views never expire.
func NewRegistry(max int, ttl time.Duration) *Registry {
	return &Registry{
		views: make(map[uuid.UUID]*View),
		max:   max,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Add registers a controller under a fresh id.
func (r *Registry) Add(ctx context.Context, snapshot string, c *interact.Controller) *View {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max > 0 && len(r.views) >= r.max {
		r.evictOldest()
	}
	now := r.now()
	v := &View{
		ID:         uuid.New(),
		Snapshot:   snapshot,
		Controller: c,
		Created:    now,
		lastUsed:   now,
	}
	r.views[v.ID] = v
	observability.API().OnViewCount(ctx, len(r.views))
	return v
}

// Get returns a view and marks it used. Malformed and unknown ids are
// VIEW_NOT_FOUND.
func (r *Registry) Get(id string) (*View, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return nil, errors.New(errors.ErrCodeViewNotFound, "view %q not found", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[key]
	if !ok {
		return nil, errors.New(errors.ErrCodeViewNotFound, "view %q not found", id)
	}
	v.lastUsed = r.now()
	return v, nil
}

// Delete removes a view.
func (r *Registry) Delete(ctx context.Context, id string) error {
	v, err := r.Get(id)
	if err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.views, v.ID)
	n := len(r.views)
	r.mu.Unlock()
	observability.API().OnViewCount(ctx, n)
	return nil
}

// List returns all views, most recently used first.
func (r *Registry) List() []ViewInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ViewInfo, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, ViewInfo{
			ID:       v.ID.String(),
			Snapshot: v.Snapshot,
			Created:  v.Created,
			LastUsed: v.lastUsed,
		})
	}
	slices.SortFunc(out, func(a, b ViewInfo) int {
		if c := b.LastUsed.Compare(a.LastUsed); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of live views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Sweep drops views idle for longer than the ttl and returns how many were
// removed.
func (r *Registry) Sweep(ctx context.Context) int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, v := range r.views {
		if v.lastUsed.Before(cutoff) {
			delete(r.views, id)
			removed++
		}
	}
	n := len(r.views)
	r.mu.Unlock()
	if removed > 0 {
		observability.API().OnViewCount(ctx, n)
	}
	return removed
}

func (r *Registry) evictOldest() {
	var oldest *View
	for _, v := range r.views {
		if oldest == nil || v.lastUsed.Before(oldest.lastUsed) {
			oldest = v
		}
	}
	if oldest != nil {
		delete(r.views, oldest.ID)
	}
}
