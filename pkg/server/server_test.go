package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/orbit/pkg/core/render"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/graph"
	"github.com/matzehuels/orbit/pkg/observability"
	"github.com/matzehuels/orbit/pkg/pipeline"
	"github.com/matzehuels/orbit/pkg/storage"
)

func score(v float64) *float64 { return &v }

func sampleGraph() graph.Graph {
	return graph.Graph{
		Meta: graph.Meta{CommunityAlgorithms: []string{"louvain"}},
		Nodes: []graph.Node{
			{ID: "ada", Label: "Ada", TotalWeight: 9, CentralizationScoreNormalized: score(9), Communities: map[string]int{"louvain": 0}},
			{ID: "bo", TotalWeight: 5, CentralizationScoreNormalized: score(5), Communities: map[string]int{"louvain": 0}},
			{ID: "cy", TotalWeight: 1, CentralizationScoreNormalized: score(1), Communities: map[string]int{"louvain": 1}},
		},
		Links: []graph.Link{
			{Source: "ada", Target: "bo", Weight: 2},
			{Source: "bo", Target: "cy", Weight: 1},
		},
	}
}

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	store, err := storage.NewFileStore(filepath.Join(t.TempDir(), "snapshots"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), "june", sampleGraph()); err != nil {
		t.Fatal(err)
	}
	logger := log.New(io.Discard)
	s := New(pipeline.NewRunner(nil, nil, store, logger), cfg, logger)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func do(t *testing.T, ts *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v", v, err)
	}
	return v
}

func createView(t *testing.T, ts *httptest.Server) viewResponse {
	t.Helper()
	resp := do(t, ts, http.MethodPost, "/api/views", `{"snapshot": "june", "width": 800, "height": 600}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	return decode[viewResponse](t, resp)
}

func nodeIDs(f *render.Frame) []string {
	ids := make([]string, len(f.Nodes))
	for i, n := range f.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	resp := do(t, ts, http.MethodGet, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestListSnapshots(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	infos := decode[[]storage.Info](t, do(t, ts, http.MethodGet, "/api/snapshots", ""))
	if len(infos) != 1 || infos[0].Name != "june" || infos[0].Nodes != 3 {
		t.Errorf("snapshots = %+v", infos)
	}
}

func TestListSnapshotsEmpty(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	if err := s.runner.Store.Delete(context.Background(), "june"); err != nil {
		t.Fatal(err)
	}
	resp := do(t, ts, http.MethodGet, "/api/snapshots", "")
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(body)); got != "[]" {
		t.Errorf("body = %s, want []", got)
	}
}

func TestCreateView(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	v := createView(t, ts)

	if v.ID == "" || v.Snapshot != "june" {
		t.Errorf("view = %+v", v)
	}
	if got := nodeIDs(v.Frame); fmt.Sprint(got) != "[ada bo cy]" {
		t.Errorf("nodes = %v", got)
	}
	if v.Frame.Canvas.Width != 800 || v.Frame.CommunityKey != "louvain" {
		t.Errorf("frame canvas = %+v key = %q", v.Frame.Canvas, v.Frame.CommunityKey)
	}
	if s.Views().Len() != 1 {
		t.Errorf("views = %d", s.Views().Len())
	}

	list := decode[[]ViewInfo](t, do(t, ts, http.MethodGet, "/api/views", ""))
	if len(list) != 1 || list[0].ID != v.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestCreateViewErrors(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	tests := []struct {
		name   string
		body   string
		status int
		code   errors.Code
	}{
		{"unknown snapshot", `{"snapshot": "july"}`, http.StatusNotFound, errors.ErrCodeSnapshotNotFound},
		{"bad name", `{"snapshot": "../etc"}`, http.StatusBadRequest, errors.ErrCodeInvalidName},
		{"no name", `{}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"bad canvas", `{"snapshot": "june", "width": -5}`, http.StatusOK, ""},
		{"inverted thresholds", `{"snapshot": "june", "thresholds": {"periphery": 5, "core": 1}}`, http.StatusBadRequest, errors.ErrCodeInvalidRange},
		{"unknown field", `{"snapshot": "june", "colour": "red"}`, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"malformed", `{"snapshot": `, http.StatusBadRequest, errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, ts, http.MethodPost, "/api/views", tt.body)
			if tt.code == "" {
				// Non-positive dimensions fall back to defaults.
				if resp.StatusCode != http.StatusCreated {
					t.Errorf("status = %d, want 201", resp.StatusCode)
				}
				return
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			body := decode[errorResponse](t, resp)
			if body.Error.Code != tt.code {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.code)
			}
		})
	}
}

func TestUnknownView(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	for _, path := range []string{
		"/api/views/not-a-uuid",
		"/api/views/7f1d8c52-3c51-4c5b-9d59-3c3f6a0e2b11",
		"/api/views/7f1d8c52-3c51-4c5b-9d59-3c3f6a0e2b11/svg",
	} {
		resp := do(t, ts, http.MethodGet, path, "")
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
		if body := decode[errorResponse](t, resp); body.Error.Code != errors.ErrCodeViewNotFound {
			t.Errorf("GET %s code = %q", path, body.Error.Code)
		}
	}
}

func TestFilters(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	v := createView(t, ts)
	base := "/api/views/" + v.ID

	resp := do(t, ts, http.MethodPatch, base+"/filters", `{"topN": 1}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	f := decode[render.Frame](t, resp)
	if got := nodeIDs(&f); fmt.Sprint(got) != "[ada]" {
		t.Errorf("after topN nodes = %v", got)
	}
	if f.Filters == nil || f.Filters.TopN != 1 {
		t.Errorf("filters = %+v", f.Filters)
	}

	resp = do(t, ts, http.MethodPatch, base+"/filters", `{"weight": {"min": 5, "max": 1}}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("inverted range status = %d", resp.StatusCode)
	}

	f = decode[render.Frame](t, do(t, ts, http.MethodDelete, base+"/filters", ""))
	if len(f.Nodes) != 3 {
		t.Errorf("after clear nodes = %v", nodeIDs(&f))
	}
}

func TestSelection(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	v := createView(t, ts)
	base := "/api/views/" + v.ID

	f := decode[render.Frame](t, do(t, ts, http.MethodPut, base+"/selection", `{"ids": ["ada"]}`))
	if f.Selection != "single" {
		t.Errorf("selection mode = %q", f.Selection)
	}
	if got := nodeIDs(&f); fmt.Sprint(got) != "[ada bo]" {
		t.Errorf("neighbourhood = %v", got)
	}
	n, _ := f.Node("ada")
	if !n.Selected || !n.Highlighted {
		t.Errorf("ada = %+v", n)
	}

	f = decode[render.Frame](t, do(t, ts, http.MethodPut, base+"/selection", `{"ids": []}`))
	if f.Selection != "empty" || len(f.Nodes) != 3 {
		t.Errorf("cleared frame = %q %v", f.Selection, nodeIDs(&f))
	}
}

func TestHitAndEvents(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	v := createView(t, ts)
	base := "/api/views/" + v.ID
	cy, ok := v.Frame.Node("cy")
	if !ok {
		t.Fatal("cy not in frame")
	}

	hit := decode[hitResponse](t, do(t, ts, http.MethodGet, fmt.Sprintf("%s/hit?x=%g&y=%g", base, cy.X, cy.Y), ""))
	if !hit.Hit || hit.ID != "cy" {
		t.Errorf("hit = %+v", hit)
	}
	if resp := do(t, ts, http.MethodGet, base+"/hit?x=abc&y=1", ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad query status = %d", resp.StatusCode)
	}

	body := fmt.Sprintf(`{"events": [{"kind": "click", "x": %g, "y": %g}]}`, cy.X, cy.Y)
	res := decode[eventsResponse](t, do(t, ts, http.MethodPost, base+"/events", body))
	if !res.Changed || res.Frame.Selection != "single" {
		t.Errorf("click = changed %v mode %q", res.Changed, res.Frame.Selection)
	}

	res = decode[eventsResponse](t, do(t, ts, http.MethodPost, base+"/events", `{"events": [{"kind": "key", "key": "Escape"}]}`))
	if !res.Changed || res.Frame.Selection != "empty" {
		t.Errorf("escape = changed %v mode %q", res.Changed, res.Frame.Selection)
	}

	res = decode[eventsResponse](t, do(t, ts, http.MethodPost, base+"/events", `{"events": [{"kind": "wheel", "x": 400, "y": 300, "zoom": 2}]}`))
	if res.Frame.Transform.Scale != 2 {
		t.Errorf("scale = %g", res.Frame.Transform.Scale)
	}

	if resp := do(t, ts, http.MethodPost, base+"/events", `{"events": [{"kind": "teleport"}]}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown kind status = %d", resp.StatusCode)
	}
}

func TestSVG(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	v := createView(t, ts)

	resp := do(t, ts, http.MethodGet, "/api/views/"+v.ID+"/svg?labels=true", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(data, []byte("<svg")) {
		t.Error("missing <svg")
	}
}

func TestDeleteView(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	v := createView(t, ts)

	if resp := do(t, ts, http.MethodDelete, "/api/views/"+v.ID, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	if resp := do(t, ts, http.MethodGet, "/api/views/"+v.ID, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
	if s.Views().Len() != 0 {
		t.Errorf("views = %d", s.Views().Len())
	}
}

func TestMaxViewsEvictsLeastRecentlyUsed(t *testing.T) {
	s, ts := newTestServer(t, Config{MaxViews: 2})
	first := createView(t, ts)
	createView(t, ts)
	// Touch the first view so the second becomes the eviction candidate.
	time.Sleep(time.Millisecond)
	do(t, ts, http.MethodGet, "/api/views/"+first.ID, "")
	createView(t, ts)

	if s.Views().Len() != 2 {
		t.Fatalf("views = %d", s.Views().Len())
	}
	if _, err := s.Views().Get(first.ID); err != nil {
		t.Errorf("recently used view evicted: %v", err)
	}
}

func TestRegistrySweep(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(0, time.Minute)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	stale := r.Add(ctx, "june", nil)
	now = now.Add(50 * time.Second)
	fresh := r.Add(ctx, "june", nil)
	now = now.Add(20 * time.Second)

	if n := r.Sweep(ctx); n != 1 {
		t.Errorf("swept = %d, want 1", n)
	}
	if _, err := r.Get(stale.ID.String()); !errors.Is(err, errors.ErrCodeViewNotFound) {
		t.Errorf("stale view err = %v", err)
	}
	if _, err := r.Get(fresh.ID.String()); err != nil {
		t.Errorf("fresh view err = %v", err)
	}
	if n := NewRegistry(0, 0).Sweep(ctx); n != 0 {
		t.Errorf("ttl 0 swept %d", n)
	}
}

type recordingAPIHooks struct {
	observability.NoopAPIHooks
	mu     sync.Mutex
	routes []string
	views  []int
}

func (h *recordingAPIHooks) OnRequest(_ context.Context, method, route string, status int, _ time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.routes = append(h.routes, fmt.Sprintf("%s %s %d", method, route, status))
}

func (h *recordingAPIHooks) OnViewCount(_ context.Context, n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.views = append(h.views, n)
}

func TestAPIHooks(t *testing.T) {
	hooks := &recordingAPIHooks{}
	observability.SetAPIHooks(hooks)
	t.Cleanup(observability.Reset)

	_, ts := newTestServer(t, Config{})
	v := createView(t, ts)
	do(t, ts, http.MethodGet, "/api/views/"+v.ID+"/svg", "")

	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.routes) != 2 {
		t.Fatalf("routes = %q", hooks.routes)
	}
	if !strings.HasPrefix(hooks.routes[0], "POST /api/views") || !strings.HasSuffix(hooks.routes[0], " 201") {
		t.Errorf("create route = %q", hooks.routes[0])
	}
	if hooks.routes[1] != "GET /api/views/{id}/svg 200" {
		t.Errorf("svg route = %q, want the pattern rather than the path", hooks.routes[1])
	}
	if fmt.Sprint(hooks.views) != "[1]" {
		t.Errorf("view counts = %v", hooks.views)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeViewNotFound, "x"), http.StatusNotFound},
		{errors.New(errors.ErrCodeInvalidRange, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeEmptyGraph, "x"), http.StatusUnprocessableEntity},
		{errors.New(errors.ErrCodeUnsupported, "x"), http.StatusNotImplemented},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
