package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/matzehuels/orbit/pkg/core/filter"
	"github.com/matzehuels/orbit/pkg/core/interact"
	"github.com/matzehuels/orbit/pkg/core/layout"
	"github.com/matzehuels/orbit/pkg/core/render"
	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/graph"
	"github.com/matzehuels/orbit/pkg/pipeline"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// Request / Response Types
// =============================================================================

type createViewRequest struct {
	Snapshot     string             `json:"snapshot"`
	Refresh      bool               `json:"refresh,omitempty"`
	Width        float64            `json:"width,omitempty"`
	Height       float64            `json:"height,omitempty"`
	CommunityKey string             `json:"communityKey,omitempty"`
	Thresholds   *layout.Thresholds `json:"thresholds,omitempty"`
	Seed         uint64             `json:"seed,omitempty"`
	Filters      *filter.State      `json:"filters,omitempty"`
}

type viewResponse struct {
	ID       string        `json:"id"`
	Snapshot string        `json:"snapshot"`
	Stats    *graph.Stats  `json:"stats,omitempty"`
	Frame    *render.Frame `json:"frame"`
}

type eventsRequest struct {
	Events []interact.Event `json:"events"`
}

type eventsResponse struct {
	Changed bool          `json:"changed"`
	Frame   *render.Frame `json:"frame"`
}

type selectionRequest struct {
	IDs []string `json:"ids"`
}

type hitResponse struct {
	ID  string `json:"id,omitempty"`
	Hit bool   `json:"hit"`
}

type errorBody struct {
	Code    errors.Code `json:"code"`
	Message string      `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "views": s.views.Len()})
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.runner.Store == nil {
		s.respondError(w, errors.New(errors.ErrCodeUnsupported, "no snapshot store configured"))
		return
	}
	infos, err := s.runner.Store.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, infos)
}

func (s *Server) listViews(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.views.List())
}

func (s *Server) createView(w http.ResponseWriter, r *http.Request) {
	var req createViewRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}

	opts := s.viewOptions(req)
	if err := opts.ValidateForLoad(); err != nil {
		s.respondError(w, err)
		return
	}
	if err := opts.ValidateForLayout(); err != nil {
		s.respondError(w, err)
		return
	}
	loaded, err := s.runner.Load(r.Context(), opts)
	if err != nil {
		s.respondError(w, err)
		return
	}
	c, err := pipeline.NewController(loaded.Snapshot, opts)
	if err != nil {
		s.respondError(w, err)
		return
	}

	v := s.views.Add(r.Context(), req.Snapshot, c)
	s.logger.Info("created view",
		"id", v.ID,
		"snapshot", req.Snapshot,
		"nodes", loaded.Snapshot.NodeCount(),
		"dropped", loaded.Stats.DroppedEdges)
	respondJSON(w, http.StatusCreated, viewResponse{
		ID:       v.ID.String(),
		Snapshot: v.Snapshot,
		Stats:    &loaded.Stats,
		Frame:    c.Frame(),
	})
}

// viewOptions layers request fields over the configured defaults.
func (s *Server) viewOptions(req createViewRequest) pipeline.Options {
	opts := s.cfg.Defaults
	if opts.Filters != nil {
		opts.Filters = opts.Filters.Clone()
	}
	opts.Input = ""
	opts.Snapshot = req.Snapshot
	opts.Refresh = req.Refresh
	opts.HitRadius = s.cfg.HitRadius
	opts.Logger = s.logger
	if req.Width > 0 {
		opts.Width = req.Width
	}
	if req.Height > 0 {
		opts.Height = req.Height
	}
	if req.CommunityKey != "" {
		opts.CommunityKey = req.CommunityKey
	}
	if req.Thresholds != nil {
		opts.Thresholds = req.Thresholds
	}
	if req.Seed != 0 {
		opts.Seed = req.Seed
	}
	if req.Filters != nil {
		opts.Filters = req.Filters
	}
	return opts
}

func (s *Server) getView(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, viewResponse{
		ID:       v.ID.String(),
		Snapshot: v.Snapshot,
		Frame:    v.Controller.Frame(),
	})
}

func (s *Server) deleteView(w http.ResponseWriter, r *http.Request) {
	if err := s.views.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postEvents(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	var req eventsRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	changed := false
	for _, e := range req.Events {
		ch, err := v.Controller.Dispatch(e)
		if err != nil {
			s.respondError(w, err)
			return
		}
		changed = changed || ch
	}
	respondJSON(w, http.StatusOK, eventsResponse{Changed: changed, Frame: v.Controller.Frame()})
}

func (s *Server) patchFilters(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	var d filter.Delta
	if err := decodeBody(r, &d); err != nil {
		s.respondError(w, err)
		return
	}
	if err := v.Controller.ApplyDelta(&d); err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v.Controller.Frame())
}

func (s *Server) clearFilters(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	v.Controller.ClearAll()
	respondJSON(w, http.StatusOK, v.Controller.Frame())
}

func (s *Server) putSelection(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, err)
		return
	}
	v.Controller.SetSelection(req.IDs)
	respondJSON(w, http.StatusOK, v.Controller.Frame())
}

func (s *Server) hitTest(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if errX != nil || errY != nil {
		s.respondError(w, errors.New(errors.ErrCodeInvalidInput, "x and y query parameters must be numbers"))
		return
	}
	id, hit := v.Controller.HitTest(r2.Vec{X: x, Y: y})
	respondJSON(w, http.StatusOK, hitResponse{ID: id, Hit: hit})
}

func (s *Server) renderSVG(w http.ResponseWriter, r *http.Request) {
	v, ok := s.view(w, r)
	if !ok {
		return
	}
	f := v.Controller.Frame()
	opts := []render.SVGOption{render.WithPalette(render.NewPalette(f.Communities))}
	if r.URL.Query().Get("labels") == "true" {
		opts = append(opts, render.WithLabels())
	}
	if r.URL.Query().Get("bands") == "false" {
		opts = append(opts, render.WithoutBands())
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(render.RenderSVG(f, opts...))
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) view(w http.ResponseWriter, r *http.Request) (*View, bool) {
	v, err := s.views.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, err)
		return nil, false
	}
	return v, true
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "decode request body")
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	msg := errors.UserMessage(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		msg = "internal error"
	}
	respondJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: msg}})
}

// statusFor maps error codes to HTTP status codes.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound, errors.ErrCodeSnapshotNotFound, errors.ErrCodeViewNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidCanvas, errors.ErrCodeInvalidFormat,
		errors.ErrCodeInvalidTier, errors.ErrCodeInvalidRange, errors.ErrCodeInvalidConfig,
		errors.ErrCodeInvalidName:
		return http.StatusBadRequest
	case errors.ErrCodeEmptyGraph:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
