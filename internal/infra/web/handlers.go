package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iudd/soradeno/internal/domain"
	"github.com/iudd/soradeno/internal/domain/model"
	"github.com/iudd/soradeno/internal/domain/ports/adapter"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.uc.ListAll(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*model.Task{"records": tasks})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.uc.ListPending(r.Context(), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]*model.Task{"tasks": tasks})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.uc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*model.Task{"task": task})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"configured": s.uc.Configured()})
}

// handleGenerate streams one task's run as SSE frames. The terminal frame is
// either a result (possibly skipped) or an error; failures before anything
// was streamed still get a proper HTTP status.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sink, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	res, err := s.uc.Run(r.Context(), chi.URLParam(r, "id"), sink)
	if err != nil {
		if !sink.Started() {
			writeError(w, err)
			return
		}
		sink.Send(adapter.Event{Type: adapter.EventError, Message: err.Error()})
		return
	}

	sink.Send(adapter.Event{
		Type:             adapter.EventResult,
		Success:          true,
		Skipped:          res.Skipped,
		PrimaryURL:       res.Results.PrimaryURL,
		WatermarkFreeURL: res.Results.WatermarkFreeURL,
		MirrorURL:        res.Results.MirrorURL,
	})
}

func (s *Server) handleGenerateBatch(w http.ResponseWriter, r *http.Request) {
	limit := s.batchLimit
	var body struct {
		Limit int `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Limit > 0 {
		limit = body.Limit
	}

	sink, ok := newSSEWriter(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	res, err := s.uc.RunBatch(r.Context(), limit, sink)
	if err != nil && res == nil {
		if !sink.Started() {
			writeError(w, err)
			return
		}
		sink.Send(adapter.Event{Type: adapter.EventError, Message: err.Error()})
		return
	}

	sink.Send(adapter.Event{
		Type:         adapter.EventResult,
		Success:      res.FailCount == 0,
		Total:        res.Total,
		SuccessCount: res.SuccessCount,
		FailCount:    res.FailCount,
	})
}
