package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/ksched/internal/scenario"
	"github.com/me/ksched/internal/store"
	"github.com/me/ksched/pkg/model"
)

// handleCreateRun simulates the scenario in the request body (YAML or
// JSON) and stores the resulting run.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxScenarioBytes+1))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "read body: " + err.Error(),
		})
		return
	}
	if len(body) > maxScenarioBytes {
		respondError(w, reqID, http.StatusRequestEntityTooLarge, &model.APIError{
			Code:    model.ErrValidation,
			Message: fmt.Sprintf("scenario exceeds %d bytes", maxScenarioBytes),
		})
		return
	}
	if len(body) == 0 {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("missing scenario body"))
		return
	}

	sc, err := scenario.Parse(body)
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid scenario: " + err.Error(),
		})
		return
	}

	res, err := s.sim.Run(r.Context(), sc)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			respondError(w, reqID, http.StatusBadRequest, apiErr)
			return
		}
		respondError(w, reqID, http.StatusUnprocessableEntity, &model.APIError{
			Code:    model.ErrValidation,
			Message: err.Error(),
		})
		return
	}

	if err := s.store.SaveRun(r.Context(), &res.Run, res.Events, res.Threads); err != nil {
		respondInternal(w, reqID, err)
		return
	}

	s.logger.Info("run created", "id", res.Run.ID, "scenario", res.Run.Name,
		"events", len(res.Events), "switches", res.Run.Switches)
	respondCreated(w, reqID, res.Run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	respondList(w, reqID, runs, opts, total)
}

// lookupRun fetches the run named in the URL, writing the error response
// and returning nil when it cannot.
func (s *Server) lookupRun(w http.ResponseWriter, r *http.Request) *model.Run {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondInternal(w, reqID, err)
		return nil
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return nil
	}
	return run
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if run := s.lookupRun(w, r); run != nil {
		respondOK(w, RequestIDFromContext(r.Context()), run)
	}
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	err := s.store.DeleteRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", id))
		return
	}
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}

	s.logger.Info("run deleted", "id", id)
	respondOK(w, reqID, map[string]any{"id": id, "deleted": true})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts, apiErr := listOptions(r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}
	run := s.lookupRun(w, r)
	if run == nil {
		return
	}

	events, total, err := s.store.ListEvents(r.Context(), run.ID, opts)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if events == nil {
		events = []model.TraceEvent{}
	}
	respondList(w, reqID, events, opts, total)
}

func (s *Server) handleListThreads(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	run := s.lookupRun(w, r)
	if run == nil {
		return
	}

	threads, err := s.store.ListThreadSummaries(r.Context(), run.ID)
	if err != nil {
		respondInternal(w, reqID, err)
		return
	}
	if threads == nil {
		threads = []model.ThreadSummary{}
	}
	respondOK(w, reqID, threads)
}
