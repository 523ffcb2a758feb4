package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/core"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/guardrail"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/listing"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/store"
)

type RunWorkflowRequest struct {
	InputAsText string `json:"input_as_text"`
}

type RunWorkflowResponse struct {
	OutputText   string            `json:"output_text"`
	OutputParsed []listing.Listing `json:"output_parsed"`
	RunID        string            `json:"run_id,omitempty"`
	State        string            `json:"state,omitempty"`
}

type BlockedResponse struct {
	Blocked   bool                    `json:"blocked"`
	Message   string                  `json:"message"`
	MessageFR string                  `json:"message_fr"`
	MessageEN string                  `json:"message_en"`
	Results   []guardrail.CheckResult `json:"results"`
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req RunWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.InputAsText) == "" {
		respondError(w, http.StatusBadRequest, "input_as_text is required")
		return
	}

	res, err := s.runner.Execute(r.Context(), req.InputAsText)
	if err != nil {
		s.logger.Error("workflow failed",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		respondError(w, http.StatusInternalServerError, workflowError(err))
		return
	}

	if res.Blocked {
		results := res.Guardrail.Triggered()
		if results == nil {
			results = []guardrail.CheckResult{}
		}
		respondJSON(w, http.StatusOK, BlockedResponse{
			Blocked:   true,
			Message:   guardrail.BlockedMessage(r.Header.Get("Accept-Language")),
			MessageFR: guardrail.BlockedMessageFR,
			MessageEN: guardrail.BlockedMessageEN,
			Results:   results,
		})
		return
	}

	listings := res.Listings
	if listings == nil {
		listings = []listing.Listing{}
	}
	respondJSON(w, http.StatusOK, RunWorkflowResponse{
		OutputText:   res.OutputText,
		OutputParsed: listings,
		RunID:        res.ID,
		State:        res.State.String(),
	})
}

// workflowError keeps internal detail out of the response body.
func workflowError(err error) string {
	switch {
	case errors.Is(err, core.ErrSchemaViolation):
		return "Result failed schema validation"
	case errors.Is(err, core.ErrRunUndefined):
		return "Workflow produced no output"
	default:
		return "Workflow failed"
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "Run history is not configured")
		return
	}
	limit, offset := parsePagination(r, 20)

	runs, err := s.history.ListRuns(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch runs: "+err.Error())
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  runs,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "Run history is not configured")
		return
	}
	run, err := s.history.GetRun(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Run not found")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch run: "+err.Error())
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0

	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
