package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/campus-bookx/exchange-hub/internal/application/command"
	"github.com/campus-bookx/exchange-hub/internal/application/query"
	"github.com/campus-bookx/exchange-hub/internal/domain/exchange"
	"github.com/campus-bookx/exchange-hub/internal/domain/shared"
	"github.com/campus-bookx/exchange-hub/pkg/logger"
	"github.com/campus-bookx/exchange-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCHING TRIGGER
// ══════════════════════════════════════════════════════════════════════════════

// RunMatchingResponse is the body of a successful trigger call.
type RunMatchingResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	MatchesCreated int    `json:"matches_created"`
	Semester       string `json:"semester,omitempty"`
	AcademicYear   string `json:"academic_year,omitempty"`
	ExchangeDate   string `json:"exchange_date,omitempty"`
	StoppedEarly   bool   `json:"stopped_early,omitempty"`
	RunID          string `json:"run_id,omitempty"`
}

// handleRunMatching runs the engine once. The request body is ignored.
func (s *Server) handleRunMatching(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	res, err := s.deps.RunMatching.Handle(ctx, command.RunMatchingCommand{
		Trigger:       exchange.TriggerHTTP,
		CorrelationID: getRequestID(r.Context()),
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, shared.ErrRunInProgress) {
			status = http.StatusConflict
		}
		logger.FromContext(r.Context()).Error("matching engine error", logger.Err(err), logger.Int("status", status))
		writeJSON(w, status, JSONResponse{Success: false, Error: err.Error()})
		return
	}

	body := RunMatchingResponse{
		Success:        true,
		Message:        res.Message,
		MatchesCreated: res.MatchesCreated,
		Semester:       res.Term.Semester,
		AcademicYear:   res.Term.AcademicYear,
		StoppedEarly:   res.StoppedEarly,
		RunID:          res.RunID,
	}
	if !res.ExchangeDate.IsZero() {
		body.ExchangeDate = timeutil.FormatDate(res.ExchangeDate)
	}
	writeJSON(w, http.StatusOK, body)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN READS
// ══════════════════════════════════════════════════════════════════════════════

// handleListRuns serves GET /matching-runs?limit=N.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	var q query.ListMatchingRunsQuery
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
			return
		}
		q.Limit = n
	}

	res, err := s.deps.ListRuns.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeData(w, r, res)
}

// handleListSlots serves GET /exchange-slots?date=YYYY-MM-DD.
func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	var q query.ListSlotsQuery
	if raw := r.URL.Query().Get("date"); raw != "" {
		d, err := timeutil.ParseDate(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		q.Date = d
	}

	res, err := s.deps.ListSlots.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeData(w, r, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth reports 200 when every registered check passes, else 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"healthy": true,
			"uptime":  s.Uptime().String(),
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case shared.IsConflict(err):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	default:
		logger.FromContext(r.Context()).Error("request failed", logger.Err(err), logger.String("path", r.URL.Path))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
