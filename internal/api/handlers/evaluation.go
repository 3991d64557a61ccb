package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/ldwatch/internal/contracts"
	"github.com/wonny/ldwatch/internal/engine"
	"github.com/wonny/ldwatch/pkg/logger"
)

// Runner runs and caches evaluations
type Runner interface {
	Run(ctx context.Context, contractID string, start, end time.Time) (*contracts.EvaluationResult, error)
	Latest(ctx context.Context, contractID string) (*contracts.EvaluationResult, error)
}

// CompletenessReader returns the last stored completeness report
type CompletenessReader interface {
	GetLatest(ctx context.Context, contractID string) (*contracts.CompletenessReport, error)
}

const maxBreachLimit = 500

// EvaluationHandler handles evaluation trigger and breach listing endpoints
// ⭐ SSOT: 평가 API 핸들러는 이 구조체에서만
type EvaluationHandler struct {
	runner       Runner
	breaches     contracts.BreachReader
	completeness CompletenessReader
	logger       *logger.Logger
}

// NewEvaluationHandler creates a new evaluation handler
func NewEvaluationHandler(runner Runner, breaches contracts.BreachReader, completeness CompletenessReader, log *logger.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		runner:       runner,
		breaches:     breaches,
		completeness: completeness,
		logger:       log,
	}
}

// EvaluateRequest is the body of an evaluation trigger
type EvaluateRequest struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// Evaluate runs a compliance evaluation synchronously
// POST /api/contracts/{contractID}/evaluations
func (h *EvaluationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	contractID := mux.Vars(r)["contractID"]

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: period_start and period_end must be RFC3339")
		return
	}
	if req.PeriodStart.IsZero() || req.PeriodEnd.IsZero() {
		respondError(w, http.StatusBadRequest, "period_start and period_end are required")
		return
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		respondError(w, http.StatusBadRequest, "period_end must be after period_start")
		return
	}

	result, err := h.runner.Run(r.Context(), contractID, req.PeriodStart, req.PeriodEnd)
	if errors.Is(err, engine.ErrRunInProgress) {
		respondError(w, http.StatusConflict, "Evaluation already in progress for this contract and period")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("contract_id", contractID).Error("Failed to start evaluation")
		respondError(w, http.StatusServiceUnavailable, "Evaluation could not be started")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetLatest returns the cached result of the last evaluation
// GET /api/contracts/{contractID}/evaluations/latest
func (h *EvaluationHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	contractID := mux.Vars(r)["contractID"]

	result, err := h.runner.Latest(r.Context(), contractID)
	if err != nil {
		h.logger.WithError(err).WithField("contract_id", contractID).Error("Failed to read cached evaluation")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve latest evaluation")
		return
	}
	if result == nil {
		respondError(w, http.StatusNotFound, "No cached evaluation for this contract")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ListBreaches returns stored breach records, newest first
// GET /api/contracts/{contractID}/breaches?limit=50
func (h *EvaluationHandler) ListBreaches(w http.ResponseWriter, r *http.Request) {
	contractID := mux.Vars(r)["contractID"]

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxBreachLimit {
			n = maxBreachLimit
		}
		limit = n
	}

	events, err := h.breaches.ListDefaultEvents(r.Context(), contractID, limit)
	if err != nil {
		h.logger.WithError(err).WithField("contract_id", contractID).Error("Failed to list breaches")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve breaches")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"contract_id": contractID,
		"count":       len(events),
		"breaches":    events,
	})
}

// GetCompleteness returns the last completeness report
// GET /api/contracts/{contractID}/completeness
func (h *EvaluationHandler) GetCompleteness(w http.ResponseWriter, r *http.Request) {
	contractID := mux.Vars(r)["contractID"]

	report, err := h.completeness.GetLatest(r.Context(), contractID)
	if err != nil {
		h.logger.WithError(err).WithField("contract_id", contractID).Error("Failed to get completeness report")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve completeness report")
		return
	}
	if report == nil {
		respondError(w, http.StatusNotFound, "No completeness report for this contract")
		return
	}

	respondJSON(w, http.StatusOK, report)
}
