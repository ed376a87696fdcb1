package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/safetrace/safetrace/internal/api"
	"github.com/safetrace/safetrace/internal/middleware"
	"github.com/safetrace/safetrace/internal/services"
)

// handleFirstPass handles POST /api/analysis/first-pass. The call is
// synchronous and idempotent: if the analysis already completed, the
// existing one is returned without rerunning the model.
func (h *APIHandler) handleFirstPass(w http.ResponseWriter, r *http.Request) {
	var req api.FirstPassRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IncidentID == "" {
		api.RespondError(w, http.StatusBadRequest, "incidentId is required")
		return
	}

	analysis, alreadyCompleted, err := h.firstPass.Analyze(r.Context(), req.IncidentID, caller(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrIncidentNotFound):
			api.RespondError(w, http.StatusNotFound, "Incident not found")
		case errors.Is(err, services.ErrAnalysisInProgress):
			api.RespondError(w, http.StatusConflict, "Analysis is already in progress")
		default:
			log.Printf("First pass analysis failed for %s (request %s): %v",
				req.IncidentID, middleware.GetRequestID(r.Context()), err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to perform first pass analysis")
		}
		return
	}

	resp := api.FirstPassResponse{
		Success:    true,
		AnalysisID: analysis.UUID,
	}
	if alreadyCompleted {
		resp.Message = "Analysis already completed"
	} else {
		resp.Result = analysis
	}

	api.RespondJSON(w, http.StatusOK, resp)
}

// handleSecondPass handles POST /api/analysis/second-pass. Runs only
// against an approved review; anything else is a 400.
func (h *APIHandler) handleSecondPass(w http.ResponseWriter, r *http.Request) {
	var req api.SecondPassRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ReviewID == "" {
		api.RespondError(w, http.StatusBadRequest, "reviewId is required")
		return
	}

	analysis, alreadyCompleted, err := h.secondPass.Analyze(r.Context(), req.ReviewID, caller(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReviewNotFound):
			api.RespondError(w, http.StatusNotFound, "Review not found")
		case errors.Is(err, services.ErrAnalysisNotFound):
			api.RespondError(w, http.StatusNotFound, "First pass analysis not found")
		case errors.Is(err, services.ErrReviewNotApproved):
			api.RespondError(w, http.StatusBadRequest, "Review must be approved before second pass analysis")
		case errors.Is(err, services.ErrAnalysisInProgress):
			api.RespondError(w, http.StatusConflict, "Second pass analysis is already in progress")
		default:
			log.Printf("Second pass analysis failed for review %s (request %s): %v",
				req.ReviewID, middleware.GetRequestID(r.Context()), err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to perform second pass analysis")
		}
		return
	}

	resp := api.SecondPassResponse{
		Success:      true,
		SecondPassID: analysis.UUID,
	}
	if alreadyCompleted {
		resp.Message = "Second pass analysis already completed"
	} else {
		resp.Result = analysis
	}

	api.RespondJSON(w, http.StatusOK, resp)
}
