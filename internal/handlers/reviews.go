package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/safetrace/safetrace/internal/api"
	"github.com/safetrace/safetrace/internal/services"
)

// handleSubmitReview handles POST /api/incidents/{uuid}/reviews.
// An approved decision kicks off the second-pass analysis in the
// background; the response returns as soon as the review is recorded.
func (h *APIHandler) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitReviewRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AnalysisID == "" {
		api.RespondError(w, http.StatusBadRequest, "analysisId is required")
		return
	}

	review, err := h.reviewService.Submit(services.SubmitReviewInput{
		IncidentUUID:      r.PathValue("uuid"),
		AnalysisUUID:      req.AnalysisID,
		ReviewerID:        caller(r),
		Decision:          req.Decision,
		ApprovedHazards:   req.ApprovedHazards,
		ApprovedCauses:    req.ApprovedCauses,
		AdditionalActions: req.AdditionalActions,
		Notes:             req.Notes,
		Corrections:       req.Corrections,
		IPAddress:         r.RemoteAddr,
		UserAgent:         r.UserAgent(),
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrIncidentNotFound):
			api.RespondError(w, http.StatusNotFound, "Incident not found")
		case errors.Is(err, services.ErrAnalysisNotFound):
			api.RespondError(w, http.StatusNotFound, "First pass analysis not found")
		case errors.Is(err, services.ErrInvalidDecision):
			api.RespondError(w, http.StatusBadRequest, err.Error())
		default:
			log.Printf("Failed to submit review: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to submit review")
		}
		return
	}

	api.RespondJSON(w, http.StatusCreated, review)
}

// handleListReviews handles GET /api/incidents/{uuid}/reviews
func (h *APIHandler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	db := dbForRequest()

	incident, err := incidentFromPath(db, r)
	if err != nil {
		respondLookupError(w, err, "Incident not found")
		return
	}

	reviews, err := h.reviewService.ListForIncident(incident.ID)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get reviews")
		return
	}

	api.RespondJSON(w, http.StatusOK, reviews)
}
