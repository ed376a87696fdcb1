package handlers

import (
	"errors"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/api"
	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/services"
)

// handleGenerateReport handles POST /api/reports/generate
func (h *APIHandler) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateReportRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SecondPassID == "" {
		api.RespondError(w, http.StatusBadRequest, "secondPassId is required")
		return
	}

	report, content, err := h.reportService.Generate(req.SecondPassID, caller(r))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSecondPassNotFound):
			api.RespondError(w, http.StatusNotFound, "Second pass analysis not found")
		case errors.Is(err, services.ErrSecondPassNotCompleted):
			api.RespondError(w, http.StatusBadRequest, "Second pass analysis must be completed before report generation")
		default:
			log.Printf("Failed to generate report for second pass %s: %v", req.SecondPassID, err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to generate RCA report")
		}
		return
	}

	api.RespondJSON(w, http.StatusOK, api.GenerateReportResponse{
		Success:  true,
		ReportID: report.UUID,
		Report:   content,
	})
}

// handleGetReport handles GET /api/incidents/{uuid}/report
func (h *APIHandler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	db := dbForRequest()

	incident, err := incidentFromPath(db, r)
	if err != nil {
		respondLookupError(w, err, "Incident not found")
		return
	}

	report, err := database.GetReportByIncidentID(db, incident.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Report not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Failed to get report")
		return
	}

	api.RespondJSON(w, http.StatusOK, report)
}

// handleApproveReport handles POST /api/reports/{uuid}/approve. Approval
// closes the incident.
func (h *APIHandler) handleApproveReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reportService.Approve(r.PathValue("uuid"), caller(r))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Report not found")
			return
		}
		log.Printf("Failed to approve report %s: %v", r.PathValue("uuid"), err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to approve report")
		return
	}

	api.RespondJSON(w, http.StatusOK, report)
}
