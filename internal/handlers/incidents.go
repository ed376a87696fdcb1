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

// handleIncidents handles GET /api/incidents and POST /api/incidents
func (h *APIHandler) handleIncidents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		params := api.ParsePagination(r)
		filter := services.ListFilter{
			Status:   database.IncidentStatus(r.URL.Query().Get("status")),
			Severity: database.IncidentSeverity(r.URL.Query().Get("severity")),
			Limit:    params.PerPage,
			Offset:   params.Offset(),
		}

		incidents, total, err := h.incidentService.List(filter)
		if err != nil {
			api.RespondError(w, http.StatusInternalServerError, "Failed to get incidents")
			return
		}

		api.RespondJSON(w, http.StatusOK, api.PaginatedResponse{
			Data: incidents,
			Pagination: api.PaginationMeta{
				Page:       params.Page,
				PerPage:    params.PerPage,
				Total:      total,
				TotalPages: params.TotalPages(total),
			},
		})

	case http.MethodPost:
		var req api.CreateIncidentRequest
		if err := api.DecodeJSON(r, &req); err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}

		incident, err := h.incidentService.Create(services.CreateIncidentInput{
			Title:                req.Title,
			Description:          req.Description,
			Severity:             database.IncidentSeverity(req.Severity),
			IncidentType:         database.IncidentType(req.IncidentType),
			IncidentDate:         req.IncidentDate,
			Location:             req.Location,
			ReportedBy:           caller(r),
			AssignedInvestigator: req.AssignedInvestigator,
			IPAddress:            r.RemoteAddr,
			UserAgent:            r.UserAgent(),
		})
		if err != nil {
			if errors.Is(err, services.ErrInvalidIncident) {
				api.RespondError(w, http.StatusBadRequest, err.Error())
				return
			}
			log.Printf("Failed to create incident: %v", err)
			api.RespondError(w, http.StatusInternalServerError, "Failed to create incident")
			return
		}

		api.RespondJSON(w, http.StatusCreated, incident)

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// IncidentDetailResponse is the incident plus its workflow progress and
// related records
type IncidentDetailResponse struct {
	database.Incident
	WorkflowStep int                          `json:"workflow_step"`
	Documents    []database.IncidentDocument  `json:"documents"`
	FirstPass    *database.FirstPassAnalysis  `json:"first_pass,omitempty"`
	Reviews      []database.HumanReview       `json:"reviews"`
	SecondPass   *database.SecondPassAnalysis `json:"second_pass,omitempty"`
	Report       *database.RCAReport          `json:"report,omitempty"`
}

// handleGetIncident handles GET /api/incidents/{uuid}
func (h *APIHandler) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	incident, err := database.GetIncidentByUUID(db, r.PathValue("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Incident not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Failed to get incident")
		return
	}

	step, err := services.WorkflowStep(db, incident.ID)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get incident")
		return
	}

	resp := IncidentDetailResponse{
		Incident:     *incident,
		WorkflowStep: step,
		Documents:    []database.IncidentDocument{},
		Reviews:      []database.HumanReview{},
	}

	db.Where("incident_id = ?", incident.ID).Order("created_at ASC").Find(&resp.Documents)

	var firstPass database.FirstPassAnalysis
	if err := db.Where("incident_id = ?", incident.ID).First(&firstPass).Error; err == nil {
		resp.FirstPass = &firstPass
	}

	db.Where("incident_id = ?", incident.ID).Order("created_at DESC").Find(&resp.Reviews)

	var secondPass database.SecondPassAnalysis
	if err := db.Where("incident_id = ?", incident.ID).Order("created_at DESC").First(&secondPass).Error; err == nil {
		resp.SecondPass = &secondPass
	}

	if report, err := database.GetReportByIncidentID(db, incident.ID); err == nil {
		resp.Report = report
	}

	api.RespondJSON(w, http.StatusOK, resp)
}

// handleIncidentAudit handles GET /api/incidents/{uuid}/audit
func (h *APIHandler) handleIncidentAudit(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	incident, err := database.GetIncidentByUUID(db, r.PathValue("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			api.RespondError(w, http.StatusNotFound, "Incident not found")
			return
		}
		api.RespondError(w, http.StatusInternalServerError, "Failed to get incident")
		return
	}

	entries, err := h.audit.ListForIncident(incident.ID)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get audit trail")
		return
	}

	api.RespondJSON(w, http.StatusOK, entries)
}
