package handlers

import (
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/api"
	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/events"
	"github.com/safetrace/safetrace/internal/jobs"
	"github.com/safetrace/safetrace/internal/middleware"
	"github.com/safetrace/safetrace/internal/services"
)

// APIHandler handles API endpoints for the investigation workflow
type APIHandler struct {
	incidentService *services.IncidentService
	documentService *services.DocumentService
	firstPass       *services.FirstPassService
	secondPass      *services.SecondPassService
	reviewService   *services.ReviewService
	reportService   *services.ReportService
	audit           *services.AuditRecorder
	hub             *events.Hub
	dispatcher      *jobs.Dispatcher
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(incidentService *services.IncidentService, documentService *services.DocumentService,
	firstPass *services.FirstPassService, secondPass *services.SecondPassService,
	reviewService *services.ReviewService, reportService *services.ReportService,
	audit *services.AuditRecorder, hub *events.Hub, dispatcher *jobs.Dispatcher) *APIHandler {
	return &APIHandler{
		incidentService: incidentService,
		documentService: documentService,
		firstPass:       firstPass,
		secondPass:      secondPass,
		reviewService:   reviewService,
		reportService:   reportService,
		audit:           audit,
		hub:             hub,
		dispatcher:      dispatcher,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	// Incidents
	mux.HandleFunc("/api/incidents", h.handleIncidents)
	mux.HandleFunc("GET /api/incidents/{uuid}", h.handleGetIncident)

	// Evidence documents
	mux.HandleFunc("GET /api/incidents/{uuid}/documents", h.handleListDocuments)
	mux.HandleFunc("POST /api/incidents/{uuid}/documents", h.handleUploadDocument)
	mux.HandleFunc("POST /api/documents/process", h.handleProcessDocument)

	// Analysis stages
	mux.HandleFunc("POST /api/analysis/first-pass", h.handleFirstPass)
	mux.HandleFunc("POST /api/analysis/second-pass", h.handleSecondPass)

	// Human reviews
	mux.HandleFunc("GET /api/incidents/{uuid}/reviews", h.handleListReviews)
	mux.HandleFunc("POST /api/incidents/{uuid}/reviews", h.handleSubmitReview)

	// Reports
	mux.HandleFunc("POST /api/reports/generate", h.handleGenerateReport)
	mux.HandleFunc("POST /api/reports/{uuid}/approve", h.handleApproveReport)
	mux.HandleFunc("GET /api/incidents/{uuid}/report", h.handleGetReport)

	// Audit trail
	mux.HandleFunc("GET /api/incidents/{uuid}/audit", h.handleIncidentAudit)

	// Event stream
	mux.HandleFunc("GET /api/events/{uuid}", h.handleEvents)
}

// caller returns the authenticated username, or "anonymous" when the
// request carried no identity (possible on auth-exempt paths).
func caller(r *http.Request) string {
	if user := middleware.GetUserFromContext(r.Context()); user != "" {
		return user
	}
	return "anonymous"
}

func dbForRequest() *gorm.DB {
	return database.GetDB()
}

// incidentFromPath resolves the {uuid} path segment to an incident
func incidentFromPath(db *gorm.DB, r *http.Request) (*database.Incident, error) {
	return database.GetIncidentByUUID(db, r.PathValue("uuid"))
}

// respondLookupError maps a record lookup error to 404 or 500
func respondLookupError(w http.ResponseWriter, err error, notFoundMessage string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		api.RespondError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	api.RespondError(w, http.StatusInternalServerError, "Internal server error")
}
