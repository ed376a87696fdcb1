package api

import "time"

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// CreateIncidentRequest is the body for POST /api/incidents
type CreateIncidentRequest struct {
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Severity             string    `json:"severity"`
	IncidentType         string    `json:"incident_type"`
	IncidentDate         time.Time `json:"incident_date"`
	Location             string    `json:"location"`
	AssignedInvestigator string    `json:"assigned_investigator"`
}

// FirstPassRequest is the body for POST /api/analysis/first-pass
type FirstPassRequest struct {
	IncidentID string `json:"incidentId"`
}

// SecondPassRequest is the body for POST /api/analysis/second-pass
type SecondPassRequest struct {
	ReviewID string `json:"reviewId"`
}

// GenerateReportRequest is the body for POST /api/reports/generate
type GenerateReportRequest struct {
	SecondPassID string `json:"secondPassId"`
}

// ProcessDocumentRequest is the body for POST /api/documents/process
type ProcessDocumentRequest struct {
	DocumentID string `json:"documentId"`
	FileType   string `json:"fileType"`
}

// SubmitReviewRequest is the body for POST /api/incidents/{uuid}/reviews
type SubmitReviewRequest struct {
	AnalysisID        string                 `json:"analysisId"`
	Decision          string                 `json:"decision"`
	ApprovedHazards   []string               `json:"approvedHazards"`
	ApprovedCauses    []string               `json:"approvedCauses"`
	AdditionalActions []string               `json:"additionalActions"`
	Notes             string                 `json:"notes"`
	Corrections       map[string]interface{} `json:"corrections"`
}

// FirstPassResponse is returned by the first-pass analysis endpoint
type FirstPassResponse struct {
	Success    bool        `json:"success"`
	AnalysisID string      `json:"analysisId"`
	Result     interface{} `json:"result,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// SecondPassResponse is returned by the second-pass analysis endpoint
type SecondPassResponse struct {
	Success      bool        `json:"success"`
	SecondPassID string      `json:"secondPassId"`
	Result       interface{} `json:"result,omitempty"`
	Message      string      `json:"message,omitempty"`
}

// GenerateReportResponse is returned by the report generation endpoint
type GenerateReportResponse struct {
	Success  bool        `json:"success"`
	ReportID string      `json:"reportId"`
	Report   interface{} `json:"report,omitempty"`
}

// ProcessDocumentResponse is returned by the document processing endpoint
type ProcessDocumentResponse struct {
	Success       bool   `json:"success"`
	DocumentID    string `json:"documentId"`
	OCRText       string `json:"ocrText"`
	AIDescription string `json:"aiDescription"`
}
