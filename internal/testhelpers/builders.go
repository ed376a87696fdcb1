// Package testhelpers provides additional data builders for testing
package testhelpers

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetrace/safetrace/internal/database"
)

// ========================================
// Incident Builder
// ========================================

// IncidentBuilder builds Incident instances for testing
type IncidentBuilder struct {
	incident database.Incident
}

// NewIncidentBuilder creates a new incident builder with defaults
func NewIncidentBuilder() *IncidentBuilder {
	return &IncidentBuilder{
		incident: database.Incident{
			UUID:           uuid.NewString(),
			IncidentNumber: database.NewIncidentNumber(time.Now()),
			Title:          "Forklift near miss in warehouse B",
			Description:    "A forklift reversed without spotter clearance and nearly struck a worker.",
			Severity:       database.SeverityModerate,
			IncidentType:   database.TypeNearMiss,
			IncidentDate:   time.Now().Add(-24 * time.Hour),
			Location:       "Warehouse B",
			ReportedBy:     "test-reporter",
			Status:         database.IncidentStatusReported,
		},
	}
}

// WithTitle sets the title
func (b *IncidentBuilder) WithTitle(title string) *IncidentBuilder {
	b.incident.Title = title
	return b
}

// WithSeverity sets the severity
func (b *IncidentBuilder) WithSeverity(severity database.IncidentSeverity) *IncidentBuilder {
	b.incident.Severity = severity
	return b
}

// WithType sets the incident type
func (b *IncidentBuilder) WithType(incidentType database.IncidentType) *IncidentBuilder {
	b.incident.IncidentType = incidentType
	return b
}

// WithStatus sets the status
func (b *IncidentBuilder) WithStatus(status database.IncidentStatus) *IncidentBuilder {
	b.incident.Status = status
	return b
}

// WithDescription sets the description
func (b *IncidentBuilder) WithDescription(desc string) *IncidentBuilder {
	b.incident.Description = desc
	return b
}

// Build returns the constructed incident
func (b *IncidentBuilder) Build() database.Incident {
	return b.incident
}

// ========================================
// Document Builder
// ========================================

// DocumentBuilder builds IncidentDocument instances for testing
type DocumentBuilder struct {
	doc database.IncidentDocument
}

// NewDocumentBuilder creates a new document builder with defaults
func NewDocumentBuilder(incidentID uint) *DocumentBuilder {
	return &DocumentBuilder{
		doc: database.IncidentDocument{
			UUID:        uuid.NewString(),
			IncidentID:  incidentID,
			FileName:    "scene-photo.jpg",
			FileType:    "image/jpeg",
			FileSize:    2048,
			StoragePath: "test/scene-photo.jpg",
			OCRStatus:   database.ProcessingPending,
			UploadedBy:  "test-uploader",
		},
	}
}

// WithFileName sets the file name
func (b *DocumentBuilder) WithFileName(name string) *DocumentBuilder {
	b.doc.FileName = name
	return b
}

// WithFileType sets the MIME type
func (b *DocumentBuilder) WithFileType(fileType string) *DocumentBuilder {
	b.doc.FileType = fileType
	return b
}

// WithStoragePath sets the storage key
func (b *DocumentBuilder) WithStoragePath(path string) *DocumentBuilder {
	b.doc.StoragePath = path
	return b
}

// WithOCRStatus sets the processing status
func (b *DocumentBuilder) WithOCRStatus(status database.ProcessingStatus) *DocumentBuilder {
	b.doc.OCRStatus = status
	return b
}

// WithExtractedText sets the OCR text and description and marks completed
func (b *DocumentBuilder) WithExtractedText(ocrText, description string) *DocumentBuilder {
	b.doc.OCRText = ocrText
	b.doc.AIDescription = description
	b.doc.OCRStatus = database.ProcessingCompleted
	return b
}

// Build returns the constructed document
func (b *DocumentBuilder) Build() database.IncidentDocument {
	return b.doc
}

// ========================================
// First Pass Builder
// ========================================

// FirstPassBuilder builds FirstPassAnalysis instances for testing
type FirstPassBuilder struct {
	analysis database.FirstPassAnalysis
}

// NewFirstPassBuilder creates a completed first-pass analysis by default
func NewFirstPassBuilder(incidentID uint) *FirstPassBuilder {
	return &FirstPassBuilder{
		analysis: database.FirstPassAnalysis{
			UUID:               uuid.NewString(),
			IncidentID:         incidentID,
			AnalysisData:       database.JSONB{"summary": "Reversing forklift without spotter"},
			IdentifiedHazards:  database.StringList{"Vehicle-pedestrian interaction", "Blind spots"},
			PotentialCauses:    database.StringList{"Missing spotter procedure", "Inadequate floor markings"},
			RecommendedActions: database.StringList{"Install proximity alarms", "Repaint pedestrian lanes"},
			ConfidenceScore:    0.82,
			ProcessingStatus:   database.ProcessingCompleted,
			CreatedBy:          "test-user",
		},
	}
}

// WithStatus sets the processing status
func (b *FirstPassBuilder) WithStatus(status database.ProcessingStatus) *FirstPassBuilder {
	b.analysis.ProcessingStatus = status
	return b
}

// Build returns the constructed analysis
func (b *FirstPassBuilder) Build() database.FirstPassAnalysis {
	return b.analysis
}

// ========================================
// Review Builder
// ========================================

// ReviewBuilder builds HumanReview instances for testing
type ReviewBuilder struct {
	review database.HumanReview
}

// NewReviewBuilder creates an approved review by default
func NewReviewBuilder(incidentID, analysisID uint) *ReviewBuilder {
	now := time.Now()
	return &ReviewBuilder{
		review: database.HumanReview{
			UUID:            uuid.NewString(),
			IncidentID:      incidentID,
			AnalysisID:      analysisID,
			ReviewerID:      "test-reviewer",
			ReviewStatus:    database.ReviewApproved,
			ReviewerNotes:   "Analysis looks accurate",
			ApprovedHazards: database.StringList{"Vehicle-pedestrian interaction"},
			ApprovedCauses:  database.StringList{"Missing spotter procedure"},
			ReviewedAt:      &now,
		},
	}
}

// WithStatus sets the review decision
func (b *ReviewBuilder) WithStatus(status database.ReviewStatus) *ReviewBuilder {
	b.review.ReviewStatus = status
	return b
}

// Build returns the constructed review
func (b *ReviewBuilder) Build() database.HumanReview {
	return b.review
}

// ========================================
// Second Pass Builder
// ========================================

// SecondPassBuilder builds SecondPassAnalysis instances for testing
type SecondPassBuilder struct {
	analysis database.SecondPassAnalysis
}

// NewSecondPassBuilder creates a completed second-pass analysis by default
func NewSecondPassBuilder(incidentID, firstPassID, reviewID uint) *SecondPassBuilder {
	return &SecondPassBuilder{
		analysis: database.SecondPassAnalysis{
			UUID:          uuid.NewString(),
			IncidentID:    incidentID,
			FirstPassID:   firstPassID,
			HumanReviewID: reviewID,
			RefinedAnalysis: database.JSONB{
				"executiveSummary": "A reversing forklift nearly struck a worker due to a missing spotter procedure.",
			},
			RootCauseAnalysis: database.JSONB{
				"fiveWhysAnalysis": []interface{}{"Why was the worker in the path?"},
			},
			ContributingFactors: database.StringList{"High traffic period"},
			ImmediateCauses:     database.StringList{"Reversing without spotter"},
			RootCauses:          database.StringList{"No enforced traffic management plan"},
			CorrectiveActions:   database.RawList{"Assign dedicated spotters"},
			PreventiveActions:   database.RawList{"Quarterly traffic audits"},
			ProcessingStatus:    database.ProcessingCompleted,
		},
	}
}

// WithStatus sets the processing status
func (b *SecondPassBuilder) WithStatus(status database.ProcessingStatus) *SecondPassBuilder {
	b.analysis.ProcessingStatus = status
	return b
}

// Build returns the constructed analysis
func (b *SecondPassBuilder) Build() database.SecondPassAnalysis {
	return b.analysis
}
