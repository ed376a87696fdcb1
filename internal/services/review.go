package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/jobs"
)

// ReviewService records human reviewer decisions on first-pass analyses.
// Every submission is a new row: the review history is append-only and a
// later reviewer may approve what an earlier one rejected.
type ReviewService struct {
	db         *gorm.DB
	audit      *AuditRecorder
	dispatcher *jobs.Dispatcher
	secondPass *SecondPassService
}

// NewReviewService creates a review service
func NewReviewService(db *gorm.DB, audit *AuditRecorder, dispatcher *jobs.Dispatcher, secondPass *SecondPassService) *ReviewService {
	return &ReviewService{
		db:         db,
		audit:      audit,
		dispatcher: dispatcher,
		secondPass: secondPass,
	}
}

// SubmitReviewInput describes one reviewer decision
type SubmitReviewInput struct {
	IncidentUUID      string
	AnalysisUUID      string
	ReviewerID        string
	Decision          string
	ApprovedHazards   []string
	ApprovedCauses    []string
	AdditionalActions []string
	Notes             string
	Corrections       map[string]interface{}
	IPAddress         string
	UserAgent         string
}

// Submit records a reviewer decision. An approved decision dispatches the
// second-pass analysis in the background; the caller does not wait for it.
func (s *ReviewService) Submit(in SubmitReviewInput) (*database.HumanReview, error) {
	decision := database.ReviewStatus(in.Decision)
	switch decision {
	case database.ReviewApproved, database.ReviewRejected, database.ReviewNeedsRevision:
	default:
		return nil, ErrInvalidDecision
	}

	incident, err := database.GetIncidentByUUID(s.db, in.IncidentUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIncidentNotFound
		}
		return nil, err
	}

	analysis, err := database.GetFirstPassByUUID(s.db, in.AnalysisUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, err
	}
	if analysis.IncidentID != incident.ID {
		return nil, ErrAnalysisNotFound
	}

	now := time.Now()
	review := database.HumanReview{
		UUID:              uuid.NewString(),
		IncidentID:        incident.ID,
		AnalysisID:        analysis.ID,
		ReviewerID:        in.ReviewerID,
		ReviewStatus:      decision,
		ReviewerNotes:     in.Notes,
		Corrections:       in.Corrections,
		ApprovedHazards:   in.ApprovedHazards,
		ApprovedCauses:    in.ApprovedCauses,
		AdditionalActions: in.AdditionalActions,
		ReviewedAt:        &now,
	}
	if err := s.db.Create(&review).Error; err != nil {
		return nil, err
	}

	s.audit.Record(AuditEntry{
		IncidentID: &incident.ID,
		ActionType: database.AuditReviewCompleted,
		Details: database.JSONB{
			"review_id":     review.UUID,
			"analysis_id":   analysis.UUID,
			"review_status": string(decision),
		},
		EntityType:  "human_review",
		EntityID:    review.UUID,
		PerformedBy: in.ReviewerID,
		IPAddress:   in.IPAddress,
		UserAgent:   in.UserAgent,
	})

	if decision == database.ReviewApproved {
		reviewUUID := review.UUID
		performedBy := in.ReviewerID
		ok := s.dispatcher.Enqueue(jobs.Task{
			Name:     "second_pass_analysis",
			EntityID: reviewUUID,
			Run: func(ctx context.Context) error {
				_, _, err := s.secondPass.Analyze(ctx, reviewUUID, performedBy)
				return err
			},
		})
		if !ok {
			log.Printf("ReviewService: second pass dispatch for review %s deferred to manual trigger", reviewUUID)
		}
	}

	return &review, nil
}

// ListForIncident returns all reviews for an incident, newest first
func (s *ReviewService) ListForIncident(incidentID uint) ([]database.HumanReview, error) {
	var reviews []database.HumanReview
	err := s.db.Where("incident_id = ?", incidentID).Order("created_at DESC").Find(&reviews).Error
	return reviews, err
}
