package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/config"
	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/events"
	"github.com/safetrace/safetrace/internal/llm"
	"github.com/safetrace/safetrace/internal/notify"
)

// SecondPassService runs the deep root-cause analysis. It only ever runs
// against an approved human review, and at most one analysis exists per
// review.
type SecondPassService struct {
	db       *gorm.DB
	llm      llm.Client
	audit    *AuditRecorder
	hub      *events.Hub
	notifier notify.Notifier
	settings *config.AnalysisSettings
}

// NewSecondPassService creates a second-pass analysis service
func NewSecondPassService(db *gorm.DB, client llm.Client, audit *AuditRecorder,
	hub *events.Hub, notifier notify.Notifier, settings *config.AnalysisSettings) *SecondPassService {
	return &SecondPassService{
		db:       db,
		llm:      client,
		audit:    audit,
		hub:      hub,
		notifier: notifier,
		settings: settings,
	}
}

// secondPassResult mirrors the JSON shape the model is asked for
type secondPassResult struct {
	RefinedAnalysis     map[string]interface{} `json:"refinedAnalysis"`
	RootCauseAnalysis   map[string]interface{} `json:"rootCauseAnalysis"`
	ContributingFactors []string               `json:"contributingFactors"`
	ImmediateCauses     []string               `json:"immediateCauses"`
	RootCauses          []string               `json:"rootCauses"`
	CorrectiveActions   []interface{}          `json:"correctiveActions"`
	PreventiveActions   []interface{}          `json:"preventiveActions"`
}

// Analyze runs the second-pass analysis for an approved review. Returns
// ErrReviewNotApproved when the review decision is anything else; the
// human gate is absolute. A completed analysis for the review is returned
// as-is (alreadyCompleted true) without a new completion call; a trigger
// that finds another caller mid-completion gets ErrAnalysisInProgress.
func (s *SecondPassService) Analyze(ctx context.Context, reviewUUID, performedBy string) (*database.SecondPassAnalysis, bool, error) {
	review, err := database.GetReviewByUUID(s.db, reviewUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrReviewNotFound
		}
		return nil, false, err
	}

	if review.ReviewStatus != database.ReviewApproved {
		return nil, false, ErrReviewNotApproved
	}

	var firstPass database.FirstPassAnalysis
	if err := s.db.First(&firstPass, review.AnalysisID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrAnalysisNotFound
		}
		return nil, false, err
	}

	var incident database.Incident
	if err := s.db.First(&incident, review.IncidentID).Error; err != nil {
		return nil, false, err
	}

	analysis, alreadyCompleted, err := s.claim(review)
	if err != nil {
		return nil, false, err
	}
	if alreadyCompleted {
		return analysis, true, nil
	}

	result, err := s.complete(ctx, &incident, &firstPass, review)
	if err != nil {
		// The record stays in processing until the sweeper deadline
		// releases the claim for a retry.
		return nil, false, err
	}

	updates := map[string]interface{}{
		"refined_analysis":     database.JSONB(result.RefinedAnalysis),
		"root_cause_analysis":  database.JSONB(result.RootCauseAnalysis),
		"contributing_factors": database.StringList(result.ContributingFactors),
		"immediate_causes":     database.StringList(result.ImmediateCauses),
		"root_causes":          database.StringList(result.RootCauses),
		"corrective_actions":   database.RawList(result.CorrectiveActions),
		"preventive_actions":   database.RawList(result.PreventiveActions),
		"processing_status":    database.ProcessingCompleted,
	}
	if err := s.db.Model(analysis).Updates(updates).Error; err != nil {
		return nil, false, err
	}
	analysis.RefinedAnalysis = result.RefinedAnalysis
	analysis.RootCauseAnalysis = result.RootCauseAnalysis
	analysis.ContributingFactors = result.ContributingFactors
	analysis.ImmediateCauses = result.ImmediateCauses
	analysis.RootCauses = result.RootCauses
	analysis.CorrectiveActions = result.CorrectiveActions
	analysis.PreventiveActions = result.PreventiveActions
	analysis.ProcessingStatus = database.ProcessingCompleted

	if err := AdvanceIncidentStatus(s.db, s.hub, &incident, database.IncidentStatusPendingReview); err != nil {
		log.Printf("SecondPassService: failed to advance incident %s: %v", incident.IncidentNumber, err)
	}

	s.audit.Record(AuditEntry{
		IncidentID: &incident.ID,
		ActionType: database.AuditSecondPassCompleted,
		Details: database.JSONB{
			"second_pass_id":    analysis.UUID,
			"review_id":         review.UUID,
			"root_causes_count": len(result.RootCauses),
		},
		EntityType:  "ai_analysis_second_pass",
		EntityID:    analysis.UUID,
		PerformedBy: performedBy,
	})

	s.hub.Publish(events.Event{
		Type:       events.EventSecondPassCompleted,
		IncidentID: incident.UUID,
		EntityID:   analysis.UUID,
	})
	s.notifier.AnalysisCompleted(&incident, "Second pass")

	return analysis, false, nil
}

// claim finds or creates the single analysis row for the review and moves
// it into processing. Concurrent duplicate triggers race on the
// human_review_id unique index and on the conditional claim update; the
// loser gets ErrAnalysisInProgress and never reaches the completion call.
func (s *SecondPassService) claim(review *database.HumanReview) (*database.SecondPassAnalysis, bool, error) {
	var existing database.SecondPassAnalysis
	err := s.db.Where("human_review_id = ?", review.ID).First(&existing).Error
	switch {
	case err == nil:
		if existing.ProcessingStatus == database.ProcessingCompleted {
			return &existing, true, nil
		}
		res := s.db.Model(&database.SecondPassAnalysis{}).
			Where("id = ? AND processing_status NOT IN ?", existing.ID,
				[]database.ProcessingStatus{database.ProcessingInProgress, database.ProcessingCompleted}).
			Update("processing_status", database.ProcessingInProgress)
		if res.Error != nil {
			return nil, false, res.Error
		}
		if res.RowsAffected == 0 {
			if err := s.db.First(&existing, existing.ID).Error; err != nil {
				return nil, false, err
			}
			if existing.ProcessingStatus == database.ProcessingCompleted {
				return &existing, true, nil
			}
			return nil, false, ErrAnalysisInProgress
		}
		existing.ProcessingStatus = database.ProcessingInProgress
		return &existing, false, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		analysis := database.SecondPassAnalysis{
			UUID:             uuid.NewString(),
			IncidentID:       review.IncidentID,
			FirstPassID:      review.AnalysisID,
			HumanReviewID:    review.ID,
			ProcessingStatus: database.ProcessingInProgress,
		}
		insertErr := s.db.Create(&analysis).Error
		if insertErr == nil {
			return &analysis, false, nil
		}
		if errors.Is(insertErr, gorm.ErrDuplicatedKey) {
			if err := s.db.Where("human_review_id = ?", review.ID).First(&existing).Error; err != nil {
				return nil, false, err
			}
			if existing.ProcessingStatus == database.ProcessingCompleted {
				return &existing, true, nil
			}
			return nil, false, ErrAnalysisInProgress
		}
		return nil, false, insertErr

	default:
		return nil, false, err
	}
}

func (s *SecondPassService) complete(ctx context.Context, incident *database.Incident,
	firstPass *database.FirstPassAnalysis, review *database.HumanReview) (*secondPassResult, error) {
	prompt := buildSecondPassPrompt(incident, firstPass, review)

	content, err := s.llm.CompleteJSON(ctx, llm.JSONRequest{
		Model:       s.settings.SecondPass.Model,
		System:      secondPassSystemPrompt,
		User:        prompt,
		Temperature: s.settings.SecondPass.Temperature,
		MaxTokens:   s.settings.SecondPass.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("second pass analysis failed: %w", err)
	}

	var result secondPassResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	if result.RefinedAnalysis == nil {
		result.RefinedAnalysis = map[string]interface{}{}
	}
	if result.RootCauseAnalysis == nil {
		result.RootCauseAnalysis = map[string]interface{}{}
	}
	return &result, nil
}
