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

// FirstPassService runs the initial AI hazard analysis. At most one
// analysis exists per incident; repeat triggers converge on it.
type FirstPassService struct {
	db       *gorm.DB
	llm      llm.Client
	audit    *AuditRecorder
	hub      *events.Hub
	notifier notify.Notifier
	settings *config.AnalysisSettings
}

// NewFirstPassService creates a first-pass analysis service
func NewFirstPassService(db *gorm.DB, client llm.Client, audit *AuditRecorder,
	hub *events.Hub, notifier notify.Notifier, settings *config.AnalysisSettings) *FirstPassService {
	return &FirstPassService{
		db:       db,
		llm:      client,
		audit:    audit,
		hub:      hub,
		notifier: notifier,
		settings: settings,
	}
}

// firstPassResult mirrors the JSON shape the model is asked for
type firstPassResult struct {
	IdentifiedHazards  []string               `json:"identifiedHazards"`
	PotentialCauses    []string               `json:"potentialCauses"`
	RecommendedActions []string               `json:"recommendedActions"`
	ConfidenceScore    float64                `json:"confidenceScore"`
	AnalysisData       map[string]interface{} `json:"analysisData"`
}

// Analyze runs the first-pass analysis for an incident. If a completed
// analysis already exists it is returned without a new completion call
// (alreadyCompleted true). A failed record is reclaimed and retried.
// Concurrent triggers resolve on the incident_id unique index: the first
// claimant runs the single completion, every other caller gets
// ErrAnalysisInProgress.
func (s *FirstPassService) Analyze(ctx context.Context, incidentUUID, performedBy string) (*database.FirstPassAnalysis, bool, error) {
	incident, err := database.GetIncidentByUUID(s.db, incidentUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrIncidentNotFound
		}
		return nil, false, err
	}

	analysis, alreadyCompleted, err := s.claim(incident, performedBy)
	if err != nil {
		return nil, false, err
	}
	if alreadyCompleted {
		return analysis, true, nil
	}

	var documents []database.IncidentDocument
	if err := s.db.Where("incident_id = ?", incident.ID).Order("created_at ASC").Find(&documents).Error; err != nil {
		return nil, false, err
	}

	result, err := s.complete(ctx, incident, documents)
	if err != nil {
		// The record stays in processing. The sweeper flips it to
		// failed once the deadline passes, which releases the claim
		// for a retry trigger.
		return nil, false, err
	}

	updates := map[string]interface{}{
		"analysis_data":       database.JSONB(result.AnalysisData),
		"identified_hazards":  database.StringList(result.IdentifiedHazards),
		"potential_causes":    database.StringList(result.PotentialCauses),
		"recommended_actions": database.StringList(result.RecommendedActions),
		"confidence_score":    result.ConfidenceScore,
		"processing_status":   database.ProcessingCompleted,
	}
	if err := s.db.Model(analysis).Updates(updates).Error; err != nil {
		return nil, false, err
	}
	analysis.AnalysisData = result.AnalysisData
	analysis.IdentifiedHazards = result.IdentifiedHazards
	analysis.PotentialCauses = result.PotentialCauses
	analysis.RecommendedActions = result.RecommendedActions
	analysis.ConfidenceScore = result.ConfidenceScore
	analysis.ProcessingStatus = database.ProcessingCompleted

	if err := AdvanceIncidentStatus(s.db, s.hub, incident, database.IncidentStatusUnderInvestigation); err != nil {
		log.Printf("FirstPassService: failed to advance incident %s: %v", incident.IncidentNumber, err)
	}

	s.audit.Record(AuditEntry{
		IncidentID: &incident.ID,
		ActionType: database.AuditFirstPassCompleted,
		Details: database.JSONB{
			"analysis_id":      analysis.UUID,
			"hazards_count":    len(result.IdentifiedHazards),
			"causes_count":     len(result.PotentialCauses),
			"confidence_score": result.ConfidenceScore,
		},
		EntityType:  "ai_analysis_first_pass",
		EntityID:    analysis.UUID,
		PerformedBy: performedBy,
	})

	s.hub.Publish(events.Event{
		Type:       events.EventFirstPassCompleted,
		IncidentID: incident.UUID,
		EntityID:   analysis.UUID,
	})
	s.notifier.AnalysisCompleted(incident, "First pass")

	return analysis, false, nil
}

// claim finds or creates the single analysis row for the incident and
// moves it into processing. Completed rows short-circuit; a row another
// caller already holds in processing yields ErrAnalysisInProgress. The
// conditional update makes the claim itself the race arbiter: exactly one
// caller wins it.
func (s *FirstPassService) claim(incident *database.Incident, performedBy string) (*database.FirstPassAnalysis, bool, error) {
	var existing database.FirstPassAnalysis
	err := s.db.Where("incident_id = ?", incident.ID).First(&existing).Error
	switch {
	case err == nil:
		if existing.ProcessingStatus == database.ProcessingCompleted {
			return &existing, true, nil
		}
		res := s.db.Model(&database.FirstPassAnalysis{}).
			Where("id = ? AND processing_status NOT IN ?", existing.ID,
				[]database.ProcessingStatus{database.ProcessingInProgress, database.ProcessingCompleted}).
			Update("processing_status", database.ProcessingInProgress)
		if res.Error != nil {
			return nil, false, res.Error
		}
		if res.RowsAffected == 0 {
			// lost the claim race; re-read to tell completed from held
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
		analysis := database.FirstPassAnalysis{
			UUID:             uuid.NewString(),
			IncidentID:       incident.ID,
			ProcessingStatus: database.ProcessingInProgress,
			CreatedBy:        performedBy,
		}
		insertErr := s.db.Create(&analysis).Error
		if insertErr == nil {
			return &analysis, false, nil
		}
		if errors.Is(insertErr, gorm.ErrDuplicatedKey) {
			// lost the insert race; the winner holds the claim
			if err := s.db.Where("incident_id = ?", incident.ID).First(&existing).Error; err != nil {
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

func (s *FirstPassService) complete(ctx context.Context, incident *database.Incident, documents []database.IncidentDocument) (*firstPassResult, error) {
	prompt := buildFirstPassPrompt(incident, documents, s.settings.Limits)

	content, err := s.llm.CompleteJSON(ctx, llm.JSONRequest{
		Model:       s.settings.FirstPass.Model,
		System:      firstPassSystemPrompt,
		User:        prompt,
		Temperature: s.settings.FirstPass.Temperature,
		MaxTokens:   s.settings.FirstPass.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("first pass analysis failed: %w", err)
	}

	var result firstPassResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return nil, fmt.Errorf("failed to parse analysis response: %w", err)
	}
	if result.ConfidenceScore == 0 {
		result.ConfidenceScore = 0.7
	}
	if result.AnalysisData == nil {
		result.AnalysisData = map[string]interface{}{}
	}
	return &result, nil
}
