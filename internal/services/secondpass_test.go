package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/config"
	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/events"
	"github.com/safetrace/safetrace/internal/testhelpers"
)

const secondPassJSON = `{
	"refinedAnalysis": {"executiveSummary": "Summary for leadership."},
	"rootCauseAnalysis": {
		"fiveWhysAnalysis": ["Why 1", "Why 2"],
		"complianceReferences": ["OSHA 1910.178"]
	},
	"contributingFactors": ["Poor lighting"],
	"immediateCauses": ["Reversing without spotter"],
	"rootCauses": ["No traffic management plan", "Training gaps"],
	"correctiveActions": [{"action": "Assign spotters", "responsibility": "Site manager", "timeline": "2 weeks", "priority": "high"}],
	"preventiveActions": ["Quarterly audits"]
}`

type secondPassFixture struct {
	svc      *SecondPassService
	fake     *testhelpers.FakeLLM
	db       *gorm.DB
	incident database.Incident
	review   database.HumanReview
}

func newSecondPassFixture(t *testing.T, reviewStatus database.ReviewStatus) *secondPassFixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)

	incident := testhelpers.NewIncidentBuilder().WithStatus(database.IncidentStatusUnderInvestigation).Build()
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("failed to create incident: %v", err)
	}

	firstPass := testhelpers.NewFirstPassBuilder(incident.ID).Build()
	if err := db.Create(&firstPass).Error; err != nil {
		t.Fatalf("failed to create first pass: %v", err)
	}

	review := testhelpers.NewReviewBuilder(incident.ID, firstPass.ID).WithStatus(reviewStatus).Build()
	if err := db.Create(&review).Error; err != nil {
		t.Fatalf("failed to create review: %v", err)
	}

	fake := &testhelpers.FakeLLM{JSONResponse: secondPassJSON}
	svc := NewSecondPassService(db, fake, NewAuditRecorder(db), events.NewHub(), &testhelpers.FakeNotifier{}, config.DefaultAnalysisSettings())
	return &secondPassFixture{svc: svc, fake: fake, db: db, incident: incident, review: review}
}

func TestSecondPass_CompletesForApprovedReview(t *testing.T) {
	f := newSecondPassFixture(t, database.ReviewApproved)

	analysis, alreadyCompleted, err := f.svc.Analyze(context.Background(), f.review.UUID, "investigator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alreadyCompleted {
		t.Error("first run should not report already completed")
	}
	if analysis.ProcessingStatus != database.ProcessingCompleted {
		t.Errorf("expected completed, got %s", analysis.ProcessingStatus)
	}
	if len(analysis.RootCauses) != 2 {
		t.Errorf("expected 2 root causes, got %d", len(analysis.RootCauses))
	}

	var updated database.Incident
	f.db.First(&updated, f.incident.ID)
	if updated.Status != database.IncidentStatusPendingReview {
		t.Errorf("expected pending_review, got %s", updated.Status)
	}
}

func TestSecondPass_RejectedReviewIsGated(t *testing.T) {
	for _, status := range []database.ReviewStatus{
		database.ReviewPending,
		database.ReviewRejected,
		database.ReviewNeedsRevision,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newSecondPassFixture(t, status)

			_, _, err := f.svc.Analyze(context.Background(), f.review.UUID, "investigator")
			if !errors.Is(err, ErrReviewNotApproved) {
				t.Errorf("expected ErrReviewNotApproved, got %v", err)
			}
			if f.fake.JSONCalls != 0 {
				t.Errorf("gated review must not reach the model, got %d calls", f.fake.JSONCalls)
			}

			var count int64
			f.db.Model(&database.SecondPassAnalysis{}).Count(&count)
			if count != 0 {
				t.Errorf("no analysis row should be created when gated, got %d", count)
			}
		})
	}
}

func TestSecondPass_ApprovedWithEmptyApprovedListsStillRuns(t *testing.T) {
	f := newSecondPassFixture(t, database.ReviewApproved)
	// Approval gates the run; the approved content does not
	f.db.Model(&database.HumanReview{}).Where("id = ?", f.review.ID).Updates(map[string]interface{}{
		"approved_hazards": database.StringList{},
		"approved_causes":  database.StringList{},
	})

	_, _, err := f.svc.Analyze(context.Background(), f.review.UUID, "investigator")
	if err != nil {
		t.Fatalf("approved review with empty lists should still run: %v", err)
	}
	if f.fake.JSONCalls != 1 {
		t.Errorf("expected 1 completion call, got %d", f.fake.JSONCalls)
	}
}

func TestSecondPass_SecondTriggerReturnsExistingWithoutCompletionCall(t *testing.T) {
	f := newSecondPassFixture(t, database.ReviewApproved)

	first, _, err := f.svc.Analyze(context.Background(), f.review.UUID, "investigator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, alreadyCompleted, err := f.svc.Analyze(context.Background(), f.review.UUID, "investigator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !alreadyCompleted {
		t.Error("second trigger should report already completed")
	}
	if second.UUID != first.UUID {
		t.Errorf("expected same row, got %s and %s", first.UUID, second.UUID)
	}
	if f.fake.JSONCalls != 1 {
		t.Errorf("expected exactly 1 completion call, got %d", f.fake.JSONCalls)
	}
}

func TestSecondPass_PromptCarriesReviewerFeedback(t *testing.T) {
	f := newSecondPassFixture(t, database.ReviewApproved)

	if _, _, err := f.svc.Analyze(context.Background(), f.review.UUID, "investigator"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := f.fake.LastJSONRequest.User
	if !strings.Contains(prompt, "Analysis looks accurate") {
		t.Error("prompt should carry reviewer notes")
	}
	if !strings.Contains(prompt, "Missing spotter procedure") {
		t.Error("prompt should carry approved causes")
	}
}

func TestSecondPass_CompletionFailureLeavesRecordProcessing(t *testing.T) {
	f := newSecondPassFixture(t, database.ReviewApproved)
	f.fake.JSONErr = errors.New("model unavailable")

	if _, _, err := f.svc.Analyze(context.Background(), f.review.UUID, "investigator"); err == nil {
		t.Fatal("expected error")
	}

	// Nothing is written on failure; the sweeper owns the transition
	// to failed.
	var analysis database.SecondPassAnalysis
	if err := f.db.Where("human_review_id = ?", f.review.ID).First(&analysis).Error; err != nil {
		t.Fatalf("analysis row should exist: %v", err)
	}
	if analysis.ProcessingStatus != database.ProcessingInProgress {
		t.Errorf("expected processing, got %s", analysis.ProcessingStatus)
	}
	if len(analysis.RootCauses) != 0 {
		t.Errorf("expected no partial data, got %d root causes", len(analysis.RootCauses))
	}

	var updated database.Incident
	f.db.First(&updated, f.incident.ID)
	if updated.Status != database.IncidentStatusUnderInvestigation {
		t.Errorf("expected status unchanged, got %s", updated.Status)
	}
}

func TestSecondPass_HeldClaimShortCircuitsDuplicateTrigger(t *testing.T) {
	f := newSecondPassFixture(t, database.ReviewApproved)

	held := testhelpers.NewSecondPassBuilder(f.incident.ID, f.review.AnalysisID, f.review.ID).
		WithStatus(database.ProcessingInProgress).Build()
	if err := f.db.Create(&held).Error; err != nil {
		t.Fatalf("failed to create in-flight analysis: %v", err)
	}

	_, _, err := f.svc.Analyze(context.Background(), f.review.UUID, "investigator")
	if !errors.Is(err, ErrAnalysisInProgress) {
		t.Fatalf("expected ErrAnalysisInProgress, got %v", err)
	}
	if f.fake.JSONCalls != 0 {
		t.Errorf("losing trigger must not call the model, got %d calls", f.fake.JSONCalls)
	}

	var count int64
	f.db.Model(&database.SecondPassAnalysis{}).Where("human_review_id = ?", f.review.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 analysis row, got %d", count)
	}
}

func TestSecondPass_UnknownReview(t *testing.T) {
	f := newSecondPassFixture(t, database.ReviewApproved)

	_, _, err := f.svc.Analyze(context.Background(), "no-such-review", "investigator")
	if !errors.Is(err, ErrReviewNotFound) {
		t.Errorf("expected ErrReviewNotFound, got %v", err)
	}
}

func TestSecondPass_WritesAuditRecord(t *testing.T) {
	f := newSecondPassFixture(t, database.ReviewApproved)

	analysis, _, err := f.svc.Analyze(context.Background(), f.review.UUID, "investigator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry database.AuditLog
	err = f.db.Where("action_type = ? AND entity_id = ?",
		database.AuditSecondPassCompleted, analysis.UUID).First(&entry).Error
	if err != nil {
		t.Fatalf("expected audit record: %v", err)
	}
	if entry.ActionDetails["root_causes_count"].(float64) != 2 {
		t.Errorf("expected root_causes_count 2, got %v", entry.ActionDetails["root_causes_count"])
	}
}
