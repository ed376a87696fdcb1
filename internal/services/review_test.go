package services

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/config"
	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/events"
	"github.com/safetrace/safetrace/internal/jobs"
	"github.com/safetrace/safetrace/internal/testhelpers"
)

type reviewFixture struct {
	svc        *ReviewService
	dispatcher *jobs.Dispatcher
	fake       *testhelpers.FakeLLM
	db         *gorm.DB
	incident   database.Incident
	analysis   database.FirstPassAnalysis
}

func newReviewFixture(t *testing.T) *reviewFixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)

	incident := testhelpers.NewIncidentBuilder().WithStatus(database.IncidentStatusUnderInvestigation).Build()
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("failed to create incident: %v", err)
	}
	analysis := testhelpers.NewFirstPassBuilder(incident.ID).Build()
	if err := db.Create(&analysis).Error; err != nil {
		t.Fatalf("failed to create first pass: %v", err)
	}

	fake := &testhelpers.FakeLLM{JSONResponse: secondPassJSON}
	audit := NewAuditRecorder(db)
	secondPass := NewSecondPassService(db, fake, audit, events.NewHub(),
		&testhelpers.FakeNotifier{}, config.DefaultAnalysisSettings())

	dispatcher := jobs.NewDispatcher(1, 4, 5*time.Second)
	dispatcher.Start()
	t.Cleanup(dispatcher.Stop)

	svc := NewReviewService(db, audit, dispatcher, secondPass)
	return &reviewFixture{
		svc:        svc,
		dispatcher: dispatcher,
		fake:       fake,
		db:         db,
		incident:   incident,
		analysis:   analysis,
	}
}

func (f *reviewFixture) submitInput(decision string) SubmitReviewInput {
	return SubmitReviewInput{
		IncidentUUID:    f.incident.UUID,
		AnalysisUUID:    f.analysis.UUID,
		ReviewerID:      "safety-manager",
		Decision:        decision,
		ApprovedHazards: []string{"Vehicle-pedestrian interaction"},
		ApprovedCauses:  []string{"Missing spotter procedure"},
		Notes:           "Checked against site CCTV",
	}
}

func TestReview_SubmitRecordsDecision(t *testing.T) {
	f := newReviewFixture(t)

	review, err := f.svc.Submit(f.submitInput("rejected"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if review.ReviewStatus != database.ReviewRejected {
		t.Errorf("expected rejected status, got %s", review.ReviewStatus)
	}
	if review.ReviewedAt == nil {
		t.Error("reviewed_at should be set on submission")
	}

	var entry database.AuditLog
	err = f.db.Where("action_type = ? AND entity_id = ?",
		database.AuditReviewCompleted, review.UUID).First(&entry).Error
	if err != nil {
		t.Fatalf("expected audit record: %v", err)
	}
	if entry.ActionDetails["review_status"] != "rejected" {
		t.Errorf("audit should carry the decision, got %v", entry.ActionDetails)
	}
}

func TestReview_InvalidDecision(t *testing.T) {
	f := newReviewFixture(t)

	_, err := f.svc.Submit(f.submitInput("maybe"))
	if !errors.Is(err, ErrInvalidDecision) {
		t.Errorf("expected ErrInvalidDecision, got %v", err)
	}

	var count int64
	f.db.Model(&database.HumanReview{}).Count(&count)
	if count != 0 {
		t.Errorf("invalid decision should not create a review, found %d", count)
	}
}

func TestReview_HistoryIsAppendOnly(t *testing.T) {
	f := newReviewFixture(t)

	if _, err := f.svc.Submit(f.submitInput("rejected")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Submit(f.submitInput("needs_revision")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int64
	f.db.Model(&database.HumanReview{}).Where("incident_id = ?", f.incident.ID).Count(&count)
	if count != 2 {
		t.Errorf("each submission should add a row, got %d", count)
	}
}

func TestReview_ApprovalDispatchesSecondPass(t *testing.T) {
	f := newReviewFixture(t)

	review, err := f.svc.Submit(f.submitInput("approved"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Stop drains the queue, so the dispatched analysis has run by here
	f.dispatcher.Stop()

	var secondPass database.SecondPassAnalysis
	err = f.db.Where("human_review_id = ?", review.ID).First(&secondPass).Error
	if err != nil {
		t.Fatalf("expected a second pass for the approved review: %v", err)
	}
	if secondPass.ProcessingStatus != database.ProcessingCompleted {
		t.Errorf("expected completed second pass, got %s", secondPass.ProcessingStatus)
	}
	if f.fake.JSONCalls != 1 {
		t.Errorf("expected 1 completion call, got %d", f.fake.JSONCalls)
	}
}

func TestReview_RejectionDoesNotDispatch(t *testing.T) {
	f := newReviewFixture(t)

	if _, err := f.svc.Submit(f.submitInput("rejected")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.dispatcher.Stop()

	var count int64
	f.db.Model(&database.SecondPassAnalysis{}).Count(&count)
	if count != 0 {
		t.Errorf("rejected review should not trigger a second pass, found %d", count)
	}
	if f.fake.CallCount() != 0 {
		t.Errorf("expected no completion calls, got %d", f.fake.CallCount())
	}
}

func TestReview_AnalysisMustBelongToIncident(t *testing.T) {
	f := newReviewFixture(t)

	other := testhelpers.NewIncidentBuilder().Build()
	if err := f.db.Create(&other).Error; err != nil {
		t.Fatalf("failed to create incident: %v", err)
	}
	otherAnalysis := testhelpers.NewFirstPassBuilder(other.ID).Build()
	if err := f.db.Create(&otherAnalysis).Error; err != nil {
		t.Fatalf("failed to create first pass: %v", err)
	}

	in := f.submitInput("approved")
	in.AnalysisUUID = otherAnalysis.UUID
	_, err := f.svc.Submit(in)
	if !errors.Is(err, ErrAnalysisNotFound) {
		t.Errorf("expected ErrAnalysisNotFound for cross-incident analysis, got %v", err)
	}
}

func TestReview_UnknownIncident(t *testing.T) {
	f := newReviewFixture(t)

	in := f.submitInput("approved")
	in.IncidentUUID = "no-such-incident"
	_, err := f.svc.Submit(in)
	if !errors.Is(err, ErrIncidentNotFound) {
		t.Errorf("expected ErrIncidentNotFound, got %v", err)
	}
}

func TestReview_ListNewestFirst(t *testing.T) {
	f := newReviewFixture(t)

	first := testhelpers.NewReviewBuilder(f.incident.ID, f.analysis.ID).
		WithStatus(database.ReviewRejected).Build()
	first.CreatedAt = time.Now().Add(-time.Hour)
	if err := f.db.Create(&first).Error; err != nil {
		t.Fatalf("failed to create review: %v", err)
	}
	second := testhelpers.NewReviewBuilder(f.incident.ID, f.analysis.ID).Build()
	if err := f.db.Create(&second).Error; err != nil {
		t.Fatalf("failed to create review: %v", err)
	}

	reviews, err := f.svc.ListForIncident(f.incident.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reviews) != 2 {
		t.Fatalf("expected 2 reviews, got %d", len(reviews))
	}
	if reviews[0].UUID != second.UUID {
		t.Errorf("expected newest review first")
	}
}
