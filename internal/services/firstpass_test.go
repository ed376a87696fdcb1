package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/safetrace/safetrace/internal/config"
	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/events"
	"github.com/safetrace/safetrace/internal/jobs"
	"github.com/safetrace/safetrace/internal/testhelpers"
)

const firstPassJSON = `{
	"identifiedHazards": ["Unguarded conveyor", "Loose flooring"],
	"potentialCauses": ["Guard removed for maintenance", "No lockout procedure"],
	"recommendedActions": ["Reinstall guard", "Audit lockout compliance"],
	"confidenceScore": 0.85,
	"analysisData": {"summary": "Guard removed during maintenance"}
}`

func newFirstPassFixture(t *testing.T) (*FirstPassService, *testhelpers.FakeLLM, *database.Incident, *events.Hub) {
	t.Helper()
	db := testhelpers.SetupTestDB(t)

	incident := testhelpers.NewIncidentBuilder().Build()
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("failed to create incident: %v", err)
	}

	fake := &testhelpers.FakeLLM{JSONResponse: firstPassJSON}
	hub := events.NewHub()
	svc := NewFirstPassService(db, fake, NewAuditRecorder(db), hub, &testhelpers.FakeNotifier{}, config.DefaultAnalysisSettings())
	return svc, fake, &incident, hub
}

func TestFirstPass_CompletesAndAdvancesStatus(t *testing.T) {
	svc, fake, incident, _ := newFirstPassFixture(t)

	analysis, alreadyCompleted, err := svc.Analyze(context.Background(), incident.UUID, "investigator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alreadyCompleted {
		t.Error("first run should not report already completed")
	}
	if fake.JSONCalls != 1 {
		t.Errorf("expected 1 completion call, got %d", fake.JSONCalls)
	}
	if analysis.ProcessingStatus != database.ProcessingCompleted {
		t.Errorf("expected completed status, got %s", analysis.ProcessingStatus)
	}
	if len(analysis.IdentifiedHazards) != 2 {
		t.Errorf("expected 2 hazards, got %d", len(analysis.IdentifiedHazards))
	}
	if analysis.ConfidenceScore != 0.85 {
		t.Errorf("expected confidence 0.85, got %f", analysis.ConfidenceScore)
	}

	var updated database.Incident
	svc.db.First(&updated, incident.ID)
	if updated.Status != database.IncidentStatusUnderInvestigation {
		t.Errorf("expected under_investigation, got %s", updated.Status)
	}
}

func TestFirstPass_SecondTriggerReturnsExistingWithoutCompletionCall(t *testing.T) {
	svc, fake, incident, _ := newFirstPassFixture(t)

	first, _, err := svc.Analyze(context.Background(), incident.UUID, "investigator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, alreadyCompleted, err := svc.Analyze(context.Background(), incident.UUID, "investigator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !alreadyCompleted {
		t.Error("second run should report already completed")
	}
	if second.UUID != first.UUID {
		t.Errorf("expected same analysis row, got %s and %s", first.UUID, second.UUID)
	}
	if fake.JSONCalls != 1 {
		t.Errorf("expected exactly 1 completion call across both triggers, got %d", fake.JSONCalls)
	}

	var count int64
	svc.db.Model(&database.FirstPassAnalysis{}).Where("incident_id = ?", incident.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 analysis row, got %d", count)
	}
}

func TestFirstPass_ZeroDocumentsStillAnalyzes(t *testing.T) {
	svc, fake, incident, _ := newFirstPassFixture(t)

	_, _, err := svc.Analyze(context.Background(), incident.UUID, "investigator")
	if err != nil {
		t.Fatalf("analysis with zero documents should succeed: %v", err)
	}

	if !strings.Contains(fake.LastJSONRequest.User, "No documents attached") {
		t.Error("prompt should note the absence of documents")
	}
}

func TestFirstPass_PromptTruncatesLongDescription(t *testing.T) {
	svc, fake, incident, _ := newFirstPassFixture(t)

	longDescription := strings.Repeat("x", 5000)
	svc.db.Model(&database.Incident{}).Where("id = ?", incident.ID).Update("description", longDescription)

	if _, _, err := svc.Analyze(context.Background(), incident.UUID, "investigator"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(fake.LastJSONRequest.User, longDescription) {
		t.Error("prompt should not contain the full untruncated description")
	}
	if !strings.Contains(fake.LastJSONRequest.User, "... [truncated]") {
		t.Error("prompt should carry the truncation marker")
	}
}

func TestFirstPass_PromptCapsDocumentCount(t *testing.T) {
	svc, fake, incident, _ := newFirstPassFixture(t)

	for i := 0; i < 7; i++ {
		doc := testhelpers.NewDocumentBuilder(incident.ID).
			WithFileName("evidence-"+string(rune('a'+i))+".jpg").
			WithExtractedText("reading "+strings.Repeat("y", 10), "caption").
			Build()
		if err := svc.db.Create(&doc).Error; err != nil {
			t.Fatalf("failed to create document: %v", err)
		}
	}

	if _, _, err := svc.Analyze(context.Background(), incident.UUID, "investigator"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := strings.Count(fake.LastJSONRequest.User, "Document: evidence-")
	if got != 5 {
		t.Errorf("expected 5 documents in prompt, got %d", got)
	}
}

func TestFirstPass_CompletionFailureLeavesRecordProcessing(t *testing.T) {
	svc, fake, incident, _ := newFirstPassFixture(t)
	fake.JSONErr = errors.New("model unavailable")

	_, _, err := svc.Analyze(context.Background(), incident.UUID, "investigator")
	if err == nil {
		t.Fatal("expected error when completion fails")
	}

	// Nothing is written on failure: the row keeps the claim and the
	// sweeper deadline decides when it becomes retryable.
	var analysis database.FirstPassAnalysis
	if err := svc.db.Where("incident_id = ?", incident.ID).First(&analysis).Error; err != nil {
		t.Fatalf("analysis row should exist: %v", err)
	}
	if analysis.ProcessingStatus != database.ProcessingInProgress {
		t.Errorf("expected processing status, got %s", analysis.ProcessingStatus)
	}
	if len(analysis.IdentifiedHazards) != 0 {
		t.Errorf("expected no partial data, got %d hazards", len(analysis.IdentifiedHazards))
	}

	// Incident status must not advance on failure
	var updated database.Incident
	svc.db.First(&updated, incident.ID)
	if updated.Status != database.IncidentStatusReported {
		t.Errorf("expected reported status, got %s", updated.Status)
	}
}

func TestFirstPass_SweptAnalysisCanBeRetried(t *testing.T) {
	svc, fake, incident, _ := newFirstPassFixture(t)

	fake.JSONErr = errors.New("model unavailable")
	if _, _, err := svc.Analyze(context.Background(), incident.UUID, "investigator"); err == nil {
		t.Fatal("expected first attempt to fail")
	}

	// An immediate retry is refused while the stuck row holds the claim
	fake.JSONErr = nil
	if _, _, err := svc.Analyze(context.Background(), incident.UUID, "investigator"); !errors.Is(err, ErrAnalysisInProgress) {
		t.Fatalf("expected ErrAnalysisInProgress before the sweep, got %v", err)
	}

	svc.db.Model(&database.FirstPassAnalysis{}).Where("incident_id = ?", incident.ID).
		UpdateColumn("updated_at", time.Now().Add(-time.Hour))
	if _, err := jobs.NewProcessingSweeper(svc.db, 10*time.Minute).Sweep(); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	analysis, alreadyCompleted, err := svc.Analyze(context.Background(), incident.UUID, "investigator")
	if err != nil {
		t.Fatalf("retry should succeed: %v", err)
	}
	if alreadyCompleted {
		t.Error("retry of a failed analysis should rerun, not shortcut")
	}
	if analysis.ProcessingStatus != database.ProcessingCompleted {
		t.Errorf("expected completed after retry, got %s", analysis.ProcessingStatus)
	}
}

func TestFirstPass_ConcurrentTriggersRunOneCompletion(t *testing.T) {
	svc, fake, incident, _ := newFirstPassFixture(t)
	barrier := make(chan struct{})
	fake.JSONBarrier = barrier

	done := make(chan error, 1)
	go func() {
		_, _, err := svc.Analyze(context.Background(), incident.UUID, "investigator")
		done <- err
	}()

	// wait until the first trigger holds the claim
	deadline := time.Now().Add(2 * time.Second)
	for {
		var claimed int64
		svc.db.Model(&database.FirstPassAnalysis{}).
			Where("incident_id = ? AND processing_status = ?", incident.ID, database.ProcessingInProgress).
			Count(&claimed)
		if claimed == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first trigger never claimed the analysis row")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, _, err := svc.Analyze(context.Background(), incident.UUID, "observer"); !errors.Is(err, ErrAnalysisInProgress) {
		t.Fatalf("expected ErrAnalysisInProgress for the losing trigger, got %v", err)
	}

	close(barrier)
	if err := <-done; err != nil {
		t.Fatalf("winning trigger should complete: %v", err)
	}

	if fake.JSONCalls != 1 {
		t.Errorf("expected exactly 1 completion call, got %d", fake.JSONCalls)
	}
	var count int64
	svc.db.Model(&database.FirstPassAnalysis{}).Where("incident_id = ?", incident.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 analysis row, got %d", count)
	}
}

func TestFirstPass_WritesAuditRecord(t *testing.T) {
	svc, _, incident, _ := newFirstPassFixture(t)

	analysis, _, err := svc.Analyze(context.Background(), incident.UUID, "investigator")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry database.AuditLog
	err = svc.db.Where("action_type = ? AND entity_id = ?",
		database.AuditFirstPassCompleted, analysis.UUID).First(&entry).Error
	if err != nil {
		t.Fatalf("expected audit record: %v", err)
	}
	if entry.PerformedBy != "investigator" {
		t.Errorf("expected performed_by investigator, got %s", entry.PerformedBy)
	}
	if entry.ActionDetails["hazards_count"].(float64) != 2 {
		t.Errorf("expected hazards_count 2, got %v", entry.ActionDetails["hazards_count"])
	}
}

func TestFirstPass_UnknownIncident(t *testing.T) {
	svc, _, _, _ := newFirstPassFixture(t)

	_, _, err := svc.Analyze(context.Background(), "no-such-incident", "investigator")
	if !errors.Is(err, ErrIncidentNotFound) {
		t.Errorf("expected ErrIncidentNotFound, got %v", err)
	}
}

func TestFirstPass_PublishesEvent(t *testing.T) {
	svc, _, incident, hub := newFirstPassFixture(t)

	ch, cancel := hub.Subscribe(incident.UUID)
	defer cancel()

	if _, _, err := svc.Analyze(context.Background(), incident.UUID, "investigator"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawCompleted bool
	for len(ch) > 0 {
		event := <-ch
		if event.Type == events.EventFirstPassCompleted {
			sawCompleted = true
		}
	}
	if !sawCompleted {
		t.Error("expected a first_pass_completed event")
	}
}
