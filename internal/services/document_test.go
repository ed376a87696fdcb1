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

type documentFixture struct {
	svc      *DocumentService
	fake     *testhelpers.FakeLLM
	store    *testhelpers.MemoryStore
	db       *gorm.DB
	incident database.Incident
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	db := testhelpers.SetupTestDB(t)

	incident := testhelpers.NewIncidentBuilder().Build()
	if err := db.Create(&incident).Error; err != nil {
		t.Fatalf("failed to create incident: %v", err)
	}

	fake := &testhelpers.FakeLLM{
		ImageResponse: "A forklift reversing near a pedestrian walkway",
	}
	store := testhelpers.NewMemoryStore()
	svc := NewDocumentService(db, store, fake, NewAuditRecorder(db),
		events.NewHub(), config.DefaultAnalysisSettings())
	return &documentFixture{svc: svc, fake: fake, store: store, db: db, incident: incident}
}

// upload stores a file through the service and returns the pending record
func (f *documentFixture) upload(t *testing.T, fileName, fileType string, data []byte) *database.IncidentDocument {
	t.Helper()
	doc, err := f.svc.Upload(context.Background(), UploadInput{
		IncidentUUID: f.incident.UUID,
		FileName:     fileName,
		FileType:     fileType,
		FileSize:     int64(len(data)),
		Data:         strings.NewReader(string(data)),
		UploadedBy:   "test-uploader",
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	return doc
}

func TestDocument_UploadStoresUnderIncidentPrefix(t *testing.T) {
	f := newDocumentFixture(t)

	doc := f.upload(t, "scene.jpg", "image/jpeg", []byte("jpegdata"))

	if !strings.HasPrefix(doc.StoragePath, f.incident.UUID+"/") {
		t.Errorf("storage key should be namespaced by incident, got %q", doc.StoragePath)
	}
	if !strings.HasSuffix(doc.StoragePath, "_scene.jpg") {
		t.Errorf("storage key should end with the file name, got %q", doc.StoragePath)
	}
	if doc.OCRStatus != database.ProcessingPending {
		t.Errorf("expected pending status, got %s", doc.OCRStatus)
	}
	if f.store.Len() != 1 {
		t.Errorf("expected 1 stored object, got %d", f.store.Len())
	}

	var entry database.AuditLog
	err := f.db.Where("action_type = ? AND entity_id = ?",
		database.AuditDocumentUploaded, doc.UUID).First(&entry).Error
	if err != nil {
		t.Fatalf("expected audit record: %v", err)
	}
}

func TestDocument_UploadUnknownIncident(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.Upload(context.Background(), UploadInput{
		IncidentUUID: "no-such-incident",
		FileName:     "scene.jpg",
		FileType:     "image/jpeg",
		Data:         strings.NewReader("jpegdata"),
	})
	if !errors.Is(err, ErrIncidentNotFound) {
		t.Errorf("expected ErrIncidentNotFound, got %v", err)
	}
	if f.store.Len() != 0 {
		t.Errorf("nothing should be stored for an unknown incident")
	}
}

func TestDocument_ExtractImageRunsCaptionAndOCR(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t, "scene.jpg", "image/jpeg", []byte("jpegdata"))

	processed, err := f.svc.Extract(context.Background(), doc.UUID, "", "test-user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if processed.OCRStatus != database.ProcessingCompleted {
		t.Errorf("expected completed status, got %s", processed.OCRStatus)
	}
	if processed.AIDescription != "A forklift reversing near a pedestrian walkway" {
		t.Errorf("unexpected description: %q", processed.AIDescription)
	}
	// One caption call plus one OCR call
	if f.fake.ImageCalls != 2 {
		t.Errorf("expected 2 vision calls, got %d", f.fake.ImageCalls)
	}

	var entry database.AuditLog
	err = f.db.Where("action_type = ? AND entity_id = ?",
		database.AuditDocumentProcessed, doc.UUID).First(&entry).Error
	if err != nil {
		t.Fatalf("expected audit record: %v", err)
	}
}

func TestDocument_ImageDescriptionErrorKeepsDocument(t *testing.T) {
	f := newDocumentFixture(t)
	f.fake.ImageErr = errors.New("model unavailable")
	doc := f.upload(t, "scene.jpg", "image/jpeg", []byte("jpegdata"))

	processed, err := f.svc.Extract(context.Background(), doc.UUID, "", "test-user")
	if err != nil {
		t.Fatalf("vision errors should not fail extraction: %v", err)
	}
	if processed.AIDescription != "Error: Could not generate image description. Image uploaded successfully." {
		t.Errorf("unexpected fallback description: %q", processed.AIDescription)
	}
	if processed.OCRText != "" {
		t.Errorf("OCR should be empty on vision error, got %q", processed.OCRText)
	}
	if processed.OCRStatus != database.ProcessingCompleted {
		t.Errorf("expected completed status, got %s", processed.OCRStatus)
	}
}

func TestDocument_PDFShortAnswerFallsBackToRawStreams(t *testing.T) {
	f := newDocumentFixture(t)
	f.fake.ImageResponse = "  ok  " // too short to be real document text
	pdf := []byte("%PDF-1.4\nstream\nForklift pre-shift inspection was skipped on the day of the incident.\nendstream\n")
	doc := f.upload(t, "inspection.pdf", "application/pdf", pdf)

	processed, err := f.svc.Extract(context.Background(), doc.UUID, "", "test-user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(processed.OCRText, "pre-shift inspection was skipped") {
		t.Errorf("expected raw stream text, got %q", processed.OCRText)
	}
	if processed.AIDescription != "PDF document processed for text extraction" {
		t.Errorf("unexpected description: %q", processed.AIDescription)
	}
}

func TestDocument_PDFWithoutUsableTextGetsPlaceholder(t *testing.T) {
	f := newDocumentFixture(t)
	f.fake.ImageResponse = "n/a"
	doc := f.upload(t, "scan.pdf", "application/pdf", []byte("%PDF-1.4\nno streams here\n"))

	processed, err := f.svc.Extract(context.Background(), doc.UUID, "", "test-user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed.OCRText != "PDF uploaded successfully. Document contains visual content that may require manual review." {
		t.Errorf("unexpected placeholder text: %q", processed.OCRText)
	}
}

func TestDocument_PDFModelErrorFallsBackToRawStreams(t *testing.T) {
	f := newDocumentFixture(t)
	f.fake.ImageErr = errors.New("model unavailable")
	pdf := []byte("stream\nNear miss reported at loading dock B during the evening shift rotation.\nendstream")
	doc := f.upload(t, "report.pdf", "application/pdf", pdf)

	processed, err := f.svc.Extract(context.Background(), doc.UUID, "", "test-user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(processed.OCRText, "loading dock B") {
		t.Errorf("expected raw stream fallback, got %q", processed.OCRText)
	}
}

func TestDocument_MissingStoredObjectMarksFailed(t *testing.T) {
	f := newDocumentFixture(t)
	doc := testhelpers.NewDocumentBuilder(f.incident.ID).
		WithStoragePath("missing/key.jpg").Build()
	if err := f.db.Create(&doc).Error; err != nil {
		t.Fatalf("failed to create document: %v", err)
	}

	_, err := f.svc.Extract(context.Background(), doc.UUID, "", "test-user")
	if err == nil {
		t.Fatal("expected an error for a missing stored object")
	}

	var stored database.IncidentDocument
	f.db.First(&stored, doc.ID)
	if stored.OCRStatus != database.ProcessingFailed {
		t.Errorf("expected failed status, got %s", stored.OCRStatus)
	}
}

func TestDocument_UnknownFileTypeCompletesEmpty(t *testing.T) {
	f := newDocumentFixture(t)
	doc := f.upload(t, "notes.txt", "text/plain", []byte("shift notes"))

	processed, err := f.svc.Extract(context.Background(), doc.UUID, "", "test-user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if processed.OCRStatus != database.ProcessingCompleted {
		t.Errorf("expected completed status, got %s", processed.OCRStatus)
	}
	if processed.OCRText != "" || processed.AIDescription != "" {
		t.Errorf("unsupported types should complete with empty text, got %q / %q",
			processed.OCRText, processed.AIDescription)
	}
	if f.fake.CallCount() != 0 {
		t.Errorf("no vision calls expected, got %d", f.fake.CallCount())
	}
}

func TestDocument_ExtractUnknownDocument(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.Extract(context.Background(), "no-such-doc", "", "test-user")
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("expected ErrDocumentNotFound, got %v", err)
	}
}
