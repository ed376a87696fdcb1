package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/config"
	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/events"
	"github.com/safetrace/safetrace/internal/llm"
	"github.com/safetrace/safetrace/internal/storage"
	"github.com/safetrace/safetrace/internal/utils"
)

const imageDescriptionPrompt = `You are an HSE (Health, Safety, and Environment) incident investigation assistant. Analyze this image and provide a detailed, objective description focusing on:

1. Visible hazards or safety concerns
2. Equipment, machinery, or tools visible
3. Environmental conditions
4. People and their safety equipment (PPE)
5. Any visible damage or unsafe conditions
6. Location characteristics

Provide a factual, professional description suitable for an incident investigation report.`

const imageOCRPrompt = `Extract all visible text from this image. Include signs, labels, documents, handwritten notes, and any other text. Return only the extracted text without additional commentary.`

const pdfExtractionPrompt = `Extract all text content from this PDF document. Include all visible text, tables, and structured data. Return the extracted text maintaining logical reading order. If the PDF contains images with text, describe what you see.`

var pdfStreamPattern = regexp.MustCompile(`(?s)stream\s*(.*?)\s*endstream`)

// DocumentService handles evidence upload and text extraction
type DocumentService struct {
	db       *gorm.DB
	store    storage.ObjectStore
	llm      llm.Client
	audit    *AuditRecorder
	hub      *events.Hub
	settings *config.AnalysisSettings
}

// NewDocumentService creates a document service
func NewDocumentService(db *gorm.DB, store storage.ObjectStore, client llm.Client,
	audit *AuditRecorder, hub *events.Hub, settings *config.AnalysisSettings) *DocumentService {
	return &DocumentService{
		db:       db,
		store:    store,
		llm:      client,
		audit:    audit,
		hub:      hub,
		settings: settings,
	}
}

// UploadInput describes one file being attached to an incident
type UploadInput struct {
	IncidentUUID string
	FileName     string
	FileType     string
	FileSize     int64
	Data         io.Reader
	UploadedBy   string
	IPAddress    string
	UserAgent    string
}

// Upload stores the file bytes and creates the document record in pending
// state. Extraction is dispatched separately by the caller.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*database.IncidentDocument, error) {
	incident, err := database.GetIncidentByUUID(s.db, in.IncidentUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIncidentNotFound
		}
		return nil, err
	}

	key := fmt.Sprintf("%s/%d_%s", incident.UUID, time.Now().Unix(), in.FileName)
	if err := s.store.Upload(ctx, key, in.Data); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := database.IncidentDocument{
		UUID:        uuid.NewString(),
		IncidentID:  incident.ID,
		FileName:    in.FileName,
		FileType:    in.FileType,
		FileSize:    in.FileSize,
		StoragePath: key,
		OCRStatus:   database.ProcessingPending,
		UploadedBy:  in.UploadedBy,
	}
	if err := s.db.Create(&doc).Error; err != nil {
		return nil, err
	}

	s.audit.Record(AuditEntry{
		IncidentID: &incident.ID,
		ActionType: database.AuditDocumentUploaded,
		Details: database.JSONB{
			"document_id": doc.UUID,
			"file_name":   doc.FileName,
			"file_type":   doc.FileType,
			"file_size":   doc.FileSize,
		},
		EntityType:  "incident_document",
		EntityID:    doc.UUID,
		PerformedBy: in.UploadedBy,
		IPAddress:   in.IPAddress,
		UserAgent:   in.UserAgent,
	})

	return &doc, nil
}

// Extract runs text extraction for one document: vision caption plus OCR
// for images, full-text extraction with a raw-stream fallback for PDFs.
// Other file types complete with empty text. Failures flip the document
// to failed so the sweep and UI can see it.
func (s *DocumentService) Extract(ctx context.Context, documentUUID, fileType, performedBy string) (*database.IncidentDocument, error) {
	doc, err := database.GetDocumentByUUID(s.db, documentUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if fileType == "" {
		fileType = doc.FileType
	}

	if err := s.db.Model(doc).Update("ocr_status", database.ProcessingInProgress).Error; err != nil {
		return nil, err
	}

	ocrText, aiDescription, err := s.extract(ctx, doc, fileType)
	if err != nil {
		s.markFailed(doc, err)
		return nil, err
	}

	if err := s.db.Model(doc).Updates(map[string]interface{}{
		"ocr_text":       ocrText,
		"ai_description": aiDescription,
		"ocr_status":     database.ProcessingCompleted,
	}).Error; err != nil {
		return nil, err
	}
	doc.OCRText = ocrText
	doc.AIDescription = aiDescription
	doc.OCRStatus = database.ProcessingCompleted

	var incident database.Incident
	if err := s.db.First(&incident, doc.IncidentID).Error; err == nil {
		s.audit.Record(AuditEntry{
			IncidentID: &incident.ID,
			ActionType: database.AuditDocumentProcessed,
			Details: database.JSONB{
				"document_id":   doc.UUID,
				"file_name":     doc.FileName,
				"ocr_completed": true,
			},
			EntityType:  "incident_document",
			EntityID:    doc.UUID,
			PerformedBy: performedBy,
		})
		s.hub.Publish(events.Event{
			Type:       events.EventDocumentProcessed,
			IncidentID: incident.UUID,
			EntityID:   doc.UUID,
		})
	}

	return doc, nil
}

func (s *DocumentService) markFailed(doc *database.IncidentDocument, cause error) {
	log.Printf("DocumentService: extraction failed for %s: %v", doc.UUID, cause)
	if err := s.db.Model(doc).Update("ocr_status", database.ProcessingFailed).Error; err != nil {
		log.Printf("DocumentService: failed to mark %s as failed: %v", doc.UUID, err)
		return
	}
	var incident database.Incident
	if err := s.db.First(&incident, doc.IncidentID).Error; err == nil {
		s.hub.Publish(events.Event{
			Type:       events.EventDocumentFailed,
			IncidentID: incident.UUID,
			EntityID:   doc.UUID,
			Data:       map[string]interface{}{"error": cause.Error()},
		})
	}
}

func (s *DocumentService) extract(ctx context.Context, doc *database.IncidentDocument, fileType string) (ocrText, aiDescription string, err error) {
	reader, err := s.store.Download(ctx, doc.StoragePath)
	if err != nil {
		return "", "", fmt.Errorf("file not found in storage: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", "", fmt.Errorf("failed to read stored document: %w", err)
	}

	switch {
	case strings.HasPrefix(fileType, "image/"):
		aiDescription = s.describeImage(ctx, data, fileType)
		ocrText = s.ocrImage(ctx, data)
	case fileType == "application/pdf":
		ocrText = s.extractPDF(ctx, data)
		aiDescription = "PDF document processed for text extraction"
	}
	return ocrText, aiDescription, nil
}

func (s *DocumentService) describeImage(ctx context.Context, data []byte, fileType string) string {
	dataURL := fmt.Sprintf("data:%s;base64,%s", fileType, base64.StdEncoding.EncodeToString(data))
	desc, err := s.llm.CompleteWithImage(ctx, s.settings.VisionModel, imageDescriptionPrompt, dataURL, s.settings.CaptionMaxTokens)
	if err != nil {
		log.Printf("DocumentService: image description failed: %v", err)
		return "Error: Could not generate image description. Image uploaded successfully."
	}
	if desc == "" {
		return "Unable to generate image description"
	}
	return desc
}

func (s *DocumentService) ocrImage(ctx context.Context, data []byte) string {
	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
	text, err := s.llm.CompleteWithImage(ctx, s.settings.VisionModel, imageOCRPrompt, dataURL, s.settings.OCRMaxTokens)
	if err != nil {
		log.Printf("DocumentService: image OCR failed: %v", err)
		return ""
	}
	return text
}

// extractPDF asks the vision model for the document text and falls back to
// scanning the raw content streams when the model's answer is too short to
// be real text.
func (s *DocumentService) extractPDF(ctx context.Context, data []byte) string {
	dataURL := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(data)
	text, err := s.llm.CompleteWithImage(ctx, s.settings.VisionModel, pdfExtractionPrompt, dataURL, s.settings.PDFMaxTokens)
	if err != nil {
		log.Printf("DocumentService: PDF extraction failed: %v", err)
		if basic := rawPDFText(data); basic != "" {
			return basic
		}
		return "PDF uploaded. Text extraction encountered issues. File is available for download and manual review."
	}

	if len(strings.TrimSpace(text)) > 20 {
		return text
	}

	if basic := rawPDFText(data); len(basic) > 20 {
		return basic
	}
	return "PDF uploaded successfully. Document contains visual content that may require manual review."
}

// rawPDFText pulls printable text out of the PDF's stream...endstream
// sections. Best effort only; compressed streams come out empty.
func rawPDFText(data []byte) string {
	matches := pdfStreamPattern.FindAllSubmatch(data, -1)
	if len(matches) == 0 {
		return ""
	}
	var buf bytes.Buffer
	for i, m := range matches {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.Write(m[1])
	}
	return utils.PrintableText(buf.Bytes())
}

// ListForIncident returns all documents uploaded to an incident
func (s *DocumentService) ListForIncident(incidentID uint) ([]database.IncidentDocument, error) {
	var docs []database.IncidentDocument
	err := s.db.Where("incident_id = ?", incidentID).Order("created_at ASC").Find(&docs).Error
	return docs, err
}
