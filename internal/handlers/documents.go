package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/safetrace/safetrace/internal/api"
	"github.com/safetrace/safetrace/internal/jobs"
	"github.com/safetrace/safetrace/internal/services"
)

// maxUploadSize bounds evidence uploads (25 MB)
const maxUploadSize = 25 << 20

// handleUploadDocument handles POST /api/incidents/{uuid}/documents.
// The file is stored and recorded immediately; text extraction runs in
// the background and the response does not wait for it.
func (h *APIHandler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		api.RespondError(w, http.StatusBadRequest, "Invalid multipart form or file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.RespondError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	fileType := header.Header.Get("Content-Type")
	if v := r.FormValue("file_type"); v != "" {
		fileType = v
	}

	doc, err := h.documentService.Upload(r.Context(), services.UploadInput{
		IncidentUUID: r.PathValue("uuid"),
		FileName:     header.Filename,
		FileType:     fileType,
		FileSize:     header.Size,
		Data:         file,
		UploadedBy:   caller(r),
		IPAddress:    r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, services.ErrIncidentNotFound) {
			api.RespondError(w, http.StatusNotFound, "Incident not found")
			return
		}
		log.Printf("Failed to upload document: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to upload document")
		return
	}

	docUUID := doc.UUID
	docType := doc.FileType
	performedBy := caller(r)
	h.dispatcher.Enqueue(jobs.Task{
		Name:     "document_extraction",
		EntityID: docUUID,
		Run: func(ctx context.Context) error {
			_, err := h.documentService.Extract(ctx, docUUID, docType, performedBy)
			return err
		},
	})

	api.RespondJSON(w, http.StatusCreated, doc)
}

// handleListDocuments handles GET /api/incidents/{uuid}/documents
func (h *APIHandler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	db := dbForRequest()

	incident, err := incidentFromPath(db, r)
	if err != nil {
		respondLookupError(w, err, "Incident not found")
		return
	}

	docs, err := h.documentService.ListForIncident(incident.ID)
	if err != nil {
		api.RespondError(w, http.StatusInternalServerError, "Failed to get documents")
		return
	}

	api.RespondJSON(w, http.StatusOK, docs)
}

// handleProcessDocument handles POST /api/documents/process. The endpoint
// is auth-exempt so internal retriggers work, but a valid token still
// attributes the audit record to the caller.
func (h *APIHandler) handleProcessDocument(w http.ResponseWriter, r *http.Request) {
	var req api.ProcessDocumentRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.DocumentID == "" {
		api.RespondError(w, http.StatusBadRequest, "documentId is required")
		return
	}

	doc, err := h.documentService.Extract(r.Context(), req.DocumentID, req.FileType, caller(r))
	if err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			api.RespondError(w, http.StatusNotFound, "Document not found")
			return
		}
		log.Printf("Failed to process document %s: %v", req.DocumentID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to process document")
		return
	}

	api.RespondJSON(w, http.StatusOK, api.ProcessDocumentResponse{
		Success:       true,
		DocumentID:    doc.UUID,
		OCRText:       doc.OCRText,
		AIDescription: doc.AIDescription,
	})
}
