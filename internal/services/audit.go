package services

import (
	"log"

	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/database"
)

// AuditRecorder appends immutable audit records. Every state-changing
// workflow action writes exactly one record through it.
type AuditRecorder struct {
	db *gorm.DB
}

// NewAuditRecorder creates a new audit recorder
func NewAuditRecorder(db *gorm.DB) *AuditRecorder {
	return &AuditRecorder{db: db}
}

// AuditEntry describes one action to record
type AuditEntry struct {
	IncidentID  *uint
	ActionType  database.AuditAction
	Details     database.JSONB
	EntityType  string
	EntityID    string
	PerformedBy string
	IPAddress   string
	UserAgent   string
}

// Record appends an audit record. The write is best effort relative to the
// action it describes: the action has already committed, so a failed audit
// write is logged rather than unwinding the workflow.
func (a *AuditRecorder) Record(entry AuditEntry) error {
	row := database.AuditLog{
		IncidentID:    entry.IncidentID,
		ActionType:    entry.ActionType,
		ActionDetails: entry.Details,
		EntityType:    entry.EntityType,
		EntityID:      entry.EntityID,
		PerformedBy:   entry.PerformedBy,
		IPAddress:     entry.IPAddress,
		UserAgent:     entry.UserAgent,
	}
	if err := a.db.Create(&row).Error; err != nil {
		log.Printf("AuditRecorder: failed to record %s for %s %s: %v",
			entry.ActionType, entry.EntityType, entry.EntityID, err)
		return err
	}
	return nil
}

// ListForIncident returns the audit trail for an incident, oldest first
func (a *AuditRecorder) ListForIncident(incidentID uint) ([]database.AuditLog, error) {
	var entries []database.AuditLog
	err := a.db.Where("incident_id = ?", incidentID).Order("created_at ASC, id ASC").Find(&entries).Error
	return entries, err
}
