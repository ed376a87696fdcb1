package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/database"
)

// ProcessingSweeper fails records stuck in "processing" past their
// deadline. Without it a crashed extraction or analysis call would leave
// its record in processing forever and block manual retry triage.
type ProcessingSweeper struct {
	db       *gorm.DB
	deadline time.Duration
}

// NewProcessingSweeper creates a sweeper with the given processing deadline
func NewProcessingSweeper(db *gorm.DB, deadline time.Duration) *ProcessingSweeper {
	return &ProcessingSweeper{db: db, deadline: deadline}
}

// Sweep transitions expired processing records to failed and returns the
// number of records transitioned
func (s *ProcessingSweeper) Sweep() (int, error) {
	cutoff := time.Now().Add(-s.deadline)
	total := 0

	n, err := s.sweepDocuments(cutoff)
	if err != nil {
		return total, err
	}
	total += n

	n, err = s.sweepFirstPass(cutoff)
	if err != nil {
		return total, err
	}
	total += n

	n, err = s.sweepSecondPass(cutoff)
	if err != nil {
		return total, err
	}
	total += n

	return total, nil
}

func (s *ProcessingSweeper) sweepDocuments(cutoff time.Time) (int, error) {
	var docs []database.IncidentDocument
	err := s.db.Where("ocr_status = ? AND updated_at < ?", database.ProcessingInProgress, cutoff).Find(&docs).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, doc := range docs {
		err := s.db.Model(&database.IncidentDocument{}).Where("id = ?", doc.ID).
			Update("ocr_status", database.ProcessingFailed).Error
		if err != nil {
			log.Printf("Sweeper: failed to expire document %s: %v", doc.UUID, err)
			continue
		}
		s.recordExpiry(doc.IncidentID, "incident_document", doc.UUID)
		swept++
	}
	return swept, nil
}

func (s *ProcessingSweeper) sweepFirstPass(cutoff time.Time) (int, error) {
	var analyses []database.FirstPassAnalysis
	err := s.db.Where("processing_status = ? AND updated_at < ?", database.ProcessingInProgress, cutoff).Find(&analyses).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, analysis := range analyses {
		err := s.db.Model(&database.FirstPassAnalysis{}).Where("id = ?", analysis.ID).
			Update("processing_status", database.ProcessingFailed).Error
		if err != nil {
			log.Printf("Sweeper: failed to expire first-pass analysis %s: %v", analysis.UUID, err)
			continue
		}
		s.recordExpiry(analysis.IncidentID, "ai_analysis_first_pass", analysis.UUID)
		swept++
	}
	return swept, nil
}

func (s *ProcessingSweeper) sweepSecondPass(cutoff time.Time) (int, error) {
	var analyses []database.SecondPassAnalysis
	err := s.db.Where("processing_status = ? AND updated_at < ?", database.ProcessingInProgress, cutoff).Find(&analyses).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, analysis := range analyses {
		err := s.db.Model(&database.SecondPassAnalysis{}).Where("id = ?", analysis.ID).
			Update("processing_status", database.ProcessingFailed).Error
		if err != nil {
			log.Printf("Sweeper: failed to expire second-pass analysis %s: %v", analysis.UUID, err)
			continue
		}
		s.recordExpiry(analysis.IncidentID, "ai_analysis_second_pass", analysis.UUID)
		swept++
	}
	return swept, nil
}

func (s *ProcessingSweeper) recordExpiry(incidentID uint, entityType, entityUUID string) {
	entry := database.AuditLog{
		IncidentID: &incidentID,
		ActionType: database.AuditProcessingExpired,
		ActionDetails: database.JSONB{
			"deadline_minutes": s.deadline.Minutes(),
		},
		EntityType:  entityType,
		EntityID:    entityUUID,
		PerformedBy: "system",
	}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("Sweeper: failed to write audit record for %s %s: %v", entityType, entityUUID, err)
	}
}

// Start begins periodic sweeping
func (s *ProcessingSweeper) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			swept, err := s.Sweep()
			if err != nil {
				log.Printf("Sweeper error: %v", err)
			} else if swept > 0 {
				log.Printf("Sweeper: expired %d stuck processing records", swept)
			}
		case <-stop:
			log.Println("Processing sweeper stopped")
			return
		}
	}
}
