package services

import (
	"log"

	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/events"
)

// statusRank orders incident statuses along the workflow. Transitions are
// monotonic: a stage can only ever move an incident forward.
var statusRank = map[database.IncidentStatus]int{
	database.IncidentStatusDraft:              0,
	database.IncidentStatusReported:           1,
	database.IncidentStatusUnderInvestigation: 2,
	database.IncidentStatusPendingReview:      3,
	database.IncidentStatusClosed:             4,
}

// AdvanceIncidentStatus moves an incident's status forward to target and
// publishes a status_changed event. A transition to an earlier or equal
// status is a no-op: the status is a projection of the furthest-completed
// stage and never regresses.
func AdvanceIncidentStatus(db *gorm.DB, hub *events.Hub, incident *database.Incident, target database.IncidentStatus) error {
	if statusRank[target] <= statusRank[incident.Status] {
		return nil
	}

	if err := db.Model(&database.Incident{}).Where("id = ?", incident.ID).
		Update("status", target).Error; err != nil {
		return err
	}

	previous := incident.Status
	incident.Status = target
	log.Printf("Incident %s status: %s -> %s", incident.IncidentNumber, previous, target)

	if hub != nil {
		hub.Publish(events.Event{
			Type:       events.EventStatusChanged,
			IncidentID: incident.UUID,
			Data: map[string]interface{}{
				"from": string(previous),
				"to":   string(target),
			},
		})
	}
	return nil
}

// WorkflowStep derives the 0-5 progress indicator from the presence of
// downstream records. There is no separate workflow-state column: the
// records themselves are the state.
//
//	0 = reported, 1 = documents uploaded, 2 = first pass done,
//	3 = reviewed, 4 = second pass done, 5 = report generated
func WorkflowStep(db *gorm.DB, incidentID uint) (int, error) {
	var count int64

	if err := db.Model(&database.RCAReport{}).Where("incident_id = ?", incidentID).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 5, nil
	}

	if err := db.Model(&database.SecondPassAnalysis{}).
		Where("incident_id = ? AND processing_status = ?", incidentID, database.ProcessingCompleted).
		Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 4, nil
	}

	if err := db.Model(&database.HumanReview{}).Where("incident_id = ?", incidentID).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 3, nil
	}

	if err := db.Model(&database.FirstPassAnalysis{}).
		Where("incident_id = ? AND processing_status = ?", incidentID, database.ProcessingCompleted).
		Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 2, nil
	}

	if err := db.Model(&database.IncidentDocument{}).Where("incident_id = ?", incidentID).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 1, nil
	}

	return 0, nil
}
