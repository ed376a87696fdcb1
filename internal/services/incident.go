package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/database"
)

// IncidentService owns incident creation and listing
type IncidentService struct {
	db    *gorm.DB
	audit *AuditRecorder
}

// NewIncidentService creates an incident service
func NewIncidentService(db *gorm.DB, audit *AuditRecorder) *IncidentService {
	return &IncidentService{db: db, audit: audit}
}

// CreateIncidentInput describes a new incident report
type CreateIncidentInput struct {
	Title                string
	Description          string
	Severity             database.IncidentSeverity
	IncidentType         database.IncidentType
	IncidentDate         time.Time
	Location             string
	ReportedBy           string
	AssignedInvestigator string
	IPAddress            string
	UserAgent            string
}

var validSeverities = map[database.IncidentSeverity]bool{
	database.SeverityMinor:    true,
	database.SeverityModerate: true,
	database.SeveritySerious:  true,
	database.SeverityCritical: true,
}

var validTypes = map[database.IncidentType]bool{
	database.TypeInjury:         true,
	database.TypeNearMiss:       true,
	database.TypePropertyDamage: true,
	database.TypeEnvironmental:  true,
	database.TypeProcessSafety:  true,
}

// ErrInvalidIncident is returned when a create request fails validation
var ErrInvalidIncident = errors.New("title, severity, and incident_type are required")

// Create records a new incident in reported status and writes the
// creation audit record.
func (s *IncidentService) Create(in CreateIncidentInput) (*database.Incident, error) {
	if in.Title == "" || !validSeverities[in.Severity] || !validTypes[in.IncidentType] {
		return nil, ErrInvalidIncident
	}
	if in.IncidentDate.IsZero() {
		in.IncidentDate = time.Now()
	}

	incident := database.Incident{
		UUID:                 uuid.NewString(),
		IncidentNumber:       database.NewIncidentNumber(time.Now()),
		Title:                in.Title,
		Description:          in.Description,
		Severity:             in.Severity,
		IncidentType:         in.IncidentType,
		IncidentDate:         in.IncidentDate,
		Location:             in.Location,
		ReportedBy:           in.ReportedBy,
		AssignedInvestigator: in.AssignedInvestigator,
		Status:               database.IncidentStatusReported,
	}
	if err := s.db.Create(&incident).Error; err != nil {
		return nil, err
	}

	s.audit.Record(AuditEntry{
		IncidentID: &incident.ID,
		ActionType: database.AuditIncidentCreated,
		Details: database.JSONB{
			"incident_number": incident.IncidentNumber,
			"severity":        string(incident.Severity),
			"incident_type":   string(incident.IncidentType),
		},
		EntityType:  "incident",
		EntityID:    incident.UUID,
		PerformedBy: in.ReportedBy,
		IPAddress:   in.IPAddress,
		UserAgent:   in.UserAgent,
	})

	return &incident, nil
}

// ListFilter narrows List results
type ListFilter struct {
	Status   database.IncidentStatus
	Severity database.IncidentSeverity
	Limit    int
	Offset   int
}

// List returns incidents newest first, with the total count before paging
func (s *IncidentService) List(filter ListFilter) ([]database.Incident, int64, error) {
	query := s.db.Model(&database.Incident{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var incidents []database.Incident
	err := query.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&incidents).Error
	return incidents, total, err
}
