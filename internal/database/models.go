package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// StringList is a JSON-encoded list of strings stored in a JSONB column
type StringList []string

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(l)
}

// RawList is a JSON-encoded list whose elements may be strings or objects.
// Corrective/preventive action lists use it because the analysis model may
// return either form for each element.
type RawList []interface{}

// Scan implements the sql.Scanner interface
func (l *RawList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("type assertion to []byte failed")
		}
	}
	return json.Unmarshal(bytes, l)
}

// Value implements the driver.Valuer interface
func (l RawList) Value() (driver.Value, error) {
	if l == nil {
		return json.Marshal([]interface{}{})
	}
	return json.Marshal(l)
}

// IncidentSeverity classifies how severe an incident is
type IncidentSeverity string

const (
	SeverityMinor    IncidentSeverity = "minor"
	SeverityModerate IncidentSeverity = "moderate"
	SeveritySerious  IncidentSeverity = "serious"
	SeverityCritical IncidentSeverity = "critical"
)

// IncidentType classifies the kind of incident
type IncidentType string

const (
	TypeInjury         IncidentType = "injury"
	TypeNearMiss       IncidentType = "near_miss"
	TypePropertyDamage IncidentType = "property_damage"
	TypeEnvironmental  IncidentType = "environmental"
	TypeProcessSafety  IncidentType = "process_safety"
)

// IncidentStatus is the lifecycle status of an incident. It advances
// monotonically along draft -> reported -> under_investigation ->
// pending_review -> closed and is mutated only by workflow stages.
type IncidentStatus string

const (
	IncidentStatusDraft              IncidentStatus = "draft"
	IncidentStatusReported           IncidentStatus = "reported"
	IncidentStatusUnderInvestigation IncidentStatus = "under_investigation"
	IncidentStatusPendingReview      IncidentStatus = "pending_review"
	IncidentStatusClosed             IncidentStatus = "closed"
)

// ProcessingStatus tracks an asynchronous extraction or analysis step
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// ReviewStatus is the decision recorded by a human reviewer
type ReviewStatus string

const (
	ReviewPending       ReviewStatus = "pending"
	ReviewApproved      ReviewStatus = "approved"
	ReviewRejected      ReviewStatus = "rejected"
	ReviewNeedsRevision ReviewStatus = "needs_revision"
)

// ReportStatus is the lifecycle status of an RCA report
type ReportStatus string

const (
	ReportDraft       ReportStatus = "draft"
	ReportUnderReview ReportStatus = "under_review"
	ReportApproved    ReportStatus = "approved"
	ReportPublished   ReportStatus = "published"
)

// Incident is a reported workplace safety incident
type Incident struct {
	ID                   uint             `gorm:"primaryKey" json:"id"`
	UUID                 string           `gorm:"uniqueIndex;not null" json:"uuid"`
	IncidentNumber       string           `gorm:"uniqueIndex;size:32" json:"incident_number"`
	Title                string           `gorm:"type:varchar(255);not null" json:"title"`
	Description          string           `gorm:"type:text" json:"description"`
	Severity             IncidentSeverity `gorm:"type:varchar(20);not null;index" json:"severity"`
	IncidentType         IncidentType     `gorm:"type:varchar(30);not null;index" json:"incident_type"`
	IncidentDate         time.Time        `json:"incident_date"`
	Location             string           `gorm:"type:varchar(255)" json:"location"`
	ReportedBy           string           `gorm:"index;not null" json:"reported_by"`
	AssignedInvestigator string           `json:"assigned_investigator"`
	Status               IncidentStatus   `gorm:"type:varchar(30);not null;default:'reported';index" json:"status"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// TableName overrides the table name
func (Incident) TableName() string {
	return "incidents"
}

// IncidentDocument is a piece of uploaded evidence belonging to one incident
type IncidentDocument struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	UUID          string           `gorm:"uniqueIndex;not null" json:"uuid"`
	IncidentID    uint             `gorm:"not null;index" json:"incident_id"`
	FileName      string           `gorm:"type:varchar(255);not null" json:"file_name"`
	FileType      string           `gorm:"type:varchar(100)" json:"file_type"`
	FileSize      int64            `json:"file_size"`
	StoragePath   string           `gorm:"type:varchar(512);not null" json:"storage_path"`
	OCRText       string           `gorm:"type:text" json:"ocr_text"`
	AIDescription string           `gorm:"column:ai_description;type:text" json:"ai_description"`
	OCRStatus     ProcessingStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"ocr_status"`
	UploadedBy    string           `json:"uploaded_by"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`

	Incident Incident `gorm:"foreignKey:IncidentID" json:"-"`
}

// TableName overrides the table name
func (IncidentDocument) TableName() string {
	return "incident_documents"
}

// FirstPassAnalysis is the initial AI hazard/cause/action analysis.
// The unique index on incident_id is the idempotency guard: concurrent
// duplicate triggers resolve by insert-or-fetch instead of last write wins.
type FirstPassAnalysis struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	UUID               string           `gorm:"uniqueIndex;not null" json:"uuid"`
	IncidentID         uint             `gorm:"uniqueIndex;not null" json:"incident_id"`
	AnalysisData       JSONB            `gorm:"type:jsonb" json:"analysis_data"`
	IdentifiedHazards  StringList       `gorm:"type:jsonb" json:"identified_hazards"`
	PotentialCauses    StringList       `gorm:"type:jsonb" json:"potential_causes"`
	RecommendedActions StringList       `gorm:"type:jsonb" json:"recommended_actions"`
	ConfidenceScore    float64          `json:"confidence_score"`
	ProcessingStatus   ProcessingStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"processing_status"`
	CreatedBy          string           `json:"created_by"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`

	Incident Incident `gorm:"foreignKey:IncidentID" json:"-"`
}

// TableName overrides the table name
func (FirstPassAnalysis) TableName() string {
	return "ai_analysis_first_pass"
}

// HumanReview is one reviewer decision on a first-pass analysis. Every
// submission inserts a new row; there is no update in place.
type HumanReview struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	UUID              string       `gorm:"uniqueIndex;not null" json:"uuid"`
	IncidentID        uint         `gorm:"not null;index" json:"incident_id"`
	AnalysisID        uint         `gorm:"not null;index" json:"analysis_id"`
	ReviewerID        string       `gorm:"not null" json:"reviewer_id"`
	ReviewStatus      ReviewStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"review_status"`
	ReviewerNotes     string       `gorm:"type:text" json:"reviewer_notes"`
	Corrections       JSONB        `gorm:"type:jsonb" json:"corrections"`
	ApprovedHazards   StringList   `gorm:"type:jsonb" json:"approved_hazards"`
	ApprovedCauses    StringList   `gorm:"type:jsonb" json:"approved_causes"`
	AdditionalActions StringList   `gorm:"type:jsonb" json:"additional_actions"`
	ReviewedAt        *time.Time   `json:"reviewed_at"`
	CreatedAt         time.Time    `json:"created_at"`

	Incident Incident          `gorm:"foreignKey:IncidentID" json:"-"`
	Analysis FirstPassAnalysis `gorm:"foreignKey:AnalysisID" json:"-"`
}

// TableName overrides the table name
func (HumanReview) TableName() string {
	return "human_reviews"
}

// SecondPassAnalysis is the deep root-cause analysis produced after an
// approved human review. At most one exists per review (unique index on
// human_review_id, same insert-or-fetch discipline as the first pass).
type SecondPassAnalysis struct {
	ID                  uint             `gorm:"primaryKey" json:"id"`
	UUID                string           `gorm:"uniqueIndex;not null" json:"uuid"`
	IncidentID          uint             `gorm:"not null;index" json:"incident_id"`
	FirstPassID         uint             `gorm:"not null;index" json:"first_pass_id"`
	HumanReviewID       uint             `gorm:"uniqueIndex;not null" json:"human_review_id"`
	RefinedAnalysis     JSONB            `gorm:"type:jsonb" json:"refined_analysis"`
	RootCauseAnalysis   JSONB            `gorm:"type:jsonb" json:"root_cause_analysis"`
	ContributingFactors StringList       `gorm:"type:jsonb" json:"contributing_factors"`
	ImmediateCauses     StringList       `gorm:"type:jsonb" json:"immediate_causes"`
	RootCauses          StringList       `gorm:"type:jsonb" json:"root_causes"`
	CorrectiveActions   RawList          `gorm:"type:jsonb" json:"corrective_actions"`
	PreventiveActions   RawList          `gorm:"type:jsonb" json:"preventive_actions"`
	ProcessingStatus    ProcessingStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"processing_status"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`

	Incident  Incident          `gorm:"foreignKey:IncidentID" json:"-"`
	FirstPass FirstPassAnalysis `gorm:"foreignKey:FirstPassID" json:"-"`
	Review    HumanReview       `gorm:"foreignKey:HumanReviewID" json:"-"`
}

// TableName overrides the table name
func (SecondPassAnalysis) TableName() string {
	return "ai_analysis_second_pass"
}

// RCAReport is the formal investigation report. One per incident, upserted
// in place rather than versioned.
type RCAReport struct {
	ID                    uint         `gorm:"primaryKey" json:"id"`
	UUID                  string       `gorm:"uniqueIndex;not null" json:"uuid"`
	IncidentID            uint         `gorm:"uniqueIndex;not null" json:"incident_id"`
	ReportNumber          string       `gorm:"uniqueIndex;size:32" json:"report_number"`
	SecondPassID          uint         `gorm:"not null;index" json:"second_pass_id"`
	ExecutiveSummary      string       `gorm:"type:text" json:"executive_summary"`
	IncidentDetails       JSONB        `gorm:"type:jsonb" json:"incident_details"`
	InvestigationFindings JSONB        `gorm:"type:jsonb" json:"investigation_findings"`
	RootCauseTree         JSONB        `gorm:"type:jsonb" json:"root_cause_tree"`
	Recommendations       JSONB        `gorm:"type:jsonb" json:"recommendations"`
	ComplianceReferences  StringList   `gorm:"type:jsonb" json:"compliance_references"`
	ReportStatus          ReportStatus `gorm:"type:varchar(20);not null;default:'draft'" json:"report_status"`
	GeneratedBy           string       `json:"generated_by"`
	ApprovedBy            string       `json:"approved_by"`
	ApprovedAt            *time.Time   `json:"approved_at"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`

	Incident   Incident           `gorm:"foreignKey:IncidentID" json:"-"`
	SecondPass SecondPassAnalysis `gorm:"foreignKey:SecondPassID" json:"-"`
}

// TableName overrides the table name
func (RCAReport) TableName() string {
	return "rca_reports"
}

// AuditAction is the closed enumeration of audit event names
type AuditAction string

const (
	AuditIncidentCreated     AuditAction = "INCIDENT_CREATED"
	AuditDocumentUploaded    AuditAction = "DOCUMENT_UPLOADED"
	AuditDocumentProcessed   AuditAction = "DOCUMENT_PROCESSED"
	AuditFirstPassCompleted  AuditAction = "AI_ANALYSIS_FIRST_PASS_COMPLETED"
	AuditReviewCompleted     AuditAction = "HUMAN_REVIEW_COMPLETED"
	AuditSecondPassCompleted AuditAction = "AI_ANALYSIS_SECOND_PASS_COMPLETED"
	AuditReportGenerated     AuditAction = "RCA_REPORT_GENERATED"
	AuditReportApproved      AuditAction = "RCA_REPORT_APPROVED"
	AuditProcessingExpired   AuditAction = "PROCESSING_DEADLINE_EXPIRED"
)

// AuditLog is an append-only record of a state-changing action.
// Rows are never updated or deleted.
type AuditLog struct {
	ID            uint        `gorm:"primaryKey" json:"id"`
	IncidentID    *uint       `gorm:"index" json:"incident_id"`
	ActionType    AuditAction `gorm:"type:varchar(64);not null;index" json:"action_type"`
	ActionDetails JSONB       `gorm:"type:jsonb" json:"action_details"`
	EntityType    string      `gorm:"type:varchar(64);not null" json:"entity_type"`
	EntityID      string      `gorm:"type:varchar(64);index" json:"entity_id"`
	PerformedBy   string      `gorm:"type:varchar(128)" json:"performed_by"`
	IPAddress     string      `gorm:"type:varchar(64)" json:"ip_address"`
	UserAgent     string      `gorm:"type:varchar(255)" json:"user_agent"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TableName overrides the table name
func (AuditLog) TableName() string {
	return "audit_logs"
}
