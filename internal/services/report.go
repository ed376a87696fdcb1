package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/events"
	"github.com/safetrace/safetrace/internal/notify"
)

// Fixed baseline references appended to every report
var baselineComplianceReferences = []string{
	"OSHA General Duty Clause 5(a)(1)",
	"ISO 45001:2018 - Occupational Health and Safety Management Systems",
}

const investigationMethodology = "This investigation employed multiple Root Cause Analysis techniques including the 5 Whys method, Fishbone (Ishikawa) diagram analysis, and Barrier Analysis to identify underlying causes."

// ReportService assembles the formal RCA report from the completed
// workflow artifacts. Assembly is deterministic: no completion call is
// made, so regenerating from the same inputs yields the same report.
type ReportService struct {
	db       *gorm.DB
	audit    *AuditRecorder
	hub      *events.Hub
	notifier notify.Notifier
}

// NewReportService creates a report service
func NewReportService(db *gorm.DB, audit *AuditRecorder, hub *events.Hub, notifier notify.Notifier) *ReportService {
	return &ReportService{
		db:       db,
		audit:    audit,
		hub:      hub,
		notifier: notifier,
	}
}

// ReportContent is the assembled report body returned to the caller
type ReportContent struct {
	ExecutiveSummary      string                 `json:"executiveSummary"`
	IncidentDetails       map[string]interface{} `json:"incidentDetails"`
	InvestigationFindings map[string]interface{} `json:"investigationFindings"`
	RootCauseTree         map[string]interface{} `json:"rootCauseTree"`
	Recommendations       map[string]interface{} `json:"recommendations"`
	ComplianceReferences  []string               `json:"complianceReferences"`
}

// Generate assembles the report for the incident behind the given second
// pass. One report exists per incident; regeneration replaces its content
// and resets it to draft. Requires the second pass to be completed.
func (s *ReportService) Generate(secondPassUUID, performedBy string) (*database.RCAReport, *ReportContent, error) {
	secondPass, err := database.GetSecondPassByUUID(s.db, secondPassUUID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrSecondPassNotFound
		}
		return nil, nil, err
	}
	if secondPass.ProcessingStatus != database.ProcessingCompleted {
		return nil, nil, ErrSecondPassNotCompleted
	}

	var incident database.Incident
	if err := s.db.First(&incident, secondPass.IncidentID).Error; err != nil {
		return nil, nil, err
	}

	var review database.HumanReview
	hasReview := s.db.First(&review, secondPass.HumanReviewID).Error == nil

	content := assembleReport(&incident, secondPass, hasReview)

	report, err := s.upsert(&incident, secondPass, content, performedBy)
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(AuditEntry{
		IncidentID: &incident.ID,
		ActionType: database.AuditReportGenerated,
		Details: database.JSONB{
			"report_id":      report.UUID,
			"report_number":  report.ReportNumber,
			"second_pass_id": secondPass.UUID,
		},
		EntityType:  "rca_report",
		EntityID:    report.UUID,
		PerformedBy: performedBy,
	})

	s.hub.Publish(events.Event{
		Type:       events.EventReportGenerated,
		IncidentID: incident.UUID,
		EntityID:   report.UUID,
	})
	s.notifier.ReportGenerated(&incident, report.ReportNumber)

	return report, content, nil
}

// upsert writes the report content under the incident's single report
// slot. Concurrent first generations race on the incident_id unique index;
// the loser updates the winner's row.
func (s *ReportService) upsert(incident *database.Incident, secondPass *database.SecondPassAnalysis,
	content *ReportContent, performedBy string) (*database.RCAReport, error) {

	updates := map[string]interface{}{
		"second_pass_id":         secondPass.ID,
		"executive_summary":      content.ExecutiveSummary,
		"incident_details":       database.JSONB(content.IncidentDetails),
		"investigation_findings": database.JSONB(content.InvestigationFindings),
		"root_cause_tree":        database.JSONB(content.RootCauseTree),
		"recommendations":        database.JSONB(content.Recommendations),
		"compliance_references":  database.StringList(content.ComplianceReferences),
		"report_status":          database.ReportDraft,
	}

	existing, err := database.GetReportByIncidentID(s.db, incident.ID)
	if err == nil {
		if err := s.db.Model(existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return database.GetReportByIncidentID(s.db, incident.ID)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	report := database.RCAReport{
		UUID:                  uuid.NewString(),
		IncidentID:            incident.ID,
		ReportNumber:          database.NewReportNumber(time.Now()),
		SecondPassID:          secondPass.ID,
		ExecutiveSummary:      content.ExecutiveSummary,
		IncidentDetails:       content.IncidentDetails,
		InvestigationFindings: content.InvestigationFindings,
		RootCauseTree:         content.RootCauseTree,
		Recommendations:       content.Recommendations,
		ComplianceReferences:  content.ComplianceReferences,
		ReportStatus:          database.ReportDraft,
		GeneratedBy:           performedBy,
	}
	insertErr := s.db.Create(&report).Error
	if insertErr == nil {
		return &report, nil
	}
	if errors.Is(insertErr, gorm.ErrDuplicatedKey) {
		existing, err := database.GetReportByIncidentID(s.db, incident.ID)
		if err != nil {
			return nil, err
		}
		if err := s.db.Model(existing).Updates(updates).Error; err != nil {
			return nil, err
		}
		return database.GetReportByIncidentID(s.db, incident.ID)
	}
	return nil, insertErr
}

// Approve marks the report approved and closes the incident
func (s *ReportService) Approve(reportUUID, approvedBy string) (*database.RCAReport, error) {
	var report database.RCAReport
	if err := s.db.Where("uuid = ?", reportUUID).First(&report).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}

	var incident database.Incident
	if err := s.db.First(&incident, report.IncidentID).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.db.Model(&report).Updates(map[string]interface{}{
		"report_status": database.ReportApproved,
		"approved_by":   approvedBy,
		"approved_at":   &now,
	}).Error; err != nil {
		return nil, err
	}
	report.ReportStatus = database.ReportApproved
	report.ApprovedBy = approvedBy
	report.ApprovedAt = &now

	if err := AdvanceIncidentStatus(s.db, s.hub, &incident, database.IncidentStatusClosed); err != nil {
		log.Printf("ReportService: failed to close incident %s: %v", incident.IncidentNumber, err)
	}

	s.audit.Record(AuditEntry{
		IncidentID: &incident.ID,
		ActionType: database.AuditReportApproved,
		Details: database.JSONB{
			"report_id":     report.UUID,
			"report_number": report.ReportNumber,
		},
		EntityType:  "rca_report",
		EntityID:    report.UUID,
		PerformedBy: approvedBy,
	})

	s.notifier.IncidentClosed(&incident)

	return &report, nil
}

// assembleReport builds the report content from the second pass results
// and the incident record, filling any gaps with fixed placeholders.
func assembleReport(incident *database.Incident, secondPass *database.SecondPassAnalysis, hasReview bool) *ReportContent {
	executiveSummary := ""
	if v, ok := secondPass.RefinedAnalysis["executiveSummary"].(string); ok {
		executiveSummary = v
	}
	if executiveSummary == "" {
		executiveSummary = fmt.Sprintf(
			"This report presents the findings of the Root Cause Analysis investigation into incident %s. "+
				"The incident was classified as %s severity and occurred on %s. "+
				"Through systematic investigation using the 5 Whys and Fishbone methodologies, "+
				"%d root causes were identified, with %d corrective actions and %d preventive measures recommended.",
			incident.IncidentNumber,
			incident.Severity,
			incident.IncidentDate.Format("1/2/2006"),
			len(secondPass.RootCauses),
			len(secondPass.CorrectiveActions),
			len(secondPass.PreventiveActions))
	}

	incidentDetails := map[string]interface{}{
		"incidentNumber":    incident.IncidentNumber,
		"incidentType":      string(incident.IncidentType),
		"severity":          string(incident.Severity),
		"dateTime":          incident.IncidentDate.Format(time.RFC3339),
		"location":          incident.Location,
		"description":       incident.Description,
		"reportedBy":        incident.ReportedBy,
		"investigator":      incident.AssignedInvestigator,
		"investigationDate": time.Now().Format(time.RFC3339),
	}

	evidenceCollected := "Analysis included incident description, AI-assisted pattern recognition, and documentary evidence."
	if hasReview {
		evidenceCollected = "Analysis included incident description, human expert review, AI-assisted pattern recognition, and documentary evidence."
	}

	fiveWhys := secondPass.RootCauseAnalysis["fiveWhysAnalysis"]
	if fiveWhys == nil {
		fiveWhys = []interface{}{}
	}
	barrierAnalysis, ok := secondPass.RootCauseAnalysis["barrierAnalysis"]
	if !ok || barrierAnalysis == nil {
		barrierAnalysis = "Analysis of preventive barriers that failed or were absent."
	}

	investigationFindings := map[string]interface{}{
		"methodology":         investigationMethodology,
		"evidenceCollected":   evidenceCollected,
		"immediateCauses":     []string(secondPass.ImmediateCauses),
		"contributingFactors": []string(secondPass.ContributingFactors),
		"rootCauses":          []string(secondPass.RootCauses),
		"fiveWhysAnalysis":    fiveWhys,
		"barrierAnalysis":     barrierAnalysis,
	}

	fishbone, ok := secondPass.RootCauseAnalysis["fishboneDiagram"]
	if !ok || fishbone == nil {
		fishbone = map[string]interface{}{
			"People":      []interface{}{},
			"Process":     []interface{}{},
			"Equipment":   []interface{}{},
			"Environment": []interface{}{},
			"Management":  []interface{}{},
		}
	}

	rootCauseTree := map[string]interface{}{
		"fishboneDiagram": fishbone,
		"causalChain": map[string]interface{}{
			"incident":         incident.Title,
			"immediateCauses":  []string(secondPass.ImmediateCauses),
			"underlyingCauses": []string(secondPass.ContributingFactors),
			"rootCauses":       []string(secondPass.RootCauses),
		},
	}

	recommendations := map[string]interface{}{
		"correctiveActions": NormalizeCorrectiveActions(secondPass.CorrectiveActions),
		"preventiveActions": NormalizePreventiveActions(secondPass.PreventiveActions),
		"hierarchyOfControls": map[string]interface{}{
			"elimination":    []interface{}{},
			"substitution":   []interface{}{},
			"engineering":    []interface{}{},
			"administrative": []interface{}{},
			"ppe":            []interface{}{},
		},
	}

	var complianceReferences []string
	if refs, ok := secondPass.RootCauseAnalysis["complianceReferences"].([]interface{}); ok {
		for _, r := range refs {
			if s, ok := r.(string); ok {
				complianceReferences = append(complianceReferences, s)
			}
		}
	}
	complianceReferences = append(complianceReferences, baselineComplianceReferences...)

	return &ReportContent{
		ExecutiveSummary:      executiveSummary,
		IncidentDetails:       incidentDetails,
		InvestigationFindings: investigationFindings,
		RootCauseTree:         rootCauseTree,
		Recommendations:       recommendations,
		ComplianceReferences:  complianceReferences,
	}
}
