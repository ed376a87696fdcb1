package services

import (
	"fmt"
	"strings"

	"github.com/safetrace/safetrace/internal/config"
	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/utils"
)

const firstPassSystemPrompt = `You are an expert HSE incident investigator with 20+ years of experience. You analyze incidents methodically and provide actionable insights.`

// buildFirstPassPrompt assembles the hazard analysis prompt from the
// incident and its extracted document text. Inputs are truncated to the
// configured limits so the prompt stays within the model's context.
func buildFirstPassPrompt(incident *database.Incident, documents []database.IncidentDocument, limits config.PromptLimits) string {
	var docSections []string
	for i, doc := range documents {
		if i >= limits.MaxDocuments {
			break
		}
		ocrText := utils.Truncate(utils.FirstNonEmpty(doc.OCRText, "N/A"), limits.OCRChars)
		aiDesc := utils.Truncate(utils.FirstNonEmpty(doc.AIDescription, "N/A"), limits.CaptionChars)
		docSections = append(docSections, fmt.Sprintf("Document: %s\nOCR Text: %s\nAI Description: %s",
			doc.FileName, ocrText, aiDesc))
	}

	documentsContext := strings.Join(docSections, "\n\n")
	if documentsContext == "" {
		documentsContext = "No documents attached"
	}

	description := utils.Truncate(incident.Description, limits.DescriptionChars)

	return fmt.Sprintf(`You are an expert HSE (Health, Safety, and Environment) incident investigator. Perform a comprehensive first-pass analysis of this incident.

**INCIDENT DETAILS:**
Type: %s
Severity: %s
Date: %s
Location: %s
Title: %s
Description: %s

**SUPPORTING DOCUMENTS:**
%s

**YOUR TASK:**
Provide a structured analysis in JSON format with the following fields:

1. **identifiedHazards**: Array of specific hazards identified (5-10 items)
2. **potentialCauses**: Array of potential root causes (5-10 items, ranked by likelihood)
3. **recommendedActions**: Array of immediate and investigative actions (5-10 items)
4. **confidenceScore**: Your confidence in this analysis (0.0 to 1.0)
5. **analysisData**: Detailed analysis object containing:
   - summary: Brief executive summary
   - timeline: Inferred timeline of events
   - peopleInvolved: Roles/positions involved
   - equipmentInvolved: Equipment, machinery, or tools involved
   - environmentalFactors: Weather, lighting, noise, etc.
   - humanFactors: Training, fatigue, communication issues
   - organizationalFactors: Procedures, supervision, safety culture
   - complianceGaps: Potential regulatory or standard violations
   - similarIncidents: Note if this appears similar to common incident patterns

**CRITICAL REQUIREMENTS:**
- Be objective and evidence-based
- Flag areas requiring human expert review
- Note any missing information critical to the investigation
- Consider both immediate and underlying causes
- Reference relevant safety standards (OSHA, ISO 45001, etc.) where applicable

Return ONLY valid JSON, no additional text.`,
		incident.IncidentType,
		incident.Severity,
		incident.IncidentDate.Format("2006-01-02T15:04:05Z07:00"),
		incident.Location,
		incident.Title,
		description,
		documentsContext)
}
