package services

import (
	"encoding/json"
	"fmt"

	"github.com/safetrace/safetrace/internal/database"
	"github.com/safetrace/safetrace/internal/utils"
)

const secondPassSystemPrompt = `You are a senior HSE investigator with expertise in Root Cause Analysis, OSHA regulations, and ISO 45001. You produce formal, compliance-grade investigation reports.`

func jsonOr(v interface{}, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil || v == nil {
		return fallback
	}
	return string(data)
}

// buildSecondPassPrompt assembles the refined RCA prompt from the incident,
// the first-pass analysis, and the approving human review.
func buildSecondPassPrompt(incident *database.Incident, firstPass *database.FirstPassAnalysis, review *database.HumanReview) string {
	return fmt.Sprintf(`You are an expert HSE incident investigator performing a refined Root Cause Analysis (RCA). You are working with human expert feedback to produce a comprehensive, formal investigation.

**INCIDENT DETAILS:**
Type: %s
Severity: %s
Date: %s
Location: %s
Title: %s
Description: %s

**FIRST PASS AI ANALYSIS:**
Identified Hazards: %s
Potential Causes: %s
Recommended Actions: %s
Analysis Data: %s

**HUMAN EXPERT REVIEW:**
Review Status: %s
Reviewer Notes: %s
Approved Hazards: %s
Approved Causes: %s
Additional Actions: %s
Corrections: %s

**YOUR TASK:**
Produce a comprehensive RCA following the "5 Whys" and "Fishbone" methodologies. Return a JSON object with:

1. **refinedAnalysis**: Object containing:
   - executiveSummary: 2-3 paragraph summary for leadership
   - incidentSequence: Detailed timeline of events
   - evidenceReview: Summary of all evidence considered
   - witnessAccounts: Note about witness information if available
   - investigationMethodology: Methods used in this investigation

2. **rootCauseAnalysis**: Object following structured RCA:
   - fiveWhysAnalysis: Array of 5 progressive "why" questions and answers
   - fishboneDiagram: Object with categories (People, Process, Equipment, Environment, Management) and factors
   - barrierAnalysis: What barriers failed or were missing
   - energyTraceAnalysis: Energy sources and controls (if applicable)

3. **contributingFactors**: Array of 5-10 contributing factors
4. **immediateCauses**: Array of 3-7 immediate/direct causes
5. **rootCauses**: Array of 2-5 underlying root causes
6. **correctiveActions**: Array of 5-10 specific corrective actions with:
   - action: Description
   - responsibility: Who should implement
   - timeline: Suggested timeframe
   - priority: high/medium/low

7. **preventiveActions**: Array of 5-10 preventive measures to prevent recurrence
8. **complianceReferences**: Array of relevant standards (OSHA, ISO 45001, industry-specific)

**CRITICAL REQUIREMENTS:**
- Incorporate all human reviewer feedback and corrections
- Use approved hazards and causes from the human review
- Follow formal RCA methodology
- Be specific and actionable
- Reference relevant regulations and standards
- Consider systemic and organizational factors, not just individual actions
- Ensure recommendations follow the "hierarchy of controls" (Elimination, Substitution, Engineering, Administrative, PPE)

Return ONLY valid JSON, no additional text.`,
		incident.IncidentType,
		incident.Severity,
		incident.IncidentDate.Format("2006-01-02T15:04:05Z07:00"),
		incident.Location,
		incident.Title,
		utils.FirstNonEmpty(incident.Description, "No description"),
		jsonOr(firstPass.IdentifiedHazards, "[]"),
		jsonOr(firstPass.PotentialCauses, "[]"),
		jsonOr(firstPass.RecommendedActions, "[]"),
		jsonOr(firstPass.AnalysisData, "{}"),
		review.ReviewStatus,
		utils.FirstNonEmpty(review.ReviewerNotes, "None"),
		jsonOr(review.ApprovedHazards, "[]"),
		jsonOr(review.ApprovedCauses, "[]"),
		jsonOr(review.AdditionalActions, "[]"),
		jsonOr(review.Corrections, "{}"))
}
