// Package notify posts workflow milestones to a Slack safety channel.
package notify

import (
	"fmt"
	"log"

	"github.com/slack-go/slack"

	"github.com/safetrace/safetrace/internal/database"
)

// Notifier sends out-of-band notifications for workflow milestones.
// All methods are best effort: failures are logged, never propagated.
type Notifier interface {
	AnalysisCompleted(incident *database.Incident, stage string)
	ReportGenerated(incident *database.Incident, reportNumber string)
	IncidentClosed(incident *database.Incident)
}

// SlackNotifier posts messages to a fixed safety channel
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackNotifier creates a notifier, or nil when no token is configured.
// A nil *SlackNotifier is safe to call; every method no-ops.
func NewSlackNotifier(botToken, channel string) *SlackNotifier {
	if botToken == "" {
		return nil
	}
	return &SlackNotifier{
		client:  slack.New(botToken),
		channel: channel,
	}
}

func (n *SlackNotifier) post(text string) {
	if n == nil {
		return
	}
	_, _, err := n.client.PostMessage(n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		log.Printf("SlackNotifier: failed to post message: %v", err)
	}
}

// AnalysisCompleted announces that an analysis stage finished
func (n *SlackNotifier) AnalysisCompleted(incident *database.Incident, stage string) {
	n.post(fmt.Sprintf(":mag: %s analysis completed for incident %s (%s, %s severity): %s",
		stage, incident.IncidentNumber, incident.IncidentType, incident.Severity, incident.Title))
}

// ReportGenerated announces that a formal RCA report was assembled
func (n *SlackNotifier) ReportGenerated(incident *database.Incident, reportNumber string) {
	n.post(fmt.Sprintf(":page_facing_up: RCA report %s generated for incident %s: %s",
		reportNumber, incident.IncidentNumber, incident.Title))
}

// IncidentClosed announces that an incident reached closed status
func (n *SlackNotifier) IncidentClosed(incident *database.Incident) {
	n.post(fmt.Sprintf(":white_check_mark: Incident %s closed: %s",
		incident.IncidentNumber, incident.Title))
}
