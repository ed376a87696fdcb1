// Package events pushes workflow state changes to subscribed clients so
// they do not have to busy-poll while extraction or analysis is running.
package events

import (
	"log"
	"sync"
	"time"
)

// EventType names a workflow state change
type EventType string

const (
	EventDocumentProcessed   EventType = "document_processed"
	EventDocumentFailed      EventType = "document_failed"
	EventFirstPassCompleted  EventType = "first_pass_completed"
	EventSecondPassCompleted EventType = "second_pass_completed"
	EventReportGenerated     EventType = "report_generated"
	EventStatusChanged       EventType = "status_changed"
)

// Event is one workflow state change for an incident
type Event struct {
	Type       EventType              `json:"type"`
	IncidentID string                 `json:"incident_id"`
	EntityID   string                 `json:"entity_id,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Hub fans workflow events out to per-incident subscribers
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{} // incident UUID -> subscribers
}

// NewHub creates an event hub
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers interest in one incident's events. The returned
// cancel func must be called when the subscriber goes away.
func (h *Hub) Subscribe(incidentUUID string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	if h.subs[incidentUUID] == nil {
		h.subs[incidentUUID] = make(map[chan Event]struct{})
	}
	h.subs[incidentUUID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[incidentUUID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, incidentUUID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to all subscribers of the incident.
// Slow subscribers are skipped rather than blocking the workflow.
func (h *Hub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[event.IncidentID] {
		select {
		case ch <- event:
		default:
			log.Printf("Events: dropping %s event for incident %s (slow subscriber)", event.Type, event.IncidentID)
		}
	}
}

// SubscriberCount returns the number of subscribers for an incident
func (h *Hub) SubscriberCount(incidentUUID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[incidentUUID])
}
