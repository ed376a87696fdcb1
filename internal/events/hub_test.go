package events

import (
	"testing"
)

func TestHub_DeliversToIncidentSubscribers(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("incident-a")
	defer cancel()

	hub.Publish(Event{Type: EventFirstPassCompleted, IncidentID: "incident-a", EntityID: "analysis-1"})

	select {
	case event := <-ch:
		if event.Type != EventFirstPassCompleted || event.EntityID != "analysis-1" {
			t.Errorf("unexpected event: %+v", event)
		}
		if event.Timestamp.IsZero() {
			t.Error("published events should be timestamped")
		}
	default:
		t.Fatal("expected a delivered event")
	}
}

func TestHub_DoesNotCrossIncidents(t *testing.T) {
	hub := NewHub()
	chA, cancelA := hub.Subscribe("incident-a")
	defer cancelA()
	chB, cancelB := hub.Subscribe("incident-b")
	defer cancelB()

	hub.Publish(Event{Type: EventStatusChanged, IncidentID: "incident-a"})

	if len(chA) != 1 {
		t.Errorf("expected the event on incident-a's channel, got %d", len(chA))
	}
	if len(chB) != 0 {
		t.Errorf("incident-b should see nothing, got %d", len(chB))
	}
}

func TestHub_CancelRemovesSubscriber(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe("incident-a")

	if hub.SubscriberCount("incident-a") != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount("incident-a"))
	}
	cancel()
	if hub.SubscriberCount("incident-a") != 0 {
		t.Errorf("expected 0 subscribers after cancel, got %d", hub.SubscriberCount("incident-a"))
	}

	// Publishing to an empty incident is a no-op
	hub.Publish(Event{Type: EventStatusChanged, IncidentID: "incident-a"})
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("incident-a")
	defer cancel()

	// Fill the buffer past capacity; Publish must not block
	for i := 0; i < 40; i++ {
		hub.Publish(Event{Type: EventDocumentProcessed, IncidentID: "incident-a"})
	}

	if len(ch) != cap(ch) {
		t.Errorf("expected a full buffer of %d, got %d", cap(ch), len(ch))
	}
}
