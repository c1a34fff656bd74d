package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestHubDeliversToMatchingOrgOnly(t *testing.T) {
	hub := NewHub()
	chA, cancelA := hub.Subscribe("org-a", 4)
	defer cancelA()
	chB, cancelB := hub.Subscribe("org-b", 4)
	defer cancelB()

	entry := Entry{
		ID:      uuid.New(),
		OrgID:   "org-a",
		Type:    TypeBookingCreated,
		Payload: json.RawMessage(`{}`),
	}
	if err := hub.Handle(context.Background(), entry); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	select {
	case got := <-chA:
		if got.ID != entry.ID {
			t.Fatalf("unexpected entry: %#v", got)
		}
	default:
		t.Fatal("expected org-a subscriber to receive the entry")
	}

	select {
	case got := <-chB:
		t.Fatalf("org-b subscriber must not receive org-a events, got %#v", got)
	default:
	}
}

func TestHubSkipsFullSubscribers(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("org-a", 1)
	defer cancel()

	first := Entry{ID: uuid.New(), OrgID: "org-a", Type: TypeBookingCreated}
	second := Entry{ID: uuid.New(), OrgID: "org-a", Type: TypeBookingRescheduled}

	// Both sends must return without blocking; the second is dropped.
	if err := hub.Handle(context.Background(), first); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if err := hub.Handle(context.Background(), second); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	got := <-ch
	if got.ID != first.ID {
		t.Fatalf("expected first entry, got %#v", got)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected second entry to be dropped, got %#v", extra)
	default:
	}
}

func TestHubCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("org-a", 1)

	cancel()
	// Cancel is idempotent.
	cancel()

	if _, open := <-ch; open {
		t.Fatal("expected channel to be closed after cancel")
	}

	// Delivery after cancel is a no-op, not a panic.
	if err := hub.Handle(context.Background(), Entry{ID: uuid.New(), OrgID: "org-a"}); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
}
