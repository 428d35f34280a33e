package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event. The value is resolved once at the call site
// from the mutation's before/after state.
type EventType string

const (
	EventSlotCreated  EventType = "schedule.slot.created"
	EventSlotUpdated  EventType = "schedule.slot.updated"
	EventSlotCanceled EventType = "schedule.slot.canceled"

	EventTicketSaleOpened   EventType = "tickets.type.sale_opened"
	EventTicketSaleClosed   EventType = "tickets.type.sale_closed"
	EventTicketPhaseChanged EventType = "tickets.type.phase_changed"
)

// Event is the envelope handed to a Sink
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       EventType   `json:"event"`
	EntityID   uuid.UUID   `json:"entity_id"`
	EditionID  uuid.UUID   `json:"edition_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// NewEvent stamps a fresh envelope
func NewEvent(eventType EventType, entityID, editionID uuid.UUID, payload interface{}) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		EntityID:   entityID,
		EditionID:  editionID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

// ToJSON converts event to JSON
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetPartitionKey keeps all events of one entity on one partition
func (e Event) GetPartitionKey() string {
	return e.EntityID.String()
}
