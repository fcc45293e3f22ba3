package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownEvent = errors.New("unknown stream event type")

// Stream event type names as the server sends them.
const (
	EventInitialPartners = "initial_partners"
	EventPartnersUpdate  = "partners_update"
	EventHabitUpdate     = "habit_update"
)

// StreamEvent is the decoded form of one server-push event. The set is
// closed: InitialPartnersEvent, PartnersUpdateEvent, HabitUpdateEvent.
type StreamEvent interface {
	streamEvent()
}

// InitialPartnersEvent carries the full partner list sent on every new
// connection.
type InitialPartnersEvent struct {
	Partners []Partner
}

// PartnersUpdateEvent carries a full replacement of the partner list.
// It is handled identically to InitialPartnersEvent.
type PartnersUpdateEvent struct {
	Partners []Partner
}

// HabitUpdateEvent is a ping: some partner habit changed. The payload
// carries no habit data, only the arrival time matters.
type HabitUpdateEvent struct {
	At time.Time
}

func (InitialPartnersEvent) streamEvent() {}
func (PartnersUpdateEvent) streamEvent()  {}
func (HabitUpdateEvent) streamEvent()     {}

// DecodeStreamEvent turns a named event and its raw payload into a
// typed StreamEvent. A decode failure is scoped to the single event;
// callers drop it and keep the channel alive.
func DecodeStreamEvent(name string, data []byte, now time.Time) (StreamEvent, error) {
	switch name {
	case EventInitialPartners:
		var partners []Partner
		if err := json.Unmarshal(data, &partners); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", name, err)
		}
		return InitialPartnersEvent{Partners: partners}, nil
	case EventPartnersUpdate:
		var partners []Partner
		if err := json.Unmarshal(data, &partners); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", name, err)
		}
		return PartnersUpdateEvent{Partners: partners}, nil
	case EventHabitUpdate:
		return HabitUpdateEvent{At: now}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}
