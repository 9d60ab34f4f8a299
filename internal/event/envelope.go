package event

import (
	"encoding/json"
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeTokenCreated
	EventTypeTransfer
	EventTypeApproval
	EventTypeLiquidityAdded
	EventTypeTokensPurchased
	EventTypeTokensSold
	EventTypeArtistCreated
	EventTypeSharesPurchased
	EventTypeSharesSold
	EventTypeNativeDeposited
	EventTypeNativeWithdrawn
)

// EventEnvelope wraps every committed operation in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by the exchange core
	Sequence int64

	// Caller-supplied dedup key, or a generated one for plain API calls
	IdempotencyKey string

	EventType EventType

	// Subject routes the event: "asset.<id>", "artist.<id>" or "account.<id>"
	Subject string

	Timestamp time.Time

	// JSON-encoded event payload
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads implement
type Event interface {
	EventType() EventType

	// Subject returns the routing key of the entity the event is about
	Subject() string
}

// NewEnvelope encodes evt into an envelope. Hash fields are filled by the caller.
func NewEnvelope(sequence int64, idempotencyKey string, ts time.Time, evt Event) (*EventEnvelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return &EventEnvelope{
		Sequence:       sequence,
		IdempotencyKey: idempotencyKey,
		EventType:      evt.EventType(),
		Subject:        evt.Subject(),
		Timestamp:      ts,
		Payload:        payload,
	}, nil
}

var eventTypeNames = map[EventType]string{
	EventTypeTokenCreated:    "TokenCreated",
	EventTypeTransfer:        "Transfer",
	EventTypeApproval:        "Approval",
	EventTypeLiquidityAdded:  "LiquidityAdded",
	EventTypeTokensPurchased: "TokensPurchased",
	EventTypeTokensSold:      "TokensSold",
	EventTypeArtistCreated:   "ArtistCreated",
	EventTypeSharesPurchased: "SharesPurchased",
	EventTypeSharesSold:      "SharesSold",
	EventTypeNativeDeposited: "NativeDeposited",
	EventTypeNativeWithdrawn: "NativeWithdrawn",
}

func (et EventType) String() string {
	if s, ok := eventTypeNames[et]; ok {
		return s
	}
	return "Unknown"
}

// ParseEventType is the inverse of EventType.String.
func ParseEventType(s string) (EventType, bool) {
	for et, name := range eventTypeNames {
		if name == s {
			return et, true
		}
	}
	return EventTypeUnknown, false
}
