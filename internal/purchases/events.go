package purchases

import (
	"encoding/json"
	"time"
)

const (
	EventOwnerAlert = "OwnerAlert"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // intent correlation key
	Payload       json.RawMessage `json:"payload"`
}

// OwnerAlertPayload is an in-app style notice for the business owner.
type OwnerAlertPayload struct {
	Kind           Kind   `json:"kind"`
	CorrelationKey string `json:"correlation_key"`
	Title          string `json:"title"`
	Content        string `json:"content"`
}
