package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Event outcomes recorded on the delivery audit trail.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

// EventRecord is the durable audit row for a webhook delivery. Failed
// handler outcomes land here so delivered-but-dropped events can be found
// and replayed by an operator; the core never retries them itself.
type EventRecord struct {
	ID         snowflake.ID   `gorm:"primaryKey" json:"id"`
	EventID    string         `gorm:"index" json:"event_id,omitempty"`
	Event      string         `gorm:"not null" json:"event"`
	Outcome    string         `gorm:"not null" json:"outcome"`
	Error      string         `json:"error,omitempty"`
	Payload    datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`
	ReceivedAt time.Time      `gorm:"not null" json:"received_at"`
}

func (EventRecord) TableName() string { return "webhook_events" }

// Ack is the acknowledgement returned to the gateway.
type Ack struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

type Service interface {
	// Ingest processes one webhook delivery: verify, deduplicate, route.
	// Individual handler failures are swallowed; only authentication and
	// envelope problems surface as errors.
	Ingest(ctx context.Context, rawBody []byte, sig string, eventID string) (Ack, error)
}

var (
	ErrMissingSignature = errors.New("missing_signature")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
)
