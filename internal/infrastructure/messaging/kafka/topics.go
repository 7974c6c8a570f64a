package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/LandQuant-Intelligence/pkg/errors"
)

// Topic names. Analysis and mismatch events are keyed by quantum id so one
// quantum's history stays ordered within its partition; scan events are keyed
// by scan id.
const (
	TopicAnalysisRecorded = "landquant.analysis.recorded"
	TopicMismatchDetected = "landquant.mismatch.detected"
	TopicScanSubmitted    = "landquant.scan.submitted"
)

// schemaVersion stamps every envelope; bump on breaking payload changes.
const schemaVersion = "v1"

// ─────────────────────────────────────────────────────────────────────────────
// EventEnvelope
// ─────────────────────────────────────────────────────────────────────────────

// EventEnvelope is the common wire frame around every published payload.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEventEnvelope wraps a payload for publishing. The event type doubles as
// the topic name.
func NewEventEnvelope(eventType, source string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event payload")
	}
	return &EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		SchemaVersion: schemaVersion,
		Payload:       data,
	}, nil
}

// Encode renders the envelope as JSON.
func (e *EventEnvelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal event envelope")
	}
	return data, nil
}

// DecodeEnvelope parses a received envelope.
func DecodeEnvelope(data []byte) (*EventEnvelope, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal event envelope")
	}
	return &env, nil
}

// DecodePayload parses the envelope payload into target.
func (e *EventEnvelope) DecodePayload(target interface{}) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return errors.New(errors.ErrCodeSerialization, "event payload is empty")
	}
	if err := json.Unmarshal(e.Payload, target); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to unmarshal event payload")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Payloads
// ─────────────────────────────────────────────────────────────────────────────

// MismatchDetectedPayload is published once per detected mismatch. Severity
// and category mirror the stored analysis record.
type MismatchDetectedPayload struct {
	QuantumID  string    `json:"quantum_id"`
	Profile    string    `json:"profile"`
	Category   string    `json:"category"`
	Severity   float64   `json:"severity"`
	Detail     string    `json:"detail"`
	DetectedAt time.Time `json:"detected_at"`
}

// ScanSubmittedPayload announces an accepted bulk scan.
type ScanSubmittedPayload struct {
	ScanID           string    `json:"scan_id"`
	Profile          string    `json:"profile"`
	ResolutionMeters int       `json:"resolution_meters"`
	QuantumCount     int       `json:"quantum_count"`
	SubmittedAt      time.Time `json:"submitted_at"`
}
