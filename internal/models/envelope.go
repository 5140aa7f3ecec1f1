package models

import (
	"time"
)

// Envelope sources
const (
	SourceHTTP  = "http"
	SourceKafka = "kafka"
)

// Envelope wraps a Detection with internal metadata for the alerting workflow
type Envelope struct {
	// Original detection
	Detection *Detection `json:"detection"`

	// Internal processing metadata
	ID         string    `json:"id"`
	ReceivedAt time.Time `json:"received_at"`
	Source     string    `json:"source"`
	BatchID    string    `json:"batch_id,omitempty"`
	BatchIndex int       `json:"batch_index,omitempty"`
}

// NewEnvelope creates a new envelope wrapping a detection
func NewEnvelope(id string, detection *Detection, source string) *Envelope {
	return &Envelope{
		Detection:  detection,
		ID:         id,
		ReceivedAt: time.Now().UTC(),
		Source:     source,
	}
}

// WithBatch sets batch metadata on the envelope
func (e *Envelope) WithBatch(batchID string, index int) *Envelope {
	e.BatchID = batchID
	e.BatchIndex = index
	return e
}
