// Package publisher announces completed analyses to downstream consumers.
package publisher

import (
	"context"
	"time"
)

// EventAnalysisCompleted is the event type attribute of completion messages.
const EventAnalysisCompleted = "analysis.completed"

// Publisher sends an event payload to a topic and returns the message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, event AnalysisCompleted) (string, error)
}

// AnalysisCompleted is emitted after results are computed and persisted.
type AnalysisCompleted struct {
	Type       string    `json:"type"`
	AnalysisID string    `json:"analysisId"`
	UserID     string    `json:"userId"`
	Kind       string    `json:"kind"`
	Domains    []string  `json:"domains"`
	Count      int       `json:"count"`
	Mock       bool      `json:"mock"`
	Dropped    int       `json:"dropped,omitempty"`
	RunID      string    `json:"runId,omitempty"`
	ArchiveURI string    `json:"archiveUri,omitempty"`
	Stored     bool      `json:"stored"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Attributes returns the message attributes used for subscription filtering.
func (e AnalysisCompleted) Attributes() map[string]string {
	typ := e.Type
	if typ == "" {
		typ = EventAnalysisCompleted
	}
	mock := "false"
	if e.Mock {
		mock = "true"
	}
	return map[string]string{
		"event_type": typ,
		"kind":       e.Kind,
		"user_id":    e.UserID,
		"mock":       mock,
	}
}
