// Package feed provides the normalized event model and the source
// connectors that produce it (news APIs, social mention feeds).
// Connectors are thin I/O wrappers: they fetch raw payloads and
// normalize them into read-only Event records for the pipeline.
package feed

import (
	"context"
	"time"
)

// Event is one normalized unit of news/social input. Events are
// immutable once produced by a connector; the pipeline reads them only.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Asset     string            `json:"asset,omitempty"`
	Source    string            `json:"source"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Sentiment *float64          `json:"sentiment,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Source is a connector to an external event provider.
type Source interface {
	// Connect establishes the connection or session.
	Connect(ctx context.Context) error
	// Fetch downloads events for the period. A zero time means
	// "unbounded" on that side.
	Fetch(ctx context.Context, start, end time.Time) ([]Event, error)
	// Close releases the connection.
	Close() error
}
