// Package queue abstracts the inbound transport that delivers scraped posts.
// The ingestion pipeline only sees batches of items and acknowledges or
// releases them; delivery guarantees and redelivery timing belong to the
// transport.
package queue

import (
	"context"
	"time"
)

// Metadata carries the provenance fields of an inbound message.
type Metadata struct {
	SourceType string `json:"source_type"`
	SourceURL  string `json:"source_url"`
}

// InboundMessage is a scraped post as produced by the scraper.
type InboundMessage struct {
	SourceID   int64      `json:"source_id"`
	RunID      int64      `json:"run_id"`
	ExternalID string     `json:"external_id"`
	Text       string     `json:"text"`
	PostedAt   *time.Time `json:"posted_at"`
	Author     *string    `json:"author"`
	Metadata   Metadata   `json:"metadata"`
}

// Item is one in-flight delivery. Receipt is the transport-specific handle
// needed to acknowledge it.
type Item struct {
	Message InboundMessage
	Receipt any
}

// Transport is the inbound queue abstraction. Implementations provide
// at-least-once delivery: an item that is released (or never acknowledged)
// will be redelivered later.
type Transport interface {
	// FetchBatch blocks until at least one item is available or the context
	// is done, then returns up to max items.
	FetchBatch(ctx context.Context, max int) ([]*Item, error)

	// Ack marks the item fully processed; it will not be redelivered.
	Ack(ctx context.Context, item *Item) error

	// Release returns the item to the transport for future redelivery.
	Release(ctx context.Context, item *Item) error

	Close() error
}
