package store

import (
	"context"
	"time"
)

// EventStatus is the lifecycle status of an event.
type EventStatus string

const (
	EventStatusActive  EventStatus = "active"
	EventStatusExpired EventStatus = "expired"
	EventStatusRemoved EventStatus = "removed"
)

// Event is the canonical announcement record.
type Event struct {
	ID  string
	UID string

	// Provenance
	SourceType   string
	SourceURL    string
	DiscoveredAt time.Time
	PostedAt     *time.Time

	// Temporal
	OccursFrom *time.Time
	OccursTo   *time.Time
	DeadlineAt *time.Time

	// Content
	Language string
	Title    string
	RawText  string

	// Location
	Organizer *string
	City      *string
	Country   *string
	IsRemote  *bool
	ApplyURL  *string

	// Embedding is the unit-normalized semantic vector of the event text.
	Embedding []float32

	Status             EventStatus
	DedupeFingerprint  string
	CategorySlugs      []string
	CreatedTs          int64
	UpdatedTs          int64
}

// UpsertEvent is the write payload for the fingerprint-keyed upsert.
type UpsertEvent struct {
	UID               string
	SourceType        string
	SourceURL         string
	DiscoveredAt      time.Time
	PostedAt          *time.Time
	OccursFrom        *time.Time
	OccursTo          *time.Time
	DeadlineAt        *time.Time
	Language          string
	Title             string
	RawText           string
	Organizer         *string
	City              *string
	Country           *string
	IsRemote          *bool
	ApplyURL          *string
	Embedding         []float32
	Status            EventStatus
	DedupeFingerprint string
}

// SortKey enumerates the allowed sort columns for filtered search.
type SortKey string

const (
	SortByPostedAt   SortKey = "posted_at"
	SortByDeadlineAt SortKey = "deadline_at"
	SortByOccursFrom SortKey = "occurs_from"
)

// SortOrder is the sort direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// FindEvent is the structured retrieval query produced by the query planner.
// All predicate fields are optional and conjunctive; CategorySlugs matches
// events having ANY of the given slugs.
type FindEvent struct {
	Query          *string
	City           *string
	Country        *string
	Language       *string
	IsRemote       *bool
	CategorySlugs  []string
	PostedFrom     *time.Time
	PostedTo       *time.Time
	OccursFrom     *time.Time
	OccursTo       *time.Time
	DeadlineBefore *time.Time
	DeadlineAfter  *time.Time
	Status         *EventStatus

	SortBy SortKey
	Order  SortOrder
	Limit  int
	Offset int
}

// EventWithScore is a vector search result with its similarity score.
type EventWithScore struct {
	Event *Event
	Score float32 // cosine similarity, higher is more similar
}

// VectorSearchOptions are the options for the k-nearest-neighbor query.
// Filter predicates are applied inside the similarity query (pre-filtering),
// so every candidate already satisfies them.
type VectorSearchOptions struct {
	Vector []float32
	Limit  int
	Filter *FindEvent
}

// UpsertEvent inserts the event or, on fingerprint conflict, refreshes the
// mutable attributes of the existing row. The returned bool reports whether a
// new row was created.
func (s *Store) UpsertEvent(ctx context.Context, upsert *UpsertEvent) (*Event, bool, error) {
	return s.driver.UpsertEvent(ctx, upsert)
}

// GetEventByFingerprint returns the event with the given fingerprint, or nil.
func (s *Store) GetEventByFingerprint(ctx context.Context, fingerprint string) (*Event, error) {
	return s.driver.GetEventByFingerprint(ctx, fingerprint)
}

// ListEvents runs a structured filter query and returns one page of events
// plus the total match count.
func (s *Store) ListEvents(ctx context.Context, find *FindEvent) ([]*Event, int64, error) {
	return s.driver.ListEvents(ctx, find)
}

// VectorSearchEvents performs similarity search over event embeddings.
func (s *Store) VectorSearchEvents(ctx context.Context, opts *VectorSearchOptions) ([]*EventWithScore, error) {
	return s.driver.VectorSearchEvents(ctx, opts)
}

// ReplaceEventCategories replaces the category associations of an event with
// the given slug set. Unknown slugs are ignored by the driver. Idempotent.
func (s *Store) ReplaceEventCategories(ctx context.Context, eventID string, slugs []string) error {
	return s.driver.ReplaceEventCategories(ctx, eventID, slugs)
}
