package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all the methods that the store needs to implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error

	UpsertEvent(ctx context.Context, upsert *UpsertEvent) (*Event, bool, error)
	GetEventByFingerprint(ctx context.Context, fingerprint string) (*Event, error)
	ListEvents(ctx context.Context, find *FindEvent) ([]*Event, int64, error)
	VectorSearchEvents(ctx context.Context, opts *VectorSearchOptions) ([]*EventWithScore, error)

	ReplaceEventCategories(ctx context.Context, eventID string, slugs []string) error
	ListCategories(ctx context.Context) ([]*Category, error)
}
