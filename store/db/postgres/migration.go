package postgres

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// schemaStatements builds the schema applied idempotently on startup. The
// embedding column width comes from the configured embedding dimensions, so
// the table always matches the vectors the embedding capability produces.
// The category vocabulary is seed-only: ingestion never adds to it.
func schemaStatements(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS event (
		id UUID PRIMARY KEY,
		uid TEXT NOT NULL UNIQUE,
		source_type TEXT NOT NULL,
		source_url TEXT NOT NULL,
		discovered_at TIMESTAMPTZ NOT NULL,
		posted_at TIMESTAMPTZ,
		occurs_from TIMESTAMPTZ,
		occurs_to TIMESTAMPTZ,
		deadline_at TIMESTAMPTZ,
		language CHAR(2) NOT NULL,
		title VARCHAR(120) NOT NULL,
		raw_text TEXT NOT NULL,
		organizer TEXT,
		city TEXT,
		country CHAR(2),
		is_remote BOOLEAN,
		apply_url TEXT,
		embedding VECTOR(%d) NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		dedupe_fingerprint TEXT NOT NULL UNIQUE,
		created_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
		updated_ts BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	)`, dimensions),
		`CREATE TABLE IF NOT EXISTS category (
			id SERIAL PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS event_category (
			event_id UUID NOT NULL REFERENCES event(id) ON DELETE CASCADE,
			category_id INTEGER NOT NULL REFERENCES category(id) ON DELETE CASCADE,
			PRIMARY KEY (event_id, category_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_event_status_posted_at ON event (status, posted_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_event_city ON event (city)`,
		`CREATE INDEX IF NOT EXISTS idx_event_deadline_at ON event (deadline_at)`,
		`CREATE INDEX IF NOT EXISTS idx_event_fulltext ON event
			USING GIN (to_tsvector('simple', title || ' ' || raw_text))`,
		`CREATE INDEX IF NOT EXISTS idx_event_embedding ON event
			USING hnsw (embedding vector_cosine_ops)`,
	}
}

// seedCategories is the default controlled vocabulary.
var seedCategories = map[string]string{
	"workshop":     "Workshop",
	"internship":   "Internship",
	"grant":        "Grant",
	"scholarship":  "Scholarship",
	"hackathon":    "Hackathon",
	"conference":   "Conference",
	"course":       "Course",
	"volunteering": "Volunteering",
	"job":          "Job",
	"meetup":       "Meetup",
}

// Migrate applies the schema and seeds the category vocabulary.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements(d.profile.EmbeddingDimensions) {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "failed to apply schema statement")
		}
	}

	for slug, name := range seedCategories {
		_, err := d.db.ExecContext(ctx,
			`INSERT INTO category (slug, name) VALUES ($1, $2) ON CONFLICT (slug) DO NOTHING`,
			slug, name,
		)
		if err != nil {
			return errors.Wrapf(err, "failed to seed category %s", slug)
		}
	}

	return nil
}
