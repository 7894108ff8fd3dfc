package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/mozaika/eventsearch/store"
)

// eventColumns are the columns selected for every event row, qualified with
// the "e" alias, plus the aggregated category slugs.
const eventColumns = `
	e.id, e.uid, e.source_type, e.source_url, e.discovered_at, e.posted_at,
	e.occurs_from, e.occurs_to, e.deadline_at, e.language, e.title, e.raw_text,
	e.organizer, e.city, e.country, e.is_remote, e.apply_url,
	e.status, e.dedupe_fingerprint, e.created_ts, e.updated_ts,
	COALESCE((
		SELECT array_agg(c.slug ORDER BY c.slug)
		FROM event_category ec
		JOIN category c ON ec.category_id = c.id
		WHERE ec.event_id = e.id
	), '{}')`

func scanEvent(scan func(dest ...any) error) (*store.Event, error) {
	var event store.Event
	var slugs pq.StringArray
	err := scan(
		&event.ID,
		&event.UID,
		&event.SourceType,
		&event.SourceURL,
		&event.DiscoveredAt,
		&event.PostedAt,
		&event.OccursFrom,
		&event.OccursTo,
		&event.DeadlineAt,
		&event.Language,
		&event.Title,
		&event.RawText,
		&event.Organizer,
		&event.City,
		&event.Country,
		&event.IsRemote,
		&event.ApplyURL,
		&event.Status,
		&event.DedupeFingerprint,
		&event.CreatedTs,
		&event.UpdatedTs,
		&slugs,
	)
	if err != nil {
		return nil, err
	}
	event.CategorySlugs = slugs
	return &event, nil
}

// buildEventFilter translates a FindEvent into WHERE clauses and args.
// Clauses are conjunctive; the category clause matches ANY of the slugs.
func buildEventFilter(find *store.FindEvent, args []any) ([]string, []any) {
	where := []string{"1 = 1"}
	if find == nil {
		return where, args
	}

	if find.Status != nil {
		where, args = append(where, "e.status = "+placeholder(len(args)+1)), append(args, string(*find.Status))
	}
	if find.Query != nil {
		where, args = append(where,
			"to_tsvector('simple', e.title || ' ' || e.raw_text) @@ plainto_tsquery('simple', "+placeholder(len(args)+1)+")"),
			append(args, *find.Query)
	}
	if find.City != nil {
		where, args = append(where, "e.city = "+placeholder(len(args)+1)), append(args, *find.City)
	}
	if find.Country != nil {
		where, args = append(where, "e.country = "+placeholder(len(args)+1)), append(args, *find.Country)
	}
	if find.Language != nil {
		where, args = append(where, "e.language = "+placeholder(len(args)+1)), append(args, *find.Language)
	}
	if find.IsRemote != nil {
		where, args = append(where, "e.is_remote = "+placeholder(len(args)+1)), append(args, *find.IsRemote)
	}
	if len(find.CategorySlugs) > 0 {
		where, args = append(where, `EXISTS (
			SELECT 1 FROM event_category ec
			JOIN category c ON ec.category_id = c.id
			WHERE ec.event_id = e.id AND c.slug = ANY(`+placeholder(len(args)+1)+`)
		)`), append(args, pq.Array(find.CategorySlugs))
	}
	if find.PostedFrom != nil {
		where, args = append(where, "e.posted_at >= "+placeholder(len(args)+1)), append(args, *find.PostedFrom)
	}
	if find.PostedTo != nil {
		where, args = append(where, "e.posted_at <= "+placeholder(len(args)+1)), append(args, *find.PostedTo)
	}
	if find.DeadlineBefore != nil {
		where, args = append(where, "e.deadline_at <= "+placeholder(len(args)+1)), append(args, *find.DeadlineBefore)
	}
	if find.DeadlineAfter != nil {
		where, args = append(where, "e.deadline_at >= "+placeholder(len(args)+1)), append(args, *find.DeadlineAfter)
	}

	// Occurrence filter is a window overlap when both bounds are given.
	switch {
	case find.OccursFrom != nil && find.OccursTo != nil:
		where, args = append(where,
			"(e.occurs_from <= "+placeholder(len(args)+1)+" AND e.occurs_to >= "+placeholder(len(args)+2)+")"),
			append(args, *find.OccursTo, *find.OccursFrom)
	case find.OccursFrom != nil:
		where, args = append(where, "e.occurs_to >= "+placeholder(len(args)+1)), append(args, *find.OccursFrom)
	case find.OccursTo != nil:
		where, args = append(where, "e.occurs_from <= "+placeholder(len(args)+1)), append(args, *find.OccursTo)
	}

	return where, args
}

// UpsertEvent inserts an event keyed by its dedupe fingerprint. On conflict
// the temporal bounds and status of the existing row are refreshed; a
// concurrent duplicate lands as an update, never an error.
func (d *DB) UpsertEvent(ctx context.Context, upsert *store.UpsertEvent) (*store.Event, bool, error) {
	stmt := `
		INSERT INTO event (
			id, uid, source_type, source_url, discovered_at, posted_at,
			occurs_from, occurs_to, deadline_at, language, title, raw_text,
			organizer, city, country, is_remote, apply_url,
			embedding, status, dedupe_fingerprint
		) VALUES (` + placeholders(20) + `)
		ON CONFLICT (dedupe_fingerprint)
		DO UPDATE SET
			updated_ts = EXTRACT(EPOCH FROM NOW())::BIGINT,
			status = EXCLUDED.status,
			occurs_from = EXCLUDED.occurs_from,
			occurs_to = EXCLUDED.occurs_to,
			deadline_at = EXCLUDED.deadline_at
		RETURNING id, uid, created_ts, updated_ts, (xmax = 0) AS is_new
	`

	var event store.Event
	var isNew bool
	err := d.db.QueryRowContext(ctx, stmt,
		uuid.New().String(),
		upsert.UID,
		upsert.SourceType,
		upsert.SourceURL,
		upsert.DiscoveredAt,
		upsert.PostedAt,
		upsert.OccursFrom,
		upsert.OccursTo,
		upsert.DeadlineAt,
		upsert.Language,
		upsert.Title,
		upsert.RawText,
		upsert.Organizer,
		upsert.City,
		upsert.Country,
		upsert.IsRemote,
		upsert.ApplyURL,
		pgvector.NewVector(upsert.Embedding),
		string(upsert.Status),
		upsert.DedupeFingerprint,
	).Scan(&event.ID, &event.UID, &event.CreatedTs, &event.UpdatedTs, &isNew)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to upsert event")
	}

	event.SourceType = upsert.SourceType
	event.SourceURL = upsert.SourceURL
	event.DiscoveredAt = upsert.DiscoveredAt
	event.PostedAt = upsert.PostedAt
	event.OccursFrom = upsert.OccursFrom
	event.OccursTo = upsert.OccursTo
	event.DeadlineAt = upsert.DeadlineAt
	event.Language = upsert.Language
	event.Title = upsert.Title
	event.RawText = upsert.RawText
	event.Organizer = upsert.Organizer
	event.City = upsert.City
	event.Country = upsert.Country
	event.IsRemote = upsert.IsRemote
	event.ApplyURL = upsert.ApplyURL
	event.Embedding = upsert.Embedding
	event.Status = upsert.Status
	event.DedupeFingerprint = upsert.DedupeFingerprint
	return &event, isNew, nil
}

// GetEventByFingerprint returns the event with the given fingerprint, or nil
// when no such event exists.
func (d *DB) GetEventByFingerprint(ctx context.Context, fingerprint string) (*store.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM event e WHERE e.dedupe_fingerprint = ` + placeholder(1)

	event, err := scanEvent(d.db.QueryRowContext(ctx, query, fingerprint).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get event by fingerprint")
	}
	return event, nil
}

// ListEvents runs the structured filter query and returns one page plus the
// total match count.
func (d *DB) ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, int64, error) {
	where, args := buildEventFilter(find, []any{})

	countQuery := `SELECT COUNT(*) FROM event e WHERE ` + strings.Join(where, " AND ")
	var total int64
	if err := d.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count events")
	}

	query := `SELECT ` + eventColumns + ` FROM event e WHERE ` + strings.Join(where, " AND ")
	query += orderClause(find)
	if find != nil && find.Limit > 0 {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, find.Limit)
		if find.Offset > 0 {
			query += " OFFSET " + placeholder(len(args)+1)
			args = append(args, find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list events")
	}
	defer rows.Close()

	list := []*store.Event{}
	for rows.Next() {
		event, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan event")
		}
		list = append(list, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

// orderClause builds the ORDER BY for a filter query. The sort key is
// validated upstream by the query planner; unknown values fall back to
// posted_at descending. A secondary id sort keeps pagination stable.
func orderClause(find *store.FindEvent) string {
	sortBy := store.SortByPostedAt
	order := store.OrderDesc
	if find != nil {
		if find.SortBy != "" {
			sortBy = find.SortBy
		}
		if find.Order != "" {
			order = find.Order
		}
	}

	column := "e.posted_at"
	switch sortBy {
	case store.SortByDeadlineAt:
		column = "e.deadline_at"
	case store.SortByOccursFrom:
		column = "e.occurs_from"
	}

	direction := "DESC"
	if order == store.OrderAsc {
		direction = "ASC"
	}
	return " ORDER BY " + column + " " + direction + " NULLS LAST, e.id ASC"
}

// VectorSearchEvents performs cosine similarity search using pgvector.
// Filter predicates are applied inside the query (pre-filtering), so every
// returned candidate satisfies them; the trade-off is reduced recall when the
// filtered subset is smaller than the requested k.
func (d *DB) VectorSearchEvents(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.EventWithScore, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 12
	}

	vector := pgvector.NewVector(opts.Vector)
	args := []any{vector}
	where, args := buildEventFilter(opts.Filter, args)

	// The <=> operator computes cosine distance (1 - cosine similarity),
	// so ordering by distance ascending yields most similar first.
	query := `
		SELECT ` + eventColumns + `,
			1 - (e.embedding <=> ` + placeholder(1) + `) AS score
		FROM event e
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY e.embedding <=> ` + placeholder(len(args)+1) + `
		LIMIT ` + placeholder(len(args)+2)
	args = append(args, vector, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search events")
	}
	defer rows.Close()

	results := []*store.EventWithScore{}
	for rows.Next() {
		var result store.EventWithScore
		var event store.Event
		var slugs pq.StringArray
		err := rows.Scan(
			&event.ID,
			&event.UID,
			&event.SourceType,
			&event.SourceURL,
			&event.DiscoveredAt,
			&event.PostedAt,
			&event.OccursFrom,
			&event.OccursTo,
			&event.DeadlineAt,
			&event.Language,
			&event.Title,
			&event.RawText,
			&event.Organizer,
			&event.City,
			&event.Country,
			&event.IsRemote,
			&event.ApplyURL,
			&event.Status,
			&event.DedupeFingerprint,
			&event.CreatedTs,
			&event.UpdatedTs,
			&slugs,
			&result.Score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		event.CategorySlugs = slugs
		result.Event = &event
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
