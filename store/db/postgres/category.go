package postgres

import (
	"context"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mozaika/eventsearch/store"
)

// ListCategories lists the controlled vocabulary, ordered by slug.
func (d *DB) ListCategories(ctx context.Context) ([]*store.Category, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, slug, name FROM category ORDER BY slug`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list categories")
	}
	defer rows.Close()

	list := []*store.Category{}
	for rows.Next() {
		var category store.Category
		if err := rows.Scan(&category.ID, &category.Slug, &category.Name); err != nil {
			return nil, errors.Wrap(err, "failed to scan category")
		}
		list = append(list, &category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// ReplaceEventCategories replaces the event's category associations with the
// given slug set. Slugs not present in the vocabulary are ignored. Running it
// twice with the same input yields the same association set.
func (d *DB) ReplaceEventCategories(ctx context.Context, eventID string, slugs []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM event_category WHERE event_id = $1`, eventID,
	); err != nil {
		return errors.Wrap(err, "failed to clear event categories")
	}

	if len(slugs) > 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO event_category (event_id, category_id)
			SELECT $1, id FROM category WHERE slug = ANY($2)
			ON CONFLICT DO NOTHING
		`, eventID, pq.Array(slugs)); err != nil {
			return errors.Wrap(err, "failed to link event categories")
		}
	}

	return tx.Commit()
}
