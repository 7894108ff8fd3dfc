package db

import (
	"github.com/pkg/errors"

	"github.com/mozaika/eventsearch/internal/profile"
	"github.com/mozaika/eventsearch/store"
	"github.com/mozaika/eventsearch/store/db/postgres"
)

// NewDBDriver creates a new db driver based on profile.
// PostgreSQL is the only supported backend: similarity search depends on the
// pgvector extension.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	driver, err := postgres.NewDB(profile)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
