// Package queryengine turns raw filter parameters into a validated store
// query. It owns pagination and sort defaults; anything it cannot interpret
// is an error for the caller to surface, not a silent fallback.
package queryengine

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/mozaika/eventsearch/server/extractor"
	"github.com/mozaika/eventsearch/store"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ValidationError marks a request the planner refused. Callers map it to a
// client error rather than a server failure.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// IsValidationError reports whether err originates from request validation.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Request holds the raw, untrusted filter parameters of a search call.
type Request struct {
	Query          *string
	City           *string
	Country        *string
	Language       *string
	IsRemote       *bool
	Categories     []string
	PostedFrom     *time.Time
	PostedTo       *time.Time
	OccursFrom     *time.Time
	OccursTo       *time.Time
	DeadlineBefore *time.Time
	DeadlineAfter  *time.Time
	Status         *string

	SortBy string
	Order  string
	Page   int
	Size   int
}

// Plan validates the request and builds the store query. Pagination is
// 1-based; page size defaults to DefaultPageSize and is capped at
// MaxPageSize. Without an explicit status filter only active events are
// returned. A reversed date window keeps the lower bound and drops the
// upper one.
func Plan(req *Request) (*store.FindEvent, error) {
	if req == nil {
		req = &Request{}
	}

	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, validationErrorf("page must be >= 1, got %d", page)
	}
	size := req.Size
	if size == 0 {
		size = DefaultPageSize
	}
	if size < 1 {
		return nil, validationErrorf("size must be >= 1, got %d", size)
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	sortBy := store.SortByPostedAt
	if req.SortBy != "" {
		switch store.SortKey(req.SortBy) {
		case store.SortByPostedAt, store.SortByDeadlineAt, store.SortByOccursFrom:
			sortBy = store.SortKey(req.SortBy)
		default:
			return nil, validationErrorf("unknown sort key %q, expected one of posted_at, deadline_at, occurs_from", req.SortBy)
		}
	}
	order := store.OrderDesc
	if req.Order != "" {
		switch store.SortOrder(strings.ToLower(req.Order)) {
		case store.OrderAsc, store.OrderDesc:
			order = store.SortOrder(strings.ToLower(req.Order))
		default:
			return nil, validationErrorf("unknown sort order %q, expected asc or desc", req.Order)
		}
	}

	find := &store.FindEvent{
		SortBy: sortBy,
		Order:  order,
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if req.Query != nil {
		if q := strings.TrimSpace(*req.Query); q != "" {
			find.Query = &q
		}
	}
	if req.City != nil {
		if city := strings.TrimSpace(*req.City); city != "" {
			find.City = &city
		}
	}
	if req.Country != nil && strings.TrimSpace(*req.Country) != "" {
		country := extractor.NormalizeCountryCode(*req.Country)
		if country == "" {
			return nil, validationErrorf("unknown country code %q", *req.Country)
		}
		find.Country = &country
	}
	if req.Language != nil && strings.TrimSpace(*req.Language) != "" {
		language := extractor.NormalizeLanguageCode(*req.Language)
		if language == "" {
			return nil, validationErrorf("unsupported language code %q", *req.Language)
		}
		find.Language = &language
	}
	find.IsRemote = req.IsRemote

	for _, slug := range req.Categories {
		if slug = strings.TrimSpace(slug); slug != "" {
			find.CategorySlugs = append(find.CategorySlugs, slug)
		}
	}

	if req.Status != nil {
		switch status := store.EventStatus(*req.Status); status {
		case store.EventStatusActive, store.EventStatusExpired, store.EventStatusRemoved:
			find.Status = &status
		default:
			return nil, validationErrorf("unknown status %q", *req.Status)
		}
	} else {
		// Expired and removed events stay out of results unless asked for.
		active := store.EventStatusActive
		find.Status = &active
	}

	find.PostedFrom, find.PostedTo = clampWindow("posted", req.PostedFrom, req.PostedTo)
	find.OccursFrom, find.OccursTo = clampWindow("occurs", req.OccursFrom, req.OccursTo)
	find.DeadlineAfter, find.DeadlineBefore = clampWindow("deadline", req.DeadlineAfter, req.DeadlineBefore)

	return find, nil
}

// clampWindow drops the upper bound of a reversed date window.
func clampWindow(name string, from, to *time.Time) (*time.Time, *time.Time) {
	if from != nil && to != nil && from.After(*to) {
		slog.Warn("dropping reversed date window bound",
			slog.String("window", name), slog.Time("from", *from), slog.Time("to", *to))
		return from, nil
	}
	return from, to
}
