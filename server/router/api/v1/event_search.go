package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mozaika/eventsearch/server/queryengine"
	"github.com/mozaika/eventsearch/server/retrieval"
	"github.com/mozaika/eventsearch/store"
)

// CategoryResponse is one vocabulary entry.
type CategoryResponse struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// EventResponse is the wire form of an event.
type EventResponse struct {
	UID           string     `json:"uid"`
	SourceType    string     `json:"source_type"`
	SourceURL     string     `json:"source_url"`
	PostedAt      *time.Time `json:"posted_at"`
	OccursFrom    *time.Time `json:"occurs_from"`
	OccursTo      *time.Time `json:"occurs_to"`
	DeadlineAt    *time.Time `json:"deadline_at"`
	Language      string     `json:"language"`
	Title         string     `json:"title"`
	Organizer     *string    `json:"organizer"`
	City          *string    `json:"city"`
	Country       *string    `json:"country"`
	IsRemote      *bool      `json:"is_remote"`
	ApplyURL      *string    `json:"apply_url"`
	Status        string     `json:"status"`
	CategorySlugs []string   `json:"categories_slugs"`
}

// SearchResponse is one page of filtered search hits.
type SearchResponse struct {
	Hits  []EventResponse `json:"hits"`
	Page  int             `json:"page"`
	Size  int             `json:"size"`
	Total int64           `json:"total"`
}

// AISearchRequest is the body of POST /ai/search.
type AISearchRequest struct {
	Query         string             `json:"query"`
	TopK          int                `json:"top_k"`
	ProfileInline *retrieval.Profile `json:"profile_inline"`
}

// ScoredEventResponse is an AI search hit with its ranking scores.
type ScoredEventResponse struct {
	EventResponse
	Score      float64 `json:"score"`
	MatchScore float64 `json:"match_score"`
	MatchTier  string  `json:"match_tier"`
}

// AISearchResponse is the AI search result.
type AISearchResponse struct {
	Hits       []ScoredEventResponse `json:"hits"`
	ChatAnswer string                `json:"chat_answer"`
}

// SearchEvents performs structured filter search.
// GET /search
func (s *APIV1Service) SearchEvents(c echo.Context) error {
	req, err := parseSearchRequest(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result, err := s.Searcher.FilteredSearch(c.Request().Context(), req)
	if err != nil {
		if isValidationError(err) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		slog.Error("filtered search failed", slog.Any("err", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "search failed"})
	}

	hits := make([]EventResponse, 0, len(result.Hits))
	for _, event := range result.Hits {
		hits = append(hits, convertEvent(event))
	}
	return c.JSON(http.StatusOK, SearchResponse{
		Hits:  hits,
		Page:  result.Page,
		Size:  result.Size,
		Total: result.Total,
	})
}

// AISearch performs semantic search with profile-aware ranking.
// POST /ai/search
func (s *APIV1Service) AISearch(c echo.Context) error {
	if !s.aiLimiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
	}

	var req AISearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "query is required"})
	}

	result, err := s.Searcher.SemanticSearch(c.Request().Context(), req.Query, req.TopK, req.ProfileInline)
	if err != nil {
		slog.Error("semantic search failed", slog.Any("err", err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "search failed"})
	}

	hits := make([]ScoredEventResponse, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, ScoredEventResponse{
			EventResponse: convertEvent(hit.Event),
			Score:         hit.Similarity,
			MatchScore:    hit.MatchScore,
			MatchTier:     string(hit.MatchTier),
		})
	}
	return c.JSON(http.StatusOK, AISearchResponse{
		Hits:       hits,
		ChatAnswer: result.ChatAnswer,
	})
}

func convertEvent(event *store.Event) EventResponse {
	return EventResponse{
		UID:           event.UID,
		SourceType:    event.SourceType,
		SourceURL:     event.SourceURL,
		PostedAt:      event.PostedAt,
		OccursFrom:    event.OccursFrom,
		OccursTo:      event.OccursTo,
		DeadlineAt:    event.DeadlineAt,
		Language:      event.Language,
		Title:         event.Title,
		Organizer:     event.Organizer,
		City:          event.City,
		Country:       event.Country,
		IsRemote:      event.IsRemote,
		ApplyURL:      event.ApplyURL,
		Status:        string(event.Status),
		CategorySlugs: event.CategorySlugs,
	}
}

// parseSearchRequest maps query parameters onto the planner request. Invalid
// scalar values are errors, not silent defaults.
func parseSearchRequest(c echo.Context) (*queryengine.Request, error) {
	req := &queryengine.Request{}

	req.Query = optionalParam(c, "q")
	req.City = optionalParam(c, "city")
	req.Country = optionalParam(c, "country")
	req.Language = optionalParam(c, "language")
	req.Status = optionalParam(c, "status")
	req.SortBy = c.QueryParam("sort_by")
	req.Order = c.QueryParam("order")

	// The category filter is a repeated parameter; a comma-separated
	// "categories" form is accepted as an alias.
	req.Categories = append(req.Categories, c.QueryParams()["category"]...)
	if raw := c.QueryParam("categories"); raw != "" {
		req.Categories = append(req.Categories, strings.Split(raw, ",")...)
	}

	var err error
	if req.IsRemote, err = parseBoolParam(c, "is_remote"); err != nil {
		return nil, err
	}
	if req.Page, err = parseIntParam(c, "page"); err != nil {
		return nil, err
	}
	if req.Size, err = parseIntParam(c, "size"); err != nil {
		return nil, err
	}
	if req.PostedFrom, err = parseTimeParam(c, "posted_from"); err != nil {
		return nil, err
	}
	if req.PostedTo, err = parseTimeParam(c, "posted_to"); err != nil {
		return nil, err
	}
	if req.OccursFrom, err = parseTimeParam(c, "occurs_from"); err != nil {
		return nil, err
	}
	if req.OccursTo, err = parseTimeParam(c, "occurs_to"); err != nil {
		return nil, err
	}
	if req.DeadlineBefore, err = parseTimeParam(c, "deadline_before"); err != nil {
		return nil, err
	}
	if req.DeadlineAfter, err = parseTimeParam(c, "deadline_after"); err != nil {
		return nil, err
	}
	return req, nil
}

func optionalParam(c echo.Context, name string) *string {
	if value := c.QueryParam(name); value != "" {
		return &value
	}
	return nil
}

func parseBoolParam(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errInvalidParam(name, raw)
	}
	return &value, nil
}

func errInvalidParam(name, value string) error {
	return errors.Errorf("invalid value %q for parameter %q", value, name)
}

func isValidationError(err error) bool {
	return queryengine.IsValidationError(err)
}

func parseIntParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errInvalidParam(name, raw)
	}
	return value, nil
}

// parseTimeParam accepts RFC 3339 timestamps and bare dates.
func parseTimeParam(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	return nil, errInvalidParam(name, raw)
}
