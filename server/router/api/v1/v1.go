// Package v1 exposes the HTTP API: health, filtered search, AI search,
// category listing and Prometheus metrics.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mozaika/eventsearch/internal/profile"
	"github.com/mozaika/eventsearch/server/middleware"
	"github.com/mozaika/eventsearch/server/retrieval"
	"github.com/mozaika/eventsearch/store"
)

// APIV1Service wires the search and catalog endpoints.
type APIV1Service struct {
	Profile  *profile.Profile
	Store    *store.Store
	Searcher *retrieval.Searcher

	aiLimiter *middleware.RateLimiter
}

func NewAPIV1Service(profile *profile.Profile, st *store.Store, searcher *retrieval.Searcher) *APIV1Service {
	return &APIV1Service{
		Profile:  profile,
		Store:    st,
		Searcher: searcher,
		// AI search fans out to LLM and embedding providers; keep abusive
		// clients from draining the quota.
		aiLimiter: middleware.NewRateLimiter(5, 10),
	}
}

// Register mounts all routes on the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	e.GET("/health", s.GetHealth)
	e.GET("/search", s.SearchEvents)
	e.POST("/ai/search", s.AISearch)
	e.GET("/categories", s.ListCategories)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// GetHealth reports service and database health.
// GET /health
func (s *APIV1Service) GetHealth(c echo.Context) error {
	if err := s.Store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// ListCategories returns the category vocabulary.
// GET /categories
func (s *APIV1Service) ListCategories(c echo.Context) error {
	categories, err := s.Store.ListCategories(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list categories"})
	}
	resp := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		resp = append(resp, CategoryResponse{Slug: category.Slug, Name: category.Name})
	}
	return c.JSON(http.StatusOK, resp)
}
