// Package extractor turns raw announcement text into structured attributes
// using the LLM capability, and clamps that untrusted output into the
// canonical schema.
package extractor

import "time"

// Extraction is the LLM-extracted event data. Field values are untrusted
// until passed through Normalize.
type Extraction struct {
	Title         string     `json:"title"`
	Language      string     `json:"language"`
	City          *string    `json:"city"`
	Country       *string    `json:"country"`
	IsRemote      *bool      `json:"is_remote"`
	Organizer     *string    `json:"organizer"`
	ApplyURL      *string    `json:"apply_url"`
	OccursFrom    *time.Time `json:"occurs_from"`
	OccursTo      *time.Time `json:"occurs_to"`
	DeadlineAt    *time.Time `json:"deadline_at"`
	Status        string     `json:"status"`
	CategorySlugs []string   `json:"categories_slugs"`
}

// QueryIntent is the LLM-parsed search intent for AI search.
type QueryIntent struct {
	City                *string    `json:"city"`
	Country             *string    `json:"country"`
	Language            *string    `json:"language"`
	IsRemote            *bool      `json:"is_remote"`
	DateFrom            *time.Time `json:"date_from"`
	DateTo              *time.Time `json:"date_to"`
	CategorySlugs       []string   `json:"categories_slugs"`
	TopK                int        `json:"top_k"`
	UserQueryRewritten  string     `json:"user_query_rewritten"`
}
