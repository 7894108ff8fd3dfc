package extractor

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSlugs = map[string]bool{
	"workshop":   true,
	"internship": true,
	"grant":      true,
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func TestNormalizeLanguageCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"uk", "uk"},
		{"UK", "uk"},
		{"ukr", "uk"},
		{"Ukrainian", "uk"},
		{"eng", "en"},
		{"pl", "pl"},
		{"xx", ""},
		{"german", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeLanguageCode(tt.input); got != tt.expected {
				t.Errorf("NormalizeLanguageCode(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeCountryCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"UA", "UA"},
		{"ua", "UA"},
		{"UKR", "UA"},
		{"Ukraine", "UA"},
		{"UK", "GB"},
		{"USA", "US"},
		{"PL", "PL"},
		{"U1", ""},
		{"XYZ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeCountryCode(tt.input); got != tt.expected {
				t.Errorf("NormalizeCountryCode(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeRejectsBadRecords(t *testing.T) {
	_, err := Normalize(&Extraction{Title: "", Language: "uk"}, testSlugs)
	assert.Error(t, err, "empty title should reject the record")

	_, err = Normalize(&Extraction{Title: "Some event", Language: "klingon"}, testSlugs)
	assert.Error(t, err, "unsupported language should reject the record")
}

func TestNormalizeTitleTruncation(t *testing.T) {
	long := strings.Repeat("word ", 40) // 200 chars
	normalized, err := Normalize(&Extraction{Title: long, Language: "en"}, testSlugs)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(normalized.Title)), TitleMaxLength)
	assert.True(t, strings.HasSuffix(normalized.Title, "..."))
}

func TestNormalizeDateOrdering(t *testing.T) {
	from := timePtr(time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC))
	to := timePtr(time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC))

	normalized, err := Normalize(&Extraction{
		Title:      "Workshop",
		Language:   "uk",
		OccursFrom: from,
		OccursTo:   to,
	}, testSlugs)
	require.NoError(t, err)
	assert.Equal(t, from, normalized.OccursFrom, "start bound survives")
	assert.Nil(t, normalized.OccursTo, "violating end bound is dropped")
}

func TestNormalizeDropsUnknownSlugs(t *testing.T) {
	normalized, err := Normalize(&Extraction{
		Title:         "Workshop",
		Language:      "uk",
		CategorySlugs: []string{"workshop", "time-travel", "grant"},
	}, testSlugs)
	require.NoError(t, err)
	assert.Equal(t, []string{"workshop", "grant"}, normalized.CategorySlugs)
}

func TestNormalizeFieldCleanup(t *testing.T) {
	normalized, err := Normalize(&Extraction{
		Title:    "Grant call",
		Language: "en",
		Country:  strPtr("Ukraine"),
		City:     strPtr("  Kyiv "),
		ApplyURL: strPtr("not a url"),
		Status:   "pending",
	}, testSlugs)
	require.NoError(t, err)
	assert.Equal(t, "UA", *normalized.Country)
	assert.Equal(t, "Kyiv", *normalized.City)
	assert.Nil(t, normalized.ApplyURL)
	assert.Equal(t, "active", normalized.Status)
}

func TestUnmarshalResponseStripsCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"bare json", `{"title":"T","language":"uk"}`},
		{"fenced", "```\n{\"title\":\"T\",\"language\":\"uk\"}\n```"},
		{"fenced with language tag", "```json\n{\"title\":\"T\",\"language\":\"uk\"}\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var extraction Extraction
			require.NoError(t, unmarshalResponse(tt.response, &extraction))
			assert.Equal(t, "T", extraction.Title)
		})
	}
}
