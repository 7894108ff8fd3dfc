package extractor

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// Limits of the canonical schema.
const (
	TitleMaxLength = 120
)

// supportedLanguages is the fixed ISO-639-1 vocabulary. Extraction output
// naming any other language is rejected as a whole record.
var supportedLanguages = map[string]bool{
	"uk": true, "en": true, "pl": true, "ru": true, "de": true,
	"fr": true, "es": true, "cs": true, "sk": true,
}

var languageAliases = map[string]string{
	"ukr":       "uk",
	"ukrainian": "uk",
	"eng":       "en",
	"english":   "en",
	"pol":       "pl",
	"polish":    "pl",
	"rus":       "ru",
	"russian":   "ru",
}

var countryAliases = map[string]string{
	"UKR":            "UA",
	"UKRAINE":        "UA",
	"POL":            "PL",
	"POLAND":         "PL",
	"USA":            "US",
	"UNITED STATES":  "US",
	"GBR":            "GB",
	"UK":             "GB",
	"UNITED KINGDOM": "GB",
}

// NormalizeLanguageCode maps a raw language value to an ISO-639-1 code.
// Returns "" for values outside the supported set.
func NormalizeLanguageCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if mapped, ok := languageAliases[code]; ok {
		code = mapped
	}
	if supportedLanguages[code] {
		return code
	}
	return ""
}

// NormalizeCountryCode maps a raw country value to ISO-3166-1 alpha-2.
// Returns "" for values it cannot map.
func NormalizeCountryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if mapped, ok := countryAliases[code]; ok {
		return mapped
	}
	if len(code) == 2 && code[0] >= 'A' && code[0] <= 'Z' && code[1] >= 'A' && code[1] <= 'Z' {
		return code
	}
	return ""
}

// TruncateTitle shortens a title to max runes on a word boundary, appending
// an ellipsis when truncation happens.
func TruncateTitle(title string, max int) string {
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}

	const suffix = "..."
	cut := max - len(suffix)
	truncated := string(runes[:cut])
	if idx := strings.LastIndex(truncated, " "); idx > 0 {
		truncated = truncated[:idx]
	}
	return truncated + suffix
}

// Normalize validates and clamps untrusted extraction output into the
// canonical schema. Field-level problems are repaired in place (truncated,
// dropped); only an unusable record as a whole produces an error.
func Normalize(extraction *Extraction, knownSlugs map[string]bool) (*Extraction, error) {
	if extraction == nil {
		return nil, errors.New("extraction is nil")
	}

	result := *extraction

	result.Title = strings.TrimSpace(result.Title)
	if result.Title == "" {
		return nil, errors.New("extraction has no title")
	}
	result.Title = TruncateTitle(result.Title, TitleMaxLength)

	result.Language = NormalizeLanguageCode(result.Language)
	if result.Language == "" {
		return nil, errors.Errorf("unsupported language %q", extraction.Language)
	}

	if result.Country != nil {
		if country := NormalizeCountryCode(*result.Country); country != "" {
			result.Country = &country
		} else {
			slog.Warn("dropping unrecognized country code", "country", *result.Country)
			result.Country = nil
		}
	}

	if result.City != nil {
		city := strings.TrimSpace(*result.City)
		if city == "" {
			result.City = nil
		} else {
			result.City = &city
		}
	}

	// A reversed occurrence window keeps the start and drops the end; the
	// record itself survives.
	if result.OccursFrom != nil && result.OccursTo != nil && result.OccursFrom.After(*result.OccursTo) {
		slog.Warn("dropping occurs_to before occurs_from",
			"occurs_from", result.OccursFrom, "occurs_to", result.OccursTo)
		result.OccursTo = nil
	}

	if result.ApplyURL != nil {
		if u, err := url.Parse(*result.ApplyURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			slog.Warn("dropping invalid apply url", "apply_url", *result.ApplyURL)
			result.ApplyURL = nil
		}
	}

	switch result.Status {
	case "active", "expired", "removed":
	default:
		result.Status = "active"
	}

	// Unknown category slugs are dropped, never auto-created.
	valid := make([]string, 0, len(result.CategorySlugs))
	for _, slug := range result.CategorySlugs {
		if knownSlugs[slug] {
			valid = append(valid, slug)
		} else {
			slog.Warn("dropping unknown category slug", "slug", slug)
		}
	}
	result.CategorySlugs = valid

	return &result, nil
}
