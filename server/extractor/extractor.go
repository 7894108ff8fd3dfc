package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/mozaika/eventsearch/plugin/ai"
)

const extractionPrompt = `Проаналізуй текст події та поверни JSON з наступними полями.

Доступні категорії (обирай лише з цього списку): %s

Поверни ЛИШЕ валідний JSON без пояснень:
{
  "title": "короткий заголовок (до 120 символів)",
  "language": "uk",
  "city": null або "Київ",
  "country": null або "UA",
  "is_remote": null або true або false,
  "organizer": null або "Назва організації",
  "apply_url": null або "https://...",
  "occurs_from": null або "2025-12-12T09:00:00Z",
  "occurs_to": null або "2025-12-12T17:00:00Z",
  "deadline_at": null або "2025-12-05T23:59:59Z",
  "status": "active",
  "categories_slugs": []
}

Правила:
- language (ОБОВ'ЯЗКОВО): ISO-639-1 код ('uk', 'en', 'pl')
- country: ISO-3166-1 alpha-2 ('UA', 'PL', null)
- Всі дати: ISO 8601 UTC
- is_remote=true для онлайн/дистанційних подій
- categories_slugs: лише зі списку вище, якщо невпевнений — []

Текст події:
%s`

const queryUnderstandingPrompt = `Проаналізуй запит користувача та поверни JSON з фільтрами пошуку.

Доступні категорії: %s

Поверни ЛИШЕ валідний JSON:
{
  "city": null або "Київ",
  "country": null або "UA",
  "language": null або "uk",
  "is_remote": null або true або false,
  "date_from": null або "2025-12-01T00:00:00Z",
  "date_to": null або "2025-12-31T23:59:59Z",
  "categories_slugs": [],
  "top_k": 12,
  "user_query_rewritten": "короткий переформульований запит"
}

Правила:
- Використовуй null для відсутньої інформації
- Нормалізуй категорії до канонічних слугів
- Всі дати: ISO 8601 UTC

Запит: %s

Профіль користувача: %s`

// Service extracts structured attributes from free text via the LLM
// capability. Transient-failure retries are owned by the caller; each method
// makes a single call.
type Service struct {
	llm            ai.LLMService
	knownSlugs     map[string]bool
	categoriesList string
}

// NewService creates the extraction service for a fixed category vocabulary.
func NewService(llm ai.LLMService, categorySlugs []string) *Service {
	known := make(map[string]bool, len(categorySlugs))
	for _, slug := range categorySlugs {
		known[slug] = true
	}
	return &Service{
		llm:            llm,
		knownSlugs:     known,
		categoriesList: strings.Join(categorySlugs, ", "),
	}
}

// KnownSlugs returns the vocabulary the service validates against.
func (s *Service) KnownSlugs() map[string]bool {
	return s.knownSlugs
}

// ExtractEventData extracts structured event data from raw text.
// The returned extraction is raw LLM output filtered to known category slugs;
// callers must pass it through Normalize before storage.
func (s *Service) ExtractEventData(ctx context.Context, rawText string) (*Extraction, error) {
	prompt := fmt.Sprintf(extractionPrompt, s.categoriesList, rawText)

	response, err := s.llm.Chat(ctx, []ai.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, errors.Wrap(err, "extraction call failed")
	}

	var extraction Extraction
	if err := unmarshalResponse(response, &extraction); err != nil {
		return nil, errors.Wrap(err, "failed to parse extraction response")
	}

	extraction.CategorySlugs = s.filterSlugs(extraction.CategorySlugs)
	return &extraction, nil
}

// UnderstandQuery parses a natural-language search query, plus an optional
// requester profile, into discrete filters. profile may be nil; it is
// serialized into the prompt as-is.
func (s *Service) UnderstandQuery(ctx context.Context, userQuery string, profile any) (*QueryIntent, error) {
	profileStr := "Немає"
	if profile != nil {
		if data, err := json.Marshal(profile); err == nil {
			profileStr = string(data)
		}
	}

	prompt := fmt.Sprintf(queryUnderstandingPrompt, s.categoriesList, userQuery, profileStr)

	response, err := s.llm.Chat(ctx, []ai.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, errors.Wrap(err, "query understanding call failed")
	}

	var intent QueryIntent
	if err := unmarshalResponse(response, &intent); err != nil {
		return nil, errors.Wrap(err, "failed to parse query intent response")
	}

	intent.CategorySlugs = s.filterSlugs(intent.CategorySlugs)
	if intent.UserQueryRewritten == "" {
		intent.UserQueryRewritten = userQuery
	}
	return &intent, nil
}

func (s *Service) filterSlugs(slugs []string) []string {
	valid := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if s.knownSlugs[slug] {
			valid = append(valid, slug)
		}
	}
	return valid
}

// unmarshalResponse strips markdown code fences the model may wrap around
// its JSON before decoding.
func unmarshalResponse(response string, v any) error {
	text := strings.TrimSpace(response)
	if strings.HasPrefix(text, "```") {
		parts := strings.SplitN(text, "```", 3)
		if len(parts) >= 2 {
			text = parts[1]
		}
		text = strings.TrimPrefix(text, "json")
		text = strings.TrimSpace(text)
	}
	return json.Unmarshal([]byte(text), v)
}
