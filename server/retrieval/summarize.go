package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mozaika/eventsearch/plugin/ai"
)

// summaryContextSize is how many top hits feed the answer synthesis.
const summaryContextSize = 5

const (
	fallbackAnswerUK = "Знайдено події, які можуть вас зацікавити. Перегляньте результати вище."
	fallbackAnswerEN = "Found events that might interest you. Please review the results above."
)

const summaryPromptUK = `Користувач шукає: %s

Знайдені події:
%s

Поясни українською мовою, які події найкраще підходять під запит і чому. Будь лаконічним (2-3 речення).`

const summaryPromptEN = `User is searching for: %s

Found events:
%s

Explain which events best match the query and why. Be concise (2-3 sentences).`

// synthesizeAnswer asks the LLM to explain the top hits. Any failure falls
// back to a canned answer in the requested language.
func synthesizeAnswer(ctx context.Context, llm ai.LLMService, query string, hits []*ScoredEvent, language string) string {
	prompt := summaryPromptEN
	fallback := fallbackAnswerEN
	notGiven := "Not specified"
	labels := [3]string{"City", "Deadline", "Categories"}
	if language == "uk" {
		prompt = summaryPromptUK
		fallback = fallbackAnswerUK
		notGiven = "Не вказано"
		labels = [3]string{"Місто", "Дедлайн", "Категорії"}
	}

	var parts []string
	for i, hit := range hits {
		if i == summaryContextSize {
			break
		}
		event := hit.Event
		city := notGiven
		if event.City != nil {
			city = *event.City
		}
		deadline := notGiven
		if event.DeadlineAt != nil {
			deadline = event.DeadlineAt.Format("2006-01-02")
		}
		categories := notGiven
		if len(event.CategorySlugs) > 0 {
			categories = strings.Join(event.CategorySlugs, ", ")
		}
		parts = append(parts, fmt.Sprintf("%d. %s\n   %s: %s\n   %s: %s\n   %s: %s",
			i+1, event.Title, labels[0], city, labels[1], deadline, labels[2], categories))
	}

	answer, err := llm.Chat(ctx, []ai.Message{{
		Role:    "user",
		Content: fmt.Sprintf(prompt, query, strings.Join(parts, "\n\n")),
	}})
	if err != nil {
		slog.Warn("failed to synthesize answer", slog.Any("err", err))
		return fallback
	}
	return strings.TrimSpace(answer)
}
