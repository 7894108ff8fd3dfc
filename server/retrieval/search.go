package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/mozaika/eventsearch/plugin/ai"
	"github.com/mozaika/eventsearch/server/extractor"
	"github.com/mozaika/eventsearch/server/queryengine"
	"github.com/mozaika/eventsearch/store"
)

// DefaultTopK is the semantic search result count when neither the request
// nor the parsed intent specifies one.
const DefaultTopK = 12

// searchCallTimeout bounds each external capability call (intent parsing,
// query embedding, answer synthesis) so a stalled provider cannot hold the
// request open indefinitely.
const searchCallTimeout = 30 * time.Second

// SearchStore is the subset of the store the orchestrator reads through.
type SearchStore interface {
	ListEvents(ctx context.Context, find *store.FindEvent) ([]*store.Event, int64, error)
	VectorSearchEvents(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.EventWithScore, error)
}

// IntentParser turns a natural-language query into discrete filters.
type IntentParser interface {
	UnderstandQuery(ctx context.Context, userQuery string, profile any) (*extractor.QueryIntent, error)
}

// Embedder turns the query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// FilteredResult is one page of structured search hits.
type FilteredResult struct {
	Hits  []*store.Event
	Total int64
	Page  int
	Size  int
}

// SemanticResult is the ranked output of an AI search.
type SemanticResult struct {
	Hits       []*ScoredEvent
	ChatAnswer string
}

// Searcher orchestrates filtered and semantic search.
type Searcher struct {
	store    SearchStore
	parser   IntentParser
	embedder Embedder
	llm      ai.LLMService
}

func NewSearcher(st SearchStore, parser IntentParser, embedder Embedder, llm ai.LLMService) *Searcher {
	return &Searcher{store: st, parser: parser, embedder: embedder, llm: llm}
}

// FilteredSearch plans the structured query and returns one page of matches.
func (s *Searcher) FilteredSearch(ctx context.Context, req *queryengine.Request) (*FilteredResult, error) {
	find, err := queryengine.Plan(req)
	if err != nil {
		return nil, err
	}
	hits, total, err := s.store.ListEvents(ctx, find)
	if err != nil {
		return nil, err
	}
	return &FilteredResult{
		Hits:  hits,
		Total: total,
		Page:  find.Offset/find.Limit + 1,
		Size:  find.Limit,
	}, nil
}

// SemanticSearch runs the AI search pipeline: parse intent (best effort),
// embed the query, pre-filtered similarity search, profile-blended ranking,
// then answer synthesis (best effort).
func (s *Searcher) SemanticSearch(ctx context.Context, query string, topK int, profile *Profile) (*SemanticResult, error) {
	queryText := query
	var profileArg any
	if !profile.IsEmpty() {
		profileArg = profile
	}
	parseCtx, cancel := context.WithTimeout(ctx, searchCallTimeout)
	intent, err := s.parser.UnderstandQuery(parseCtx, query, profileArg)
	cancel()
	if err != nil {
		// Intent parsing is an optimization; fall back to the raw query
		// with no filters.
		slog.Warn("query intent parsing failed, using raw query", slog.Any("err", err))
		intent = nil
	}
	if intent != nil {
		if intent.UserQueryRewritten != "" {
			queryText = intent.UserQueryRewritten
		}
		if intent.TopK > 0 {
			topK = intent.TopK
		}
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	embedCtx, cancel := context.WithTimeout(ctx, searchCallTimeout)
	vector, err := s.embedder.Embed(embedCtx, queryText)
	cancel()
	if err != nil {
		return nil, err
	}

	results, err := s.store.VectorSearchEvents(ctx, &store.VectorSearchOptions{
		Vector: vector,
		Limit:  topK,
		Filter: intentFilter(intent),
	})
	if err != nil {
		return nil, err
	}

	hits := ScoreResults(results, profile)
	if len(hits) > topK {
		hits = hits[:topK]
	}

	answerCtx, cancel := context.WithTimeout(ctx, searchCallTimeout)
	answer := synthesizeAnswer(answerCtx, s.llm, query, hits, profile.AnswerLanguage())
	cancel()
	return &SemanticResult{Hits: hits, ChatAnswer: answer}, nil
}

// intentFilter maps parsed intent onto the similarity pre-filter. Only active
// events are candidates; the intent date range constrains posted_at.
func intentFilter(intent *extractor.QueryIntent) *store.FindEvent {
	active := store.EventStatusActive
	find := &store.FindEvent{Status: &active}
	if intent == nil {
		return find
	}
	find.City = intent.City
	find.Country = intent.Country
	find.Language = intent.Language
	find.IsRemote = intent.IsRemote
	find.CategorySlugs = intent.CategorySlugs
	find.PostedFrom = intent.DateFrom
	find.PostedTo = intent.DateTo
	return find
}
