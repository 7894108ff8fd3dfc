package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/mozaika/eventsearch/internal/profile"
	"github.com/mozaika/eventsearch/server/extractor"
	"github.com/mozaika/eventsearch/server/queue"
	"github.com/mozaika/eventsearch/server/stats"
	"github.com/mozaika/eventsearch/store"
)

type fakeExtractor struct {
	mu         sync.Mutex
	calls      int
	extraction *extractor.Extraction
	err        error
}

func (f *fakeExtractor) ExtractEventData(ctx context.Context, rawText string) (*extractor.Extraction, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := *f.extraction
	return &out, nil
}

func (f *fakeExtractor) KnownSlugs() map[string]bool {
	return map[string]bool{"workshop": true, "grant": true}
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.6, 0.8}, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu          sync.Mutex
	byFP        map[string]*store.Event
	upserts     []*store.UpsertEvent
	categorized map[string][]string
	lookupErr   error
	upsertErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byFP:        map[string]*store.Event{},
		categorized: map[string][]string{},
	}
}

func (f *fakeStore) GetEventByFingerprint(ctx context.Context, fp string) (*store.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	return f.byFP[fp], nil
}

func (f *fakeStore) UpsertEvent(ctx context.Context, upsert *store.UpsertEvent) (*store.Event, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, false, f.upsertErr
	}
	f.upserts = append(f.upserts, upsert)
	if existing, ok := f.byFP[upsert.DedupeFingerprint]; ok {
		return existing, false, nil
	}
	event := &store.Event{
		ID:                "event-" + upsert.UID,
		UID:               upsert.UID,
		Title:             upsert.Title,
		Language:          upsert.Language,
		DedupeFingerprint: upsert.DedupeFingerprint,
	}
	f.byFP[upsert.DedupeFingerprint] = event
	return event, true, nil
}

func (f *fakeStore) ReplaceEventCategories(ctx context.Context, eventID string, slugs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.categorized[eventID] = slugs
	return nil
}

func testProfile() *profile.Profile {
	return &profile.Profile{
		IngestWorkers:     2,
		IngestBatchSize:   10,
		IngestMaxRetries:  0,
		IngestCallTimeout: time.Second,
	}
}

func newTestOrchestrator(t *testing.T, st *fakeStore, ex *fakeExtractor, em *fakeEmbedder) (*Orchestrator, *queue.MemoryTransport) {
	t.Helper()
	tr := queue.NewMemoryTransport()
	t.Cleanup(func() { tr.Close() })
	collector := stats.NewCollectorForTesting(prometheus.NewRegistry())
	o, err := NewOrchestrator(testProfile(), tr, st, ex, em, collector)
	require.NoError(t, err)
	t.Cleanup(o.pool.Release)
	return o, tr
}

func validExtraction() *extractor.Extraction {
	city := "Львів"
	return &extractor.Extraction{
		Title:         "Грантова програма для молоді",
		Language:      "uk",
		City:          &city,
		Status:        "active",
		CategorySlugs: []string{"grant"},
	}
}

func inbound(text string) queue.InboundMessage {
	return queue.InboundMessage{
		SourceID:   1,
		RunID:      7,
		ExternalID: "post-1",
		Text:       text,
		Metadata: queue.Metadata{
			SourceType: "telegram",
			SourceURL:  "https://t.me/s/grants_ua",
		},
	}
}

func TestProcessPersistsNewEvent(t *testing.T) {
	st := newFakeStore()
	ex := &fakeExtractor{extraction: validExtraction()}
	em := &fakeEmbedder{}
	o, tr := newTestOrchestrator(t, st, ex, em)

	tr.Publish(inbound("Грантова програма для молоді. Дедлайн 1 жовтня."))
	items, err := tr.FetchBatch(context.Background(), 1)
	require.NoError(t, err)

	o.process(context.Background(), items[0])

	require.Len(t, st.upserts, 1)
	up := st.upserts[0]
	require.NotEmpty(t, up.UID)
	require.Equal(t, "telegram", up.SourceType)
	require.Equal(t, "uk", up.Language)
	require.NotEmpty(t, up.DedupeFingerprint)
	require.Len(t, up.Embedding, 2)
	require.Len(t, tr.Acked(), 1)

	event := st.byFP[up.DedupeFingerprint]
	require.Equal(t, []string{"grant"}, st.categorized[event.ID])
}

func TestProcessDuplicateSkipsExtractionAndEmbedding(t *testing.T) {
	st := newFakeStore()
	ex := &fakeExtractor{extraction: validExtraction()}
	em := &fakeEmbedder{}
	o, tr := newTestOrchestrator(t, st, ex, em)

	msg := inbound("Той самий анонс, той самий день.")
	tr.Publish(msg)
	items, err := tr.FetchBatch(context.Background(), 1)
	require.NoError(t, err)
	o.process(context.Background(), items[0])
	require.Equal(t, 1, ex.callCount())
	require.Equal(t, 1, em.callCount())

	// Same message again: the fingerprint lookup short-circuits the rest.
	tr.Publish(msg)
	items, err = tr.FetchBatch(context.Background(), 1)
	require.NoError(t, err)
	o.process(context.Background(), items[0])

	require.Equal(t, 1, ex.callCount())
	require.Equal(t, 1, em.callCount())
	require.Len(t, st.upserts, 1)
	require.Len(t, tr.Acked(), 2)
}

func TestProcessRejectsEmptyText(t *testing.T) {
	st := newFakeStore()
	ex := &fakeExtractor{extraction: validExtraction()}
	em := &fakeEmbedder{}
	o, tr := newTestOrchestrator(t, st, ex, em)

	tr.Publish(inbound("   \n\t  "))
	items, err := tr.FetchBatch(context.Background(), 1)
	require.NoError(t, err)
	o.process(context.Background(), items[0])

	// Rejections are acknowledged so the message is not redelivered.
	require.Len(t, tr.Acked(), 1)
	require.Equal(t, 0, tr.PendingCount())
	require.Equal(t, 0, ex.callCount())
}

func TestProcessRejectsUnsupportedLanguage(t *testing.T) {
	st := newFakeStore()
	extraction := validExtraction()
	extraction.Language = "ja"
	ex := &fakeExtractor{extraction: extraction}
	em := &fakeEmbedder{}
	o, tr := newTestOrchestrator(t, st, ex, em)

	tr.Publish(inbound("日本語のテキスト"))
	items, err := tr.FetchBatch(context.Background(), 1)
	require.NoError(t, err)
	o.process(context.Background(), items[0])

	require.Len(t, tr.Acked(), 1)
	require.Equal(t, 0, em.callCount())
	require.Empty(t, st.upserts)
}

func TestProcessReleasesOnTransientFailure(t *testing.T) {
	st := newFakeStore()
	ex := &fakeExtractor{err: errors.New("model overloaded")}
	em := &fakeEmbedder{}
	o, tr := newTestOrchestrator(t, st, ex, em)

	tr.Publish(inbound("Анонс хакатону в Києві"))
	items, err := tr.FetchBatch(context.Background(), 1)
	require.NoError(t, err)
	o.process(context.Background(), items[0])

	require.Empty(t, tr.Acked())
	require.Equal(t, 1, tr.PendingCount())
}

func TestRunDrainsQueue(t *testing.T) {
	st := newFakeStore()
	ex := &fakeExtractor{extraction: validExtraction()}
	em := &fakeEmbedder{}
	o, tr := newTestOrchestrator(t, st, ex, em)

	tr.Publish(inbound("Воркшоп з Go у Львові"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(tr.Acked()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not stop after cancel")
	}
}
