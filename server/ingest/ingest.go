// Package ingest runs the inbound pipeline: fetch scraped posts from the
// transport, deduplicate by fingerprint, extract structured fields, embed,
// persist, and acknowledge. Each message walks a fixed sequence of phases;
// transient failures release the message for redelivery, contract violations
// are acknowledged and counted as failed.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"

	"github.com/mozaika/eventsearch/internal/profile"
	"github.com/mozaika/eventsearch/server/extractor"
	"github.com/mozaika/eventsearch/server/fingerprint"
	"github.com/mozaika/eventsearch/server/queue"
	"github.com/mozaika/eventsearch/server/stats"
	"github.com/mozaika/eventsearch/store"
)

type phase string

const (
	phaseReceived      phase = "received"
	phaseDeduplicating phase = "deduplicating"
	phaseExtracting    phase = "extracting"
	phaseEmbedding     phase = "embedding"
	phasePersisting    phase = "persisting"
	phaseCategorizing  phase = "categorizing"
	phaseAcknowledged  phase = "acknowledged"
)

const retryBaseDelay = 500 * time.Millisecond

// Extractor produces structured event data from raw text.
type Extractor interface {
	ExtractEventData(ctx context.Context, rawText string) (*extractor.Extraction, error)
	KnownSlugs() map[string]bool
}

// Embedder turns text into a unit-normalized vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EventStore is the subset of the store the pipeline writes through.
type EventStore interface {
	GetEventByFingerprint(ctx context.Context, fingerprint string) (*store.Event, error)
	UpsertEvent(ctx context.Context, upsert *store.UpsertEvent) (*store.Event, bool, error)
	ReplaceEventCategories(ctx context.Context, eventID string, slugs []string) error
}

// rejectError marks a record that violates the inbound contract. Rejected
// messages are acknowledged, not retried: redelivery cannot fix them.
type rejectError struct {
	err error
}

func (e *rejectError) Error() string { return e.err.Error() }
func (e *rejectError) Unwrap() error { return e.err }

func reject(err error) error { return &rejectError{err: err} }

func isReject(err error) bool {
	var r *rejectError
	return errors.As(err, &r)
}

// Orchestrator drives the ingestion pipeline over a bounded worker pool.
type Orchestrator struct {
	profile   *profile.Profile
	transport queue.Transport
	store     EventStore
	extractor Extractor
	embedder  Embedder
	stats     *stats.Collector

	pool *ants.Pool
	wg   sync.WaitGroup
}

func NewOrchestrator(p *profile.Profile, transport queue.Transport, st EventStore, ex Extractor, em Embedder, collector *stats.Collector) (*Orchestrator, error) {
	pool, err := ants.NewPool(p.IngestWorkers)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create worker pool")
	}
	return &Orchestrator{
		profile:   p,
		transport: transport,
		store:     st,
		extractor: ex,
		embedder:  em,
		stats:     collector,
		pool:      pool,
	}, nil
}

// Run fetches and processes batches until the context is canceled. In-flight
// messages are drained before it returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer func() {
		o.wg.Wait()
		o.pool.Release()
		o.stats.LogSummary()
	}()

	for {
		items, err := o.transport.FetchBatch(ctx, o.profile.IngestBatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("failed to fetch inbound batch", slog.Any("err", err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		for _, item := range items {
			item := item
			o.wg.Add(1)
			if err := o.pool.Submit(func() {
				defer o.wg.Done()
				o.process(ctx, item)
			}); err != nil {
				o.wg.Done()
				slog.Error("failed to submit to worker pool", slog.Any("err", err))
				o.release(item)
			}
		}
	}
}

func (o *Orchestrator) process(ctx context.Context, item *queue.Item) {
	start := time.Now()
	msg := item.Message
	logger := slog.With(
		slog.String("external_id", msg.ExternalID),
		slog.Int64("source_id", msg.SourceID),
		slog.Int64("run_id", msg.RunID),
	)
	logger.Debug("processing inbound message", slog.String("phase", string(phaseReceived)))

	outcome, err := o.runPhases(ctx, msg, logger)
	elapsed := time.Since(start)
	switch {
	case err == nil && outcome == phaseDeduplicating:
		o.stats.RecordDuplicate(elapsed)
		o.ack(ctx, item, logger)
	case err == nil:
		o.stats.RecordProcessed(elapsed)
		o.ack(ctx, item, logger)
	case isReject(err):
		logger.Warn("rejecting inbound message",
			slog.String("phase", string(outcome)), slog.Any("err", err))
		o.stats.RecordFailed(elapsed)
		o.ack(ctx, item, logger)
	default:
		logger.Error("failed to process inbound message",
			slog.String("phase", string(outcome)), slog.Any("err", err))
		o.stats.RecordFailed(elapsed)
		o.release(item)
	}
}

// runPhases walks the message through the pipeline. It returns the phase the
// message stopped in; a nil error with phaseDeduplicating means the message
// was a duplicate and everything downstream was skipped.
func (o *Orchestrator) runPhases(ctx context.Context, msg queue.InboundMessage, logger *slog.Logger) (phase, error) {
	text := fingerprint.BeautifyText(msg.Text)
	if text == "" {
		return phaseDeduplicating, reject(errors.New("message has no text"))
	}

	logger.Debug("phase transition", slog.String("phase", string(phaseDeduplicating)))
	fp := fingerprint.Fingerprint(msg.Metadata.SourceURL, msg.Text, msg.PostedAt)
	var existing *store.Event
	err := o.withRetry(ctx, "fingerprint lookup", func(cctx context.Context) error {
		var lookupErr error
		existing, lookupErr = o.store.GetEventByFingerprint(cctx, fp)
		return lookupErr
	})
	if err != nil {
		return phaseDeduplicating, err
	}
	if existing != nil {
		logger.Debug("duplicate message short-circuited", slog.String("uid", existing.UID))
		return phaseDeduplicating, nil
	}

	logger.Debug("phase transition", slog.String("phase", string(phaseExtracting)))
	var extraction *extractor.Extraction
	err = o.withRetry(ctx, "event extraction", func(cctx context.Context) error {
		var exErr error
		extraction, exErr = o.extractor.ExtractEventData(cctx, text)
		return exErr
	})
	if err != nil {
		return phaseExtracting, err
	}
	extraction, err = extractor.Normalize(extraction, o.extractor.KnownSlugs())
	if err != nil {
		return phaseExtracting, reject(err)
	}

	logger.Debug("phase transition", slog.String("phase", string(phaseEmbedding)))
	var embedding []float32
	err = o.withRetry(ctx, "embedding", func(cctx context.Context) error {
		var embErr error
		embedding, embErr = o.embedder.Embed(cctx, extraction.Title+"\n\n"+text)
		return embErr
	})
	if err != nil {
		return phaseEmbedding, err
	}

	logger.Debug("phase transition", slog.String("phase", string(phasePersisting)))
	upsert := &store.UpsertEvent{
		UID:               shortuuid.New(),
		SourceType:        msg.Metadata.SourceType,
		SourceURL:         msg.Metadata.SourceURL,
		DiscoveredAt:      time.Now().UTC(),
		PostedAt:          msg.PostedAt,
		OccursFrom:        extraction.OccursFrom,
		OccursTo:          extraction.OccursTo,
		DeadlineAt:        extraction.DeadlineAt,
		Language:          extraction.Language,
		Title:             extraction.Title,
		RawText:           text,
		Organizer:         extraction.Organizer,
		City:              extraction.City,
		Country:           extraction.Country,
		IsRemote:          extraction.IsRemote,
		ApplyURL:          extraction.ApplyURL,
		Embedding:         embedding,
		Status:            store.EventStatus(extraction.Status),
		DedupeFingerprint: fp,
	}
	var event *store.Event
	var isNew bool
	err = o.withRetry(ctx, "event upsert", func(cctx context.Context) error {
		var upErr error
		event, isNew, upErr = o.store.UpsertEvent(cctx, upsert)
		return upErr
	})
	if err != nil {
		return phasePersisting, err
	}
	if !isNew {
		// Lost a race with a concurrent worker holding the same fingerprint;
		// the conflict clause already refreshed the row.
		logger.Debug("upsert hit existing fingerprint", slog.String("uid", event.UID))
		return phaseDeduplicating, nil
	}

	logger.Debug("phase transition", slog.String("phase", string(phaseCategorizing)))
	if len(extraction.CategorySlugs) > 0 {
		err = o.withRetry(ctx, "category assignment", func(cctx context.Context) error {
			return o.store.ReplaceEventCategories(cctx, event.ID, extraction.CategorySlugs)
		})
		if err != nil {
			// The event row exists; releasing would only produce a duplicate
			// short-circuit on redelivery, so log and move on.
			logger.Error("failed to assign categories", slog.String("uid", event.UID), slog.Any("err", err))
		}
	}

	logger.Info("event ingested",
		slog.String("uid", event.UID),
		slog.String("language", event.Language),
		slog.String("title", event.Title))
	return phaseAcknowledged, nil
}

// withRetry runs fn with the per-call timeout, retrying transient failures
// with exponential backoff up to the configured attempt limit.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= o.profile.IngestMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBaseDelay << (attempt - 1)):
			}
		}
		cctx, cancel := context.WithTimeout(ctx, o.profile.IngestCallTimeout)
		err = fn(cctx)
		cancel()
		if err == nil {
			return nil
		}
		if isReject(err) || ctx.Err() != nil {
			return err
		}
		slog.Warn("retrying operation",
			slog.String("op", op), slog.Int("attempt", attempt+1), slog.Any("err", err))
	}
	return errors.Wrapf(err, "%s failed after %d attempts", op, o.profile.IngestMaxRetries+1)
}

func (o *Orchestrator) ack(ctx context.Context, item *queue.Item, logger *slog.Logger) {
	if err := o.transport.Ack(ctx, item); err != nil {
		logger.Error("failed to ack message", slog.Any("err", err))
	}
}

func (o *Orchestrator) release(item *queue.Item) {
	if err := o.transport.Release(context.Background(), item); err != nil {
		slog.Error("failed to release message", slog.Any("err", err))
	}
}
