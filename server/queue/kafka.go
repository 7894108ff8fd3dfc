package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/mozaika/eventsearch/internal/profile"
)

// drainTimeout bounds how long FetchBatch waits for additional messages
// after the first one arrived.
const drainTimeout = 200 * time.Millisecond

// KafkaTransport consumes inbound messages from a Kafka topic using a
// consumer group. Because workers complete out of order while Kafka commits
// a single offset per partition, acks go through a commit window that only
// advances the offset over a contiguous run of completed messages. A
// released message stays pending, holding back commits of everything behind
// it; it is redelivered after the next rebalance or restart.
type KafkaTransport struct {
	reader *kafka.Reader
	window *commitWindow
}

var _ Transport = (*KafkaTransport)(nil)

func NewKafkaTransport(p *profile.Profile) *KafkaTransport {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        p.KafkaBrokers,
		GroupID:        p.KafkaGroupID,
		Topic:          p.KafkaTopic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits
	})
	return &KafkaTransport{
		reader: reader,
		window: newCommitWindow(reader),
	}
}

func (t *KafkaTransport) FetchBatch(ctx context.Context, max int) ([]*Item, error) {
	if max < 1 {
		max = 1
	}
	items := make([]*Item, 0, max)

	// Block for the first message, then drain whatever else is already
	// buffered without waiting for a full batch.
	msg, err := t.reader.FetchMessage(ctx)
	if err != nil {
		return nil, err
	}
	if item := t.decode(msg); item != nil {
		items = append(items, item)
	}
	for len(items) < max {
		drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
		msg, err := t.reader.FetchMessage(drainCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return items, nil
		}
		if item := t.decode(msg); item != nil {
			items = append(items, item)
		}
	}
	return items, nil
}

// decode registers a fetched message with the commit window and parses its
// body. A body that is not valid JSON is a contract violation by the
// producer; it is logged and completed so it does not wedge the partition.
func (t *KafkaTransport) decode(msg kafka.Message) *Item {
	t.window.deliver(msg)

	var inbound InboundMessage
	if err := json.Unmarshal(msg.Value, &inbound); err != nil {
		slog.Warn("discarding malformed inbound message",
			slog.String("topic", msg.Topic),
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.Any("err", err))
		if commitErr := t.window.complete(context.Background(), msg); commitErr != nil {
			slog.Error("failed to commit malformed message", slog.Any("err", commitErr))
		}
		return nil
	}
	return &Item{Message: inbound, Receipt: msg}
}

func (t *KafkaTransport) Ack(ctx context.Context, item *Item) error {
	msg, ok := item.Receipt.(kafka.Message)
	if !ok {
		return errors.New("queue: item receipt is not a kafka message")
	}
	return t.window.complete(ctx, msg)
}

func (t *KafkaTransport) Release(ctx context.Context, item *Item) error {
	// Not committing the offset is the release: the message stays pending
	// in the commit window, so no later ack on the partition can advance
	// past it, and the consumer group redelivers it once this session ends.
	return nil
}

func (t *KafkaTransport) Close() error {
	return t.reader.Close()
}

type messageCommitter interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// commitWindow tracks delivered messages per partition in fetch order and
// commits only the longest contiguous prefix of completed ones. Committing a
// Kafka offset implicitly acknowledges every earlier offset on the
// partition, so acking out of order without the window would skip released
// messages on redelivery.
type commitWindow struct {
	mu        sync.Mutex
	committer messageCommitter
	parts     map[string][]*windowEntry
}

type windowEntry struct {
	msg  kafka.Message
	done bool
}

func newCommitWindow(committer messageCommitter) *commitWindow {
	return &commitWindow{
		committer: committer,
		parts:     make(map[string][]*windowEntry),
	}
}

func partitionKey(msg kafka.Message) string {
	return fmt.Sprintf("%s/%d", msg.Topic, msg.Partition)
}

func (w *commitWindow) deliver(msg kafka.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := partitionKey(msg)
	w.parts[key] = append(w.parts[key], &windowEntry{msg: msg})
}

// complete marks the message done and commits through the last entry of the
// contiguous completed prefix of its partition, if that prefix grew.
func (w *commitWindow) complete(ctx context.Context, msg kafka.Message) error {
	w.mu.Lock()
	key := partitionKey(msg)
	entries := w.parts[key]
	for _, e := range entries {
		if e.msg.Offset == msg.Offset {
			e.done = true
			break
		}
	}
	var commit *kafka.Message
	n := 0
	for _, e := range entries {
		if !e.done {
			break
		}
		commit = &e.msg
		n++
	}
	if n > 0 {
		w.parts[key] = entries[n:]
	}
	w.mu.Unlock()

	if commit == nil {
		return nil
	}
	return w.committer.CommitMessages(ctx, *commit)
}
