package queue

import (
	"context"
	"testing"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeCommitter struct {
	committed []kafka.Message
}

func (f *fakeCommitter) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.committed = append(f.committed, msgs...)
	return nil
}

func msgAt(offset int64) kafka.Message {
	return kafka.Message{Topic: "scraped-posts", Partition: 0, Offset: offset}
}

func TestCommitWindowOrderedCompletion(t *testing.T) {
	committer := &fakeCommitter{}
	w := newCommitWindow(committer)

	w.deliver(msgAt(10))
	w.deliver(msgAt(11))

	require.NoError(t, w.complete(context.Background(), msgAt(10)))
	require.NoError(t, w.complete(context.Background(), msgAt(11)))

	require.Len(t, committer.committed, 2)
	require.Equal(t, int64(10), committer.committed[0].Offset)
	require.Equal(t, int64(11), committer.committed[1].Offset)
}

func TestCommitWindowHoldsBackOutOfOrderAcks(t *testing.T) {
	committer := &fakeCommitter{}
	w := newCommitWindow(committer)

	w.deliver(msgAt(10))
	w.deliver(msgAt(11))
	w.deliver(msgAt(12))

	// Later offsets finish first; nothing may be committed while 10 is
	// still in flight.
	require.NoError(t, w.complete(context.Background(), msgAt(12)))
	require.NoError(t, w.complete(context.Background(), msgAt(11)))
	require.Empty(t, committer.committed)

	// Completing 10 releases the whole contiguous run in one commit.
	require.NoError(t, w.complete(context.Background(), msgAt(10)))
	require.Len(t, committer.committed, 1)
	require.Equal(t, int64(12), committer.committed[0].Offset)
}

func TestCommitWindowReleasedMessageBlocksLaterCommits(t *testing.T) {
	committer := &fakeCommitter{}
	w := newCommitWindow(committer)

	w.deliver(msgAt(20))
	w.deliver(msgAt(21))

	// 20 was released (never completed); acking 21 must not advance the
	// offset past it, or it would be lost on redelivery.
	require.NoError(t, w.complete(context.Background(), msgAt(21)))
	require.Empty(t, committer.committed)
}

func TestCommitWindowTracksPartitionsIndependently(t *testing.T) {
	committer := &fakeCommitter{}
	w := newCommitWindow(committer)

	p0 := kafka.Message{Topic: "scraped-posts", Partition: 0, Offset: 5}
	p1 := kafka.Message{Topic: "scraped-posts", Partition: 1, Offset: 5}
	w.deliver(p0)
	w.deliver(p1)

	require.NoError(t, w.complete(context.Background(), p1))
	require.Len(t, committer.committed, 1)
	require.Equal(t, 1, committer.committed[0].Partition)
}
