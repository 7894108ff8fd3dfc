package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryTransportFetchAck(t *testing.T) {
	tr := NewMemoryTransport()
	defer tr.Close()

	tr.Publish(InboundMessage{ExternalID: "a", Text: "first"})
	tr.Publish(InboundMessage{ExternalID: "b", Text: "second"})

	items, err := tr.FetchBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "a", items[0].Message.ExternalID)

	require.NoError(t, tr.Ack(context.Background(), items[0]))
	require.Len(t, tr.Acked(), 1)
	require.Equal(t, 0, tr.PendingCount())
}

func TestMemoryTransportRelease(t *testing.T) {
	tr := NewMemoryTransport()
	defer tr.Close()

	tr.Publish(InboundMessage{ExternalID: "a"})
	items, err := tr.FetchBatch(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, tr.Release(context.Background(), items[0]))
	require.Equal(t, 1, tr.PendingCount())

	again, err := tr.FetchBatch(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "a", again[0].Message.ExternalID)
}

func TestMemoryTransportFetchBlocksUntilPublish(t *testing.T) {
	tr := NewMemoryTransport()
	defer tr.Close()

	done := make(chan []*Item, 1)
	go func() {
		items, err := tr.FetchBatch(context.Background(), 1)
		require.NoError(t, err)
		done <- items
	}()

	time.Sleep(20 * time.Millisecond)
	tr.Publish(InboundMessage{ExternalID: "late"})

	select {
	case items := <-done:
		require.Equal(t, "late", items[0].Message.ExternalID)
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not return after publish")
	}
}

func TestMemoryTransportFetchHonorsContext(t *testing.T) {
	tr := NewMemoryTransport()
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.FetchBatch(ctx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
