package stats

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestCollectorSnapshot(t *testing.T) {
	c := newCollector(prometheus.NewRegistry())

	c.RecordProcessed(100 * time.Millisecond)
	c.RecordProcessed(200 * time.Millisecond)
	c.RecordDuplicate(50 * time.Millisecond)
	c.RecordFailed(250 * time.Millisecond)

	s := c.Snapshot()
	require.Equal(t, int64(2), s.Processed)
	require.Equal(t, int64(1), s.Duplicate)
	require.Equal(t, int64(1), s.Failed)
	require.Equal(t, int64(150), s.AvgLatencyMs)
}

func TestCollectorEmptySnapshot(t *testing.T) {
	c := newCollector(prometheus.NewRegistry())
	s := c.Snapshot()
	require.Zero(t, s.Processed)
	require.Zero(t, s.AvgLatencyMs)
}
