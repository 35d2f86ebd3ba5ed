package collection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klppl/evlogd/internal/event"
	"github.com/klppl/evlogd/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		LogsPath:         t.TempDir(),
		IndexGranularity: 10,
		ScannerThreads:   2,
		ScannerBuffer:    4,
		RoutingStrategy:  router.RoundRobin,
		PublisherBuffer:  8,
	}
}

func TestPublishAndSubscribe(t *testing.T) {
	c, err := Open("orders", testConfig(t))
	require.NoError(t, err)
	defer c.Close()

	id, err := c.Publish(event.New("data", "tag1", "tag2"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	stream, _ := c.Subscribe(8, event.NewQuery())
	msg, ok := stream.Recv()
	require.True(t, ok)
	require.NotNil(t, msg.Event)
	assert.Equal(t, uint64(1), msg.Event.ID)
	assert.Equal(t, "data", msg.Event.Data)

	msg, ok = stream.Recv()
	require.True(t, ok)
	assert.True(t, msg.Ended)
}

func TestTruncateResetsCollection(t *testing.T) {
	c, err := Open("orders", testConfig(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Publish(event.New("data", "tag1"))
	require.NoError(t, err)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.LineCount)

	require.NoError(t, c.Truncate())

	stats = c.Stats()
	assert.Equal(t, uint64(0), stats.LineCount)
	assert.Equal(t, uint64(1), stats.NextEventID)

	id, err := c.Publish(event.New("fresh", "tag1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestStatsReflectPublishedEvents(t *testing.T) {
	c, err := Open("orders", testConfig(t))
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 3; i++ {
		_, err := c.Publish(event.New("x", "tag1"))
		require.NoError(t, err)
	}

	stats := c.Stats()
	assert.Equal(t, uint64(3), stats.LineCount)
	assert.Equal(t, uint64(4), stats.NextEventID)
	assert.NotZero(t, stats.ByteCount)
}

func TestReopenRecoversState(t *testing.T) {
	cfg := testConfig(t)

	c, err := Open("orders", cfg)
	require.NoError(t, err)
	_, err = c.Publish(event.New("a", "tag1"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c2, err := Open("orders", cfg)
	require.NoError(t, err)
	defer c2.Close()

	id, err := c2.Publish(event.New("b", "tag1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id)
}

func TestCloseRemovesNeverWrittenBackingFile(t *testing.T) {
	cfg := testConfig(t)
	c, err := Open("orders", cfg)
	require.NoError(t, err)

	require.NoError(t, c.Close())

	_, err = os.Stat(filepath.Join(cfg.LogsPath, "orders.log"))
	assert.True(t, os.IsNotExist(err))
}

func TestCloseKeepsBackingFileOnceWritten(t *testing.T) {
	cfg := testConfig(t)
	c, err := Open("orders", cfg)
	require.NoError(t, err)

	_, err = c.Publish(event.New("data", "tag1"))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	_, err = os.Stat(filepath.Join(cfg.LogsPath, "orders.log"))
	require.NoError(t, err)
}
