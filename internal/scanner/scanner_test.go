package scanner

import (
	"fmt"
	"testing"
	"time"

	"github.com/klppl/evlogd/internal/event"
	"github.com/klppl/evlogd/internal/logstore"
	"github.com/klppl/evlogd/internal/publisher"
	"github.com/klppl/evlogd/internal/router"
	"github.com/klppl/evlogd/internal/subscription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLog(t *testing.T, n int) *logstore.Log {
	t.Helper()
	dir := t.TempDir()
	l := logstore.Open(dir, "coll", 10)
	w, err := l.OpenWriter()
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		ev := event.Event{ID: uint64(i), Timestamp: 1, Data: fmt.Sprintf("d%d", i)}
		_, err := w.WriteLine(ev.Encode())
		require.NoError(t, err)
		l.Index().Insert(uint64(i), w.Pos())
	}
	require.NoError(t, w.Close())
	_, _, err = l.ComputeIndex()
	require.NoError(t, err)
	return l
}

func TestScannerReplaysHistoryThenEndsNonLiveQuery(t *testing.T) {
	log := seedLog(t, 5)
	pub := publisher.Start("coll", 8)
	defer pub.Stop()

	s, err := Start("coll", log, pub, 2, 4, router.RoundRobin)
	require.NoError(t, err)
	defer s.Stop()

	stream, _, emitter := subscription.New(8, event.NewQuery())
	s.Register(emitter)

	for i := 1; i <= 5; i++ {
		msg, ok := stream.Recv()
		require.True(t, ok)
		require.NotNil(t, msg.Event)
		assert.Equal(t, uint64(i), msg.Event.ID)
	}
	msg, ok := stream.Recv()
	require.True(t, ok)
	assert.True(t, msg.Ended)
}

func TestScannerHandsOffLiveQueryToPublisher(t *testing.T) {
	log := seedLog(t, 3)
	pub := publisher.Start("coll", 8)
	defer pub.Stop()

	s, err := Start("coll", log, pub, 1, 4, router.RoundRobin)
	require.NoError(t, err)
	defer s.Stop()

	stream, _, emitter := subscription.New(8, event.NewQuery().WithLiveStream())
	s.Register(emitter)

	for i := 1; i <= 3; i++ {
		msg, ok := stream.Recv()
		require.True(t, ok)
		require.NotNil(t, msg.Event)
		assert.Equal(t, uint64(i), msg.Event.ID)
	}

	// Give the worker time to hand off to the Publisher before publishing
	// a live event through it.
	time.Sleep(20 * time.Millisecond)
	require.True(t, pub.Publish(event.Event{ID: 4, Timestamp: 1, Data: "live"}))

	msg, ok := stream.Recv()
	require.True(t, ok)
	require.NotNil(t, msg.Event)
	assert.Equal(t, uint64(4), msg.Event.ID)
}

func TestScannerRespectsTagFilterDuringReplay(t *testing.T) {
	dir := t.TempDir()
	log := logstore.Open(dir, "coll", 10)
	w, err := log.OpenWriter()
	require.NoError(t, err)
	events := []event.Event{
		{ID: 1, Tags: []string{"a"}, Timestamp: 1, Data: "x"},
		{ID: 2, Tags: []string{"b"}, Timestamp: 1, Data: "y"},
		{ID: 3, Tags: []string{"a"}, Timestamp: 1, Data: "z"},
	}
	for _, ev := range events {
		_, err := w.WriteLine(ev.Encode())
		require.NoError(t, err)
		log.Index().Insert(ev.ID, w.Pos())
	}
	require.NoError(t, w.Close())
	_, _, err = log.ComputeIndex()
	require.NoError(t, err)

	pub := publisher.Start("coll", 8)
	defer pub.Stop()
	s, err := Start("coll", log, pub, 1, 4, router.RoundRobin)
	require.NoError(t, err)
	defer s.Stop()

	stream, _, emitter := subscription.New(8, event.NewQuery().WithTag("a"))
	s.Register(emitter)

	msg, ok := stream.Recv()
	require.True(t, ok)
	require.NotNil(t, msg.Event)
	assert.Equal(t, uint64(1), msg.Event.ID)

	msg, ok = stream.Recv()
	require.True(t, ok)
	require.NotNil(t, msg.Event)
	assert.Equal(t, uint64(3), msg.Event.ID)

	msg, ok = stream.Recv()
	require.True(t, ok)
	assert.True(t, msg.Ended)
}
