package subscription

import (
	"testing"

	"github.com/klppl/evlogd/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitDeliversMatchingEvents(t *testing.T) {
	stream, _, emitter := New(4, event.NewQuery())

	res := emitter.Emit(event.Event{ID: 1, Data: "a"})
	assert.Equal(t, Emitted, res)

	msg, ok := stream.Recv()
	require.True(t, ok)
	require.NotNil(t, msg.Event)
	assert.Equal(t, uint64(1), msg.Event.ID)
}

func TestEmitSkipsEventsAtOrBelowOffset(t *testing.T) {
	_, _, emitter := New(4, event.NewQuery().WithOffset(5))
	assert.Equal(t, Skipped, emitter.Emit(event.Event{ID: 3}))
	assert.Equal(t, Skipped, emitter.Emit(event.Event{ID: 5}))
	assert.Equal(t, Emitted, emitter.Emit(event.Event{ID: 6}))
}

func TestEmitSkipsNonMatchingTag(t *testing.T) {
	_, _, emitter := New(4, event.NewQuery().WithTag("wanted"))
	assert.Equal(t, Skipped, emitter.Emit(event.Event{ID: 1, Tags: []string{"other"}}))
	assert.Equal(t, Emitted, emitter.Emit(event.Event{ID: 2, Tags: []string{"wanted"}}))
}

func TestEmitDeactivatesAtLimit(t *testing.T) {
	_, _, emitter := New(4, event.NewQuery().WithLimit(2))
	assert.Equal(t, Emitted, emitter.Emit(event.Event{ID: 1}))
	assert.True(t, emitter.Active())
	assert.Equal(t, Emitted, emitter.Emit(event.Event{ID: 2}))
	assert.False(t, emitter.Active())
	assert.Equal(t, Failed, emitter.Emit(event.Event{ID: 3}))
}

func TestEmitFailsOnFullBuffer(t *testing.T) {
	_, _, emitter := New(1, event.NewQuery())
	assert.Equal(t, Emitted, emitter.Emit(event.Event{ID: 1}))
	// Buffer (size 1) already holds the first message and nobody is
	// draining it, so the next Emit must fail and deactivate the emitter.
	assert.Equal(t, Failed, emitter.Emit(event.Event{ID: 2}))
	assert.False(t, emitter.Active())
}

func TestCloseSendsEndMarkerOnce(t *testing.T) {
	stream, _, emitter := New(4, event.NewQuery())
	emitter.Close()
	emitter.Close() // idempotent

	msg, ok := stream.Recv()
	require.True(t, ok)
	assert.True(t, msg.Ended)
	assert.Nil(t, msg.Event)
}

func TestUnsubscribeHandleDeactivates(t *testing.T) {
	_, handle, emitter := New(4, event.NewQuery())
	assert.True(t, emitter.Active())
	handle.Unsubscribe()
	assert.False(t, emitter.Active())
	assert.Equal(t, Failed, emitter.Emit(event.Event{ID: 1}))
}

func TestTryRecvReportsEmptyThenEvent(t *testing.T) {
	stream, _, emitter := New(4, event.NewQuery())

	_, err := stream.TryRecv()
	assert.ErrorIs(t, err, ErrEventStreamEmpty)

	assert.Equal(t, Emitted, emitter.Emit(event.Event{ID: 1, Data: "a"}))

	msg, err := stream.TryRecv()
	require.NoError(t, err)
	require.NotNil(t, msg.Event)
	assert.Equal(t, uint64(1), msg.Event.ID)

	_, err = stream.TryRecv()
	assert.ErrorIs(t, err, ErrEventStreamEmpty)
}

func TestTryRecvReportsClosedAfterEndMarker(t *testing.T) {
	stream, _, emitter := New(4, event.NewQuery())
	emitter.Close()

	_, err := stream.TryRecv()
	assert.ErrorIs(t, err, ErrEventStreamClosed)
}

func TestAllIteratesUntilEnd(t *testing.T) {
	stream, _, emitter := New(4, event.NewQuery())
	assert.Equal(t, Emitted, emitter.Emit(event.Event{ID: 1}))
	assert.Equal(t, Emitted, emitter.Emit(event.Event{ID: 2}))
	emitter.Close()

	var ids []uint64
	for ev := range stream.All() {
		ids = append(ids, ev.ID)
	}
	assert.Equal(t, []uint64{1, 2}, ids)
}
