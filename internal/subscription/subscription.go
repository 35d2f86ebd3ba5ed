// Package subscription implements per-subscriber state: the EventEmitter
// that Scanner/Publisher push events through, and the EventStream/
// UnsubscribeHandle pair the caller reads from and cancels with.
//
// The bounded channel and drop-on-full policy here mirror
// internal/server's LogBroadcaster.Subscribe in the teacher repo (a history
// snapshot + live channel + cancel func, non-blocking send that drops
// rather than blocks a slow consumer) more than the original exar-core
// subscription.rs, which used unbounded channels — spec.md flags that as a
// design smell to fix, and this is the fix.
package subscription

import (
	"iter"
	"sync"

	"github.com/klppl/evlogd/internal/dberr"
	"github.com/klppl/evlogd/internal/event"
)

// Message is one item delivered on an EventStream. Event is nil exactly
// when Ended is true, marking the end of the stream (subscriber dropped, or
// the query's Limit was reached).
type Message struct {
	Event *event.Event
	Ended bool
}

// EventStream is the read side of a subscription.
type EventStream struct {
	ch <-chan Message
}

// Recv blocks for the next message. ok is false once the stream has ended
// and no more messages will arrive.
func (s *EventStream) Recv() (Message, bool) {
	m, ok := <-s.ch
	return m, ok
}

// TryRecv returns the next pending message without blocking. It returns
// ErrEventStreamEmpty when nothing is buffered yet but the stream is still
// open, and ErrEventStreamClosed once the end-of-stream marker has been
// read or the channel itself has been closed — mirroring exar-core's
// EventStream::try_recv, which collapses EventStreamMessage::End and a
// disconnected receiver into the same Closed error.
func (s *EventStream) TryRecv() (Message, error) {
	select {
	case m, ok := <-s.ch:
		if !ok || m.Ended {
			return Message{}, ErrEventStreamClosed
		}
		return m, nil
	default:
		return Message{}, ErrEventStreamEmpty
	}
}

// All returns a range-over-func iterator yielding every event delivered on
// the stream until it ends, the Go counterpart of exar-core's
// `impl Iterator for EventStream`. Stopping the range early (break) leaves
// the stream usable for further Recv/TryRecv calls.
func (s *EventStream) All() iter.Seq[event.Event] {
	return func(yield func(event.Event) bool) {
		for {
			m, ok := s.Recv()
			if !ok || m.Ended {
				return
			}
			if m.Event == nil {
				continue
			}
			if !yield(*m.Event) {
				return
			}
		}
	}
}

// UnsubscribeHandle lets a caller end its own subscription from outside the
// Emitter's owning goroutine (Scanner or Publisher).
type UnsubscribeHandle struct {
	emitter *Emitter
}

func (u *UnsubscribeHandle) Unsubscribe() {
	u.emitter.deactivate()
}

// EmitResult reports what happened when Emitter.Emit was called.
type EmitResult int

const (
	Skipped EmitResult = iota // query didn't match, or event precedes offset
	Emitted
	Failed // send failed (closed/full channel) or the emitter is no longer active
)

// Emitter is the owned, mutable side of a subscription: it decides whether
// an event should be delivered and performs the delivery. Scanner workers
// and the Publisher each hold a registered Emitter and call Emit as events
// become available; exactly one of them owns an Emitter at a time (see
// internal/scanner's replay-to-live handoff).
type Emitter struct {
	mu     sync.Mutex
	active bool
	closed bool
	sender chan<- Message
	query  event.Query
	offset uint64 // last event id already seen; should_emit requires id > offset
	count  uint64
}

// New creates a Subscription/Emitter pair. bufferSize bounds the channel
// between the Emitter and the subscriber; it is chosen by the caller of
// Collection.Subscribe (the TCP server passes 64), not by
// publisher.buffer_size, which sizes the Publisher's control channel.
func New(bufferSize int, q event.Query) (*EventStream, *UnsubscribeHandle, *Emitter) {
	ch := make(chan Message, bufferSize)
	e := &Emitter{active: true, sender: ch, query: q, offset: q.Offset}
	return &EventStream{ch: ch}, &UnsubscribeHandle{emitter: e}, e
}

func (e *Emitter) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Emitter) Offset() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offset
}

func (e *Emitter) Query() event.Query {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.query
}

// Emit considers ev for delivery. offset always advances to ev.ID once ev
// has been considered (whether or not the query's tag filter matched) so a
// replay never re-examines the same event twice; count and the Limit check
// only advance on an actual delivery. On Failed (the bounded channel was
// full, or the emitter was already inactive/closed) the caller is expected
// to drop the emitter — this reimplementation's backpressure policy is
// immediate deactivation, not a retry budget.
func (e *Emitter) Emit(ev event.Event) EmitResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || !e.active {
		return Failed
	}
	if ev.ID <= e.offset {
		return Skipped
	}
	e.offset = ev.ID
	if !e.query.Matches(ev) {
		return Skipped
	}

	evCopy := ev
	select {
	case e.sender <- Message{Event: &evCopy}:
	default:
		e.active = false
		return Failed
	}

	e.count++
	if e.query.Limit > 0 && e.count >= e.query.Limit {
		e.active = false
	}
	return Emitted
}

func (e *Emitter) deactivate() {
	e.mu.Lock()
	e.active = false
	e.mu.Unlock()
}

// Close marks the emitter inactive and sends the end-of-stream marker
// exactly once, regardless of how many times Close is called — the Go
// equivalent of the original's Drop impl, called explicitly at every point
// ownership of an Emitter ends (Scanner replay completing without handoff,
// Publisher shutting down, a subscriber unsubscribing).
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.active = false
	sender := e.sender
	e.mu.Unlock()

	select {
	case sender <- Message{Ended: true}:
	default:
		// Subscriber's buffer is full and not draining; dropping the end
		// marker is acceptable since Recv will observe the channel close.
	}
	close(sender)
	// Closing here (rather than relying on GC) is the deliberate Go
	// stand-in for Rust's Drop: ownership transfer points call Close
	// explicitly instead of depending on a destructor.
}

// ErrEventStreamEmpty/ErrEventStreamClosed classify EventStream.TryRecv
// failures for callers that want the DBError taxonomy rather than a bare
// (Message, false).
var (
	ErrEventStreamEmpty  = dberr.New(dberr.EventStreamEmpty, "event stream has no buffered events")
	ErrEventStreamClosed = dberr.New(dberr.EventStreamClosed, "event stream is closed")
)
