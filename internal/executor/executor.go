// Package executor wraps a background-goroutine lifecycle: a control-message
// channel, a worker goroutine consuming it, and a clean stop. Publisher runs
// on Single; Logger does not use this package (it serializes appends with
// its own mutex on the caller's goroutine), and neither does Scanner (it
// manages its own worker goroutines). It is the Go equivalent of
// exar-core's thread.rs SingleThreadedExecutor/MultiThreadedExecutor — with
// channel close standing in for the explicit Stop sentinel message the
// original sends, since that is the idiomatic way to end a Go consumer loop.
package executor

import "github.com/klppl/evlogd/internal/router"

// Single runs one worker goroutine processing messages of type M in the
// order they are sent, until Stop is called.
type Single[M any] struct {
	ch   chan M
	done chan struct{}
}

// StartSingle launches handle in its own goroutine, ranging over a channel
// of the given buffer size until it is closed by Stop.
func StartSingle[M any](buffer int, handle func(M)) *Single[M] {
	ch := make(chan M, buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ch {
			handle(msg)
		}
	}()
	return &Single[M]{ch: ch, done: done}
}

// Send blocks until the worker accepts msg (or the channel buffer has room).
func (s *Single[M]) Send(msg M) { s.ch <- msg }

// TrySend delivers msg without blocking, reporting false if the channel
// buffer is full. Used on the backpressure-sensitive paths (per-subscriber
// delivery) where a slow consumer must not stall the rest of the system.
func (s *Single[M]) TrySend(msg M) bool {
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

// Stop closes the control channel and waits for the worker to drain and exit.
func (s *Single[M]) Stop() {
	close(s.ch)
	<-s.done
}

// Multi runs N worker goroutines, each with its own channel, fanned out to
// via a router.Router. Messages that must reach every worker use Broadcast;
// messages meant for exactly one worker use Route.
type Multi[M any] struct {
	chans  []chan M
	dones  []chan struct{}
	router *router.Router[M]
}

// StartMulti launches n worker goroutines. newHandler(i) builds the handler
// closure for worker i, so each worker can keep its own private state (a
// Scanner worker's reader and active-emitter list, for instance).
func StartMulti[M any](n, buffer int, strategy router.Strategy, newHandler func(worker int) func(M)) *Multi[M] {
	chans := make([]chan M, n)
	dones := make([]chan struct{}, n)
	senders := make([]chan<- M, n)

	for i := 0; i < n; i++ {
		ch := make(chan M, buffer)
		done := make(chan struct{})
		handle := newHandler(i)
		go func(ch chan M, done chan struct{}) {
			defer close(done)
			for msg := range ch {
				handle(msg)
			}
		}(ch, done)
		chans[i] = ch
		dones[i] = done
		senders[i] = ch
	}

	return &Multi[M]{chans: chans, dones: dones, router: router.New(senders, strategy)}
}

func (m *Multi[M]) Route(msg M)     { m.router.Route(msg) }
func (m *Multi[M]) Broadcast(msg M) { m.router.Broadcast(msg) }
func (m *Multi[M]) Workers() int    { return len(m.chans) }

// Stop closes every worker's channel and waits for all of them to exit.
func (m *Multi[M]) Stop() {
	for _, ch := range m.chans {
		close(ch)
	}
	for _, done := range m.dones {
		<-done
	}
}
