// Package scanner replays historical events for newly registered
// subscriptions and hands each one off to the Publisher once its replay
// catches up with the present. Grounded on exar-core/src/scanner.rs, but
// seeking via logstore.IndexedLineReader.Seek rather than that file's
// rejected re-seek-to-byte-zero-and-skip(offset) approach (see DESIGN.md);
// the handoff-at-the-boundary idea itself mirrors the teacher's
// LogBroadcaster.Subscribe (history snapshot + live channel).
package scanner

import (
	"io"
	"log/slog"

	"github.com/klppl/evlogd/internal/event"
	"github.com/klppl/evlogd/internal/logstore"
	"github.com/klppl/evlogd/internal/publisher"
	"github.com/klppl/evlogd/internal/router"
	"github.com/klppl/evlogd/internal/subscription"
)

type message struct {
	emitter *subscription.Emitter
}

// Scanner runs N worker goroutines, each with its own reader over the same
// log file, replaying history for the subscriptions routed to it.
//
// Unlike Publisher, a worker here must interleave draining newly
// registered subscriptions with an ongoing forward scan, so it runs its own
// loop directly over a channel rather than through internal/executor (whose
// single-message-at-a-time model doesn't fit this worker's idle/scanning
// states).
type Scanner struct {
	name   string
	chans  []chan message
	dones  []chan struct{}
	router *router.Router[message]
}

// Start opens threads independent readers against log and launches that
// many worker goroutines, distributing newly Register-ed subscriptions
// across them according to strategy.
func Start(name string, log *logstore.Log, pub *publisher.Publisher, threads, buffer int, strategy router.Strategy) (*Scanner, error) {
	if threads < 1 {
		threads = 1
	}
	chans := make([]chan message, threads)
	dones := make([]chan struct{}, threads)
	senders := make([]chan<- message, threads)
	opened := make([]*logstore.IndexedLineReader, 0, threads)

	for i := 0; i < threads; i++ {
		r, err := log.OpenReader()
		if err != nil {
			for _, o := range opened {
				o.Close()
			}
			return nil, err
		}
		opened = append(opened, r)

		ch := make(chan message, buffer)
		done := make(chan struct{})
		w := &worker{name: name, reader: r, pub: pub}
		go w.run(ch, done)

		chans[i] = ch
		dones[i] = done
		senders[i] = ch
	}

	return &Scanner{name: name, chans: chans, dones: dones, router: router.New(senders, strategy)}, nil
}

// Register routes e to one worker, chosen by the scanner's RoutingStrategy,
// to begin historical replay from e's configured offset.
func (s *Scanner) Register(e *subscription.Emitter) {
	s.router.Route(message{emitter: e})
}

// Stop closes every worker's channel and waits for it to exit.
func (s *Scanner) Stop() {
	for _, ch := range s.chans {
		close(ch)
	}
	for _, done := range s.dones {
		<-done
	}
}

type worker struct {
	name   string
	reader *logstore.IndexedLineReader
	pub    *publisher.Publisher
	active []*subscription.Emitter
}

func (w *worker) run(ch <-chan message, done chan<- struct{}) {
	defer close(done)
	defer w.reader.Close()

	for {
		if len(w.active) == 0 {
			msg, ok := <-ch
			if !ok {
				return
			}
			w.register(msg.emitter)
			continue
		}

		for drained := false; !drained; {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				w.register(msg.emitter)
			default:
				drained = true
			}
		}

		w.scanOnce()
	}
}

func (w *worker) register(e *subscription.Emitter) {
	if e.Active() {
		w.active = append(w.active, e)
	}
}

// scanOnce seeks to the lowest offset among active emitters and replays
// forward until the reader runs out of lines, then hands off or drops every
// emitter that has caught up.
func (w *worker) scanOnce() {
	min := w.minOffset()
	if _, err := w.reader.Seek(logstore.SeekStart, int64(min)); err != nil {
		slog.Error("scanner: seek failed", "collection", w.name, "error", err)
		return
	}

	for {
		line, err := w.reader.ReadLine()
		if err != nil {
			if err != io.EOF {
				slog.Error("scanner: read failed", "collection", w.name, "error", err)
			}
			break
		}
		ev, err := event.Decode(line)
		if err != nil {
			slog.Error("scanner: malformed log line, skipping", "collection", w.name, "error", err)
			continue
		}
		for _, e := range w.active {
			e.Emit(ev)
		}
	}

	w.handoffCaughtUp()
}

func (w *worker) minOffset() uint64 {
	min := w.active[0].Offset()
	for _, e := range w.active[1:] {
		if o := e.Offset(); o < min {
			min = o
		}
	}
	return min
}

// handoffCaughtUp removes every emitter whose offset has reached the
// reader's current position (the log's line count as of this pass): a
// live-stream emitter is registered with the Publisher — using its final
// replayed offset, so should_emit naturally filters out anything the
// Publisher would otherwise redeliver — a non-live emitter's stream simply
// ends. Any emitter still behind (because another emitter's lower offset
// bounded this pass's seek) stays active for the next scanOnce.
func (w *worker) handoffCaughtUp() {
	end := w.reader.Pos()
	remaining := w.active[:0]
	for _, e := range w.active {
		if !e.Active() {
			e.Close()
			continue
		}
		if e.Offset() < end {
			remaining = append(remaining, e)
			continue
		}
		if e.Query().LiveStream {
			w.pub.Register(e)
		} else {
			e.Close()
		}
	}
	w.active = remaining
}
