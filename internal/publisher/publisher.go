// Package publisher implements live event fan-out: once an EventEmitter has
// caught up with history (handed off by the Scanner), the Publisher is the
// only thing that ever calls Emit on it again, in the exact order the
// Logger appended events. Grounded on exar-core/src/publisher.rs, adapted
// to use internal/executor instead of a bespoke thread+channel pair, and on
// the teacher's LogBroadcaster fan-out-with-drop pattern.
package publisher

import (
	"log/slog"

	"github.com/klppl/evlogd/internal/event"
	"github.com/klppl/evlogd/internal/executor"
	"github.com/klppl/evlogd/internal/subscription"
)

type msgKind int

const (
	msgRegister msgKind = iota
	msgPublish
	msgShutdown
)

type message struct {
	kind    msgKind
	emitter *subscription.Emitter
	event   event.Event
}

// Publisher fans out events published through a Logger to every
// currently-registered, currently-active EventEmitter.
type Publisher struct {
	exec     *executor.Single[message]
	collName string
}

// Start launches a Publisher for a collection named name (used only for log
// fields), with the control-channel buffer sized by buffer.
func Start(name string, buffer int) *Publisher {
	state := &workerState{name: name}
	p := &Publisher{collName: name}
	p.exec = executor.StartSingle[message](buffer, state.handle)
	return p
}

// Register adds emitter to the live fan-out set. Called by the Scanner once
// an emitter's historical replay has caught up to the present.
func (p *Publisher) Register(e *subscription.Emitter) {
	p.exec.Send(message{kind: msgRegister, emitter: e})
}

// Publish delivers ev to every registered emitter, in call order. Publish
// itself never blocks on a slow subscriber — that is enforced inside
// Emitter.Emit's bounded-channel send — but it returns false (and the event
// is not fanned out) if the Publisher's own control channel (sized by publisher.buffer_size) is full,
// meaning the Logger is appending faster than the Publisher can drain.
func (p *Publisher) Publish(ev event.Event) bool {
	return p.exec.TrySend(message{kind: msgPublish, event: ev})
}

// Stop closes every remaining emitter (sending the end-of-stream marker)
// and shuts down the worker goroutine. The shutdown message is processed
// before the control channel is closed, since a close only stops delivery
// of further sends — already-buffered messages still drain first.
func (p *Publisher) Stop() {
	p.exec.Send(message{kind: msgShutdown})
	p.exec.Stop()
}

type workerState struct {
	name     string
	emitters []*subscription.Emitter
}

func (s *workerState) handle(msg message) {
	switch msg.kind {
	case msgRegister:
		s.emitters = append(s.emitters, msg.emitter)
	case msgPublish:
		s.publish(msg.event)
	case msgShutdown:
		for _, e := range s.emitters {
			e.Close()
		}
		s.emitters = nil
	}
}

func (s *workerState) publish(ev event.Event) {
	kept := s.emitters[:0]
	for _, e := range s.emitters {
		result := e.Emit(ev)
		if result == subscription.Failed || !e.Active() {
			e.Close()
			slog.Debug("publisher dropped subscriber", "collection", s.name, "event_id", ev.ID)
			continue
		}
		kept = append(kept, e)
	}
	s.emitters = kept
}
