// Package router implements broadcast and strategy-routed delivery across a
// set of Go channels, the Go equivalent of exar-core's messaging.rs
// Router<T>/SendMessage<T> and routing_strategy.rs RoutingStrategy.
package router

import (
	"math/rand"
	"sync"
)

// Strategy picks which of N channels a routed message lands on.
type Strategy int

const (
	// RoundRobin cycles through channels in order, wrapping around. This is
	// the default, matching exar-core's RoutingStrategy::default().
	RoundRobin Strategy = iota
	Random
)

func (s Strategy) String() string {
	if s == Random {
		return "random"
	}
	return "round_robin"
}

// ParseStrategy parses the config string form ("random" | "round_robin"),
// defaulting to RoundRobin for an empty or unrecognized value.
func ParseStrategy(s string) Strategy {
	if s == "random" {
		return Random
	}
	return RoundRobin
}

// Router fans a message out to every channel (Broadcast) or delivers it to
// exactly one, chosen by Strategy (Route).
type Router[M any] struct {
	mu       sync.Mutex
	senders  []chan<- M
	strategy Strategy
	next     int
}

func New[M any](senders []chan<- M, strategy Strategy) *Router[M] {
	return &Router[M]{senders: senders, strategy: strategy}
}

// Broadcast sends msg to every channel, blocking on each in turn.
func (r *Router[M]) Broadcast(msg M) {
	for _, s := range r.senders {
		s <- msg
	}
}

// Route delivers msg to exactly one channel, chosen according to Strategy.
// RoundRobin is strictly fair: across len(senders) consecutive calls, every
// channel receives exactly one message, in order, regardless of concurrent
// callers (the index is claimed under the router's mutex before sending).
func (r *Router[M]) Route(msg M) {
	r.target() <- msg
}

func (r *Router[M]) target() chan<- M {
	if len(r.senders) == 1 {
		return r.senders[0]
	}
	switch r.strategy {
	case Random:
		return r.senders[rand.Intn(len(r.senders))]
	default:
		r.mu.Lock()
		i := r.next
		r.next = (r.next + 1) % len(r.senders)
		r.mu.Unlock()
		return r.senders[i]
	}
}

// Len reports how many channels this router fans out to.
func (r *Router[M]) Len() int { return len(r.senders) }
