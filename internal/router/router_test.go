package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(ch chan int) int {
	select {
	case v := <-ch:
		return v
	default:
		return -1
	}
}

func TestRoundRobinIsFair(t *testing.T) {
	n := 4
	chans := make([]chan int, n)
	senders := make([]chan<- int, n)
	for i := range chans {
		chans[i] = make(chan int, 10)
		senders[i] = chans[i]
	}
	r := New(senders, RoundRobin)

	for round := 0; round < 3; round++ {
		for i := 0; i < n; i++ {
			r.Route(i)
		}
	}

	for i, ch := range chans {
		assert.Len(t, ch, 3, "channel %d should have received exactly 3 messages", i)
		for len(ch) > 0 {
			v := drain(ch)
			assert.Equal(t, i, v)
		}
	}
}

func TestBroadcastReachesEveryChannel(t *testing.T) {
	chans := make([]chan int, 3)
	senders := make([]chan<- int, 3)
	for i := range chans {
		chans[i] = make(chan int, 1)
		senders[i] = chans[i]
	}
	r := New(senders, RoundRobin)
	r.Broadcast(42)
	for _, ch := range chans {
		require.Len(t, ch, 1)
		assert.Equal(t, 42, <-ch)
	}
}

func TestRandomStrategyDeliversToExactlyOne(t *testing.T) {
	chans := make([]chan int, 5)
	senders := make([]chan<- int, 5)
	for i := range chans {
		chans[i] = make(chan int, 1)
		senders[i] = chans[i]
	}
	r := New(senders, Random)
	r.Route(7)

	delivered := 0
	for _, ch := range chans {
		if len(ch) == 1 {
			delivered++
			assert.Equal(t, 7, <-ch)
		}
	}
	assert.Equal(t, 1, delivered)
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, Random, ParseStrategy("random"))
	assert.Equal(t, RoundRobin, ParseStrategy("round_robin"))
	assert.Equal(t, RoundRobin, ParseStrategy(""))
	assert.Equal(t, RoundRobin, ParseStrategy("bogus"))
}
