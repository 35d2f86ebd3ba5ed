package server

import (
	"bufio"
	"log/slog"
	"net"
	"sync"

	"github.com/klppl/evlogd/internal/collection"
	"github.com/klppl/evlogd/internal/dberr"
	"github.com/klppl/evlogd/internal/event"
	"github.com/klppl/evlogd/internal/subscription"
	"github.com/klppl/evlogd/internal/wire"
	"golang.org/x/time/rate"
)

// conn is one client's state machine: read wire.Message lines off nc,
// dispatch Connect/Publish/Subscribe, write responses back. Grounded on the
// teacher's per-connection goroutine shape in internal/server/server.go,
// generalized from HTTP handlers to a long-lived line protocol loop.
type conn struct {
	id      string
	nc      net.Conn
	w       *bufio.Writer
	srv     *Server
	limiter *rate.Limiter
	log     *slog.Logger

	writeMu sync.Mutex

	coll *collection.Collection

	subMu sync.Mutex
	unsub *subscription.UnsubscribeHandle
}

func (c *conn) serve() {
	scanner := bufio.NewScanner(c.nc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		msg, err := wire.Decode(scanner.Text())
		if err != nil {
			c.writeError(err)
			continue
		}
		c.dispatch(msg)
	}

	c.subMu.Lock()
	if c.unsub != nil {
		c.unsub.Unsubscribe()
	}
	c.subMu.Unlock()
}

func (c *conn) dispatch(msg wire.Message) {
	switch msg.Kind {
	case wire.Connect:
		c.handleConnect(msg)
	case wire.Publish:
		c.handlePublish(msg)
	case wire.Subscribe:
		c.handleSubscribe(msg)
	default:
		c.writeError(dberr.Newf(dberr.Connection, "unexpected message kind: %s", msg.Kind))
	}
}

func (c *conn) handleConnect(msg wire.Message) {
	if !c.srv.authenticate(msg.Password) {
		c.log.Warn("authentication failed", "collection", msg.Collection, "username", msg.Username)
		c.writeError(dberr.New(dberr.Authentication, "invalid credentials"))
		return
	}

	coll, err := c.srv.store.Collection(msg.Collection)
	if err != nil {
		c.writeError(err)
		return
	}
	c.coll = coll
	c.log.Info("connected to collection", "collection", msg.Collection)
	c.writeMsg(wire.Message{Kind: wire.Connected})
}

func (c *conn) handlePublish(msg wire.Message) {
	if c.coll == nil {
		c.writeError(dberr.New(dberr.Connection, "not connected to a collection"))
		return
	}
	if !c.limiter.Allow() {
		c.writeError(dberr.New(dberr.Subscription, "publish rate limit exceeded"))
		return
	}

	id, err := c.coll.Publish(msg.Event)
	if err != nil {
		c.writeError(err)
		return
	}
	c.writeMsg(wire.Message{Kind: wire.Published, EventID: id})
}

func (c *conn) handleSubscribe(msg wire.Message) {
	if c.coll == nil {
		c.writeError(dberr.New(dberr.Connection, "not connected to a collection"))
		return
	}

	c.subMu.Lock()
	if c.unsub != nil {
		c.unsub.Unsubscribe()
		c.unsub = nil
	}
	c.subMu.Unlock()

	q := event.NewQuery().WithOffset(msg.Offset)
	if msg.Live {
		q = q.WithLiveStream()
	}
	if msg.Limit > 0 {
		q = q.WithLimit(msg.Limit)
	}
	if msg.Tag != "" {
		q = q.WithTag(msg.Tag)
	}

	stream, handle := c.coll.Subscribe(64, q)
	c.subMu.Lock()
	c.unsub = handle
	c.subMu.Unlock()

	c.writeMsg(wire.Message{Kind: wire.Subscribed})
	go c.pumpStream(stream)
}

// pumpStream forwards every Event/end-of-stream message from stream onto
// the connection until the subscription ends — run on its own goroutine so
// a long-lived live subscription never blocks the connection's read loop
// from handling the next Publish or Subscribe request.
func (c *conn) pumpStream(stream *subscription.EventStream) {
	for {
		m, ok := stream.Recv()
		if !ok {
			return
		}
		if m.Ended {
			c.writeMsg(wire.Message{Kind: wire.EndOfEventStream})
			return
		}
		c.writeMsg(wire.Message{Kind: wire.Event, Event: *m.Event})
	}
}

func (c *conn) writeMsg(msg wire.Message) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if _, err := c.w.WriteString(msg.Encode()); err != nil {
		c.log.Error("write failed", "error", err)
		return
	}
	if err := c.w.WriteByte('\n'); err != nil {
		c.log.Error("write failed", "error", err)
		return
	}
	if err := c.w.Flush(); err != nil {
		c.log.Error("flush failed", "error", err)
	}
}

func (c *conn) writeError(err error) {
	derr, ok := err.(*dberr.Error)
	if !ok {
		derr = dberr.Wrap(dberr.Internal, "unexpected error", err)
	}
	c.writeMsg(wire.Message{Kind: wire.Error, ErrorKind: derr.Kind, ErrorMessage: derr.Message})
}
