// Package collection composes one Log with its Logger, Publisher and
// Scanner into the single unit of storage a client publishes/subscribes
// against. Grounded on exar-core/src/collection.rs.
package collection

import (
	"sync"

	"github.com/klppl/evlogd/internal/event"
	"github.com/klppl/evlogd/internal/logger"
	"github.com/klppl/evlogd/internal/logstore"
	"github.com/klppl/evlogd/internal/publisher"
	"github.com/klppl/evlogd/internal/router"
	"github.com/klppl/evlogd/internal/scanner"
	"github.com/klppl/evlogd/internal/subscription"
)

// Config mirrors exar-core's CollectionConfig: the data/scanner/publisher
// knobs a Store applies per collection, possibly overridden by name.
type Config struct {
	LogsPath         string
	IndexGranularity uint64
	ScannerThreads   int
	ScannerBuffer    int
	RoutingStrategy  router.Strategy
	PublisherBuffer  int
}

// Stats is a read-only operational snapshot, supplementing spec.md with the
// kind of visibility the teacher's admin endpoints expose.
type Stats struct {
	Name           string
	LineCount      uint64
	ByteCount      uint64
	IndexEntries   int
	NextEventID    uint64
}

// Collection owns one log file's full set of background threads. Only
// Store should construct one directly; Publish/Subscribe/Stats/Truncate are
// safe for concurrent use by multiple callers — Store hands the same
// *Collection to every connection that opens it, so Truncate replacing
// log/logger/pub/scan underneath a concurrent Publish or Subscribe needs
// mu held on both sides.
type Collection struct {
	mu     sync.RWMutex
	name   string
	cfg    Config
	log    *logstore.Log
	logger *logger.Logger
	pub    *publisher.Publisher
	scan   *scanner.Scanner
}

// Open creates (or reopens) the named collection under cfg.LogsPath,
// launching its Publisher and Scanner threads and recovering the Logger's
// offset/bytes_written from whatever is already on disk.
func Open(name string, cfg Config) (*Collection, error) {
	log := logstore.Open(cfg.LogsPath, name, cfg.IndexGranularity)
	if err := log.EnsureExists(); err != nil {
		return nil, err
	}

	pub := publisher.Start(name, cfg.PublisherBuffer)

	scan, err := scanner.Start(name, log, pub, cfg.ScannerThreads, cfg.ScannerBuffer, cfg.RoutingStrategy)
	if err != nil {
		pub.Stop()
		return nil, err
	}

	lg, err := logger.Open(log, pub)
	if err != nil {
		scan.Stop()
		pub.Stop()
		return nil, err
	}

	return &Collection{name: name, cfg: cfg, log: log, logger: lg, pub: pub, scan: scan}, nil
}

// Name returns the collection's name.
func (c *Collection) Name() string { return c.name }

// Publish appends ev, returning the assigned event id.
func (c *Collection) Publish(ev event.Event) (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger.Log(ev)
}

// Subscribe registers a new subscription matching q and returns the stream
// the caller reads from plus a handle to end it early.
func (c *Collection) Subscribe(bufferSize int, q event.Query) (*subscription.EventStream, *subscription.UnsubscribeHandle) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	stream, handle, emitter := subscription.New(bufferSize, q)
	c.scan.Register(emitter)
	return stream, handle
}

// Flush is a no-op beyond what Logger.Log already guarantees (every write
// is flushed immediately) — kept to mirror the Collection API's shape in
// exar-core, where a caller can flush before truncating.
func (c *Collection) Flush() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger.Flush()
}

// Stats returns an operational snapshot of the collection's current state.
func (c *Collection) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Name:         c.name,
		LineCount:    c.logger.NextOffset() - 1,
		ByteCount:    c.logger.BytesWritten(),
		IndexEntries: c.log.Index().Len(),
		NextEventID:  c.logger.NextOffset(),
	}
}

// stopThreadsLocked stops the Scanner and Publisher threads and closes the
// Logger's file descriptor, in that order so no in-flight replay or publish
// outlives the handle it depends on. Callers must hold mu for writing.
func (c *Collection) stopThreadsLocked() error {
	c.scan.Stop()
	c.pub.Stop()
	return c.logger.Close()
}

// Truncate stops every background thread, unconditionally removes the
// backing file, and restarts from scratch — the Go equivalent of
// exar-core's Collection::truncate (log.remove() followed by reset()).
// Unlike Close, this removes the file regardless of bytes_written: a
// truncate on a collection that already holds events must still clear it.
func (c *Collection) Truncate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.stopThreadsLocked(); err != nil {
		return err
	}
	if err := c.log.Remove(); err != nil {
		return err
	}

	fresh, err := Open(c.name, c.cfg)
	if err != nil {
		return err
	}
	c.log = fresh.log
	c.logger = fresh.logger
	c.pub = fresh.pub
	c.scan = fresh.scan
	return nil
}

// Close stops the collection's background threads and, if no bytes were
// ever written to the log, removes the backing file — the Go equivalent of
// exar-core's Drop impl for Collection, which only removes an empty log.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	empty := c.logger.BytesWritten() == 0
	if err := c.stopThreadsLocked(); err != nil {
		return err
	}
	if empty {
		return c.log.Remove()
	}
	return nil
}
