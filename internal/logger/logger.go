// Package logger implements the single-writer event appender: the only
// component in a collection allowed to open the log file for writing.
// Grounded on exar-core/src/logger.rs (offset/bytes_written bookkeeping,
// publish-after-write ordering) and its appender.rs precursor (collapsed
// here into one type, per SPEC_FULL.md's Open Question #2 resolution).
package logger

import (
	"log/slog"
	"sync"
	"time"

	"github.com/klppl/evlogd/internal/dberr"
	"github.com/klppl/evlogd/internal/event"
	"github.com/klppl/evlogd/internal/logstore"
	"github.com/klppl/evlogd/internal/publisher"
)

// Logger serializes every append to a collection's log: it assigns the next
// id, stamps the timestamp if the caller didn't set one, writes the encoded
// line, advances the shared LinesIndex at granularity boundaries, and
// notifies the Publisher. Every field below is only ever touched while mu is
// held, so a Logger is safe for concurrent use by multiple callers.
type Logger struct {
	mu      sync.Mutex
	log     *logstore.Log
	writer  *logstore.LineWriter
	pub     *publisher.Publisher
	offset  uint64 // id that will be assigned to the next logged event
	written uint64 // bytes written so far, mirrors writer.Pos()
}

// Open creates a Logger for log, recovering offset/bytes_written from
// whatever is already on disk so a process restart resumes ids correctly
// (the restart-survival guarantee of SPEC_FULL.md §8, scenario S7).
func Open(log *logstore.Log, pub *publisher.Publisher) (*Logger, error) {
	lineCount, byteCount, err := log.ComputeIndex()
	if err != nil {
		return nil, err
	}
	w, err := log.OpenWriter()
	if err != nil {
		return nil, err
	}
	return &Logger{
		log:     log,
		writer:  w,
		pub:     pub,
		offset:  lineCount + 1,
		written: byteCount,
	}, nil
}

// Log validates ev, assigns it the next id (and a timestamp, if unset),
// appends it, and publishes it — in that order, matching exar-core's
// write-then-publish sequencing so a subscriber never observes an event id
// before it is durable on disk. It returns the assigned id.
func (l *Logger) Log(ev event.Event) (uint64, error) {
	if err := ev.Validate(); err != nil {
		return 0, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.offset
	ev = ev.WithID(id)
	if ev.Timestamp == 0 {
		ev = ev.WithTimestamp(time.Now().Unix())
	}

	n, err := l.writer.WriteLine(ev.Encode())
	if err != nil {
		return 0, dberr.Wrap(dberr.IO, "failed to append event", err)
	}
	l.offset++
	l.written += n

	if id%l.log.Granularity() == 0 {
		l.log.Index().Insert(id, l.written)
	}

	if !l.pub.Publish(ev) {
		slog.Warn("logger: publish notification dropped", "collection", l.log.Name(), "event_id", id)
	}
	return id, nil
}

// Flush forces any buffered writer state to the file. LineWriter flushes on
// every write already, so this exists mainly to satisfy callers expecting an
// explicit flush point (e.g. before Collection.Truncate removes the file).
func (l *Logger) Flush() error {
	return nil
}

// BytesWritten reports the total number of bytes appended so far.
func (l *Logger) BytesWritten() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.written
}

// NextOffset reports the id that would be assigned to the next logged event.
func (l *Logger) NextOffset() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.offset
}

// Close releases the writer's file descriptor. The Logger must not be used
// afterward.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writer.Close()
}
