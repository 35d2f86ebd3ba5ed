// Package event defines the Event value type and its tab-separated on-disk
// and on-wire encoding. An Event is the unit the rest of evlog moves around:
// the Logger appends it, the Scanner replays it, the Publisher fans it out.
package event

import (
	"strconv"
	"strings"
	"time"

	"github.com/klppl/evlogd/internal/dberr"
)

// Event is one record in a collection's log. ID is the 1-based line number
// assigned by the Logger at append time; callers never set it themselves.
type Event struct {
	ID        uint64
	Tags      []string
	Timestamp int64 // unix seconds
	Data      string
}

// New builds an unpublished event (ID and Timestamp are filled in by Logger.Log).
func New(data string, tags ...string) Event {
	return Event{Tags: tags, Data: data}
}

// WithTimestamp overrides the timestamp that would otherwise be assigned at publish time.
func (e Event) WithTimestamp(ts int64) Event {
	e.Timestamp = ts
	return e
}

// WithID returns a copy of e with ID set. Used by Logger once an id is assigned.
func (e Event) WithID(id uint64) Event {
	e.ID = id
	return e
}

// Validate drops blank tags and fails once the tag list becomes empty,
// mirroring the original's without_empty_tags followed by an unconditional
// is_empty check: no tags at all and a list whose every entry is blank
// (e.g. "" and "  ") both end up empty, so both are rejected.
func (e *Event) Validate() error {
	kept := make([]string, 0, len(e.Tags))
	for _, t := range e.Tags {
		if strings.TrimSpace(t) != "" {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		return dberr.New(dberr.Validation, "event has no tags")
	}
	e.Tags = kept
	return nil
}

// fieldCount is the number of tab-separated fields in an encoded Event:
// id, tags, timestamp, data.
const fieldCount = 4

// Encode renders e as one tab-separated line (without a trailing newline).
func (e Event) Encode() string {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(e.ID, 10))
	b.WriteByte('\t')
	b.WriteString(strings.Join(e.Tags, " "))
	b.WriteByte('\t')
	ts := e.Timestamp
	if ts == 0 {
		ts = time.Now().Unix()
	}
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteByte('\t')
	b.WriteString(e.Data)
	return b.String()
}

// Decode parses one tab-separated line previously produced by Encode.
// The data field is allowed to contain further tabs; only the first three
// separators are significant.
func Decode(line string) (Event, error) {
	parts := strings.SplitN(line, "\t", fieldCount)
	if len(parts) < fieldCount {
		return Event{}, dberr.MissingFieldAt(len(parts))
	}

	id, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return Event{}, dberr.Wrap(dberr.Parse, "invalid event id", err)
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Event{}, dberr.Wrap(dberr.Parse, "invalid event timestamp", err)
	}

	var tags []string
	if parts[1] != "" {
		tags = strings.Split(parts[1], " ")
	}

	return Event{
		ID:        id,
		Tags:      tags,
		Timestamp: ts,
		Data:      parts[3],
	}, nil
}
