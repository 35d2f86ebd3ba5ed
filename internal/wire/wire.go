// Package wire implements the TCP line protocol clients speak to talk to a
// Store: one tab-separated message per line, mirroring the on-disk Event
// codec in internal/event. Grounded in exar-net/src/protocol.rs's
// TcpMessage enum and its comment-documented grammar.
package wire

import (
	"strconv"
	"strings"

	"github.com/klppl/evlogd/internal/dberr"
	"github.com/klppl/evlogd/internal/event"
)

// Kind identifies which of the nine wire message shapes a Message carries.
type Kind int

const (
	Connect Kind = iota
	Connected
	Publish
	Published
	Subscribe
	Subscribed
	Event
	EndOfEventStream
	Error
)

func (k Kind) String() string {
	switch k {
	case Connect:
		return "Connect"
	case Connected:
		return "Connected"
	case Publish:
		return "Publish"
	case Published:
		return "Published"
	case Subscribe:
		return "Subscribe"
	case Subscribed:
		return "Subscribed"
	case Event:
		return "Event"
	case EndOfEventStream:
		return "EndOfEventStream"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Message is the sum of every shape the protocol carries. Only the fields
// relevant to Kind are meaningful — the Go equivalent of the original's
// per-variant enum payload, flattened into one struct since Go has no
// algebraic sum type.
type Message struct {
	Kind Kind

	// Connect
	Collection string
	Username   string
	Password   string

	// Publish / Event
	Event event.Event

	// Published
	EventID uint64

	// Subscribe
	Live   bool
	Offset uint64
	Limit  uint64 // 0 means unlimited
	Tag    string

	// Error
	ErrorKind    dberr.Kind
	ErrorMessage string
}

// Encode renders m as one tab-separated line (without a trailing newline).
func (m Message) Encode() string {
	switch m.Kind {
	case Connect:
		if m.Username != "" && m.Password != "" {
			return join(m.Kind.String(), m.Collection, m.Username, m.Password)
		}
		return join(m.Kind.String(), m.Collection)
	case Connected:
		return m.Kind.String()
	case Publish:
		return join(m.Kind.String(), strings.Join(m.Event.Tags, " "), strconv.FormatInt(m.Event.Timestamp, 10), m.Event.Data)
	case Published:
		return join(m.Kind.String(), strconv.FormatUint(m.EventID, 10))
	case Subscribe:
		fields := []string{m.Kind.String(), strconv.FormatBool(m.Live), strconv.FormatUint(m.Offset, 10)}
		switch {
		case m.Limit > 0 && m.Tag != "":
			fields = append(fields, strconv.FormatUint(m.Limit, 10), m.Tag)
		case m.Limit > 0:
			fields = append(fields, strconv.FormatUint(m.Limit, 10))
		case m.Tag != "":
			fields = append(fields, "0", m.Tag)
		}
		return strings.Join(fields, "\t")
	case Subscribed:
		return m.Kind.String()
	case Event:
		return join(m.Kind.String(), m.Event.Encode())
	case EndOfEventStream:
		return m.Kind.String()
	case Error:
		if m.ErrorMessage != "" {
			return join(m.Kind.String(), m.ErrorKind.String(), m.ErrorMessage)
		}
		return join(m.Kind.String(), m.ErrorKind.String())
	default:
		return ""
	}
}

func join(fields ...string) string {
	return strings.Join(fields, "\t")
}

// Decode parses one line previously produced by Encode.
func Decode(line string) (Message, error) {
	kindStr, rest, _ := strings.Cut(line, "\t")
	switch kindStr {
	case "Connect":
		parts := strings.SplitN(rest, "\t", 3)
		m := Message{Kind: Connect, Collection: parts[0]}
		if len(parts) == 3 {
			m.Username, m.Password = parts[1], parts[2]
		}
		return m, nil
	case "Connected":
		return Message{Kind: Connected}, nil
	case "Publish":
		parts := strings.SplitN(rest, "\t", 3)
		if len(parts) < 3 {
			return Message{}, dberr.MissingFieldAt(len(parts))
		}
		ts, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return Message{}, dberr.Wrap(dberr.Parse, "invalid publish timestamp", err)
		}
		var tags []string
		if parts[0] != "" {
			tags = strings.Split(parts[0], " ")
		}
		return Message{Kind: Publish, Event: event.Event{Tags: tags, Timestamp: ts, Data: parts[2]}}, nil
	case "Published":
		id, err := strconv.ParseUint(rest, 10, 64)
		if err != nil {
			return Message{}, dberr.Wrap(dberr.Parse, "invalid published event id", err)
		}
		return Message{Kind: Published, EventID: id}, nil
	case "Subscribe":
		parts := strings.Split(rest, "\t")
		if len(parts) < 2 {
			return Message{}, dberr.MissingFieldAt(len(parts))
		}
		live, err := strconv.ParseBool(parts[0])
		if err != nil {
			return Message{}, dberr.Wrap(dberr.Parse, "invalid subscribe live flag", err)
		}
		offset, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return Message{}, dberr.Wrap(dberr.Parse, "invalid subscribe offset", err)
		}
		m := Message{Kind: Subscribe, Live: live, Offset: offset}
		if len(parts) >= 3 {
			limit, err := strconv.ParseUint(parts[2], 10, 64)
			if err != nil {
				return Message{}, dberr.Wrap(dberr.Parse, "invalid subscribe limit", err)
			}
			m.Limit = limit
		}
		if len(parts) >= 4 {
			m.Tag = parts[3]
		}
		return m, nil
	case "Subscribed":
		return Message{Kind: Subscribed}, nil
	case "Event":
		ev, err := event.Decode(rest)
		if err != nil {
			return Message{}, err
		}
		return Message{Kind: Event, Event: ev}, nil
	case "EndOfEventStream":
		return Message{Kind: EndOfEventStream}, nil
	case "Error":
		parts := strings.SplitN(rest, "\t", 2)
		return Message{Kind: Error, ErrorKind: parseErrorKind(parts[0]), ErrorMessage: lastOrEmpty(parts)}, nil
	default:
		return Message{}, dberr.Newf(dberr.Parse, "unknown wire message kind: %s", kindStr)
	}
}

func lastOrEmpty(parts []string) string {
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

func parseErrorKind(s string) dberr.Kind {
	for k := dberr.Internal; k <= dberr.Validation; k++ {
		if k.String() == s {
			return k
		}
	}
	return dberr.Internal
}
