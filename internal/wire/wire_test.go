package wire

import (
	"testing"

	"github.com/klppl/evlogd/internal/dberr"
	"github.com/klppl/evlogd/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, m Message, want string) {
	t.Helper()
	assert.Equal(t, want, m.Encode())

	decoded, err := Decode(want)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestConnectWithoutCredentials(t *testing.T) {
	roundTrip(t, Message{Kind: Connect, Collection: "orders"}, "Connect\torders")
}

func TestConnectWithCredentials(t *testing.T) {
	roundTrip(t,
		Message{Kind: Connect, Collection: "orders", Username: "alice", Password: "secret"},
		"Connect\torders\talice\tsecret")
}

func TestConnected(t *testing.T) {
	roundTrip(t, Message{Kind: Connected}, "Connected")
}

func TestPublish(t *testing.T) {
	roundTrip(t,
		Message{Kind: Publish, Event: event.Event{Tags: []string{"tag1", "tag2"}, Timestamp: 1234567890, Data: "data"}},
		"Publish\ttag1 tag2\t1234567890\tdata")
}

func TestPublished(t *testing.T) {
	roundTrip(t, Message{Kind: Published, EventID: 1}, "Published\t1")
}

func TestSubscribeVariants(t *testing.T) {
	roundTrip(t,
		Message{Kind: Subscribe, Live: true, Offset: 0, Limit: 100, Tag: "tag1"},
		"Subscribe\ttrue\t0\t100\ttag1")
	roundTrip(t,
		Message{Kind: Subscribe, Live: true, Offset: 0, Limit: 100},
		"Subscribe\ttrue\t0\t100")
	roundTrip(t,
		Message{Kind: Subscribe, Live: true, Offset: 0, Tag: "tag1"},
		"Subscribe\ttrue\t0\t0\ttag1")
	roundTrip(t,
		Message{Kind: Subscribe, Live: true, Offset: 0},
		"Subscribe\ttrue\t0")
}

func TestSubscribed(t *testing.T) {
	roundTrip(t, Message{Kind: Subscribed}, "Subscribed")
}

func TestEventMessage(t *testing.T) {
	roundTrip(t,
		Message{Kind: Event, Event: event.Event{ID: 1, Tags: []string{"tag1", "tag2"}, Timestamp: 1234567890, Data: "data"}},
		"Event\t1\ttag1 tag2\t1234567890\tdata")
}

func TestEndOfEventStream(t *testing.T) {
	roundTrip(t, Message{Kind: EndOfEventStream}, "EndOfEventStream")
}

func TestErrorMessage(t *testing.T) {
	roundTrip(t,
		Message{Kind: Error, ErrorKind: dberr.Authentication},
		"Error\tauthentication_error")
}

func TestErrorMessageWithDescription(t *testing.T) {
	roundTrip(t,
		Message{Kind: Error, ErrorKind: dberr.Validation, ErrorMessage: "event has only blank tags"},
		"Error\tvalidation_error\tevent has only blank tags")
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode("Bogus\tfoo")
	require.Error(t, err)
	assert.True(t, dberr.Of(err, dberr.Parse))
}
