package event

// Query selects which events a Subscription should see and whether it
// should stay open past the historical tail. The fluent With* builders
// mirror exar-core's query.rs.
type Query struct {
	LiveStream bool
	Offset     uint64
	Limit      uint64 // 0 means unlimited
	Tag        string // "" matches every event
}

// NewQuery returns a Query matching every past event, closing once replay
// catches up to the present (LiveStream false, Offset 0, no Limit, no Tag).
func NewQuery() Query {
	return Query{}
}

func (q Query) WithLiveStream() Query {
	q.LiveStream = true
	return q
}

func (q Query) WithOffset(offset uint64) Query {
	q.Offset = offset
	return q
}

func (q Query) WithLimit(limit uint64) Query {
	q.Limit = limit
	return q
}

func (q Query) WithTag(tag string) Query {
	q.Tag = tag
	return q
}

// Matches reports whether ev should be delivered under this query's tag filter.
// Offset/limit bookkeeping is the EventEmitter's job, not the Query's.
func (q Query) Matches(ev Event) bool {
	if q.Tag == "" {
		return true
	}
	for _, t := range ev.Tags {
		if t == q.Tag {
			return true
		}
	}
	return false
}
