package orderbook

import "time"

type EventType string

const (
	// EventFill records a cross between a taker and a resting maker order.
	EventFill EventType = "FILL"
	// EventOut records that a resting order left the book and its residual
	// quantity was released back to the owner's free balance.
	EventOut EventType = "OUT"
)

// Event is one entry in the market's event queue. Fill and Out share the
// struct; the consumer switches on Type.
type Event struct {
	Type EventType
	Seq  uint64
	Time time.Time

	// Fill fields
	Maker        string
	Taker        string
	MakerOrderID uint64
	MakerSlot    int
	PriceLots    int64
	BaseLots     int64
	MakerOut     bool

	// Out fields
	Owner        string
	Slot         int
	OrderID      uint64
	ReleasedLots int64
}

// EventQueue is a bounded FIFO ring of fill and out events. Matching must
// observe capacity before committing; Push on a full queue is the named
// error ErrEventQueueFull, never a silent drop.
type EventQueue struct {
	buf   []Event
	head  int
	count int
	seq   uint64
}

func NewEventQueue(capacity int) *EventQueue {
	return &EventQueue{buf: make([]Event, capacity)}
}

func (q *EventQueue) Len() int {
	return q.count
}

func (q *EventQueue) Cap() int {
	return len(q.buf)
}

// Free is the number of events that can still be pushed.
func (q *EventQueue) Free() int {
	return len(q.buf) - q.count
}

func (q *EventQueue) Push(ev Event) error {
	if q.count == len(q.buf) {
		return ErrEventQueueFull
	}
	q.seq++
	ev.Seq = q.seq
	q.buf[(q.head+q.count)%len(q.buf)] = ev
	q.count++
	return nil
}

func (q *EventQueue) Peek() (Event, bool) {
	if q.count == 0 {
		return Event{}, false
	}
	return q.buf[q.head], true
}

func (q *EventQueue) PopFront() (Event, bool) {
	if q.count == 0 {
		return Event{}, false
	}
	ev := q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return ev, true
}
