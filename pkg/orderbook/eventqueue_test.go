package orderbook

import "testing"

func TestEventQueueFIFO(t *testing.T) {
	q := NewEventQueue(4)
	q.Push(Event{Type: EventFill, Maker: "alice"})
	q.Push(Event{Type: EventOut, Owner: "alice"})
	q.Push(Event{Type: EventFill, Maker: "bob"})

	ev, ok := q.PopFront()
	if !ok || ev.Type != EventFill || ev.Maker != "alice" {
		t.Fatalf("expected alice fill first, got %+v", ev)
	}
	ev, _ = q.PopFront()
	if ev.Type != EventOut {
		t.Fatalf("expected out second, got %+v", ev)
	}
	ev, _ = q.PopFront()
	if ev.Maker != "bob" {
		t.Fatalf("expected bob fill third, got %+v", ev)
	}
	if _, ok := q.PopFront(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestEventQueueFull(t *testing.T) {
	q := NewEventQueue(2)
	if err := q.Push(Event{Type: EventFill}); err != nil {
		t.Fatalf("push 1: %v", err)
	}
	if err := q.Push(Event{Type: EventFill}); err != nil {
		t.Fatalf("push 2: %v", err)
	}
	if err := q.Push(Event{Type: EventFill}); err != ErrEventQueueFull {
		t.Fatalf("expected ErrEventQueueFull, got %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("failed push must not change length, got %d", q.Len())
	}
}

func TestEventQueueWrapsAround(t *testing.T) {
	q := NewEventQueue(2)
	q.Push(Event{Maker: "a"})
	q.Push(Event{Maker: "b"})
	q.PopFront()
	if err := q.Push(Event{Maker: "c"}); err != nil {
		t.Fatalf("push after pop: %v", err)
	}
	ev, _ := q.PopFront()
	if ev.Maker != "b" {
		t.Fatalf("expected b, got %+v", ev)
	}
	ev, _ = q.PopFront()
	if ev.Maker != "c" {
		t.Fatalf("expected c, got %+v", ev)
	}
}

func TestEventQueueSeqMonotonic(t *testing.T) {
	q := NewEventQueue(3)
	q.Push(Event{})
	q.Push(Event{})
	a, _ := q.PopFront()
	b, _ := q.PopFront()
	if b.Seq != a.Seq+1 {
		t.Fatalf("expected consecutive seq, got %d then %d", a.Seq, b.Seq)
	}
}
