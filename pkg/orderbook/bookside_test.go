package orderbook

import (
	"testing"
)

func newAsk(id, seq uint64, owner string, price, qty int64) *Order {
	return &Order{ID: id, Seq: seq, Owner: owner, Side: Ask, PriceLots: price, BaseLots: qty}
}

func newBid(id, seq uint64, owner string, price, qty int64) *Order {
	return &Order{ID: id, Seq: seq, Owner: owner, Side: Bid, PriceLots: price, BaseLots: qty}
}

func TestBestAskIsLowestPrice(t *testing.T) {
	b := NewBookSide(Ask, 16)
	b.Insert(newAsk(1, 1, "alice", 103, 5))
	b.Insert(newAsk(2, 2, "bob", 101, 5))
	b.Insert(newAsk(3, 3, "carol", 102, 5))

	best, price, ok := b.Best(0, false)
	if !ok || best.ID != 2 || price != 101 {
		t.Fatalf("expected order 2 at 101, got %+v price=%d ok=%v", best, price, ok)
	}
}

func TestBestBidIsHighestPrice(t *testing.T) {
	b := NewBookSide(Bid, 16)
	b.Insert(newBid(1, 1, "alice", 99, 5))
	b.Insert(newBid(2, 2, "bob", 101, 5))

	best, price, ok := b.Best(0, false)
	if !ok || best.ID != 2 || price != 101 {
		t.Fatalf("expected order 2 at 101, got %+v price=%d ok=%v", best, price, ok)
	}
}

func TestPriceTimePriorityWithinLevel(t *testing.T) {
	b := NewBookSide(Ask, 16)
	b.Insert(newAsk(1, 1, "alice", 100, 5))
	b.Insert(newAsk(2, 2, "bob", 100, 5))
	b.Insert(newAsk(3, 3, "carol", 100, 5))

	var got []uint64
	b.Walk(0, false, func(o *Order, price int64) bool {
		got = append(got, o.ID)
		return true
	})
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("expected FIFO order 1,2,3 got %v", got)
	}
}

func TestInsertBookFull(t *testing.T) {
	b := NewBookSide(Ask, 2)
	b.Insert(newAsk(1, 1, "alice", 100, 5))
	b.Insert(newAsk(2, 2, "bob", 101, 5))
	if _, err := b.Insert(newAsk(3, 3, "carol", 102, 5)); err != ErrBookFull {
		t.Fatalf("expected ErrBookFull, got %v", err)
	}
	if b.Len() != 2 {
		t.Fatalf("expected 2 resident orders, got %d", b.Len())
	}
}

func TestRemoveNotFound(t *testing.T) {
	b := NewBookSide(Bid, 16)
	if _, err := b.Remove(42); err != ErrOrderNotFound {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestRemoveClearsLevel(t *testing.T) {
	b := NewBookSide(Ask, 16)
	b.Insert(newAsk(1, 1, "alice", 100, 5))
	b.Insert(newAsk(2, 2, "bob", 105, 5))

	if _, err := b.Remove(1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	best, price, ok := b.Best(0, false)
	if !ok || best.ID != 2 || price != 105 {
		t.Fatalf("expected order 2 at 105 after removal, got %+v price=%d", best, price)
	}
	if _, err := b.Remove(1); err != ErrOrderNotFound {
		t.Fatalf("second remove should be ErrOrderNotFound, got %v", err)
	}
}

func TestPeggedResolvesAgainstOracle(t *testing.T) {
	b := NewBookSide(Ask, 16)
	peg := &Order{ID: 1, Seq: 1, Owner: "alice", Side: Ask, Pegged: true, PegOffsetLots: 2, PegLimitLots: 1000, BaseLots: 5}
	b.Insert(peg)

	best, price, ok := b.Best(100, true)
	if !ok || best.ID != 1 || price != 102 {
		t.Fatalf("expected pegged ask at 102, got price=%d ok=%v", price, ok)
	}

	// oracle moved, effective price follows
	_, price, _ = b.Best(110, true)
	if price != 112 {
		t.Fatalf("expected repriced peg at 112, got %d", price)
	}
}

func TestPeggedClampedToPegLimit(t *testing.T) {
	if price, ok := ResolvePegPrice(100, 50, 120); !ok || price != 120 {
		t.Fatalf("expected clamp to 120, got %d ok=%v", price, ok)
	}
	if price, ok := ResolvePegPrice(100, -20, 120); !ok || price != 80 {
		t.Fatalf("expected 80, got %d ok=%v", price, ok)
	}
	if _, ok := ResolvePegPrice(10, -10, 120); ok {
		t.Fatal("non-positive raw price must not resolve")
	}
}

func TestPeggedSkippedWithoutOracle(t *testing.T) {
	b := NewBookSide(Ask, 16)
	b.Insert(&Order{ID: 1, Seq: 1, Owner: "alice", Side: Ask, Pegged: true, PegOffsetLots: 1, PegLimitLots: 1000, BaseLots: 5})
	b.Insert(newAsk(2, 2, "bob", 200, 5))

	best, price, ok := b.Best(0, false)
	if !ok || best.ID != 2 || price != 200 {
		t.Fatalf("expected fixed order only, got %+v price=%d", best, price)
	}
}

func TestWalkLeavesHeapIntact(t *testing.T) {
	b := NewBookSide(Ask, 16)
	b.Insert(newAsk(1, 1, "alice", 104, 5))
	b.Insert(newAsk(2, 2, "bob", 102, 5))
	b.Insert(newAsk(3, 3, "carol", 103, 5))
	b.Insert(&Order{ID: 4, Seq: 4, Owner: "dave", Side: Ask, Pegged: true, PegOffsetLots: 1, PegLimitLots: 1000, BaseLots: 5}) // eff 101

	// a walk stopped mid-way must not disturb level priority
	visited := 0
	b.Walk(100, true, func(o *Order, price int64) bool {
		visited++
		return visited < 2
	})

	var got []uint64
	b.Walk(100, true, func(o *Order, price int64) bool {
		got = append(got, o.ID)
		return true
	})
	want := []uint64{4, 2, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v got %v", want, got)
		}
	}

	// removing an interior level keeps the remaining ordering correct
	if _, err := b.Remove(3); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got = got[:0]
	b.Walk(100, true, func(o *Order, price int64) bool {
		got = append(got, o.ID)
		return true
	})
	if len(got) != 3 || got[0] != 4 || got[1] != 2 || got[2] != 1 {
		t.Fatalf("expected 4,2,1 after removal, got %v", got)
	}

	best, price, ok := b.Best(100, true)
	if !ok || best.ID != 4 || price != 101 {
		t.Fatalf("expected pegged best at 101, got %+v price=%d", best, price)
	}
}

func TestWalkMergesFixedAndPegged(t *testing.T) {
	b := NewBookSide(Ask, 16)
	b.Insert(newAsk(1, 1, "alice", 105, 5))
	b.Insert(&Order{ID: 2, Seq: 2, Owner: "bob", Side: Ask, Pegged: true, PegOffsetLots: 3, PegLimitLots: 1000, BaseLots: 5}) // eff 103
	b.Insert(newAsk(3, 3, "carol", 101, 5))

	var got []uint64
	b.Walk(100, true, func(o *Order, price int64) bool {
		got = append(got, o.ID)
		return true
	})
	if len(got) != 3 || got[0] != 3 || got[1] != 2 || got[2] != 1 {
		t.Fatalf("expected priority 3,2,1 got %v", got)
	}
}
