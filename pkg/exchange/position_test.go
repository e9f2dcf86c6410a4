package exchange

import "testing"

func TestPositionSlots(t *testing.T) {
	pos := NewOpenOrdersPosition("alice")

	slot, ok := pos.FreeSlot()
	if !ok || slot != 0 {
		t.Fatalf("first free slot = %d/%v, want 0", slot, ok)
	}

	pos.useSlot(0, 11)
	pos.useSlot(1, 22)
	if pos.OpenOrderCount() != 2 {
		t.Fatalf("count = %d, want 2", pos.OpenOrderCount())
	}
	if id, ok := pos.OrderInSlot(1); !ok || id != 22 {
		t.Fatalf("slot 1 = %d/%v, want 22", id, ok)
	}

	// releasing the lower slot makes it the next free one again
	pos.releaseSlot(0)
	if slot, _ := pos.FreeSlot(); slot != 0 {
		t.Fatalf("free slot after release = %d, want 0", slot)
	}
	if _, ok := pos.OrderInSlot(0); ok {
		t.Fatal("released slot must be empty")
	}
}

func TestPositionSlotsExhausted(t *testing.T) {
	pos := NewOpenOrdersPosition("alice")
	for i := 0; i < MaxOpenOrders; i++ {
		slot, ok := pos.FreeSlot()
		if !ok {
			t.Fatalf("slot %d should be free", i)
		}
		pos.useSlot(slot, uint64(i+1))
	}
	if _, ok := pos.FreeSlot(); ok {
		t.Fatal("no slot should be free")
	}
	if pos.OpenOrderCount() != MaxOpenOrders {
		t.Fatalf("count = %d, want %d", pos.OpenOrderCount(), MaxOpenOrders)
	}
}

func TestPositionIsEmpty(t *testing.T) {
	pos := NewOpenOrdersPosition("alice")
	if !pos.IsEmpty() {
		t.Fatal("fresh position is empty")
	}

	pos.BaseFreeNative = amt("1")
	if pos.IsEmpty() {
		t.Fatal("funded position is not empty")
	}
	pos.BaseFreeNative = amt("0")

	pos.useSlot(3, 7)
	if pos.IsEmpty() {
		t.Fatal("position with open order is not empty")
	}
}
