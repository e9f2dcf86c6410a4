package orderbook

import (
	"container/heap"

	"github.com/gammazero/deque"

	"github.com/joripage/clob-engine/pkg/fixedpoint"
)

// BookSide holds the resting orders of one side of one market. Fixed-price
// orders live in price levels, pegged orders in oracle-offset levels; each
// level is a FIFO queue so priority is strict (price, insertion sequence).
type BookSide struct {
	side      Side
	maxOrders int

	levels    map[int64]*deque.Deque[*Order]
	levelHeap *keyHeap

	pegLevels map[int64]*deque.Deque[*Order]
	pegHeap   *keyHeap

	byID      map[uint64]*Order
	numOrders int
}

func NewBookSide(side Side, maxOrders int) *BookSide {
	var less func(i, j int64) bool
	if side == Bid {
		less = func(i, j int64) bool { return i > j } // highest bid first
	} else {
		less = func(i, j int64) bool { return i < j } // lowest ask first
	}

	return &BookSide{
		side:      side,
		maxOrders: maxOrders,
		levels:    make(map[int64]*deque.Deque[*Order]),
		levelHeap: newKeyHeap(less),
		pegLevels: make(map[int64]*deque.Deque[*Order]),
		pegHeap:   newKeyHeap(less),
		byID:      make(map[uint64]*Order),
	}
}

func (b *BookSide) Side() Side {
	return b.side
}

func (b *BookSide) Len() int {
	return b.numOrders
}

// Insert places an order at the back of its level. The order's ID and Seq
// must already be assigned by the caller.
func (b *BookSide) Insert(o *Order) (uint64, error) {
	if b.numOrders >= b.maxOrders {
		return 0, ErrBookFull
	}

	if o.Pegged {
		b.addToLevel(b.pegLevels, b.pegHeap, o.PegOffsetLots, o)
	} else {
		b.addToLevel(b.levels, b.levelHeap, o.PriceLots, o)
	}
	b.byID[o.ID] = o
	b.numOrders++
	return o.ID, nil
}

// Remove takes an order out of the book by id. Returns ErrOrderNotFound if
// it was already consumed by a fill or cancel.
func (b *BookSide) Remove(id uint64) (*Order, error) {
	o, ok := b.byID[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	b.unlink(o)
	return o, nil
}

// Get looks up a resident order without removing it.
func (b *BookSide) Get(id uint64) (*Order, bool) {
	o, ok := b.byID[id]
	return o, ok
}

// Best returns the highest-priority resting order and its effective price.
// Pegged orders resolve against oracleLots; when no oracle reading is
// available (haveOracle false) they are skipped.
func (b *BookSide) Best(oracleLots int64, haveOracle bool) (*Order, int64, bool) {
	var best *Order
	var bestPrice int64
	b.Walk(oracleLots, haveOracle, func(o *Order, price int64) bool {
		best, bestPrice = o, price
		return false
	})
	if best == nil {
		return nil, 0, false
	}
	return best, bestPrice, true
}

// Walk visits resting orders in strict priority order, merging the fixed and
// pegged level queues by effective price with insertion sequence as the tie
// break. fn returning false stops the walk. Walk itself never mutates the
// book; callers remove orders afterwards.
//
// Levels are popped off the heaps as the walk advances and pushed back on
// return, so the cost is proportional to the levels actually visited rather
// than the depth of the book.
func (b *BookSide) Walk(oracleLots int64, haveOracle bool, fn func(o *Order, effectivePriceLots int64) bool) {
	var poppedFixed, poppedPeg []int64
	defer func() {
		for _, k := range poppedFixed {
			heap.Push(b.levelHeap, k)
		}
		for _, k := range poppedPeg {
			heap.Push(b.pegHeap, k)
		}
	}()

	var fq, pq *deque.Deque[*Order]
	var fpos, ppos int

	nextFixed := func() (*Order, int64, bool) {
		for {
			if fq != nil && fpos < fq.Len() {
				o := fq.At(fpos)
				return o, o.PriceLots, true
			}
			key, ok := b.levelHeap.Peek()
			if !ok {
				return nil, 0, false
			}
			heap.Pop(b.levelHeap)
			poppedFixed = append(poppedFixed, key)
			fq, fpos = b.levels[key], 0
		}
	}

	nextPegged := func() (*Order, int64, bool) {
		if !haveOracle {
			return nil, 0, false
		}
		for {
			if pq != nil && ppos < pq.Len() {
				o := pq.At(ppos)
				price, ok := ResolvePegPrice(oracleLots, o.PegOffsetLots, o.PegLimitLots)
				if !ok {
					// unresolvable peg must never match at a stale price
					ppos++
					continue
				}
				return o, price, true
			}
			key, ok := b.pegHeap.Peek()
			if !ok {
				return nil, 0, false
			}
			heap.Pop(b.pegHeap)
			poppedPeg = append(poppedPeg, key)
			pq, ppos = b.pegLevels[key], 0
		}
	}

	for {
		fo, fp, fok := nextFixed()
		po, pp, pok := nextPegged()
		if !fok && !pok {
			return
		}

		takeFixed := fok
		if fok && pok {
			if fp == pp {
				takeFixed = fo.Seq < po.Seq
			} else if b.side == Bid {
				takeFixed = fp > pp
			} else {
				takeFixed = fp < pp
			}
		}

		if takeFixed {
			if !fn(fo, fp) {
				return
			}
			fpos++
		} else {
			if !fn(po, pp) {
				return
			}
			ppos++
		}
	}
}

// ResolvePegPrice computes a pegged order's effective price from the oracle
// reading: clamp(oracle+offset, 1, pegLimit). A raw price that overflows or
// is non-positive does not resolve.
func ResolvePegPrice(oracleLots, offsetLots, pegLimitLots int64) (int64, bool) {
	raw, err := fixedpoint.AddLots(oracleLots, offsetLots)
	if err != nil || raw <= 0 {
		return 0, false
	}
	if raw > pegLimitLots {
		raw = pegLimitLots
	}
	if raw < 1 {
		raw = 1
	}
	return raw, true
}

func (b *BookSide) addToLevel(levels map[int64]*deque.Deque[*Order], h *keyHeap, key int64, o *Order) {
	if levels[key] == nil {
		levels[key] = &deque.Deque[*Order]{}
		heap.Push(h, key)
	}
	levels[key].PushBack(o)
}

func (b *BookSide) unlink(o *Order) {
	levels, h := b.levels, b.levelHeap
	key := o.PriceLots
	if o.Pegged {
		levels, h = b.pegLevels, b.pegHeap
		key = o.PegOffsetLots
	}

	q := levels[key]
	i := q.Index(func(x *Order) bool { return x.ID == o.ID })
	if i >= 0 {
		q.Remove(i)
	}
	if q.Len() == 0 {
		delete(levels, key)
		h.Remove(key)
	}

	delete(b.byID, o.ID)
	b.numOrders--
}
