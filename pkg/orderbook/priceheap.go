package orderbook

import "container/heap"

// keyHeap implements heap.Interface over level keys (price lots for fixed
// levels, offset lots for pegged levels). Each key appears at most once and
// pos tracks where it sits, so removal by key stays logarithmic.
type keyHeap struct {
	keys []int64
	less func(i, j int64) bool
	pos  map[int64]int
}

func newKeyHeap(less func(i, j int64) bool) *keyHeap {
	return &keyHeap{
		keys: []int64{},
		less: less,
		pos:  make(map[int64]int),
	}
}

func (h keyHeap) Len() int {
	return len(h.keys)
}

func (h keyHeap) Less(i, j int) bool {
	return h.less(h.keys[i], h.keys[j])
}

func (h keyHeap) Swap(i, j int) {
	h.keys[i], h.keys[j] = h.keys[j], h.keys[i]
	h.pos[h.keys[i]] = i
	h.pos[h.keys[j]] = j
}

func (h *keyHeap) Push(x any) {
	key := x.(int64)
	if _, ok := h.pos[key]; ok {
		return
	}
	h.pos[key] = len(h.keys)
	h.keys = append(h.keys, key)
}

func (h *keyHeap) Pop() any {
	n := len(h.keys)
	key := h.keys[n-1]
	h.keys = h.keys[:n-1]
	delete(h.pos, key)
	return key
}

func (h *keyHeap) Peek() (int64, bool) {
	if len(h.keys) == 0 {
		return 0, false
	}
	return h.keys[0], true
}

// Remove deletes key wherever it sits in the heap. Absent keys are a no-op.
func (h *keyHeap) Remove(key int64) {
	if i, ok := h.pos[key]; ok {
		heap.Remove(h, i)
	}
}
