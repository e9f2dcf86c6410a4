package exchange

import (
	"math/bits"

	"github.com/joripage/clob-engine/pkg/fixedpoint"
)

// MaxOpenOrders is the number of resting-order slots per position.
const MaxOpenOrders = 64

// OpenOrdersPosition tracks one trader's balances in one market. Free is
// withdrawable, locked is committed behind resting orders. Referrer rebates
// accrue monotonically until settlement drains them to zero.
type OpenOrdersPosition struct {
	Owner string

	BaseFreeNative    fixedpoint.Amount
	QuoteFreeNative   fixedpoint.Amount
	BaseLockedNative  fixedpoint.Amount
	QuoteLockedNative fixedpoint.Amount

	ReferrerRebatesAccrued fixedpoint.Amount

	slotMask uint64
	orders   [MaxOpenOrders]uint64
}

func NewOpenOrdersPosition(owner string) *OpenOrdersPosition {
	return &OpenOrdersPosition{Owner: owner}
}

func (p *OpenOrdersPosition) OpenOrderCount() int {
	return bits.OnesCount64(p.slotMask)
}

// FreeSlot returns the lowest unused slot index.
func (p *OpenOrdersPosition) FreeSlot() (int, bool) {
	if p.slotMask == ^uint64(0) {
		return 0, false
	}
	return bits.TrailingZeros64(^p.slotMask), true
}

func (p *OpenOrdersPosition) useSlot(slot int, orderID uint64) {
	p.slotMask |= 1 << uint(slot)
	p.orders[slot] = orderID
}

func (p *OpenOrdersPosition) releaseSlot(slot int) {
	p.slotMask &^= 1 << uint(slot)
	p.orders[slot] = 0
}

// OrderInSlot returns the order id occupying a slot, if any.
func (p *OpenOrdersPosition) OrderInSlot(slot int) (uint64, bool) {
	if p.slotMask&(1<<uint(slot)) == 0 {
		return 0, false
	}
	return p.orders[slot], true
}

// IsEmpty reports whether the position can be closed.
func (p *OpenOrdersPosition) IsEmpty() bool {
	return p.slotMask == 0 &&
		p.BaseFreeNative.IsZero() && p.QuoteFreeNative.IsZero() &&
		p.BaseLockedNative.IsZero() && p.QuoteLockedNative.IsZero() &&
		p.ReferrerRebatesAccrued.IsZero()
}
