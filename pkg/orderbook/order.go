package orderbook

type Side string

const (
	Bid Side = "BID"
	Ask Side = "ASK"
)

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	if s == Bid {
		return Ask
	}
	return Bid
}

type OrderType string

const (
	Limit             OrderType = "LIMIT"
	Market            OrderType = "MARKET"
	ImmediateOrCancel OrderType = "IOC"
	PostOnly          OrderType = "POST_ONLY"
)

// SelfTradePolicy decides what happens when an incoming order would cross a
// resting order of the same owner.
type SelfTradePolicy string

const (
	// SelfTradeCancelProvide cancels the resting order and keeps matching.
	SelfTradeCancelProvide SelfTradePolicy = "CANCEL_PROVIDE"
	// SelfTradeCancelTake stops matching and discards the incoming remainder.
	SelfTradeCancelTake SelfTradePolicy = "CANCEL_TAKE"
	// SelfTradeAbort rejects the whole placement with ErrWouldSelfTrade.
	SelfTradeAbort SelfTradePolicy = "ABORT"
)

// Order is a resting entry in a BookSide. Quantities and prices are in lots.
// BaseLots stays > 0 while the order is resident. A pegged order carries its
// oracle-relative offset and worst acceptable price; its effective price is
// resolved against the live oracle at match time, never stored.
type Order struct {
	ID            uint64
	Owner         string
	Side          Side
	PriceLots     int64
	BaseLots      int64
	Pegged        bool
	PegOffsetLots int64
	PegLimitLots  int64
	ClientOrderID uint64
	Slot          int
	Seq           uint64
}

// LockPriceLots is the price the owner's quote funds were locked at when the
// order was posted: the fixed price, or the peg limit for pegged orders since
// the effective price can drift up to it.
func (o *Order) LockPriceLots() int64 {
	if o.Pegged {
		return o.PegLimitLots
	}
	return o.PriceLots
}
