package exchange

import (
	"context"
	"math"
	"time"

	"github.com/joripage/clob-engine/pkg/fixedpoint"
	"github.com/joripage/clob-engine/pkg/orderbook"
)

// Engine is the matching engine for one market. Every call mutates shared
// state under the single-writer guarantee provided by the Exchange front;
// the engine itself holds no locks and never blocks.
//
// Placement runs ResolvePrice -> Match -> PostRemainder -> Done. The engine
// first computes a complete match plan without touching any state (including
// event-queue capacity, slot availability, funds sufficiency and checked lot
// arithmetic) and only then commits it, so every error exit leaves the
// market, book sides, event queue and positions exactly as they were.
type Engine struct {
	market    *Market
	bids      *orderbook.BookSide
	asks      *orderbook.BookSide
	events    *orderbook.EventQueue
	positions map[string]*OpenOrdersPosition

	oracle   OracleReader
	transfer TokenTransfer
	clock    func() uint64

	seq uint64
}

func NewEngine(cfg MarketConfig, oracle OracleReader, transfer TokenTransfer, clock func() uint64) *Engine {
	return &Engine{
		market:    NewMarket(cfg),
		bids:      orderbook.NewBookSide(orderbook.Bid, cfg.MaxBookOrders),
		asks:      orderbook.NewBookSide(orderbook.Ask, cfg.MaxBookOrders),
		events:    orderbook.NewEventQueue(cfg.EventQueueCap),
		positions: make(map[string]*OpenOrdersPosition),
		oracle:    oracle,
		transfer:  transfer,
		clock:     clock,
	}
}

func (e *Engine) Market() *Market               { return e.market }
func (e *Engine) Events() *orderbook.EventQueue { return e.events }
func (e *Engine) Bids() *orderbook.BookSide     { return e.bids }
func (e *Engine) Asks() *orderbook.BookSide     { return e.asks }

func (e *Engine) Position(owner string) (*OpenOrdersPosition, bool) {
	p, ok := e.positions[owner]
	return p, ok
}

// PlaceOrderRequest is the shared request for all placement surfaces.
type PlaceOrderRequest struct {
	Owner           string
	Side            orderbook.Side
	PriceLots       int64
	MaxBaseLots     int64
	MaxQuoteLots    int64 // bid spend cap in quote lots; 0 means no cap
	OrderType       orderbook.OrderType
	SelfTradePolicy orderbook.SelfTradePolicy
	ClientOrderID   uint64

	// pegged placements only
	PegOffsetLots int64
	PegLimitLots  int64
}

// PlaceOrderResult reports what a placement did: how much crossed, at what
// average price, and whether a remainder now rests in the book. NotPosted
// carries ErrInvalidOrderSize when the residual was too small to rest.
type PlaceOrderResult struct {
	FilledBaseLots int64
	SpentQuoteLots int64
	AvgPriceLots   fixedpoint.Amount
	Posted         bool
	PostedOrderID  uint64
	NotPosted      error
	Fills          []orderbook.Event
}

// PlaceOrder places a limit, immediate-or-cancel or post-only order.
func (e *Engine) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	if req.MaxBaseLots <= 0 {
		return nil, ErrInvalidInputLots
	}
	switch req.OrderType {
	case orderbook.Limit, orderbook.ImmediateOrCancel, orderbook.PostOnly:
	default:
		return nil, ErrInvalidInputOrderType
	}
	if req.PriceLots <= 0 {
		return nil, ErrInvalidInputPriceLots
	}
	return e.place(ctx, req, false, req.PriceLots, req.OrderType != orderbook.ImmediateOrCancel)
}

// PlaceOrderPegged places an order whose price tracks the oracle plus a
// fixed offset, re-resolved on every match attempt while it rests.
func (e *Engine) PlaceOrderPegged(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	if req.MaxBaseLots <= 0 {
		return nil, ErrInvalidInputLots
	}
	if req.PegLimitLots <= 0 {
		return nil, ErrInvalidInputPegLimit
	}
	switch req.OrderType {
	case orderbook.Limit, orderbook.PostOnly:
	case orderbook.ImmediateOrCancel:
		return nil, ErrInvalidOrderPostIOC
	case orderbook.Market:
		return nil, ErrInvalidOrderPostMarket
	default:
		return nil, ErrInvalidInputOrderType
	}

	oracleLots, ok := e.freshOracle(ctx)
	if !ok {
		return nil, ErrInvalidInputStaleness
	}
	raw, err := fixedpoint.AddLots(oracleLots, req.PegOffsetLots)
	if err != nil || raw <= 0 {
		return nil, ErrInvalidPriceLots
	}
	limit, _ := orderbook.ResolvePegPrice(oracleLots, req.PegOffsetLots, req.PegLimitLots)

	return e.place(ctx, req, true, limit, true)
}

// PlaceTakeOrder matches immediately and never posts a remainder.
func (e *Engine) PlaceTakeOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	if req.MaxBaseLots <= 0 {
		return nil, ErrInvalidInputLots
	}
	switch req.OrderType {
	case orderbook.ImmediateOrCancel:
		if req.PriceLots <= 0 {
			return nil, ErrInvalidInputPriceLots
		}
		return e.place(ctx, req, false, req.PriceLots, false)
	case orderbook.Market:
		limit := int64(1)
		if req.Side == orderbook.Bid {
			if req.MaxQuoteLots <= 0 {
				return nil, ErrInvalidInputLots
			}
			limit = math.MaxInt64
		}
		return e.place(ctx, req, false, limit, false)
	default:
		return nil, ErrInvalidInputOrderType
	}
}

type planStepKind int

const (
	stepFill planStepKind = iota
	stepCancelProvide
)

type planStep struct {
	kind  planStepKind
	maker *orderbook.Order

	priceLots int64
	qtyLots   int64
	quoteLots int64
	makerOut  bool

	baseNative           fixedpoint.Amount
	quoteNative          fixedpoint.Amount
	makerReleasedNative  fixedpoint.Amount
	takerFeeNative       fixedpoint.Amount
	makerRebateNative    fixedpoint.Amount
	referrerRebateNative fixedpoint.Amount
}

type matchPlan struct {
	steps        []planStep
	filledBase   int64
	spentQuote   int64
	remaining    int64
	canceledTake bool
	eventsNeeded int

	post           bool
	notPosted      error
	postLockNative fixedpoint.Amount
}

func (e *Engine) place(ctx context.Context, req *PlaceOrderRequest, pegged bool, limitLots int64, allowPost bool) (*PlaceOrderResult, error) {
	opp := e.asks
	if req.Side == orderbook.Ask {
		opp = e.bids
	}
	oracleLots, haveOracle := e.freshOracle(ctx)

	if req.OrderType == orderbook.PostOnly {
		if _, best, ok := opp.Best(oracleLots, haveOracle); ok && crosses(req.Side, limitLots, best) {
			return nil, ErrInvalidPriceLots
		}
	}

	plan, err := e.buildPlan(req, opp, limitLots, oracleLots, haveOracle)
	if err != nil {
		return nil, err
	}

	if err := e.checkPostRemainder(req, plan, pegged, allowPost); err != nil {
		return nil, err
	}
	if plan.eventsNeeded > e.events.Free() {
		return nil, orderbook.ErrEventQueueFull
	}
	if err := e.checkFunds(req, plan); err != nil {
		return nil, err
	}

	return e.commit(req, plan, pegged), nil
}

func (e *Engine) buildPlan(req *PlaceOrderRequest, opp *orderbook.BookSide, limitLots, oracleLots int64, haveOracle bool) (*matchPlan, error) {
	plan := &matchPlan{remaining: req.MaxBaseLots}

	var planErr error
	opp.Walk(oracleLots, haveOracle, func(m *orderbook.Order, price int64) bool {
		if plan.remaining == 0 || !crosses(req.Side, limitLots, price) {
			return false
		}

		if m.Owner == req.Owner {
			switch req.SelfTradePolicy {
			case orderbook.SelfTradeCancelProvide:
				step, err := e.cancelStep(m)
				if err != nil {
					planErr = err
					return false
				}
				plan.steps = append(plan.steps, step)
				plan.eventsNeeded++
				return true
			case orderbook.SelfTradeCancelTake:
				plan.canceledTake = true
				plan.remaining = 0
				return false
			default:
				planErr = ErrWouldSelfTrade
				return false
			}
		}

		qty := plan.remaining
		if m.BaseLots < qty {
			qty = m.BaseLots
		}
		if req.Side == orderbook.Bid && req.MaxQuoteLots > 0 {
			maxByQuote := (req.MaxQuoteLots - plan.spentQuote) / price
			if maxByQuote <= 0 {
				return false
			}
			if qty > maxByQuote {
				qty = maxByQuote
			}
		}

		step, err := e.fillStep(req.Side, m, price, qty)
		if err != nil {
			planErr = err
			return false
		}
		if plan.spentQuote, err = fixedpoint.AddLots(plan.spentQuote, step.quoteLots); err != nil {
			planErr = err
			return false
		}
		plan.steps = append(plan.steps, step)
		plan.filledBase += qty
		plan.remaining -= qty
		plan.eventsNeeded++
		if step.makerOut {
			plan.eventsNeeded++
		}
		return true
	})
	if planErr != nil {
		return nil, planErr
	}

	return plan, nil
}

func (e *Engine) fillStep(takerSide orderbook.Side, m *orderbook.Order, price, qty int64) (planStep, error) {
	cfg := e.market.Cfg

	quoteLots, err := fixedpoint.MulLots(price, qty)
	if err != nil {
		return planStep{}, err
	}

	step := planStep{
		kind:        stepFill,
		maker:       m,
		priceLots:   price,
		qtyLots:     qty,
		quoteLots:   quoteLots,
		makerOut:    qty == m.BaseLots,
		baseNative:  cfg.BaseLotSize.MulLots(qty),
		quoteNative: cfg.QuoteLotSize.MulLots(quoteLots),
	}
	step.takerFeeNative = step.quoteNative.MulBps(cfg.TakerFeeBps)
	step.makerRebateNative = step.quoteNative.MulBps(cfg.MakerRebateBps)
	step.referrerRebateNative = step.quoteNative.MulBps(cfg.ReferrerRebateBps)

	// what the maker committed for the crossed quantity
	if takerSide == orderbook.Bid {
		step.makerReleasedNative = step.baseNative
	} else {
		lockedLots, err := fixedpoint.MulLots(m.LockPriceLots(), qty)
		if err != nil {
			return planStep{}, err
		}
		step.makerReleasedNative = cfg.QuoteLotSize.MulLots(lockedLots)
	}
	return step, nil
}

func (e *Engine) cancelStep(m *orderbook.Order) (planStep, error) {
	cfg := e.market.Cfg
	step := planStep{kind: stepCancelProvide, maker: m}
	if m.Side == orderbook.Ask {
		step.makerReleasedNative = cfg.BaseLotSize.MulLots(m.BaseLots)
	} else {
		lockedLots, err := fixedpoint.MulLots(m.LockPriceLots(), m.BaseLots)
		if err != nil {
			return planStep{}, err
		}
		step.makerReleasedNative = cfg.QuoteLotSize.MulLots(lockedLots)
	}
	return step, nil
}

// checkPostRemainder decides whether the unfilled remainder rests, is
// discarded, or aborts the call.
func (e *Engine) checkPostRemainder(req *PlaceOrderRequest, plan *matchPlan, pegged, allowPost bool) error {
	plan.post = false
	if plan.remaining <= 0 || !allowPost || plan.canceledTake {
		return nil
	}

	lockPrice := req.PriceLots
	if pegged {
		lockPrice = req.PegLimitLots
	}

	// a bid's quote budget bounds the resting quantity too, not just fills
	if req.Side == orderbook.Bid && req.MaxQuoteLots > 0 {
		byQuote := (req.MaxQuoteLots - plan.spentQuote) / lockPrice
		if byQuote < plan.remaining {
			plan.remaining = byQuote
		}
	}

	if plan.remaining <= 0 || plan.remaining < e.market.Cfg.MinBaseLots {
		plan.notPosted = ErrInvalidOrderSize
		return nil
	}

	side := e.bids
	if req.Side == orderbook.Ask {
		side = e.asks
	}
	if side.Len() >= e.market.Cfg.MaxBookOrders {
		return orderbook.ErrBookFull
	}

	pos := e.positions[req.Owner]
	freed := 0
	for _, s := range plan.steps {
		if s.maker.Owner == req.Owner && (s.kind == stepCancelProvide || s.makerOut) {
			freed++
		}
	}
	open := 0
	if pos != nil {
		open = pos.OpenOrderCount()
	}
	if open-freed >= MaxOpenOrders {
		return ErrOpenOrdersFull
	}

	if req.Side == orderbook.Bid {
		lockLots, err := fixedpoint.MulLots(lockPrice, plan.remaining)
		if err != nil {
			return err
		}
		plan.postLockNative = e.market.Cfg.QuoteLotSize.MulLots(lockLots)
	} else {
		plan.postLockNative = e.market.Cfg.BaseLotSize.MulLots(plan.remaining)
	}
	plan.post = true
	return nil
}

func (e *Engine) checkFunds(req *PlaceOrderRequest, plan *matchPlan) error {
	var free, debit fixedpoint.Amount
	if pos := e.positions[req.Owner]; pos != nil {
		if req.Side == orderbook.Bid {
			free = pos.QuoteFreeNative
		} else {
			free = pos.BaseFreeNative
		}
	}

	for _, s := range plan.steps {
		if s.kind != stepFill {
			continue
		}
		if req.Side == orderbook.Bid {
			debit = debit.Add(s.quoteNative).Add(s.takerFeeNative)
		} else {
			debit = debit.Add(s.baseNative)
		}
	}
	if plan.post {
		debit = debit.Add(plan.postLockNative)
	}

	if debit.Cmp(free) > 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// commit applies a fully validated plan. It cannot fail; a failure here is
// a broken invariant and panics rather than leaving partial state.
func (e *Engine) commit(req *PlaceOrderRequest, plan *matchPlan, pegged bool) *PlaceOrderResult {
	now := time.Now()
	taker := e.getOrCreatePosition(req.Owner)
	opp := e.asks
	if req.Side == orderbook.Ask {
		opp = e.bids
	}

	res := &PlaceOrderResult{
		FilledBaseLots: plan.filledBase,
		SpentQuoteLots: plan.spentQuote,
	}
	if plan.filledBase > 0 {
		res.AvgPriceLots = fixedpoint.FromInt64(plan.spentQuote).Div(plan.filledBase)
	}

	for _, s := range plan.steps {
		switch s.kind {
		case stepCancelProvide:
			e.removeResting(opp, s.maker, s.makerReleasedNative, now)
		case stepFill:
			res.Fills = append(res.Fills, e.applyFill(req, taker, opp, s, now))
		}
	}

	if plan.post {
		e.seq++
		order := &orderbook.Order{
			ID:            e.seq,
			Seq:           e.seq,
			Owner:         req.Owner,
			Side:          req.Side,
			PriceLots:     req.PriceLots,
			BaseLots:      plan.remaining,
			Pegged:        pegged,
			ClientOrderID: req.ClientOrderID,
		}
		if pegged {
			order.PriceLots = 0
			order.PegOffsetLots = req.PegOffsetLots
			order.PegLimitLots = req.PegLimitLots
		}

		slot, ok := taker.FreeSlot()
		if !ok {
			panic("clob: no free slot after plan check")
		}
		order.Slot = slot

		side := e.bids
		if req.Side == orderbook.Ask {
			side = e.asks
		}
		if _, err := side.Insert(order); err != nil {
			panic("clob: book insert failed after plan check")
		}
		taker.useSlot(slot, order.ID)

		if req.Side == orderbook.Bid {
			taker.QuoteFreeNative = taker.QuoteFreeNative.Sub(plan.postLockNative)
			taker.QuoteLockedNative = taker.QuoteLockedNative.Add(plan.postLockNative)
		} else {
			taker.BaseFreeNative = taker.BaseFreeNative.Sub(plan.postLockNative)
			taker.BaseLockedNative = taker.BaseLockedNative.Add(plan.postLockNative)
		}

		res.Posted = true
		res.PostedOrderID = order.ID
	} else {
		res.NotPosted = plan.notPosted
	}

	return res
}

// applyFill moves balances for one cross and emits its events. The maker
// order is reduced in place or removed from the book at zero.
func (e *Engine) applyFill(req *PlaceOrderRequest, taker *OpenOrdersPosition, opp *orderbook.BookSide, s planStep, now time.Time) orderbook.Event {
	m := e.market
	maker := e.getOrCreatePosition(s.maker.Owner)

	if req.Side == orderbook.Bid {
		// maker sold base, taker bought with quote
		maker.BaseLockedNative = maker.BaseLockedNative.Sub(s.makerReleasedNative)
		maker.QuoteFreeNative = maker.QuoteFreeNative.Add(s.quoteNative).Add(s.makerRebateNative)
		taker.QuoteFreeNative = taker.QuoteFreeNative.Sub(s.quoteNative).Sub(s.takerFeeNative)
		taker.BaseFreeNative = taker.BaseFreeNative.Add(s.baseNative)
	} else {
		// maker bought base with locked quote, taker sold base
		refund := s.makerReleasedNative.Sub(s.quoteNative)
		maker.QuoteLockedNative = maker.QuoteLockedNative.Sub(s.makerReleasedNative)
		maker.QuoteFreeNative = maker.QuoteFreeNative.Add(refund).Add(s.makerRebateNative)
		maker.BaseFreeNative = maker.BaseFreeNative.Add(s.baseNative)
		taker.BaseFreeNative = taker.BaseFreeNative.Sub(s.baseNative)
		taker.QuoteFreeNative = taker.QuoteFreeNative.Add(s.quoteNative).Sub(s.takerFeeNative)
	}

	// fee accrual: taker fee leaves the deposit pool, the maker rebate
	// re-enters it, the referrer slice accrues on the taker position
	m.QuoteDepositTotal = m.QuoteDepositTotal.Sub(s.takerFeeNative).Add(s.makerRebateNative)
	m.QuoteFeesAccrued = m.QuoteFeesAccrued.Add(s.takerFeeNative).Sub(s.makerRebateNative).Sub(s.referrerRebateNative)
	m.ReferrerRebatesAccrued = m.ReferrerRebatesAccrued.Add(s.referrerRebateNative)
	taker.ReferrerRebatesAccrued = taker.ReferrerRebatesAccrued.Add(s.referrerRebateNative)

	fill := orderbook.Event{
		Type:         orderbook.EventFill,
		Time:         now,
		Maker:        s.maker.Owner,
		Taker:        req.Owner,
		MakerOrderID: s.maker.ID,
		MakerSlot:    s.maker.Slot,
		PriceLots:    s.priceLots,
		BaseLots:     s.qtyLots,
		MakerOut:     s.makerOut,
	}
	e.mustPush(fill)

	if s.makerOut {
		if _, err := opp.Remove(s.maker.ID); err != nil {
			panic("clob: maker vanished mid-commit")
		}
		maker.releaseSlot(s.maker.Slot)
		e.mustPush(orderbook.Event{
			Type:    orderbook.EventOut,
			Time:    now,
			Owner:   s.maker.Owner,
			Slot:    s.maker.Slot,
			OrderID: s.maker.ID,
		})
	} else {
		s.maker.BaseLots -= s.qtyLots
	}
	return fill
}

// removeResting cancels a resting order, refunds its locked funds and emits
// the Out event. released is the native amount moving locked -> free.
func (e *Engine) removeResting(side *orderbook.BookSide, o *orderbook.Order, released fixedpoint.Amount, now time.Time) {
	if _, err := side.Remove(o.ID); err != nil {
		panic("clob: resting order vanished mid-commit")
	}
	pos := e.getOrCreatePosition(o.Owner)
	if o.Side == orderbook.Ask {
		pos.BaseLockedNative = pos.BaseLockedNative.Sub(released)
		pos.BaseFreeNative = pos.BaseFreeNative.Add(released)
	} else {
		pos.QuoteLockedNative = pos.QuoteLockedNative.Sub(released)
		pos.QuoteFreeNative = pos.QuoteFreeNative.Add(released)
	}
	pos.releaseSlot(o.Slot)
	e.mustPush(orderbook.Event{
		Type:         orderbook.EventOut,
		Time:         now,
		Owner:        o.Owner,
		Slot:         o.Slot,
		OrderID:      o.ID,
		ReleasedLots: o.BaseLots,
	})
}

// CancelOrder removes the owner's resting order and releases its funds.
func (e *Engine) CancelOrder(owner string, orderID uint64) error {
	side := e.bids
	o, ok := side.Get(orderID)
	if !ok {
		side = e.asks
		o, ok = side.Get(orderID)
	}
	if !ok || o.Owner != owner {
		return orderbook.ErrOrderNotFound
	}
	if e.events.Free() < 1 {
		return orderbook.ErrEventQueueFull
	}

	step, err := e.cancelStep(o)
	if err != nil {
		return err
	}
	e.removeResting(side, o, step.makerReleasedNative, time.Now())
	return nil
}

// Deposit credits a trader's free balances, creating the position if
// needed. Settlement debits run through SettleFunds only.
func (e *Engine) Deposit(owner string, base, quote fixedpoint.Amount) error {
	if base.IsNegative() || quote.IsNegative() {
		return ErrInvalidDeposit
	}
	pos := e.getOrCreatePosition(owner)
	pos.BaseFreeNative = pos.BaseFreeNative.Add(base)
	pos.QuoteFreeNative = pos.QuoteFreeNative.Add(quote)
	e.market.BaseDepositTotal = e.market.BaseDepositTotal.Add(base)
	e.market.QuoteDepositTotal = e.market.QuoteDepositTotal.Add(quote)
	return nil
}

// ClosePosition removes an emptied position.
func (e *Engine) ClosePosition(owner string) error {
	pos, ok := e.positions[owner]
	if !ok {
		return ErrPositionNotFound
	}
	if !pos.IsEmpty() {
		return ErrPositionNotEmpty
	}
	delete(e.positions, owner)
	return nil
}

// DrainEvents pops up to max events in emission order for the settlement
// consumer.
func (e *Engine) DrainEvents(max int) []orderbook.Event {
	var out []orderbook.Event
	for len(out) < max {
		ev, ok := e.events.PopFront()
		if !ok {
			break
		}
		out = append(out, ev)
	}
	return out
}

// freshOracle resolves the market's oracle price in price lots. With only
// oracle A configured its reading is used directly; with an A/B pair both
// legs are quoted against a common numeraire and the price is A divided by
// B, truncated to lots. Every leg must be within the staleness tolerance.
// A missing or stale reading only fails pegged placements; resting pegged
// orders are simply skipped during matching.
func (e *Engine) freshOracle(ctx context.Context) (int64, bool) {
	cfg := e.market.Cfg
	if e.oracle == nil || cfg.OracleA == "" {
		return 0, false
	}
	a, ok := e.readOracleLeg(ctx, cfg.OracleA)
	if !ok {
		return 0, false
	}
	if cfg.OracleB == "" {
		return a, true
	}
	b, ok := e.readOracleLeg(ctx, cfg.OracleB)
	if !ok {
		return 0, false
	}
	lots := a / b
	if lots <= 0 {
		return 0, false
	}
	return lots, true
}

func (e *Engine) readOracleLeg(ctx context.Context, ref string) (int64, bool) {
	p, err := e.oracle.ReadPrice(ctx, ref)
	if err != nil || p.PriceLots <= 0 {
		return 0, false
	}
	now := e.clock()
	if now > p.LastUpdateSlot && now-p.LastUpdateSlot > e.market.Cfg.OracleStalenessSlots {
		return 0, false
	}
	return p.PriceLots, true
}

func (e *Engine) getOrCreatePosition(owner string) *OpenOrdersPosition {
	pos, ok := e.positions[owner]
	if !ok {
		pos = NewOpenOrdersPosition(owner)
		e.positions[owner] = pos
	}
	return pos
}

func (e *Engine) mustPush(ev orderbook.Event) {
	if err := e.events.Push(ev); err != nil {
		panic("clob: event queue overflow after capacity check")
	}
}

func crosses(takerSide orderbook.Side, limitLots, restingLots int64) bool {
	if takerSide == orderbook.Bid {
		return limitLots >= restingLots
	}
	return limitLots <= restingLots
}
