package exchange

import (
	"context"
	"sync"

	"github.com/joripage/clob-engine/pkg/fixedpoint"
	"github.com/joripage/clob-engine/pkg/logging"
	"github.com/joripage/clob-engine/pkg/orderbook"
	"go.uber.org/zap"
)

// FillCallback receives the fill events of one committed placement.
type FillCallback func(symbol string, fills []orderbook.Event)

type marketState struct {
	mu     sync.Mutex
	engine *Engine
}

// Exchange is the multi-market front. It owns one engine per market and the
// per-market lock that gives every engine call single-writer semantics; the
// engines themselves hold no locks.
type Exchange struct {
	mu        sync.RWMutex
	byIndex   map[uint32]*marketState
	bySymbol  map[string]*marketState
	callbacks []FillCallback

	oracle   OracleReader
	transfer TokenTransfer
	clock    func() uint64
	log      *logging.Logger
}

func NewExchange(oracle OracleReader, transfer TokenTransfer, clock func() uint64) *Exchange {
	return &Exchange{
		byIndex:  make(map[uint32]*marketState),
		bySymbol: make(map[string]*marketState),
		oracle:   oracle,
		transfer: transfer,
		clock:    clock,
		log:      logging.NewLogger(logging.INFO),
	}
}

// AddMarket lists a market. Markets are never delisted; trading stops by
// removing the gateway route, not by destroying state.
func (x *Exchange) AddMarket(cfg MarketConfig) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.bySymbol[cfg.Symbol]; ok {
		return ErrMarketExists
	}
	ms := &marketState{engine: NewEngine(cfg, x.oracle, x.transfer, x.clock)}
	x.bySymbol[cfg.Symbol] = ms
	x.byIndex[cfg.Index] = ms
	return nil
}

func (x *Exchange) Symbols() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.bySymbol))
	for s := range x.bySymbol {
		out = append(out, s)
	}
	return out
}

// RegisterFillCallback adds a consumer of committed fills (trade feed,
// market data). Callbacks run outside the market lock, after commit.
func (x *Exchange) RegisterFillCallback(cb FillCallback) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.callbacks = append(x.callbacks, cb)
}

func (x *Exchange) market(symbol string) (*marketState, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ms, ok := x.bySymbol[symbol]
	if !ok {
		return nil, ErrUnknownMarket
	}
	return ms, nil
}

func (x *Exchange) PlaceOrder(ctx context.Context, symbol string, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	return x.placeWith(ctx, symbol, req, (*Engine).PlaceOrder)
}

func (x *Exchange) PlaceOrderPegged(ctx context.Context, symbol string, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	return x.placeWith(ctx, symbol, req, (*Engine).PlaceOrderPegged)
}

func (x *Exchange) PlaceTakeOrder(ctx context.Context, symbol string, req *PlaceOrderRequest) (*PlaceOrderResult, error) {
	return x.placeWith(ctx, symbol, req, (*Engine).PlaceTakeOrder)
}

func (x *Exchange) placeWith(ctx context.Context, symbol string, req *PlaceOrderRequest,
	fn func(*Engine, context.Context, *PlaceOrderRequest) (*PlaceOrderResult, error)) (*PlaceOrderResult, error) {

	ms, err := x.market(symbol)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	res, err := fn(ms.engine, ctx, req)
	var fills []orderbook.Event
	if err == nil && len(res.Fills) > 0 {
		fills = res.Fills
	}
	ms.mu.Unlock()

	if err != nil {
		x.log.Debug(ctx, "placement rejected",
			zap.String("symbol", symbol),
			zap.String("owner", req.Owner),
			zap.Error(err))
		return nil, err
	}
	if len(fills) > 0 {
		for _, cb := range x.callbacks {
			cb(symbol, fills)
		}
	}
	return res, nil
}

func (x *Exchange) CancelOrder(symbol, owner string, orderID uint64) error {
	ms, err := x.market(symbol)
	if err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.engine.CancelOrder(owner, orderID)
}

func (x *Exchange) Deposit(symbol, owner string, base, quote fixedpoint.Amount) error {
	ms, err := x.market(symbol)
	if err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.engine.Deposit(owner, base, quote)
}

func (x *Exchange) SettleFunds(ctx context.Context, symbol, owner, referrerAccount string) error {
	ms, err := x.market(symbol)
	if err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.engine.SettleFunds(ctx, owner, referrerAccount)
}

// DrainEvents pops up to max pending events of one market for the async
// settlement pipeline.
func (x *Exchange) DrainEvents(symbol string, max int) ([]orderbook.Event, error) {
	ms, err := x.market(symbol)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.engine.DrainEvents(max), nil
}

// Engine exposes a market's engine for inspection. Callers must not mutate
// through it outside the market lock.
func (x *Exchange) Engine(symbol string) (*Engine, error) {
	ms, err := x.market(symbol)
	if err != nil {
		return nil, err
	}
	return ms.engine, nil
}
