package exchange

import (
	"context"
	"errors"
	"sync"
)

var ErrOracleUnavailable = errors.New("oracle price unavailable")

// OraclePrice is one oracle reading: the price in price lots and the slot it
// was last updated at.
type OraclePrice struct {
	PriceLots      int64
	LastUpdateSlot uint64
}

// OracleReader supplies live prices for pegged-order resolution. Staleness
// beyond the market's tolerance is decided by the engine, not the reader.
type OracleReader interface {
	ReadPrice(ctx context.Context, ref string) (OraclePrice, error)
}

// StaticOracle is an in-memory OracleReader for tests and local runs.
type StaticOracle struct {
	mu     sync.RWMutex
	prices map[string]OraclePrice
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{prices: make(map[string]OraclePrice)}
}

func (o *StaticOracle) SetPrice(ref string, priceLots int64, slot uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[ref] = OraclePrice{PriceLots: priceLots, LastUpdateSlot: slot}
}

func (o *StaticOracle) ReadPrice(_ context.Context, ref string) (OraclePrice, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.prices[ref]
	if !ok {
		return OraclePrice{}, ErrOracleUnavailable
	}
	return p, nil
}
