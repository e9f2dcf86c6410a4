package exchange

import "github.com/joripage/clob-engine/pkg/fixedpoint"

// MarketConfig is the immutable per-market listing configuration.
type MarketConfig struct {
	Index  uint32
	Symbol string

	// native units per lot
	BaseLotSize  fixedpoint.Amount
	QuoteLotSize fixedpoint.Amount
	// smallest quantity allowed to rest in the book
	MinBaseLots int64

	TakerFeeBps       int64
	MakerRebateBps    int64
	ReferrerRebateBps int64

	OracleA              string
	OracleB              string
	OracleStalenessSlots uint64

	BaseVault  string
	QuoteVault string

	MaxBookOrders int
	EventQueueCap int
}

// Market carries the listing configuration plus the aggregate counters
// mutated by matching and settlement. The deposit totals always equal the
// sum of free+locked across the market's open positions in that
// denomination.
type Market struct {
	Cfg MarketConfig

	QuoteFeesAccrued       fixedpoint.Amount
	ReferrerRebatesAccrued fixedpoint.Amount
	BaseDepositTotal       fixedpoint.Amount
	QuoteDepositTotal      fixedpoint.Amount
}

func NewMarket(cfg MarketConfig) *Market {
	return &Market{Cfg: cfg}
}

// IsMarketVault reports whether the account is one of the market's vaults.
// Used by the account-permission layer before the engine is entered.
func (m *Market) IsMarketVault(account string) bool {
	return account == m.Cfg.BaseVault || account == m.Cfg.QuoteVault
}
