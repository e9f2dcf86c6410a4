package exchange

import (
	"context"

	"github.com/joripage/clob-engine/pkg/fixedpoint"
)

// TokenTransfer is the narrow external transfer contract used by
// settlement. A failed transfer aborts the whole settle call; no balance is
// zeroed before its transfer was issued.
type TokenTransfer interface {
	Transfer(ctx context.Context, fromVault, toAccount string, amount fixedpoint.Amount) error
}

// SettleFunds drains the position's free balances and accrued referrer
// rebates. Without a referrer the rebates fold into the market's fee
// accrual instead of being paid out. All transfers are issued first; only
// when every one succeeded are the aggregates and the position mutated, so
// a transfer failure leaves state untouched.
func (e *Engine) SettleFunds(ctx context.Context, owner, referrerAccount string) error {
	pos, ok := e.positions[owner]
	if !ok {
		return ErrPositionNotFound
	}

	cfg := e.market.Cfg
	rebates := pos.ReferrerRebatesAccrued
	baseFree := pos.BaseFreeNative
	quoteFree := pos.QuoteFreeNative

	if referrerAccount != "" && rebates.IsPositive() {
		if err := e.transfer.Transfer(ctx, cfg.QuoteVault, referrerAccount, rebates); err != nil {
			return err
		}
	}
	if baseFree.IsPositive() {
		if err := e.transfer.Transfer(ctx, cfg.BaseVault, owner, baseFree); err != nil {
			return err
		}
	}
	if quoteFree.IsPositive() {
		if err := e.transfer.Transfer(ctx, cfg.QuoteVault, owner, quoteFree); err != nil {
			return err
		}
	}

	if referrerAccount == "" {
		e.market.QuoteFeesAccrued = e.market.QuoteFeesAccrued.Add(rebates)
	}
	e.market.ReferrerRebatesAccrued = e.market.ReferrerRebatesAccrued.Sub(rebates)
	e.market.BaseDepositTotal = e.market.BaseDepositTotal.Sub(baseFree)
	e.market.QuoteDepositTotal = e.market.QuoteDepositTotal.Sub(quoteFree)

	pos.BaseFreeNative = fixedpoint.Zero()
	pos.QuoteFreeNative = fixedpoint.Zero()
	pos.ReferrerRebatesAccrued = fixedpoint.Zero()

	return nil
}
