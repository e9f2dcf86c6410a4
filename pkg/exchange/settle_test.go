package exchange

import (
	"context"
	"testing"

	"github.com/joripage/clob-engine/pkg/orderbook"
)

// tradeForRebates runs one cross so the taker accrues referrer rebates.
func tradeForRebates(t *testing.T, eng *Engine) {
	t.Helper()
	fund(t, eng, "maker", "taker")
	mustPlace(t, eng, limitReq("maker", orderbook.Ask, 100, 4))
	mustPlace(t, eng, limitReq("taker", orderbook.Bid, 100, 4))
}

func TestSettleFundsNoReferrerFoldsRebates(t *testing.T) {
	eng, _, transfer, _ := testEngine(nil)
	tradeForRebates(t, eng)

	feesBefore := eng.Market().QuoteFeesAccrued
	taker := position(t, eng, "taker")
	baseFree := taker.BaseFreeNative
	quoteFree := taker.QuoteFreeNative

	if err := eng.SettleFunds(context.Background(), "taker", ""); err != nil {
		t.Fatalf("settle: %v", err)
	}

	// rebates fold into the market's fee accrual instead of paying out
	if !eng.Market().QuoteFeesAccrued.Equal(feesBefore.Add(amt("0.002"))) {
		t.Fatalf("fees accrued = %s, want %s", eng.Market().QuoteFeesAccrued, feesBefore.Add(amt("0.002")))
	}
	if !eng.Market().ReferrerRebatesAccrued.IsZero() {
		t.Fatalf("market referrer accrual = %s, want 0", eng.Market().ReferrerRebatesAccrued)
	}

	if len(transfer.calls) != 2 {
		t.Fatalf("transfers = %d, want base+quote only", len(transfer.calls))
	}
	if transfer.calls[0].fromVault != "vault-base" || transfer.calls[0].toAccount != "taker" || !transfer.calls[0].amount.Equal(baseFree) {
		t.Fatalf("base transfer %+v", transfer.calls[0])
	}
	if transfer.calls[1].fromVault != "vault-quote" || !transfer.calls[1].amount.Equal(quoteFree) {
		t.Fatalf("quote transfer %+v", transfer.calls[1])
	}

	if !taker.BaseFreeNative.IsZero() || !taker.QuoteFreeNative.IsZero() || !taker.ReferrerRebatesAccrued.IsZero() {
		t.Fatalf("position not drained: %+v", taker)
	}
}

func TestSettleFundsWithReferrer(t *testing.T) {
	eng, _, transfer, _ := testEngine(nil)
	tradeForRebates(t, eng)

	feesBefore := eng.Market().QuoteFeesAccrued

	if err := eng.SettleFunds(context.Background(), "taker", "ref-account"); err != nil {
		t.Fatalf("settle: %v", err)
	}

	if len(transfer.calls) != 3 {
		t.Fatalf("transfers = %d, want referrer+base+quote", len(transfer.calls))
	}
	ref := transfer.calls[0]
	if ref.fromVault != "vault-quote" || ref.toAccount != "ref-account" || !ref.amount.Equal(amt("0.002")) {
		t.Fatalf("referrer transfer %+v", ref)
	}
	// paid out, not folded
	if !eng.Market().QuoteFeesAccrued.Equal(feesBefore) {
		t.Fatalf("fees accrued changed: %s", eng.Market().QuoteFeesAccrued)
	}
	if !eng.Market().ReferrerRebatesAccrued.IsZero() {
		t.Fatalf("market referrer accrual = %s, want 0", eng.Market().ReferrerRebatesAccrued)
	}
}

func TestSettleFundsTransferFailureLeavesState(t *testing.T) {
	eng, _, transfer, _ := testEngine(nil)
	tradeForRebates(t, eng)

	taker := position(t, eng, "taker")
	baseBefore := taker.BaseFreeNative
	quoteBefore := taker.QuoteFreeNative
	rebatesBefore := taker.ReferrerRebatesAccrued
	totalBefore := eng.Market().QuoteDepositTotal

	transfer.failFor = "taker"
	if err := eng.SettleFunds(context.Background(), "taker", ""); err == nil {
		t.Fatal("expected transfer failure")
	}

	if !taker.BaseFreeNative.Equal(baseBefore) || !taker.QuoteFreeNative.Equal(quoteBefore) || !taker.ReferrerRebatesAccrued.Equal(rebatesBefore) {
		t.Fatal("position mutated on failed settle")
	}
	if !eng.Market().QuoteDepositTotal.Equal(totalBefore) {
		t.Fatal("deposit total mutated on failed settle")
	}
}

func TestSettleFundsUnknownPosition(t *testing.T) {
	eng, _, _, _ := testEngine(nil)
	if err := eng.SettleFunds(context.Background(), "ghost", ""); err != ErrPositionNotFound {
		t.Fatalf("err = %v, want ErrPositionNotFound", err)
	}
}

func TestClosePosition(t *testing.T) {
	eng, _, _, _ := testEngine(nil)
	fund(t, eng, "alice")

	if err := eng.ClosePosition("alice"); err != ErrPositionNotEmpty {
		t.Fatalf("err = %v, want ErrPositionNotEmpty", err)
	}

	if err := eng.SettleFunds(context.Background(), "alice", ""); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if err := eng.ClosePosition("alice"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := eng.Position("alice"); ok {
		t.Fatal("position should be gone")
	}
	if err := eng.ClosePosition("alice"); err != ErrPositionNotFound {
		t.Fatalf("err = %v, want ErrPositionNotFound", err)
	}
}
