package fixgateway

import (
	"testing"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/fix44/executionreport"
	"github.com/shopspring/decimal"
)

func TestToLots(t *testing.T) {
	lot := decimal.RequireFromString("0.01")

	if got := toLots(decimal.RequireFromString("100.50"), lot); got != 10050 {
		t.Fatalf("toLots(100.50, 0.01) = %d, want 10050", got)
	}
	// partial lots truncate toward zero
	if got := toLots(decimal.RequireFromString("0.019"), lot); got != 1 {
		t.Fatalf("toLots(0.019, 0.01) = %d, want 1", got)
	}
	if got := toLots(decimal.Zero, lot); got != 0 {
		t.Fatalf("toLots(0, 0.01) = %d, want 0", got)
	}
	if got := toLots(decimal.RequireFromString("1"), decimal.Zero); got != 0 {
		t.Fatalf("toLots(1, 0) = %d, want 0", got)
	}
}

func TestClientOrderID(t *testing.T) {
	if got := clientOrderID("12345"); got != 12345 {
		t.Fatalf("numeric ClOrdID = %d, want 12345", got)
	}
	a := clientOrderID("ORD-A")
	b := clientOrderID("ORD-B")
	if a == 0 || a == b {
		t.Fatalf("hashed ids must be stable and distinct, got %d/%d", a, b)
	}
	if a != clientOrderID("ORD-A") {
		t.Fatal("hashed id must be deterministic")
	}
}

func TestIsPostOnly(t *testing.T) {
	if !isPostOnly(enum.ExecInst_PARTICIPANT_DONT_INITIATE) {
		t.Fatal("participate-dont-initiate is post only")
	}
	if isPostOnly(enum.ExecInst_ALL_OR_NONE) {
		t.Fatal("all-or-none is not post only")
	}
	if isPostOnly("") {
		t.Fatal("empty exec inst is not post only")
	}
}

func buildReportForBenchmark() *executionreport.ExecutionReport {
	msg := execReportPool.Get()
	rpt := executionreport.FromMessage(msg)

	rpt.SetMsgType(enum.MsgType_EXECUTION_REPORT)
	rpt.SetOrderID("1")
	rpt.SetExecID(nextExecID())
	rpt.SetExecType(enum.ExecType_TRADE)
	rpt.SetOrdStatus(enum.OrdStatus_FILLED)
	rpt.SetClOrdID("C1")
	rpt.SetAccount("ACC1")
	rpt.SetSymbol("ABC/USD")
	rpt.SetSide(enum.Side_BUY)
	rpt.SetLeavesQty(decimal.Zero, 0)
	rpt.SetCumQty(decimal.NewFromInt(100), 0)
	rpt.SetAvgPx(decimal.RequireFromString("100.50"), 2)
	rpt.SetTransactTime(time.Now())

	execReportPool.Put(msg)
	return &rpt
}

func BenchmarkExecReportPool(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = buildReportForBenchmark()
	}
}
