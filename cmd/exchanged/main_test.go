package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/joripage/clob-engine/pkg/exchange"
	"github.com/joripage/clob-engine/pkg/exchange/model"
	"github.com/joripage/clob-engine/pkg/fixedpoint"
	"github.com/joripage/clob-engine/pkg/orderbook"
	"github.com/nats-io/nats.go"
)

type fakePublisher struct {
	fail      bool
	published [][]byte
}

func (p *fakePublisher) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	if p.fail {
		return nil, errors.New("nats unavailable")
	}
	p.published = append(p.published, data)
	return &nats.PubAck{}, nil
}

func crankExchange(t *testing.T) *exchange.Exchange {
	t.Helper()
	exch := exchange.NewExchange(exchange.NewStaticOracle(), ledgerTransfer{}, func() uint64 { return 1 })
	err := exch.AddMarket(exchange.MarketConfig{
		Index:         1,
		Symbol:        "ABC/USD",
		BaseLotSize:   fixedpoint.MustParse("0.001"),
		QuoteLotSize:  fixedpoint.MustParse("0.01"),
		MinBaseLots:   1,
		MaxBookOrders: 64,
		EventQueueCap: 64,
	})
	if err != nil {
		t.Fatalf("add market: %v", err)
	}
	for _, owner := range []string{"maker", "taker"} {
		if err := exch.Deposit("ABC/USD", owner, fixedpoint.MustParse("1000"), fixedpoint.MustParse("1000")); err != nil {
			t.Fatalf("deposit %s: %v", owner, err)
		}
	}
	return exch
}

// crossOnce trades maker against taker, emitting one fill and one out event.
func crossOnce(t *testing.T, exch *exchange.Exchange) {
	t.Helper()
	ctx := context.Background()
	ask := &exchange.PlaceOrderRequest{
		Owner:           "maker",
		Side:            orderbook.Ask,
		PriceLots:       100,
		MaxBaseLots:     2,
		OrderType:       orderbook.Limit,
		SelfTradePolicy: orderbook.SelfTradeAbort,
	}
	if _, err := exch.PlaceOrder(ctx, "ABC/USD", ask); err != nil {
		t.Fatalf("ask: %v", err)
	}
	bid := &exchange.PlaceOrderRequest{
		Owner:           "taker",
		Side:            orderbook.Bid,
		PriceLots:       100,
		MaxBaseLots:     2,
		OrderType:       orderbook.Limit,
		SelfTradePolicy: orderbook.SelfTradeAbort,
	}
	if _, err := exch.PlaceOrder(ctx, "ABC/USD", bid); err != nil {
		t.Fatalf("bid: %v", err)
	}
}

func TestCrankRetainsEventsOnPublishFailure(t *testing.T) {
	exch := crankExchange(t)
	pub := &fakePublisher{fail: true}

	crossOnce(t, exch)
	backlog := crankOnce(exch, pub, "events", nil)
	if len(backlog) != 2 {
		t.Fatalf("backlog = %d, want fill+out retained", len(backlog))
	}

	// while the backlog is blocked, fresh events stay in the engine queue
	crossOnce(t, exch)
	backlog = crankOnce(exch, pub, "events", backlog)
	if len(backlog) != 2 {
		t.Fatalf("backlog = %d, want 2 (no draining while blocked)", len(backlog))
	}
	eng, err := exch.Engine("ABC/USD")
	if err != nil {
		t.Fatal(err)
	}
	if eng.Events().Len() != 2 {
		t.Fatalf("engine queue = %d, want 2", eng.Events().Len())
	}

	pub.fail = false
	backlog = crankOnce(exch, pub, "events", backlog)
	if len(backlog) != 0 {
		t.Fatalf("backlog = %d after recovery, want 0", len(backlog))
	}
	if len(pub.published) != 4 {
		t.Fatalf("published = %d, want 4", len(pub.published))
	}

	// emission order survives the retry
	var lastSeq uint64
	for i, b := range pub.published {
		var rec model.FillEventRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			t.Fatalf("unmarshal %d: %v", i, err)
		}
		if i > 0 && rec.Seq <= lastSeq {
			t.Fatalf("event %d out of order: seq %d after %d", i, rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq
	}
}

func TestCrankPublishesInOrderWhenHealthy(t *testing.T) {
	exch := crankExchange(t)
	pub := &fakePublisher{}

	crossOnce(t, exch)
	backlog := crankOnce(exch, pub, "events", nil)
	if len(backlog) != 0 {
		t.Fatalf("backlog = %d, want 0", len(backlog))
	}
	if len(pub.published) != 2 {
		t.Fatalf("published = %d, want fill+out", len(pub.published))
	}

	var rec model.FillEventRecord
	if err := json.Unmarshal(pub.published[0], &rec); err != nil {
		t.Fatal(err)
	}
	if rec.EventType != "FILL" || rec.Maker != "maker" || rec.BaseLots != 2 {
		t.Fatalf("first record %+v, want the fill", rec)
	}
}
