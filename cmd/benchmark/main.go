package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/joripage/clob-engine/pkg/exchange"
	"github.com/joripage/clob-engine/pkg/fixedpoint"
	"github.com/joripage/clob-engine/pkg/orderbook"
)

const (
	numOrders = 1_000_000
	numOwners = 32
	minPrice  = 100
	maxPrice  = 200
	minQty    = 1
	maxQty    = 100
)

type nopTransfer struct{}

func (nopTransfer) Transfer(_ context.Context, _, _ string, _ fixedpoint.Amount) error {
	return nil
}

func randomRequest(rng *rand.Rand) *exchange.PlaceOrderRequest {
	side := orderbook.Bid
	if rng.Intn(2) == 0 {
		side = orderbook.Ask
	}

	return &exchange.PlaceOrderRequest{
		Owner:           fmt.Sprintf("ACC-%02d", rng.Intn(numOwners)),
		Side:            side,
		PriceLots:       int64(rng.Intn(maxPrice-minPrice+1) + minPrice),
		MaxBaseLots:     int64(rng.Intn(maxQty-minQty+1) + minQty),
		OrderType:       orderbook.Limit,
		SelfTradePolicy: orderbook.SelfTradeCancelProvide,
	}
}

func main() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ctx := context.Background()

	eng := exchange.NewEngine(exchange.MarketConfig{
		Symbol:        "ABC/USD",
		BaseLotSize:   fixedpoint.MustParse("0.001"),
		QuoteLotSize:  fixedpoint.MustParse("0.01"),
		MinBaseLots:   1,
		MaxBookOrders: 1 << 20,
		EventQueueCap: 1 << 22,
	}, exchange.NewStaticOracle(), nopTransfer{}, func() uint64 { return 0 })

	// fund everyone far beyond what random flow can spend
	for i := 0; i < numOwners; i++ {
		owner := fmt.Sprintf("ACC-%02d", i)
		if err := eng.Deposit(owner,
			fixedpoint.MustParse("1000000000"),
			fixedpoint.MustParse("1000000000")); err != nil {
			log.Fatal(err)
		}
	}

	totalFills := 0
	totalQty := int64(0)
	rejected := 0

	start := time.Now()
	for i := 0; i < numOrders; i++ {
		res, err := eng.PlaceOrder(ctx, randomRequest(rng))
		if err == exchange.ErrOpenOrdersFull || err == orderbook.ErrBookFull {
			rejected++
			continue
		}
		if err != nil {
			log.Fatalf("place %d: %v", i, err)
		}
		for _, f := range res.Fills {
			totalFills++
			totalQty += f.BaseLots
		}
		// keep the queue from filling up mid-run
		if eng.Events().Free() < 1024 {
			eng.DrainEvents(1 << 16)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("orders:      %d\n", numOrders)
	fmt.Printf("rejected:    %d\n", rejected)
	fmt.Printf("fills:       %d (%d lots)\n", totalFills, totalQty)
	fmt.Printf("elapsed:     %v\n", elapsed)
	fmt.Printf("orders/sec:  %.0f\n", float64(numOrders)/elapsed.Seconds())
}
