package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joripage/clob-engine/config"
	"github.com/joripage/clob-engine/pkg/exchange"
	"github.com/joripage/clob-engine/pkg/exchange/model"
	"github.com/joripage/clob-engine/pkg/fixedpoint"
	fixgateway "github.com/joripage/clob-engine/pkg/gateway/fix"
	redis_wrapper "github.com/joripage/clob-engine/pkg/infra/redis"
	"github.com/joripage/clob-engine/pkg/orderbook"
	"github.com/joripage/clob-engine/pkg/tradefeed"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const drainBatch = 256

// ledgerTransfer records settlement transfers until an external custody
// integration exists.
type ledgerTransfer struct{}

func (ledgerTransfer) Transfer(_ context.Context, fromVault, toAccount string, amount fixedpoint.Amount) error {
	zap.S().Infof("transfer %s -> %s amount=%s", fromVault, toAccount, amount)
	return nil
}

func main() {
	var configFile string
	flag.StringVar(&configFile, "config-file", "", "Specify config file path")
	flag.Parse()

	go func() {
		http.ListenAndServe("localhost:6060", nil) // nolint
	}()

	cfg, err := config.Load(configFile)
	if err != nil {
		panic(err)
	}

	configBytes, err := json.MarshalIndent(cfg, "", "   ")
	if err != nil {
		zap.S().Warnf("could not convert config to JSON: %v", err)
	} else {
		zap.S().Debugf("load config %s", string(configBytes))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// oracle source
	var oracle exchange.OracleReader
	if cfg.Redis != nil {
		redisClient, err := redis_wrapper.InitRedis(cfg.Redis)
		if err != nil {
			panic(err)
		}
		oracle = exchange.NewRedisOracle(redisClient, "oracle:")
	} else {
		oracle = exchange.NewStaticOracle()
	}

	slotClock := func() uint64 { return uint64(time.Now().Unix()) }
	exch := exchange.NewExchange(oracle, ledgerTransfer{}, slotClock)
	for _, m := range cfg.Markets {
		err := exch.AddMarket(exchange.MarketConfig{
			Index:                m.Index,
			Symbol:               m.Symbol,
			BaseLotSize:          fixedpoint.MustParse(m.BaseLotSize),
			QuoteLotSize:         fixedpoint.MustParse(m.QuoteLotSize),
			MinBaseLots:          m.MinBaseLots,
			TakerFeeBps:          m.TakerFeeBps,
			MakerRebateBps:       m.MakerRebateBps,
			ReferrerRebateBps:    m.ReferrerRebateBps,
			OracleA:              m.OracleA,
			OracleB:              m.OracleB,
			OracleStalenessSlots: m.OracleStalenessSlot,
			BaseVault:            m.BaseVault,
			QuoteVault:           m.QuoteVault,
			MaxBookOrders:        m.MaxBookOrders,
			EventQueueCap:        m.EventQueueCap,
		})
		if err != nil {
			panic(err)
		}
	}

	// trade feed
	if cfg.Kafka != nil {
		feed := tradefeed.New(tradefeed.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		defer feed.Close() // nolint
		exch.RegisterFillCallback(func(symbol string, fills []orderbook.Event) {
			if err := feed.PublishFills(ctx, symbol, fills); err != nil {
				zap.S().Warnf("publish trade prints fail: %v", err)
			}
		})
	}

	// event cranker: drain every market into the settlement stream
	if cfg.Nats != nil {
		nc, err := nats.Connect(cfg.Nats.URL)
		if err != nil {
			panic(err)
		}
		defer nc.Close()
		js, err := nc.JetStream()
		if err != nil {
			panic(err)
		}
		_, _ = js.AddStream(&nats.StreamConfig{
			Name:     cfg.Nats.Stream,
			Subjects: []string{cfg.Nats.Subject},
		})
		go crankEvents(ctx, exch, js, cfg.Nats.Subject)
	}

	// FIX order entry
	if cfg.Fix != nil {
		gw := fixgateway.NewFixGateway(&fixgateway.FixGatewayConfig{
			ConfigFilepath: cfg.Fix.ConfigFilepath,
		})
		gw.AddExchangeInstance(exch)
		if err := gw.Start(ctx); err != nil {
			panic(err)
		}
		defer gw.Stop()
	}

	fmt.Println("Exchange started. Press Ctrl+C to exit.")

	<-sigs
	fmt.Println("Shutting down...")

	cancel()

	fmt.Println("Exited cleanly.")
}

// eventPublisher is the slice of nats.JetStreamContext the cranker needs.
type eventPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

func crankEvents(ctx context.Context, exch *exchange.Exchange, js eventPublisher, subject string) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var backlog [][]byte
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		backlog = crankOnce(exch, js, subject, backlog)
	}
}

// crankOnce flushes the backlog, then drains fresh events into the stream.
// A failed publish keeps the payload in the backlog and pauses draining
// until it clears; undrained events stay in the engine's bounded queue, so
// a NATS outage never drops a settlement event.
func crankOnce(exch *exchange.Exchange, js eventPublisher, subject string, backlog [][]byte) [][]byte {
	for len(backlog) > 0 {
		if _, err := js.Publish(subject, backlog[0]); err != nil {
			zap.S().Warnf("publish event fail: %v", err)
			return backlog
		}
		backlog = backlog[1:]
	}

	for _, symbol := range exch.Symbols() {
		events, err := exch.DrainEvents(symbol, drainBatch)
		if err != nil {
			continue
		}
		for _, ev := range events {
			rec := model.NewFillEventRecord(symbol, ev)
			b, err := json.Marshal(rec)
			if err != nil {
				zap.S().Warnf("marshal event fail: %v", err)
				continue
			}
			if len(backlog) > 0 {
				backlog = append(backlog, b)
				continue
			}
			if _, err := js.Publish(subject, b); err != nil {
				zap.S().Warnf("publish event fail: %v", err)
				backlog = append(backlog, b)
			}
		}
	}
	return backlog
}
