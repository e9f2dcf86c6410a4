// Package tradefeed publishes trade prints to Kafka. One message per fill,
// keyed by symbol so a partition preserves per-market trade order.
package tradefeed

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"time"

	"github.com/joripage/clob-engine/pkg/orderbook"
	kafka "github.com/segmentio/kafka-go"
)

// TradePrint is the public shape of one executed trade.
type TradePrint struct {
	Symbol    string    `json:"symbol"`
	Seq       uint64    `json:"seq"`
	PriceLots int64     `json:"price_lots"`
	BaseLots  int64     `json:"base_lots"`
	Maker     string    `json:"maker"`
	Taker     string    `json:"taker"`
	Time      time.Time `json:"time"`
}

type Config struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchBytes   int64
	BatchTimeout time.Duration
}

type TradeFeed struct {
	w     *kafka.Writer
	topic string
}

func New(cfg Config) *TradeFeed {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchBytes == 0 {
		cfg.BatchBytes = 1 << 20
	}
	if cfg.BatchTimeout == 0 {
		cfg.BatchTimeout = 50 * time.Millisecond
	}
	wr := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchBytes:             cfg.BatchBytes,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireNone,
		Async:                  true,
	}
	return &TradeFeed{w: wr, topic: cfg.Topic}
}

// PublishFills converts the fill events of one placement into trade prints.
// Out events carry no price and are skipped.
func (f *TradeFeed) PublishFills(ctx context.Context, symbol string, fills []orderbook.Event) error {
	if f == nil || f.w == nil {
		return errors.New("trade feed not initialized")
	}

	var msgs []kafka.Message
	for _, ev := range fills {
		if ev.Type != orderbook.EventFill {
			continue
		}
		tp := TradePrint{
			Symbol:    symbol,
			Seq:       ev.Seq,
			PriceLots: ev.PriceLots,
			BaseLots:  ev.BaseLots,
			Maker:     ev.Maker,
			Taker:     ev.Taker,
			Time:      ev.Time,
		}
		b, err := json.Marshal(tp)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Topic: f.topic,
			Key:   hashKey(symbol),
			Value: b,
			Time:  ev.Time,
		})
	}
	if len(msgs) == 0 {
		return nil
	}
	return f.w.WriteMessages(ctx, msgs...)
}

func (f *TradeFeed) Close() error {
	if f == nil || f.w == nil {
		return nil
	}
	return f.w.Close()
}

func hashKey(s string) []byte {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	sum := h.Sum64()
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(sum >> (56 - 8*i))
	}
	return b
}
