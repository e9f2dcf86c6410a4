package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/joripage/clob-engine/pkg/orderbook"
)

// FillEventRecord is the persisted form of a matching-engine event. One row
// per Fill or Out, keyed by a generated event id so replays are idempotent.
type FillEventRecord struct {
	EventID      string `gorm:"primaryKey"`
	Symbol       string
	EventType    string
	Seq          uint64
	Maker        string
	Taker        string
	MakerOrderID uint64
	PriceLots    int64
	BaseLots     int64
	MakerOut     bool
	Owner        string
	OrderID      uint64
	ReleasedLots int64
	Timestamp    time.Time
}

func (FillEventRecord) TableName() string {
	return "fill_events"
}

// NewFillEventRecord flattens an engine event for storage.
func NewFillEventRecord(symbol string, ev orderbook.Event) *FillEventRecord {
	rec := &FillEventRecord{
		EventID:   uuid.NewString(),
		Symbol:    symbol,
		Seq:       ev.Seq,
		Timestamp: ev.Time,
	}
	switch ev.Type {
	case orderbook.EventFill:
		rec.EventType = "FILL"
		rec.Maker = ev.Maker
		rec.Taker = ev.Taker
		rec.MakerOrderID = ev.MakerOrderID
		rec.PriceLots = ev.PriceLots
		rec.BaseLots = ev.BaseLots
		rec.MakerOut = ev.MakerOut
	case orderbook.EventOut:
		rec.EventType = "OUT"
		rec.Owner = ev.Owner
		rec.OrderID = ev.OrderID
		rec.ReleasedLots = ev.ReleasedLots
	}
	return rec
}
