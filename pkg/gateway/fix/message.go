package fixgateway

import (
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joripage/clob-engine/pkg/exchange"
	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	"github.com/quickfixgo/fix44/executionreport"
	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
)

// ----- Pool setup -----

// MessagePool recycles quickfix messages between reports
type MessagePool struct {
	pool sync.Pool
}

func NewMessagePool() *MessagePool {
	return &MessagePool{
		pool: sync.Pool{
			New: func() interface{} {
				m := quickfix.NewMessage()
				resetMessage(m)
				return m
			},
		},
	}
}

// Get returns a reset message from the pool
func (mp *MessagePool) Get() *quickfix.Message {
	m := mp.pool.Get().(*quickfix.Message)
	resetMessage(m)
	return m
}

// Put resets the message before returning it to the pool
func (mp *MessagePool) Put(m *quickfix.Message) {
	resetMessage(m)
	mp.pool.Put(m)
}

func resetMessage(m *quickfix.Message) {
	m.Header.Init()
	m.Body.Init()
	m.Trailer.Init()
	m.Header.Clear()
	m.Body.Clear()
	m.Trailer.Clear()
}

var execReportPool = NewMessagePool()

var execIDCount = int64(0)

func nextExecID() string {
	return strconv.FormatInt(atomic.AddInt64(&execIDCount, 1), 10)
}

func sendReject(m *NewOrderSingle, reason error) {
	msg := execReportPool.Get()
	rpt := executionreport.FromMessage(msg)

	rpt.SetMsgType(enum.MsgType_EXECUTION_REPORT)
	rpt.SetOrderID("NONE")
	rpt.SetExecID(nextExecID())
	rpt.SetExecType(enum.ExecType_REJECTED)
	rpt.SetOrdStatus(enum.OrdStatus_REJECTED)
	rpt.SetClOrdID(m.ClOrdID)
	rpt.SetAccount(m.Account)
	rpt.SetSymbol(m.Symbol)
	rpt.SetSide(m.Side)
	rpt.SetLeavesQty(decimal.Zero, 0)
	rpt.SetCumQty(decimal.Zero, 0)
	rpt.SetAvgPx(decimal.Zero, 2)
	rpt.SetTransactTime(time.Now())
	rpt.SetText(reason.Error())

	if err := quickfix.SendToTarget(rpt, *m.SessionID); err != nil {
		log.Printf("send err=%v", err)
	}
	execReportPool.Put(msg)
}

// sendPlacementReports reports an accepted placement: an ack when the order
// rests unfilled, a trade report when anything crossed, and a cancel report
// for a discarded remainder.
func sendPlacementReports(m *NewOrderSingle, req *exchange.PlaceOrderRequest, res *exchange.PlaceOrderResult, cfg exchange.MarketConfig) {
	quoteLot := cfg.QuoteLotSize.Decimal()
	baseLot := cfg.BaseLotSize.Decimal()

	leaves := int64(0)
	if res.Posted {
		leaves = req.MaxBaseLots - res.FilledBaseLots
	}

	send := func(execType enum.ExecType, status enum.OrdStatus, text string) {
		msg := execReportPool.Get()
		rpt := executionreport.FromMessage(msg)

		rpt.SetMsgType(enum.MsgType_EXECUTION_REPORT)
		rpt.SetOrderID(strconv.FormatUint(res.PostedOrderID, 10))
		rpt.SetExecID(nextExecID())
		rpt.SetExecType(execType)
		rpt.SetOrdStatus(status)
		rpt.SetClOrdID(m.ClOrdID)
		rpt.SetAccount(m.Account)
		rpt.SetSymbol(m.Symbol)
		rpt.SetSide(m.Side)
		rpt.SetOrderQty(m.OrderQty, 0)
		rpt.SetLeavesQty(decimal.NewFromInt(leaves).Mul(baseLot), 0)
		rpt.SetCumQty(decimal.NewFromInt(res.FilledBaseLots).Mul(baseLot), 0)
		rpt.SetAvgPx(res.AvgPriceLots.Decimal().Mul(quoteLot), 2)
		rpt.SetTransactTime(time.Now())
		if text != "" {
			rpt.SetText(text)
		}

		if err := quickfix.SendToTarget(rpt, *m.SessionID); err != nil {
			log.Printf("send err=%v", err)
		}
		execReportPool.Put(msg)
	}

	switch {
	case res.FilledBaseLots == 0 && res.Posted:
		send(enum.ExecType_NEW, enum.OrdStatus_NEW, "")
	case res.FilledBaseLots > 0 && leaves == 0 && res.FilledBaseLots == req.MaxBaseLots:
		send(enum.ExecType_TRADE, enum.OrdStatus_FILLED, "")
	case res.FilledBaseLots > 0 && res.Posted:
		send(enum.ExecType_TRADE, enum.OrdStatus_PARTIALLY_FILLED, "")
	case res.FilledBaseLots > 0:
		send(enum.ExecType_TRADE, enum.OrdStatus_CANCELED, notPostedText(res))
	default:
		send(enum.ExecType_CANCELED, enum.OrdStatus_CANCELED, notPostedText(res))
	}
}

func notPostedText(res *exchange.PlaceOrderResult) string {
	if res.NotPosted != nil {
		return res.NotPosted.Error()
	}
	return ""
}

func sendCanceled(m *OrderCancelRequest, info *orderInfo) {
	rpt := executionreport.New(
		field.NewOrderID(strconv.FormatUint(info.orderID, 10)),
		field.NewExecID(nextExecID()),
		field.NewExecType(enum.ExecType_CANCELED),
		field.NewOrdStatus(enum.OrdStatus_CANCELED),
		field.NewSide(m.Side),
		field.NewLeavesQty(decimal.Zero, 0),
		field.NewCumQty(decimal.Zero, 0),
		field.NewAvgPx(decimal.Zero, 2),
	)
	rpt.SetClOrdID(m.ClOrdID)
	rpt.SetOrigClOrdID(m.OrigClOrdID)
	rpt.SetAccount(m.Account)
	rpt.SetSymbol(m.Symbol)
	rpt.SetTransactTime(time.Now())

	if err := quickfix.SendToTarget(rpt, *m.SessionID); err != nil {
		log.Printf("send err=%v", err)
	}
}

func sendCancelReject(m *OrderCancelRequest, reason error) {
	rpt := executionreport.New(
		field.NewOrderID("NONE"),
		field.NewExecID(nextExecID()),
		field.NewExecType(enum.ExecType_REJECTED),
		field.NewOrdStatus(enum.OrdStatus_REJECTED),
		field.NewSide(m.Side),
		field.NewLeavesQty(decimal.Zero, 0),
		field.NewCumQty(decimal.Zero, 0),
		field.NewAvgPx(decimal.Zero, 2),
	)
	rpt.SetClOrdID(m.ClOrdID)
	rpt.SetOrigClOrdID(m.OrigClOrdID)
	rpt.SetAccount(m.Account)
	rpt.SetSymbol(m.Symbol)
	rpt.SetTransactTime(time.Now())
	rpt.SetText(reason.Error())

	if err := quickfix.SendToTarget(rpt, *m.SessionID); err != nil {
		log.Printf("send err=%v", err)
	}
}
