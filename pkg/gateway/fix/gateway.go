package fixgateway

import (
	"context"
	"hash/fnv"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/joripage/clob-engine/pkg/exchange"
	"github.com/joripage/clob-engine/pkg/orderbook"
	"github.com/quickfixgo/enum"
	"github.com/shopspring/decimal"
)

// FixGateway is the FIX 4.4 order entry surface. It translates native prices
// and quantities into market lots, submits to the exchange, and reports the
// outcome back as execution reports on the originating session.
type FixGateway struct {
	cfg  *FixGatewayConfig
	app  *Application
	exch *exchange.Exchange

	orderMapping sync.Map // ClOrdID -> *orderInfo
}

type FixGatewayConfig struct {
	ConfigFilepath string
}

type orderInfo struct {
	symbol  string
	account string
	orderID uint64
}

func NewFixGateway(cfg *FixGatewayConfig) *FixGateway {
	return &FixGateway{
		cfg: cfg,
	}
}

func (s *FixGateway) AddExchangeInstance(x *exchange.Exchange) {
	s.exch = x
}

func (s *FixGateway) Start(ctx context.Context) error {
	app, err := startApp(s.cfg.ConfigFilepath, s)
	if err != nil {
		log.Printf("start app err=%v", err)
		return err
	}
	s.app = app
	return nil
}

func (s *FixGateway) Stop() {
	if s.app != nil {
		stopApp(s.app)
	}
}

func (s *FixGateway) AddOrder(ctx context.Context, m *NewOrderSingle) {
	side := map[enum.Side]orderbook.Side{
		enum.Side_BUY:  orderbook.Bid,
		enum.Side_SELL: orderbook.Ask,
	}[m.Side]

	eng, err := s.exch.Engine(m.Symbol)
	if err != nil {
		sendReject(m, err)
		return
	}
	cfg := eng.Market().Cfg

	req := &exchange.PlaceOrderRequest{
		Owner:           m.Account,
		Side:            side,
		PriceLots:       toLots(m.Price, cfg.QuoteLotSize.Decimal()),
		MaxBaseLots:     toLots(m.OrderQty, cfg.BaseLotSize.Decimal()),
		MaxQuoteLots:    toLots(m.CashOrderQty, cfg.QuoteLotSize.Decimal()),
		SelfTradePolicy: orderbook.SelfTradeCancelProvide,
		ClientOrderID:   clientOrderID(m.ClOrdID),
	}

	var res *exchange.PlaceOrderResult
	switch m.OrdType {
	case enum.OrdType_MARKET:
		req.OrderType = orderbook.Market
		res, err = s.exch.PlaceTakeOrder(ctx, m.Symbol, req)
	case enum.OrdType_PEGGED:
		req.OrderType = orderbook.Limit
		if isPostOnly(m.ExecInst) {
			req.OrderType = orderbook.PostOnly
		}
		req.PegOffsetLots = toLots(m.PegOffset, cfg.QuoteLotSize.Decimal())
		req.PegLimitLots = req.PriceLots
		res, err = s.exch.PlaceOrderPegged(ctx, m.Symbol, req)
	case enum.OrdType_LIMIT:
		switch {
		case m.TimeInForce == enum.TimeInForce_IMMEDIATE_OR_CANCEL:
			req.OrderType = orderbook.ImmediateOrCancel
		case isPostOnly(m.ExecInst):
			req.OrderType = orderbook.PostOnly
		default:
			req.OrderType = orderbook.Limit
		}
		res, err = s.exch.PlaceOrder(ctx, m.Symbol, req)
	default:
		sendReject(m, exchange.ErrInvalidInputOrderType)
		return
	}

	if err != nil {
		sendReject(m, err)
		return
	}

	if res.Posted {
		s.orderMapping.Store(m.ClOrdID, &orderInfo{
			symbol:  m.Symbol,
			account: m.Account,
			orderID: res.PostedOrderID,
		})
	}
	sendPlacementReports(m, req, res, cfg)
}

func (s *FixGateway) CancelOrder(ctx context.Context, m *OrderCancelRequest) {
	v, ok := s.orderMapping.Load(m.OrigClOrdID)
	if !ok {
		sendCancelReject(m, orderbook.ErrOrderNotFound)
		return
	}
	info := v.(*orderInfo)

	if err := s.exch.CancelOrder(info.symbol, m.Account, info.orderID); err != nil {
		sendCancelReject(m, err)
		return
	}
	s.orderMapping.Delete(m.OrigClOrdID)
	sendCanceled(m, info)
}

func isPostOnly(execInst enum.ExecInst) bool {
	return strings.Contains(string(execInst), string(enum.ExecInst_PARTICIPANT_DONT_INITIATE))
}

// toLots converts a native decimal to whole lots, truncating toward zero.
func toLots(native, lotSize decimal.Decimal) int64 {
	if native.IsZero() || lotSize.IsZero() {
		return 0
	}
	return native.Div(lotSize).IntPart()
}

// clientOrderID derives a stable numeric id from the ClOrdID string.
func clientOrderID(clOrdID string) uint64 {
	if v, err := strconv.ParseUint(clOrdID, 10, 64); err == nil {
		return v
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(clOrdID))
	return h.Sum64()
}
