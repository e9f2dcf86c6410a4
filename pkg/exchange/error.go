package exchange

import "errors"

// Input validation errors reject before any state mutation.
var (
	ErrInvalidInputLots      = errors.New("invalid input lots")
	ErrInvalidInputPriceLots = errors.New("invalid input price lots")
	ErrInvalidInputPegLimit  = errors.New("invalid input peg limit")
	ErrInvalidInputStaleness = errors.New("oracle reading is stale")
	ErrInvalidInputOrderType = errors.New("invalid input order type")
)

// Policy errors reject after price resolution but before commit.
var (
	ErrWouldSelfTrade         = errors.New("order would self trade")
	ErrInvalidOrderPostIOC    = errors.New("pegged order cannot be immediate-or-cancel")
	ErrInvalidOrderPostMarket = errors.New("pegged order cannot be a market order")
	ErrInvalidPriceLots       = errors.New("invalid price lots")
)

// Resource errors are recoverable by the caller.
var (
	ErrOpenOrdersFull    = errors.New("no free open-order slot")
	ErrInsufficientFunds = errors.New("insufficient free funds")
)

// ErrInvalidOrderSize reports a residual too small to rest; the placement
// itself succeeds as taken-not-posted.
var ErrInvalidOrderSize = errors.New("resting size below market minimum")

var (
	ErrInvalidDeposit   = errors.New("deposit amounts must be non-negative")
	ErrUnknownMarket    = errors.New("unknown market")
	ErrMarketExists     = errors.New("market already listed")
	ErrPositionNotFound = errors.New("open orders position not found")
	ErrPositionNotEmpty = errors.New("position has balances or open orders")
)
