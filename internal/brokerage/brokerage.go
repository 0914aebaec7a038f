package brokerage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Account 账户快照中与执行闸门相关的字段。
type Account struct {
	Status           string
	Equity           decimal.Decimal
	Cash             decimal.Decimal
	BuyingPower      decimal.Decimal
	PortfolioValue   decimal.Decimal
	ShortingEnabled  bool
	DaytradeCount    int
	PatternDayTrader bool
}

// Position is one open position. Side is "long" or "short"; Qty is the
// absolute quantity.
type Position struct {
	Symbol        string
	Qty           decimal.Decimal
	Side          string
	AvgEntryPrice decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPL  decimal.Decimal
}

const (
	PositionSideLong  = "long"
	PositionSideShort = "short"
)

// Clock is the venue market clock.
type Clock struct {
	IsOpen    bool
	Timestamp time.Time
	NextOpen  time.Time
	NextClose time.Time
}

// OrderRequest 提交给券商的委托请求。
type OrderRequest struct {
	Symbol      string
	Side        string
	Qty         decimal.Decimal
	Type        string
	TimeInForce string
}

// PlacedOrder is the venue's acknowledgement of a submitted order.
type PlacedOrder struct {
	ID     string
	Symbol string
	Side   string
	Qty    decimal.Decimal
	Status string
}

// Client 券商接口：账户、持仓、市场时钟、下单。
type Client interface {
	GetAccount(ctx context.Context) (Account, error)
	GetAllPositions(ctx context.Context) ([]Position, error)
	GetClock(ctx context.Context) (Clock, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (PlacedOrder, error)
}
