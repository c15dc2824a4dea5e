package model

import "time"

type OrderSide string

const (
	Buy  OrderSide = "buy"
	Sell OrderSide = "sell"
)

// Opposite 平仓方向
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType string

const (
	// 市价
	Market OrderType = "market"
	// 限价
	Limit OrderType = "limit"
)

// Order 下单请求。ClientID携带信号幂等键，交易所侧二次去重
type Order struct {
	Symbol    string
	Side      OrderSide
	Price     float64
	Quantity  float64
	OrderType OrderType
	ClientID  string
	Timestamp time.Time
}

// OrderAck 交易所返回的下单回执
type OrderAck struct {
	OrderID   string
	ClientID  string
	FilledQty float64
	AvgPrice  float64
	Fee       float64
	Partial   bool // 部分成交
}

// Quote 最新报价
type Quote struct {
	Symbol string
	Price  float64
	At     time.Time
}
