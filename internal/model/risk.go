package model

import "time"

// RiskDecision 风控评估结果。依附于某个Signal，不单独持久化
type RiskDecision struct {
	SignalID string `json:"signal_id"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"` // daily_breaker / position_limit / size_too_small ...

	Quantity    float64          `json:"quantity"` // 基础币数量
	Notional    float64          `json:"notional"` // quantity * price
	StopPrice   float64          `json:"stop_price"`
	TakeProfits []TakeProfitTier `json:"take_profits"`
}

// AccountState 评估时刻的账户快照，由调用方从venue查询后传入
type AccountState struct {
	Equity        float64 `json:"equity"`
	OpenPositions int     `json:"open_positions"`
}

// DailyRiskState 当日风控状态，跨信号共享。日切时显式重置
type DailyRiskState struct {
	Date           string  `json:"date"` // 2006-01-02
	StartingEquity float64 `json:"starting_equity"`
	CumRealizedPnl float64 `json:"cum_realized_pnl"`
	BreakerTripped bool    `json:"breaker_tripped"`
}

// TradingDay 统一的交易日标签
func TradingDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
