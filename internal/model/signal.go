package model

import (
	"time"

	"github.com/goccy/go-json"
)

// 交易动作
type Action string

const (
	ActionBuy   Action = "buy"
	ActionSell  Action = "sell"
	ActionClose Action = "close"
)

// Valid 是否是允许的动作
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionClose:
		return true
	}
	return false
}

// Signal 规范化后的信号，落库后不可变。
// ID 即幂等键：来源给了就用来源的，否则由ingest计算
type Signal struct {
	ID         string          `json:"id"`
	Venue      string          `json:"venue"`
	Symbol     string          `json:"symbol"`
	Action     Action          `json:"action"`
	Price      float64         `json:"price,omitempty"` // 建议价格，可为0（市价）
	Quantity   float64         `json:"quantity,omitempty"`
	StopPct    float64         `json:"stop_pct,omitempty"` // 信号自带的止损距离，0则用配置默认
	TakePct    float64         `json:"take_pct,omitempty"`
	Strategy   string          `json:"strategy,omitempty"`
	Source     string          `json:"source"` // webhook / strategy
	ReceivedAt time.Time       `json:"received_at"`
	Raw        json.RawMessage `json:"raw,omitempty"` // 原始payload，仅存档
}

// WebhookPayload 入站webhook的原始消息体
type WebhookPayload struct {
	Secret     string      `json:"secret"`
	ID         string      `json:"id"`
	Action     string      `json:"action" binding:"required"`
	Symbol     string      `json:"symbol" binding:"required"`
	Price      interface{} `json:"price"`    // TradingView有时发字符串，用cast兜底
	Quantity   interface{} `json:"quantity"` // 同上
	Exchange   string      `json:"exchange"`
	Strategy   string      `json:"strategy"`
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
}

// IngestResult 同步返回给信号来源的处理结果
type IngestResult struct {
	Status   string    `json:"status"` // success / rejected
	Reason   string    `json:"reason,omitempty"`
	SignalID string    `json:"signal_id,omitempty"`
	Position *Position `json:"position,omitempty"`
}
