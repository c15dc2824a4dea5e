package model

import "time"

// PositionState 仓位生命周期状态
type PositionState string

const (
	PosReceived    PositionState = "received"
	PosRiskChecked PositionState = "risk_checked"
	PosRejected    PositionState = "rejected"
	PosOpening     PositionState = "opening"
	PosOpen        PositionState = "open"
	PosClosing     PositionState = "closing"
	PosClosed      PositionState = "closed"
)

// Terminal 终态不再迁移
func (s PositionState) Terminal() bool {
	return s == PosRejected || s == PosClosed
}

// 状态机合法迁移表
var transitions = map[PositionState][]PositionState{
	PosReceived:    {PosRiskChecked},
	PosRiskChecked: {PosRejected, PosOpening},
	PosOpening:     {PosOpen, PosRejected},
	PosOpen:        {PosClosing},
	PosClosing:     {PosClosed, PosOpen}, // 平仓失败退回open并标记needs_reconciliation
}

// CanTransition 判断是否允许从from迁移到to
func CanTransition(from, to PositionState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PositionKey 同一(venue, symbol)同时只允许一个活跃仓位
type PositionKey struct {
	Venue  string `json:"venue"`
	Symbol string `json:"symbol"`
}

func (k PositionKey) String() string {
	return k.Venue + ":" + k.Symbol
}

// TakeProfitTier 分批止盈档位。Fraction是相对初始仓位的比例，总和不超过1
type TakeProfitTier struct {
	Name     string  `json:"name"` // tp1 / tp2 / runner
	Price    float64 `json:"price"`
	Fraction float64 `json:"fraction"`
	Hit      bool    `json:"hit"`
}

// Position 仓位。归执行协调器独占写，对外只暴露拷贝
type Position struct {
	Key      PositionKey   `json:"key"`
	SignalID string        `json:"signal_id"`
	State    PositionState `json:"state"`
	Side     OrderSide     `json:"side"` // buy=做多 sell=做空

	EntryPrice  float64          `json:"entry_price"`
	Quantity    float64          `json:"quantity"` // 当前持有数量
	InitialQty  float64          `json:"initial_qty"`
	StopPrice   float64          `json:"stop_price"`
	TakeProfits []TakeProfitTier `json:"take_profits"`

	RealizedPnl float64 `json:"realized_pnl"`
	Fees        float64 `json:"fees"`

	// 平仓失败或撤单失败后交易所侧状态未知，需要人工对账
	NeedsReconciliation bool   `json:"needs_reconciliation,omitempty"`
	RejectReason        string `json:"reject_reason,omitempty"`

	OpenedAt time.Time `json:"opened_at,omitempty"`
	ClosedAt time.Time `json:"closed_at,omitempty"`
}

// Short 是否空头仓位
func (p *Position) Short() bool { return p.Side == Sell }

// Clone 只读拷贝，暴露给dashboard/日志等协作方
func (p *Position) Clone() *Position {
	cp := *p
	cp.TakeProfits = make([]TakeProfitTier, len(p.TakeProfits))
	copy(cp.TakeProfits, p.TakeProfits)
	return &cp
}
