package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/plugin/soft_delete"
)

// 落库记录。signal_record是append-only流水，外部报表只读

type SignalRecord struct {
	ID        uint           `gorm:"column:id;primary_key" json:"id"`
	SignalID  string         `gorm:"column:signal_id;index" json:"signal_id"`
	Venue     string         `gorm:"column:venue" json:"venue"`
	Symbol    string         `gorm:"column:symbol" json:"symbol"`
	Action    string         `gorm:"column:action" json:"action"`
	Source    string         `gorm:"column:source" json:"source"`
	Strategy  string         `gorm:"column:strategy" json:"strategy"`
	Price     float64        `gorm:"column:price;type:decimal(15,8)" json:"price"`
	Decision  string         `gorm:"column:decision" json:"decision"` // accepted / rejected
	Reason    string         `gorm:"column:reason" json:"reason"`
	Raw       datatypes.JSON `gorm:"column:raw" json:"raw"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

func (SignalRecord) TableName() string {
	return "signal_record"
}

type PositionRecord struct {
	ID       uint   `gorm:"column:id;primary_key" json:"id"`
	Venue    string `gorm:"column:venue;index:idx_key" json:"venue"`
	Symbol   string `gorm:"column:symbol;index:idx_key" json:"symbol"`
	SignalID string `gorm:"column:signal_id" json:"signal_id"`
	State    string `gorm:"column:state" json:"state"`
	Side     string `gorm:"column:side" json:"side"`

	EntryPrice  float64 `gorm:"column:entry_price;type:decimal(15,8)" json:"entry_price"`
	Quantity    float64 `gorm:"column:quantity;type:decimal(20,10)" json:"quantity"`
	StopPrice   float64 `gorm:"column:stop_price;type:decimal(15,8)" json:"stop_price"`
	RealizedPnl float64 `gorm:"column:realized_pnl;type:decimal(20,10)" json:"realized_pnl"`
	Fees        float64 `gorm:"column:fees;type:decimal(20,10)" json:"fees"`

	NeedsReconciliation bool `gorm:"column:needs_reconciliation" json:"needs_reconciliation"`

	TakeProfits datatypes.JSON `gorm:"column:take_profits" json:"take_profits"`

	OpenedAt  time.Time             `gorm:"column:opened_at" json:"opened_at"`
	ClosedAt  *time.Time            `gorm:"column:closed_at" json:"closed_at"`
	UpdatedAt time.Time             `gorm:"column:updated_at" json:"updated_at"`
	IsDel     soft_delete.DeletedAt `gorm:"column:is_del;softDelete:flag" json:"-"`
}

func (PositionRecord) TableName() string {
	return "position_record"
}
