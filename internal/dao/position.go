package dao

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"signalflow/internal/model"
)

type PositionDao struct {
	db *gorm.DB
}

func NewPositionDao(db *gorm.DB) *PositionDao {
	return &PositionDao{db: db}
}

// Save 按(venue, symbol, signal_id)覆盖写仓位快照
func (d *PositionDao) Save(ctx context.Context, p *model.Position) error {
	tps, err := json.Marshal(p.TakeProfits)
	if err != nil {
		return err
	}
	record := &model.PositionRecord{
		Venue:               p.Key.Venue,
		Symbol:              p.Key.Symbol,
		SignalID:            p.SignalID,
		State:               string(p.State),
		Side:                string(p.Side),
		EntryPrice:          p.EntryPrice,
		Quantity:            p.Quantity,
		StopPrice:           p.StopPrice,
		RealizedPnl:         p.RealizedPnl,
		Fees:                p.Fees,
		NeedsReconciliation: p.NeedsReconciliation,
		TakeProfits:         tps,
		OpenedAt:            p.OpenedAt,
		UpdatedAt:           time.Now(),
	}
	if !p.ClosedAt.IsZero() {
		t := p.ClosedAt
		record.ClosedAt = &t
	}

	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "venue"}, {Name: "symbol"}, {Name: "signal_id"}},
		UpdateAll: true,
	}).Create(record).Error
}

// ListOpen 非终态的仓位记录，进程重启后恢复用
func (d *PositionDao) ListOpen(ctx context.Context) (records []model.PositionRecord, err error) {
	err = d.db.WithContext(ctx).Model(&model.PositionRecord{}).
		Where("state IN ?", []string{
			string(model.PosOpening), string(model.PosOpen), string(model.PosClosing),
		}).
		Find(&records).Error
	return
}
