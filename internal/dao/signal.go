package dao

import (
	"context"

	"gorm.io/gorm"

	"signalflow/internal/model"
)

type SignalDao struct {
	db *gorm.DB
}

func NewSignalDao(db *gorm.DB) *SignalDao {
	return &SignalDao{db: db}
}

// 插入信号流水，只追加不更新
func (d *SignalDao) Insert(ctx context.Context, record *model.SignalRecord) error {
	return d.db.WithContext(ctx).Create(record).Error
}

// 判断幂等键是否已出现过
func (d *SignalDao) ExistsSignalID(ctx context.Context, signalID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.SignalRecord{}).
		Where("signal_id = ?", signalID).Count(&count).Error
	return count > 0, err
}

// 查询某symbol最近的流水
func (d *SignalDao) GetRecent(ctx context.Context, symbol string, limit int) (records []model.SignalRecord, err error) {
	err = d.db.WithContext(ctx).Model(&model.SignalRecord{}).
		Where("symbol = ?", symbol).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return
}
