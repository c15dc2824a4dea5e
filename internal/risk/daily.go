package risk

import (
	"sync"
	"time"

	"signalflow/internal/model"
	"signalflow/pkg/logger"
)

// DailyTracker 当日风控状态。进程级共享，所有变更走锁，
// 日切时显式重置，不隐式跨天累计
type DailyTracker struct {
	mu       sync.Mutex
	state    model.DailyRiskState
	limitPct float64
}

func NewDailyTracker(limitPct, startingEquity float64, now time.Time) *DailyTracker {
	return &DailyTracker{
		limitPct: limitPct,
		state: model.DailyRiskState{
			Date:           model.TradingDay(now),
			StartingEquity: startingEquity,
		},
	}
}

// Snapshot 当前状态快照。跨天时先做日切
func (t *DailyTracker) Snapshot(now time.Time) model.DailyRiskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(now)
	return t.state
}

// AddRealizedPnl 累计已实现盈亏，触线则熔断
func (t *DailyTracker) AddRealizedPnl(pnl float64, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rolloverLocked(now)
	t.state.CumRealizedPnl += pnl
	if !t.state.BreakerTripped && t.state.StartingEquity > 0 &&
		t.state.CumRealizedPnl/t.state.StartingEquity <= -t.limitPct {
		t.state.BreakerTripped = true
		logger.Warnf("daily breaker tripped: pnl=%.2f starting_equity=%.2f limit=%.2f%%",
			t.state.CumRealizedPnl, t.state.StartingEquity, t.limitPct*100)
	}
}

// Tripped 熔断是否生效
func (t *DailyTracker) Tripped(now time.Time) bool {
	return t.Snapshot(now).BreakerTripped
}

func (t *DailyTracker) rolloverLocked(now time.Time) {
	day := model.TradingDay(now)
	if day == t.state.Date {
		return
	}
	// 新交易日：起始权益滚入昨日盈亏，熔断解除
	t.state = model.DailyRiskState{
		Date:           day,
		StartingEquity: t.state.StartingEquity + t.state.CumRealizedPnl,
	}
	logger.Infof("daily risk state rolled over to %s, starting equity %.2f", day, t.state.StartingEquity)
}
