package engine

import (
	"context"
	"time"

	"signalflow/internal/model"
	"signalflow/pkg/logger"
)

// 止损止盈监控。周期性拉取最新价，对每个open仓位判定触发条件。
// 触发后的平仓和信号驱动的平仓走同一条closeLocked路径

func (c *Coordinator) monitorLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.quit:
			return
		case <-ticker.C:
			c.scanPositions()
		}
	}
}

func (c *Coordinator) scanPositions() {
	for _, pos := range c.store.ListOpen() {
		if pos.State != model.PosOpen {
			continue
		}
		c.checkPosition(pos.Key)
	}
}

// checkPosition 对单个仓位做一轮触发判定。拿锁后重读仓位，
// 避免对扫描快照之后已经被平掉的仓位重复下单
func (c *Coordinator) checkPosition(key model.PositionKey) {
	v, ok := c.venues.Get(key.Venue)
	if !ok {
		return
	}

	// 行情在锁外拉，别让慢请求卡住这个key上的信号处理
	q, err := c.callQuote(context.Background(), v, key.Symbol)
	if err != nil {
		logger.Warnf("monitor quote %s failed: %v", key, err)
		return
	}

	lock := c.store.KeyLock(key)
	lock.Lock()
	defer lock.Unlock()

	pos, ok := c.store.Get(key)
	if !ok || pos.State != model.PosOpen {
		return
	}

	if stopHit(pos, q.Price) {
		if _, err := c.closeLocked(context.Background(), v, key, pos, pos.Quantity, q.Price, "stop_loss", pos.SignalID, lock); err != nil {
			logger.Errorf("stop loss close %s failed: %v", key, err)
		}
		return
	}

	// 每轮最多触发一档止盈，多档同时越过时按顺序下一轮再触发
	for i := range pos.TakeProfits {
		tier := &pos.TakeProfits[i]
		if tier.Hit || !tierHit(pos.Side, tier.Price, q.Price) {
			continue
		}
		qty := pos.InitialQty * tier.Fraction
		if qty > pos.Quantity {
			qty = pos.Quantity
		}
		// Hit标志只随成功平仓一起落库。失败时closeLocked写回的是
		// 库内重读的副本，该档保持未触发，下一轮扫描重试
		tier.Hit = true
		if _, err := c.closeLocked(context.Background(), v, key, pos, qty, q.Price, "take_profit:"+tier.Name, pos.SignalID, lock); err != nil {
			logger.Errorf("take profit close %s %s failed, will retry next scan: %v", key, tier.Name, err)
		}
		return
	}
}

// stopHit 多头价格跌破止损、空头涨破止损
func stopHit(pos *model.Position, price float64) bool {
	if pos.StopPrice <= 0 {
		return false
	}
	if pos.Side == model.Buy {
		return price <= pos.StopPrice
	}
	return price >= pos.StopPrice
}

// tierHit 多头涨到目标价、空头跌到目标价
func tierHit(side model.OrderSide, target, price float64) bool {
	if target <= 0 {
		return false
	}
	if side == model.Buy {
		return price >= target
	}
	return price <= target
}
