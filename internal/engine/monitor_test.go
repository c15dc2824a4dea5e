package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"signalflow/internal/model"
	"signalflow/internal/venue"
)

func openTestPosition(t *testing.T, c *Coordinator, fv *fakeVenue) model.PositionKey {
	t.Helper()
	_, err := c.Process(context.Background(), buySignal("s1"))
	require.NoError(t, err)
	return model.PositionKey{Venue: "fake", Symbol: "BTC/USDT"}
}

func TestMonitorStopLossClosesPosition(t *testing.T) {
	fv := newFakeVenue(100, 10000)
	c, daily := newTestCoordinator(fv)
	key := openTestPosition(t, c, fv)

	// 止损在98，跌破后全平
	fv.setPrice(97.5)
	c.checkPosition(key)

	pos, _ := c.store.Get(key)
	require.Equal(t, model.PosClosed, pos.State)
	// (97.5-100)*90
	require.InDelta(t, -225, pos.RealizedPnl, 1e-9)
	require.InDelta(t, -225, daily.Snapshot(time.Now()).CumRealizedPnl, 1e-9)
}

func TestMonitorTakeProfitPartialClose(t *testing.T) {
	fv := newFakeVenue(100, 10000)
	c, _ := newTestCoordinator(fv)
	key := openTestPosition(t, c, fv)

	// tp1 = 103，触发后平掉一半，仓位保持open
	fv.setPrice(103)
	c.checkPosition(key)

	pos, _ := c.store.Get(key)
	require.Equal(t, model.PosOpen, pos.State)
	require.InDelta(t, 45, pos.Quantity, 1e-9)
	require.True(t, pos.TakeProfits[0].Hit)
	require.False(t, pos.TakeProfits[1].Hit)
	// (103-100)*45
	require.InDelta(t, 135, pos.RealizedPnl, 1e-9)

	// tp2 = 104，再平30%，每档只触发一次
	fv.setPrice(104)
	c.checkPosition(key)
	pos, _ = c.store.Get(key)
	require.Equal(t, model.PosOpen, pos.State)
	require.InDelta(t, 18, pos.Quantity, 1e-9)
	require.True(t, pos.TakeProfits[1].Hit)

	// 同一档不会重复触发
	c.checkPosition(key)
	pos, _ = c.store.Get(key)
	require.InDelta(t, 18, pos.Quantity, 1e-9)
}

func TestMonitorRunnerClosesEverything(t *testing.T) {
	fv := newFakeVenue(100, 10000)
	c, _ := newTestCoordinator(fv)
	key := openTestPosition(t, c, fv)

	fv.setPrice(103)
	c.checkPosition(key)
	fv.setPrice(104)
	c.checkPosition(key)
	// runner = 106，剩余全部出清
	fv.setPrice(106)
	c.checkPosition(key)

	pos, _ := c.store.Get(key)
	require.Equal(t, model.PosClosed, pos.State)
	require.Zero(t, pos.Quantity)
}

func TestMonitorTakeProfitRetriesAfterVenueFailure(t *testing.T) {
	fv := newFakeVenue(100, 10000)
	c, _ := newTestCoordinator(fv)
	key := openTestPosition(t, c, fv)

	fv.mu.Lock()
	fv.failures = 10
	fv.failWith = venue.NewTransient("fake", "place_order", fmt.Errorf("502"))
	fv.mu.Unlock()

	fv.setPrice(103)
	c.checkPosition(key)

	// 失败的这一轮不能把Hit标志写进store，否则该档永远不再触发
	pos, _ := c.store.Get(key)
	require.Equal(t, model.PosOpen, pos.State)
	require.False(t, pos.TakeProfits[0].Hit)
	require.True(t, pos.NeedsReconciliation)
	require.InDelta(t, 90, pos.Quantity, 1e-9)

	// venue恢复后下一轮扫描照常触发
	fv.mu.Lock()
	fv.failures = 0
	fv.mu.Unlock()
	c.checkPosition(key)

	pos, _ = c.store.Get(key)
	require.True(t, pos.TakeProfits[0].Hit)
	require.InDelta(t, 45, pos.Quantity, 1e-9)
}

func TestMonitorCloseFailureKeepsConcurrentlyClosedPosition(t *testing.T) {
	fv := newFakeVenue(100, 10000)
	c, _ := newTestCoordinator(fv)
	key := openTestPosition(t, c, fv)

	// 止盈单失败进入退避；close信号趁锁释放的窗口把仓位全平
	fv.mu.Lock()
	fv.failures = 10
	fv.failWith = venue.NewTransient("fake", "place_order", fmt.Errorf("503"))
	fv.mu.Unlock()
	c.WithBackoff(func(int) time.Duration { return 100 * time.Millisecond })

	fv.setPrice(103)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.checkPosition(key)
	}()

	time.Sleep(20 * time.Millisecond)
	fv.mu.Lock()
	fv.failures = 0
	fv.mu.Unlock()
	closeSig := model.Signal{ID: "s2", Venue: "fake", Symbol: "BTC/USDT", Action: model.ActionClose, Price: 103}
	_, err := c.Process(context.Background(), closeSig)
	require.NoError(t, err)
	<-done

	// 终态仓位绝不能被监控的失败分支写回open
	pos, _ := c.store.Get(key)
	require.Equal(t, model.PosClosed, pos.State)
	require.Zero(t, pos.Quantity)
}

func TestMonitorIgnoresNonOpenPositions(t *testing.T) {
	fv := newFakeVenue(100, 10000)
	c, _ := newTestCoordinator(fv)
	key := openTestPosition(t, c, fv)

	fv.setPrice(110)
	closeSig := model.Signal{ID: "s2", Venue: "fake", Symbol: "BTC/USDT", Action: model.ActionClose}
	_, err := c.Process(context.Background(), closeSig)
	require.NoError(t, err)

	placed := fv.placedCount()
	c.checkPosition(key)
	require.Equal(t, placed, fv.placedCount(), "closed position must not trigger more orders")
}

func TestMonitorShortStopDirection(t *testing.T) {
	fv := newFakeVenue(100, 10000)
	c, _ := newTestCoordinator(fv)

	sig := buySignal("s1")
	sig.Action = model.ActionSell
	_, err := c.Process(context.Background(), sig)
	require.NoError(t, err)
	key := model.PositionKey{Venue: "fake", Symbol: "BTC/USDT"}

	// 空头止损在102上方，涨破触发
	fv.setPrice(102.5)
	c.checkPosition(key)

	pos, _ := c.store.Get(key)
	require.Equal(t, model.PosClosed, pos.State)
	require.True(t, pos.RealizedPnl < 0)
}
