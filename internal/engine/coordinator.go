package engine

import (
	"context"
	"sync"
	"time"

	"signalflow/conf"
	"signalflow/internal/model"
	"signalflow/internal/risk"
	"signalflow/internal/store"
	"signalflow/internal/venue"
	"signalflow/pkg/errors"
	"signalflow/pkg/errors/ecode"
	"signalflow/pkg/kafka"
	"signalflow/pkg/logger"
	"signalflow/pkg/recorder"
)

// Coordinator 执行协调器。把通过校验的信号变成交易所订单，
// 驱动仓位状态机 received → risk_checked → {rejected | opening → open → closing → closed}。
// 同一(venue,symbol)的操作串行，不同key并行

type Coordinator struct {
	cfg     conf.EngineConfig
	venues  *venue.Registry
	riskEng *risk.Engine
	daily   *risk.DailyTracker
	store   *store.PositionStore
	journal *recorder.JSONFileRecorder // 状态迁移流水，可为nil
	events  kafka.ProducerService      // 可为nil

	alerts chan Alert
	jobs   chan model.Signal
	quit   chan struct{}

	wg       sync.WaitGroup // workers + monitor
	inflight sync.WaitGroup // 进行中的opening/closing，shutdown要等它们收尾

	mu      sync.Mutex
	stopped bool

	backoff func(attempt int) time.Duration
}

func NewCoordinator(
	cfg conf.EngineConfig,
	venues *venue.Registry,
	riskEng *risk.Engine,
	daily *risk.DailyTracker,
	positions *store.PositionStore,
	journal *recorder.JSONFileRecorder,
	events kafka.ProducerService,
) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		venues:  venues,
		riskEng: riskEng,
		daily:   daily,
		store:   positions,
		journal: journal,
		events:  events,
		alerts:  make(chan Alert, 64),
		jobs:    make(chan model.Signal, 256),
		quit:    make(chan struct{}),
		backoff: Backoff,
	}
}

// WithBackoff 替换退避曲线，测试用
func (c *Coordinator) WithBackoff(fn func(int) time.Duration) *Coordinator {
	c.backoff = fn
	return c
}

// Start 启动worker池和止盈止损监控
func (c *Coordinator) Start() {
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for sig := range c.jobs {
				if _, err := c.Process(context.Background(), sig); err != nil {
					logger.Infof("signal %s dropped: %v", sig.ID, err)
				}
			}
		}()
	}
	c.wg.Add(1)
	go c.monitorLoop()
}

// Enqueue 异步提交信号（内部策略走这里）。shutdown后拒收
func (c *Coordinator) Enqueue(sig model.Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return errors.New(ecode.InternalErr, "engine is shutting down")
	}
	c.jobs <- sig
	return nil
}

// Stop 优雅关停：先停新信号，等在途的开平仓落定再返回
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	close(c.quit)
	close(c.jobs)
	c.wg.Wait()
	c.inflight.Wait()
	close(c.alerts)
}

// Process 同步处理一个信号，webhook入口直接调用。
// 校验/风控拒绝通过error同步返回，交易所异步失败走仓位状态+告警
func (c *Coordinator) Process(ctx context.Context, sig model.Signal) (*model.IngestResult, error) {
	v, ok := c.venues.Get(sig.Venue)
	if !ok {
		return nil, errors.Newf(ecode.InvalidSchema, "unknown venue %q", sig.Venue)
	}

	key := model.PositionKey{Venue: sig.Venue, Symbol: sig.Symbol}
	lock := c.store.KeyLock(key)
	lock.Lock()
	defer lock.Unlock()

	if sig.Action == model.ActionClose {
		return c.processClose(ctx, v, key, sig, lock)
	}
	return c.processEntry(ctx, v, key, sig, lock)
}

// processEntry buy/sell开仓
func (c *Coordinator) processEntry(ctx context.Context, v venue.Venue, key model.PositionKey, sig model.Signal, lock *sync.Mutex) (*model.IngestResult, error) {
	// 同一key只允许一个活跃仓位，撞上就拒绝而不是加仓
	if live := c.store.Live(key); live != nil {
		c.transition(sig.ID, key, model.PosReceived, model.PosRejected, "duplicate_key")
		return nil, errors.New(ecode.KeyOccupied, "")
	}

	// 市价信号先询价，风控需要确定的价格
	if sig.Price <= 0 {
		q, err := c.callQuote(ctx, v, sig.Symbol)
		if err != nil {
			return nil, errors.Wrap(err, ecode.VenueTransient, "quote failed")
		}
		sig.Price = q.Price
	}

	equity, err := c.callBalance(ctx, v)
	if err != nil {
		return nil, errors.Wrap(err, ecode.VenueTransient, "fetch balance failed")
	}

	account := model.AccountState{Equity: equity, OpenPositions: c.store.OpenCount()}
	daily := c.daily.Snapshot(time.Now())

	decision := c.riskEng.Evaluate(sig, account, daily)
	c.transition(sig.ID, key, model.PosReceived, model.PosRiskChecked, "")

	if !decision.Approved {
		c.transition(sig.ID, key, model.PosRiskChecked, model.PosRejected, decision.Reason)
		return nil, riskError(decision.Reason)
	}

	side := model.Buy
	if sig.Action == model.ActionSell {
		side = model.Sell
	}

	pos := &model.Position{
		Key:         key,
		SignalID:    sig.ID,
		State:       model.PosOpening,
		Side:        side,
		EntryPrice:  sig.Price,
		Quantity:    decision.Quantity,
		InitialQty:  decision.Quantity,
		StopPrice:   decision.StopPrice,
		TakeProfits: decision.TakeProfits,
	}
	c.store.Upsert(pos)
	c.transition(sig.ID, key, model.PosRiskChecked, model.PosOpening, "")

	order := &model.Order{
		Symbol:    sig.Symbol,
		Side:      side,
		Price:     sig.Price,
		Quantity:  decision.Quantity,
		OrderType: model.Market,
		ClientID:  sig.ID,
		Timestamp: time.Now(),
	}

	c.inflight.Add(1)
	defer c.inflight.Done()

	ack, err := c.placeWithRetry(ctx, v, order, lock, func() bool {
		p, ok := c.store.Get(key)
		return ok && p.State == model.PosOpening
	})
	if err != nil {
		// 从未成交，直接终止；不会留下交易所侧的孤儿订单（clientID幂等）
		pos.State = model.PosRejected
		pos.RejectReason = err.Error()
		pos.Quantity = 0
		c.store.Upsert(pos)
		c.transition(sig.ID, key, model.PosOpening, model.PosRejected, "venue_error")
		c.alert(key, sig.ID, "order submission failed", err)
		return nil, errors.Wrap(err, venueCode(err), "")
	}

	pos.EntryPrice = ack.AvgPrice
	pos.Fees += ack.Fee
	if ack.Partial && ack.FilledQty > 0 {
		// 部分成交按已成交数量持仓，剩余委托超时后撤掉
		pos.Quantity = ack.FilledQty
		pos.InitialQty = ack.FilledQty
		c.cancelRemainderLater(v, key, sig.ID, ack.OrderID, sig.Symbol)
	}
	pos.State = model.PosOpen
	pos.OpenedAt = time.Now()
	c.store.Upsert(pos)
	c.transition(sig.ID, key, model.PosOpening, model.PosOpen, "")

	return &model.IngestResult{Status: "success", SignalID: sig.ID, Position: pos.Clone()}, nil
}

// processClose close信号平掉全部仓位
func (c *Coordinator) processClose(ctx context.Context, v venue.Venue, key model.PositionKey, sig model.Signal, lock *sync.Mutex) (*model.IngestResult, error) {
	pos, ok := c.store.Get(key)
	if !ok || pos.State.Terminal() {
		// 没有对应持仓的close：记录后忽略，绝不凭空造仓位
		logger.Warnf("close signal %s for %s without open position, ignored", sig.ID, key)
		c.transition(sig.ID, key, model.PosReceived, model.PosRejected, "no_open_position")
		return nil, errors.New(ecode.NoOpenPosition, "")
	}
	if pos.State != model.PosOpen {
		// 开仓的成交还没落账，不允许先平
		return nil, errors.Newf(ecode.NoOpenPosition, "position is %s, not open", pos.State)
	}

	exitPrice := sig.Price
	if exitPrice <= 0 {
		q, err := c.callQuote(ctx, v, sig.Symbol)
		if err != nil {
			return nil, errors.Wrap(err, ecode.VenueTransient, "quote failed")
		}
		exitPrice = q.Price
	}

	closed, err := c.closeLocked(ctx, v, key, pos, pos.Quantity, exitPrice, "close_signal", sig.ID, lock)
	if err != nil {
		return nil, err
	}
	return &model.IngestResult{Status: "success", SignalID: sig.ID, Position: closed}, nil
}

// closeLocked 平仓qty数量（全平时qty==持仓量）。调用方必须已持有key锁。
// 全平走 open → closing → closed；失败退回open并标记needs_reconciliation
func (c *Coordinator) closeLocked(ctx context.Context, v venue.Venue, key model.PositionKey, pos *model.Position, qty, exitPrice float64, trigger, signalID string, lock *sync.Mutex) (*model.Position, error) {
	full := qty >= pos.Quantity
	if full {
		qty = pos.Quantity
		pos.State = model.PosClosing
		c.store.Upsert(pos)
		c.transition(signalID, key, model.PosOpen, model.PosClosing, trigger)
	}

	order := &model.Order{
		Symbol:    key.Symbol,
		Side:      pos.Side.Opposite(),
		Quantity:  qty,
		OrderType: model.Market,
		ClientID:  signalID + ":" + trigger,
		Timestamp: time.Now(),
	}

	c.inflight.Add(1)
	defer c.inflight.Done()

	ack, err := c.placeWithRetry(ctx, v, order, lock, func() bool {
		p, ok := c.store.Get(key)
		return ok && !p.State.Terminal()
	})
	if err != nil {
		// 退避睡眠期间锁被释放过，仓位可能已被并发close落账。
		// 写回前必须重读：终态仓位绝不复活，入参的过期副本也绝不落库
		cur, ok := c.store.Get(key)
		if !ok || cur.State.Terminal() {
			logger.Warnf("close %s aborted, position settled concurrently", key)
			return nil, errors.Wrap(err, venueCode(err), "close failed")
		}
		// 活跃仓位绝不能悄悄丢掉：退回open，标记待对账
		cur.State = model.PosOpen
		cur.NeedsReconciliation = true
		c.store.Upsert(cur)
		if full {
			c.transition(signalID, key, model.PosClosing, model.PosOpen, "close_failed")
		}
		c.alert(key, signalID, "close order failed, position needs reconciliation", err)
		return nil, errors.Wrap(err, venueCode(err), "close failed")
	}

	fillPrice := ack.AvgPrice
	if fillPrice <= 0 {
		fillPrice = exitPrice
	}
	filled := ack.FilledQty
	if filled <= 0 || filled > qty {
		filled = qty
	}

	pnl := realizedPnl(pos.Side, pos.EntryPrice, fillPrice, filled, ack.Fee)
	pos.RealizedPnl += pnl
	pos.Fees += ack.Fee
	pos.Quantity -= filled
	c.daily.AddRealizedPnl(pnl, time.Now())

	if full || pos.Quantity <= 0 {
		pos.Quantity = 0
		pos.State = model.PosClosed
		pos.ClosedAt = time.Now()
		c.store.Upsert(pos)
		c.transition(signalID, key, model.PosClosing, model.PosClosed, trigger)
	} else {
		// 分批止盈：仓位仍然open，只减量
		c.store.Upsert(pos)
	}
	return pos.Clone(), nil
}

// placeWithRetry 带指数退避的下单。瞬时错误重试，退避睡眠在锁外进行，
// 重新拿锁后确认仓位还在预期状态才继续
func (c *Coordinator) placeWithRetry(ctx context.Context, v venue.Venue, order *model.Order, lock *sync.Mutex, stillValid func() bool) (*model.OrderAck, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := venue.RetryAfterHint(lastErr)
			if delay <= 0 {
				delay = c.backoff(attempt - 1)
			}
			lock.Unlock()
			interrupted := c.sleep(delay)
			lock.Lock()
			if interrupted {
				return nil, errors.New(ecode.RetryExhausted, "shutdown during retry")
			}
			if !stillValid() {
				return nil, errors.New(ecode.RetryExhausted, "position state changed during retry")
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.cfg.VenueTimeout)
		ack, err := v.PlaceOrder(callCtx, order)
		cancel()
		if err == nil {
			return ack, nil
		}
		lastErr = err
		if !venue.IsTransient(err) {
			return nil, err
		}
		logger.Warnf("transient venue error on %s attempt %d/%d: %v", order.Symbol, attempt+1, c.cfg.MaxRetries+1, err)
	}
	return nil, errors.Wrap(lastErr, ecode.RetryExhausted, "")
}

// cancelRemainderLater 部分成交的剩余委托，超时后撤单
func (c *Coordinator) cancelRemainderLater(v venue.Venue, key model.PositionKey, signalID, orderID, symbol string) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if c.sleep(c.cfg.PartialFillTimeout) {
			// shutdown也要撤，避免孤儿委托
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.VenueTimeout)
		defer cancel()
		if err := v.CancelOrder(ctx, orderID, symbol); err != nil {
			lock := c.store.KeyLock(key)
			lock.Lock()
			if p, ok := c.store.Get(key); ok && !p.State.Terminal() {
				p.NeedsReconciliation = true
				c.store.Upsert(p)
			}
			lock.Unlock()
			c.alert(key, signalID, "failed to cancel partial-fill remainder", err)
		}
	}()
}

// sleep 可被shutdown打断的睡眠，返回true表示被打断
func (c *Coordinator) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-c.quit:
		return true
	case <-t.C:
		return false
	}
}

func (c *Coordinator) callQuote(ctx context.Context, v venue.Venue, symbol string) (*model.Quote, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.VenueTimeout)
	defer cancel()
	return v.Quote(callCtx, symbol)
}

func (c *Coordinator) callBalance(ctx context.Context, v venue.Venue) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.VenueTimeout)
	defer cancel()
	return v.FetchBalance(callCtx)
}

// transitionEntry 状态迁移流水
type transitionEntry struct {
	At       time.Time `json:"at"`
	Key      string    `json:"key"`
	SignalID string    `json:"signal_id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Reason   string    `json:"reason,omitempty"`
}

func (c *Coordinator) transition(signalID string, key model.PositionKey, from, to model.PositionState, reason string) {
	if from != model.PosReceived && !model.CanTransition(from, to) {
		// 状态机表之外的迁移是编程错误，记下来便于排查
		logger.Errorf("illegal transition %s -> %s for %s", from, to, key)
	}
	entry := transitionEntry{
		At: time.Now(), Key: key.String(), SignalID: signalID,
		From: string(from), To: string(to), Reason: reason,
	}
	if c.journal != nil {
		if err := c.journal.Record(entry); err != nil {
			logger.Errorf("transition journal append failed: %v", err)
		}
	}
	if c.events != nil {
		_ = c.events.Produce(context.Background(), signalID, entry)
	}
	logger.Infof("position %s: %s -> %s %s", key, from, to, reason)
}

// realizedPnl (exit-entry)*qty-fees，空头方向翻转
func realizedPnl(side model.OrderSide, entry, exit, qty, fees float64) float64 {
	gross := (exit - entry) * qty
	if side == model.Sell {
		gross = (entry - exit) * qty
	}
	return gross - fees
}

func riskError(reason string) error {
	switch reason {
	case risk.ReasonDailyBreaker:
		return errors.New(ecode.DailyBreaker, "")
	case risk.ReasonPositionLimit:
		return errors.New(ecode.PositionLimit, "")
	case risk.ReasonSizeTooSmall:
		return errors.New(ecode.SizeTooSmall, "")
	case risk.ReasonNoPrice:
		return errors.New(ecode.InvalidSchema, "signal has no usable price")
	}
	return errors.New(ecode.InternalErr, reason)
}

func venueCode(err error) int {
	var ve *venue.Error
	if e, ok := err.(*venue.Error); ok {
		ve = e
	}
	if ve == nil {
		return ecode.RetryExhausted
	}
	switch ve.Class {
	case venue.ClassAuth:
		return ecode.VenueAuth
	case venue.ClassPermanent:
		return ecode.VenuePermanent
	}
	return ecode.VenueTransient
}
