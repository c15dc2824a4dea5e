package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/markcheno/go-talib"

	"signalflow/conf"
	"signalflow/internal/engine"
	"signalflow/internal/ingest"
	"signalflow/internal/model"
	"signalflow/internal/venue"
	"signalflow/pkg/errors"
	"signalflow/pkg/errors/ecode"
	"signalflow/pkg/logger"
)

// RSI均值回归策略。周期性采样行情，RSI上穿超卖线买入，上穿超买线平仓。
// 产出的信号和webhook信号走同一条ingest管道，同样去重、同样落流水

type RSIProducer struct {
	cfg    conf.StrategyConfig
	v      venue.Venue
	ing    *ingest.Service
	coord  *engine.Coordinator
	vename string

	mu      sync.Mutex
	history map[string][]float64 // symbol -> 收盘价采样

	quit chan struct{}
	wg   sync.WaitGroup
}

func NewRSIProducer(cfg conf.StrategyConfig, v venue.Venue, ing *ingest.Service, coord *engine.Coordinator) *RSIProducer {
	return &RSIProducer{
		cfg:     cfg,
		v:       v,
		ing:     ing,
		coord:   coord,
		vename:  v.Name(),
		history: make(map[string][]float64),
		quit:    make(chan struct{}),
	}
}

func (p *RSIProducer) Start() {
	if !p.cfg.Enabled || len(p.cfg.Symbols) == 0 {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-p.quit:
				return
			case <-ticker.C:
				for _, symbol := range p.cfg.Symbols {
					p.tick(symbol)
				}
			}
		}
	}()
	logger.Infof("rsi strategy started, symbols=%v interval=%s period=%d", p.cfg.Symbols, p.cfg.Interval, p.cfg.RSIPeriod)
}

func (p *RSIProducer) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *RSIProducer) tick(symbol string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	q, err := p.v.Quote(ctx, symbol)
	cancel()
	if err != nil {
		logger.Warnf("strategy quote %s failed: %v", symbol, err)
		return
	}

	action, ok := p.evaluate(symbol, q.Price)
	if !ok {
		return
	}
	p.emit(symbol, action, q.Price)
}

// evaluate 追加一个采样并判定是否触发交叉信号
func (p *RSIProducer) evaluate(symbol string, price float64) (model.Action, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := append(p.history[symbol], price)
	// 历史只保留计算窗口的若干倍，够talib算就行
	if max := p.cfg.RSIPeriod * 5; len(h) > max {
		h = h[len(h)-max:]
	}
	p.history[symbol] = h

	// talib需要period+1个点才给出首个RSI值，交叉判定再多一个
	if len(h) < p.cfg.RSIPeriod+2 {
		return "", false
	}

	out := talib.Rsi(h, p.cfg.RSIPeriod)
	curr, prev := out[len(out)-1], out[len(out)-2]

	switch {
	case prev < p.cfg.Oversold && curr >= p.cfg.Oversold:
		return model.ActionBuy, true
	case prev < p.cfg.Overbought && curr >= p.cfg.Overbought:
		return model.ActionClose, true
	}
	return "", false
}

func (p *RSIProducer) emit(symbol string, action model.Action, price float64) {
	sig := model.Signal{
		Venue:    p.vename,
		Symbol:   symbol,
		Action:   action,
		Price:    price,
		Strategy: "rsi_reversion",
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	admitted, err := p.ing.IngestInternal(ctx, sig)
	if err != nil {
		// 同一分钟内的重复交叉会在这里被去重掉
		if errors.Is(err, ecode.DuplicateErr) {
			return
		}
		logger.Warnf("strategy signal %s %s rejected: %v", symbol, action, err)
		return
	}
	if err := p.coord.Enqueue(admitted); err != nil {
		logger.Warnf("strategy signal %s %s not enqueued: %v", symbol, action, err)
	}
}
