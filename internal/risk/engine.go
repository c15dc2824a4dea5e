package risk

import (
	"math"

	"signalflow/conf"
	"signalflow/internal/model"
)

// 风控评估。纯函数：相同输入必然得到相同决策，状态由调用方传入和落地

const (
	ReasonDailyBreaker  = "daily_breaker"
	ReasonPositionLimit = "position_limit"
	ReasonSizeTooSmall  = "size_too_small"
	ReasonNoPrice       = "no_price"
)

type Engine struct {
	cfg conf.RiskConfig
}

func NewEngine(cfg conf.RiskConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate 产出RiskDecision。不产生任何副作用
func (e *Engine) Evaluate(sig model.Signal, account model.AccountState, daily model.DailyRiskState) model.RiskDecision {
	d := model.RiskDecision{SignalID: sig.ID}

	// close信号永远放行，数量由协调器按持仓决定
	if sig.Action == model.ActionClose {
		d.Approved = true
		return d
	}

	// 当日熔断后不再开新仓
	if daily.BreakerTripped || tripped(daily, e.cfg.DailyLossLimitPct) {
		d.Reason = ReasonDailyBreaker
		return d
	}

	if account.OpenPositions >= e.cfg.MaxPositions {
		d.Reason = ReasonPositionLimit
		return d
	}

	price := sig.Price
	if price <= 0 {
		// 市价信号由协调器先询价再评估
		d.Reason = ReasonNoPrice
		return d
	}

	stopPct := sig.StopPct
	if stopPct <= 0 {
		stopPct = e.cfg.StopPct
	}
	stopDistance := price * stopPct

	// size = equity * riskPerTrade / stopDistance，再用最大资金占比封顶
	riskAmount := account.Equity * e.cfg.RiskPerTradePct
	qty := riskAmount / stopDistance

	maxNotional := account.Equity * e.cfg.MaxCapitalAllocationPct
	if qty*price > maxNotional {
		qty = maxNotional / price
	}
	// 信号自带数量只作为上限
	if sig.Quantity > 0 && sig.Quantity < qty {
		qty = sig.Quantity
	}

	if qty <= 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		d.Reason = ReasonSizeTooSmall
		return d
	}

	d.Approved = true
	d.Quantity = qty
	d.Notional = qty * price
	d.StopPrice = stopPrice(sig.Action, price, stopDistance)
	d.TakeProfits = e.takeProfitTiers(sig.Action, price, stopDistance)
	return d
}

func tripped(daily model.DailyRiskState, limitPct float64) bool {
	if daily.StartingEquity <= 0 {
		return false
	}
	return daily.CumRealizedPnl/daily.StartingEquity <= -limitPct
}

// 止损价：多头在下方，空头在上方
func stopPrice(action model.Action, price, stopDistance float64) float64 {
	if action == model.ActionSell {
		return price + stopDistance
	}
	return price - stopDistance
}

// TP1/TP2/Runner：风险距离的倍数，方向随多空翻转
func (e *Engine) takeProfitTiers(action model.Action, price, stopDistance float64) []model.TakeProfitTier {
	dir := 1.0
	if action == model.ActionSell {
		dir = -1.0
	}
	return []model.TakeProfitTier{
		{Name: "tp1", Price: price + dir*stopDistance*e.cfg.TP1Multiplier, Fraction: e.cfg.TP1Fraction},
		{Name: "tp2", Price: price + dir*stopDistance*e.cfg.TP2Multiplier, Fraction: e.cfg.TP2Fraction},
		{Name: "runner", Price: price + dir*stopDistance*e.cfg.RunnerMult, Fraction: e.cfg.RunnerFraction},
	}
}
