package risk

import (
	"math"
	"testing"
	"time"

	"signalflow/conf"
	"signalflow/internal/model"
)

func testCfg() conf.RiskConfig {
	return conf.RiskConfig{
		RiskPerTradePct:         0.02,
		DailyLossLimitPct:       0.05,
		MaxCapitalAllocationPct: 0.9,
		StopPct:                 0.02,
		MaxPositions:            5,
		TP1Multiplier:           1.5,
		TP2Multiplier:           2.0,
		RunnerMult:              3.0,
		TP1Fraction:             0.5,
		TP2Fraction:             0.3,
		RunnerFraction:          0.2,
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestEvaluateSizing(t *testing.T) {
	e := NewEngine(testCfg())
	sig := model.Signal{ID: "s1", Action: model.ActionBuy, Symbol: "BTC/USDT", Price: 100}
	account := model.AccountState{Equity: 10000}

	d := e.Evaluate(sig, account, model.DailyRiskState{StartingEquity: 10000})
	if !d.Approved {
		t.Fatalf("expected approval, got reason %s", d.Reason)
	}
	// 10000*0.02/(100*0.02)=100，但名义资金被0.9上限压到90
	if !approx(d.Quantity, 90) {
		t.Fatalf("quantity = %v, want 90", d.Quantity)
	}
	if !approx(d.Notional, 9000) {
		t.Fatalf("notional = %v, want 9000", d.Notional)
	}
	if !approx(d.StopPrice, 98) {
		t.Fatalf("stop price = %v, want 98", d.StopPrice)
	}
}

func TestEvaluateTightAllocationCap(t *testing.T) {
	cfg := testCfg()
	cfg.MaxCapitalAllocationPct = 0.05
	e := NewEngine(cfg)
	sig := model.Signal{ID: "s1", Action: model.ActionBuy, Price: 100}

	// 10000*0.02/2 = 100，5%资金上限把名义压到500
	d := e.Evaluate(sig, model.AccountState{Equity: 10000}, model.DailyRiskState{StartingEquity: 10000})
	if !d.Approved {
		t.Fatalf("expected approval, got %s", d.Reason)
	}
	if !approx(d.Quantity, 5) {
		t.Fatalf("quantity = %v, want 5", d.Quantity)
	}
	if !approx(d.Notional, 500) {
		t.Fatalf("notional = %v, want 500", d.Notional)
	}
}

func TestEvaluateTakeProfitTiers(t *testing.T) {
	e := NewEngine(testCfg())
	sig := model.Signal{ID: "s1", Action: model.ActionBuy, Price: 100}
	d := e.Evaluate(sig, model.AccountState{Equity: 1000}, model.DailyRiskState{StartingEquity: 1000})
	if len(d.TakeProfits) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(d.TakeProfits))
	}
	wantPrices := []float64{103, 104, 106}
	wantFractions := []float64{0.5, 0.3, 0.2}
	for i, tier := range d.TakeProfits {
		if !approx(tier.Price, wantPrices[i]) {
			t.Errorf("tier %s price = %v, want %v", tier.Name, tier.Price, wantPrices[i])
		}
		if !approx(tier.Fraction, wantFractions[i]) {
			t.Errorf("tier %s fraction = %v, want %v", tier.Name, tier.Fraction, wantFractions[i])
		}
	}
}

func TestEvaluateShortDirection(t *testing.T) {
	e := NewEngine(testCfg())
	sig := model.Signal{ID: "s1", Action: model.ActionSell, Price: 100}
	d := e.Evaluate(sig, model.AccountState{Equity: 1000}, model.DailyRiskState{StartingEquity: 1000})
	if !d.Approved {
		t.Fatalf("expected approval, got %s", d.Reason)
	}
	// 空头止损在上方，止盈在下方
	if !approx(d.StopPrice, 102) {
		t.Fatalf("stop price = %v, want 102", d.StopPrice)
	}
	if !approx(d.TakeProfits[0].Price, 97) {
		t.Fatalf("tp1 = %v, want 97", d.TakeProfits[0].Price)
	}
}

func TestEvaluateCloseAlwaysApproved(t *testing.T) {
	e := NewEngine(testCfg())
	sig := model.Signal{ID: "s1", Action: model.ActionClose, Symbol: "BTC/USDT"}
	// 熔断+满仓也不拦截close
	d := e.Evaluate(sig, model.AccountState{Equity: 0, OpenPositions: 99},
		model.DailyRiskState{BreakerTripped: true})
	if !d.Approved {
		t.Fatalf("close should always pass, got %s", d.Reason)
	}
}

func TestEvaluateDailyBreaker(t *testing.T) {
	e := NewEngine(testCfg())
	sig := model.Signal{ID: "s1", Action: model.ActionBuy, Price: 100}

	d := e.Evaluate(sig, model.AccountState{Equity: 10000},
		model.DailyRiskState{StartingEquity: 10000, CumRealizedPnl: -500})
	if d.Approved || d.Reason != ReasonDailyBreaker {
		t.Fatalf("expected daily_breaker, got approved=%v reason=%s", d.Approved, d.Reason)
	}

	// 已置位的标志在当天保持生效，即使盈亏回升
	d = e.Evaluate(sig, model.AccountState{Equity: 10000},
		model.DailyRiskState{StartingEquity: 10000, CumRealizedPnl: 100, BreakerTripped: true})
	if d.Approved {
		t.Fatal("tripped breaker must latch for the day")
	}
}

func TestEvaluatePositionLimit(t *testing.T) {
	e := NewEngine(testCfg())
	sig := model.Signal{ID: "s1", Action: model.ActionBuy, Price: 100}
	d := e.Evaluate(sig, model.AccountState{Equity: 10000, OpenPositions: 5},
		model.DailyRiskState{StartingEquity: 10000})
	if d.Approved || d.Reason != ReasonPositionLimit {
		t.Fatalf("expected position_limit, got approved=%v reason=%s", d.Approved, d.Reason)
	}
}

func TestEvaluateSignalQuantityIsUpperBound(t *testing.T) {
	e := NewEngine(testCfg())
	sig := model.Signal{ID: "s1", Action: model.ActionBuy, Price: 100, Quantity: 0.5}
	d := e.Evaluate(sig, model.AccountState{Equity: 10000}, model.DailyRiskState{StartingEquity: 10000})
	if !approx(d.Quantity, 0.5) {
		t.Fatalf("quantity = %v, want signal cap 0.5", d.Quantity)
	}
}

func TestEvaluateNoPrice(t *testing.T) {
	e := NewEngine(testCfg())
	sig := model.Signal{ID: "s1", Action: model.ActionBuy}
	d := e.Evaluate(sig, model.AccountState{Equity: 10000}, model.DailyRiskState{StartingEquity: 10000})
	if d.Approved || d.Reason != ReasonNoPrice {
		t.Fatalf("expected no_price, got approved=%v reason=%s", d.Approved, d.Reason)
	}
}

func TestEvaluateZeroEquity(t *testing.T) {
	e := NewEngine(testCfg())
	sig := model.Signal{ID: "s1", Action: model.ActionBuy, Price: 100}
	d := e.Evaluate(sig, model.AccountState{Equity: 0}, model.DailyRiskState{StartingEquity: 10000})
	if d.Approved || d.Reason != ReasonSizeTooSmall {
		t.Fatalf("expected size_too_small, got approved=%v reason=%s", d.Approved, d.Reason)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	e := NewEngine(testCfg())
	sig := model.Signal{ID: "s1", Action: model.ActionBuy, Price: 250.5}
	account := model.AccountState{Equity: 31337, OpenPositions: 2}
	daily := model.DailyRiskState{Date: model.TradingDay(time.Now()), StartingEquity: 31337, CumRealizedPnl: -42}

	first := e.Evaluate(sig, account, daily)
	for i := 0; i < 10; i++ {
		if got := e.Evaluate(sig, account, daily); got.Quantity != first.Quantity || got.Approved != first.Approved {
			t.Fatal("same inputs must produce the same decision")
		}
	}
}
