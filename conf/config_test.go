package conf

import (
	"os"
	"path/filepath"
	"testing"
)

func loadFromString(t *testing.T, yaml string) error {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	return LoadConfig(path)
}

func TestLoadConfigDefaults(t *testing.T) {
	if err := loadFromString(t, "listen: :8090\n"); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if AppConfig.Risk.RiskPerTradePct != 0.02 {
		t.Errorf("risk-per-trade-pct default = %v, want 0.02", AppConfig.Risk.RiskPerTradePct)
	}
	if AppConfig.Venue.Mode != "paper" {
		t.Errorf("venue mode default = %q, want paper", AppConfig.Venue.Mode)
	}
	// 缺省梯度 0.5+0.3+0.2 正好全平
	sum := AppConfig.Risk.TP1Fraction + AppConfig.Risk.TP2Fraction + AppConfig.Risk.RunnerFraction
	if sum != 1.0 {
		t.Errorf("default fraction sum = %v, want 1.0", sum)
	}
}

func TestLoadConfigRejectsOverweightFractions(t *testing.T) {
	// 各档平仓比例加起来超过100%必须在加载时报错
	err := loadFromString(t, `
risk:
  tp1-fraction: 0.6
  tp2-fraction: 0.3
  runner-fraction: 0.2
`)
	if err == nil {
		t.Fatal("fraction sum 1.1 accepted, want load error")
	}
}

func TestLoadConfigAcceptsPartialFractions(t *testing.T) {
	// 低于1.0合法，剩余仓位由止损或close信号处理
	err := loadFromString(t, `
risk:
  tp1-fraction: 0.4
  tp2-fraction: 0.3
  runner-fraction: 0.1
`)
	if err != nil {
		t.Fatalf("fraction sum 0.8 rejected: %v", err)
	}
}
