package db

import (
	"testing"
	"time"
)

func TestConfigDSN(t *testing.T) {
	cfg := NewConfig("trader", "pw", "127.0.0.1", "3307", "signalflow")
	want := "trader:pw@tcp(127.0.0.1:3307)/signalflow?charset=utf8mb4&parseTime=true&loc=Local"
	if got := cfg.DSN(); got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}

func TestConfigDSNDefaultPort(t *testing.T) {
	cfg := NewConfig("trader", "pw", "db.internal", "", "signalflow")
	want := "trader:pw@tcp(db.internal:3306)/signalflow?charset=utf8mb4&parseTime=true&loc=Local"
	if got := cfg.DSN(); got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}

func TestConfigPoolDefaults(t *testing.T) {
	idle, open, lifetime := Config{}.pool()
	if idle != 10 || open != 100 || lifetime != time.Hour {
		t.Fatalf("pool defaults = %d/%d/%v, want 10/100/1h", idle, open, lifetime)
	}

	idle, open, lifetime = Config{MaxIdleConns: 2, MaxOpenConns: 20, ConnMaxLifetime: time.Minute}.pool()
	if idle != 2 || open != 20 || lifetime != time.Minute {
		t.Fatalf("pool overrides = %d/%d/%v, want 2/20/1m", idle, open, lifetime)
	}
}
