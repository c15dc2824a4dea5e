package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"signalflow/conf"
	"signalflow/internal/model"
	"signalflow/pkg/errors"
	"signalflow/pkg/errors/ecode"
)

func newTestService() *Service {
	cfg := conf.WebhookConfig{
		Secret:      "test-secret",
		DedupWindow: 5 * time.Minute,
	}
	return NewService(cfg, "paper", NewDeduper(cfg.DedupWindow, false), nil, nil, nil)
}

func TestVerifySecret(t *testing.T) {
	s := newTestService()
	if !s.VerifySecret("test-secret") {
		t.Fatal("correct secret rejected")
	}
	if s.VerifySecret("wrong") || s.VerifySecret("") || s.VerifySecret("test-secret ") {
		t.Fatal("wrong secret accepted")
	}
}

func TestVerifySignature(t *testing.T) {
	s := newTestService()
	body := []byte(`{"action":"buy"}`)
	h := hmac.New(sha256.New, []byte("test-secret"))
	h.Write(body)
	good := hex.EncodeToString(h.Sum(nil))

	if !s.VerifySignature(body, good) {
		t.Fatal("valid signature rejected")
	}
	if s.VerifySignature(body, "deadbeef") || s.VerifySignature(body, "not-hex") {
		t.Fatal("invalid signature accepted")
	}
}

func TestIngestWebhookSecretMismatch(t *testing.T) {
	s := newTestService()
	payload := model.WebhookPayload{Secret: "wrong", Action: "buy", Symbol: "BTC/USDT"}
	_, err := s.IngestWebhook(context.Background(), payload, nil)
	if !errors.Is(err, ecode.SecretMismatch) {
		t.Fatalf("expected secret mismatch, got %v", err)
	}
}

func TestIngestWebhookNormalization(t *testing.T) {
	s := newTestService()
	payload := model.WebhookPayload{
		Secret:   "test-secret",
		ID:       "sig-1",
		Action:   "BUY",
		Symbol:   " btc/usdt ",
		Exchange: "OKX",
		Price:    "42000.5", // TradingView有时发字符串
		Quantity: 0.01,
	}
	sig, err := s.IngestWebhook(context.Background(), payload, []byte(`{}`))
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if sig.Action != model.ActionBuy {
		t.Fatalf("action = %s", sig.Action)
	}
	if sig.Symbol != "BTC/USDT" {
		t.Fatalf("symbol = %s", sig.Symbol)
	}

	// TradingView裸ticker也要归一化
	payload.ID = "sig-1b"
	payload.Symbol = "ETHUSDT"
	sig, err = s.IngestWebhook(context.Background(), payload, nil)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if sig.Symbol != "ETH/USDT" {
		t.Fatalf("symbol = %s, want ETH/USDT", sig.Symbol)
	}
	if sig.Venue != "okx" {
		t.Fatalf("venue = %s", sig.Venue)
	}
	if sig.Price != 42000.5 {
		t.Fatalf("price = %v", sig.Price)
	}
}

func TestIngestWebhookDefaultVenue(t *testing.T) {
	s := newTestService()
	payload := model.WebhookPayload{Secret: "test-secret", ID: "sig-2", Action: "sell", Symbol: "ETH/USDT"}
	sig, err := s.IngestWebhook(context.Background(), payload, nil)
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if sig.Venue != "paper" {
		t.Fatalf("venue = %s, want default paper", sig.Venue)
	}
}

func TestIngestWebhookInvalidSchema(t *testing.T) {
	s := newTestService()
	cases := []model.WebhookPayload{
		{Secret: "test-secret", Action: "hold", Symbol: "BTC/USDT"}, // 未知action
		{Secret: "test-secret", Action: "buy"},                      // 缺symbol
	}
	for _, payload := range cases {
		if _, err := s.IngestWebhook(context.Background(), payload, nil); !errors.Is(err, ecode.InvalidSchema) {
			t.Fatalf("payload %+v: expected invalid schema, got %v", payload, err)
		}
	}
}

func TestIngestDuplicateByID(t *testing.T) {
	s := newTestService()
	payload := model.WebhookPayload{Secret: "test-secret", ID: "dup-1", Action: "buy", Symbol: "BTC/USDT", Price: 100.0}

	if _, err := s.IngestWebhook(context.Background(), payload, nil); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	_, err := s.IngestWebhook(context.Background(), payload, nil)
	if !errors.Is(err, ecode.DuplicateErr) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestIngestDerivedIdempotencyKey(t *testing.T) {
	s := newTestService()
	now := time.Now()
	sig := model.Signal{Venue: "paper", Symbol: "BTC/USDT", Action: model.ActionBuy, Price: 100, ReceivedAt: now}

	first, err := s.IngestInternal(context.Background(), sig)
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected derived id")
	}

	// 同一分钟内相同来源/动作派生出相同key，被去重
	_, err = s.IngestInternal(context.Background(), sig)
	if !errors.Is(err, ecode.DuplicateErr) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	// 下一个时间桶派生不同key
	next := sig
	next.ReceivedAt = now.Add(keyBucket + time.Second)
	second, err := s.IngestInternal(context.Background(), next)
	if err != nil {
		t.Fatalf("next bucket rejected: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("different buckets must derive different keys")
	}
}

func TestDeduperWindowExpiry(t *testing.T) {
	d := NewDeduper(time.Minute, false)
	now := time.Now()
	if d.Seen(context.Background(), "k1", now) {
		t.Fatal("first sighting reported as seen")
	}
	if !d.Seen(context.Background(), "k1", now.Add(30*time.Second)) {
		t.Fatal("in-window repeat not caught")
	}
	if d.Seen(context.Background(), "k1", now.Add(2*time.Minute)) {
		t.Fatal("expired entry still blocking")
	}
}

func TestDeduperConcurrentSameID(t *testing.T) {
	d := NewDeduper(time.Minute, false)
	now := time.Now()

	var wg sync.WaitGroup
	var passed int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.Seen(context.Background(), "same-id", now) {
				atomic.AddInt32(&passed, 1)
			}
		}()
	}
	wg.Wait()

	// 并发撞同一id时只能有一个通过
	if passed != 1 {
		t.Fatalf("passed = %d, want exactly 1", passed)
	}
}
