package ingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cast"

	"signalflow/conf"
	"signalflow/internal/consts"
	"signalflow/internal/dao"
	"signalflow/internal/model"
	"signalflow/pkg/errors"
	"signalflow/pkg/errors/ecode"
	"signalflow/pkg/kafka"
	"signalflow/pkg/logger"
	"signalflow/pkg/recorder"
	"signalflow/pkg/utils"
)

// 信号接入：校验、规范化、幂等去重。
// 所有接受/拒绝的信号先写流水再向下游交付（落盘先于动作）

// 幂等键的时间分桶：同一来源同一动作在一个桶内视为同一信号
const keyBucket = time.Minute

type Service struct {
	cfg     conf.WebhookConfig
	dedup   *Deduper
	journal *recorder.JSONFileRecorder
	sdao    *dao.SignalDao        // 可选
	events  kafka.ProducerService // 可选
	node    *snowflake.Node

	defaultVenue string
}

func NewService(cfg conf.WebhookConfig, defaultVenue string, dedup *Deduper,
	journal *recorder.JSONFileRecorder, sdao *dao.SignalDao, events kafka.ProducerService) *Service {
	node, _ := snowflake.NewNode(1)
	return &Service{
		cfg:          cfg,
		dedup:        dedup,
		journal:      journal,
		sdao:         sdao,
		events:       events,
		node:         node,
		defaultVenue: defaultVenue,
	}
}

// VerifySecret 共享密钥比对，常数时间
func (s *Service) VerifySecret(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.Secret)) == 1
}

// VerifySignature 可选的HMAC-SHA256消息体签名
func (s *Service) VerifySignature(body []byte, signatureHex string) bool {
	h := hmac.New(sha256.New, []byte(s.cfg.Secret))
	h.Write(body)
	expected := h.Sum(nil)
	provided, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	return hmac.Equal(provided, expected)
}

// IngestWebhook 处理入站webhook。返回规范化信号或带码错误
func (s *Service) IngestWebhook(ctx context.Context, payload model.WebhookPayload, raw []byte) (model.Signal, error) {
	if !s.VerifySecret(payload.Secret) {
		// 密钥不匹配不留任何痕迹，避免探测
		return model.Signal{}, errors.New(ecode.SecretMismatch, "")
	}

	now := time.Now()
	sig := model.Signal{
		ID:         payload.ID,
		Venue:      strings.ToLower(payload.Exchange),
		Symbol:     utils.FormatSymbol(payload.Symbol),
		Action:     model.Action(strings.ToLower(payload.Action)),
		Strategy:   payload.Strategy,
		Source:     consts.SourceWebhook,
		ReceivedAt: now,
		Raw:        raw,
	}
	// TradingView的price/quantity偶尔是字符串
	sig.Price = cast.ToFloat64(payload.Price)
	sig.Quantity = cast.ToFloat64(payload.Quantity)
	if payload.StopLoss > 0 {
		sig.StopPct = payload.StopLoss
	}
	if payload.TakeProfit > 0 {
		sig.TakePct = payload.TakeProfit
	}
	if sig.Venue == "" {
		sig.Venue = s.defaultVenue
	}

	return s.admit(ctx, sig)
}

// IngestInternal 内部策略信号，走相同的规范化和去重，不经过网络鉴权
func (s *Service) IngestInternal(ctx context.Context, sig model.Signal) (model.Signal, error) {
	sig.Source = consts.SourceStrategy
	if sig.ReceivedAt.IsZero() {
		sig.ReceivedAt = time.Now()
	}
	if sig.Venue == "" {
		sig.Venue = s.defaultVenue
	}
	sig.Symbol = utils.FormatSymbol(sig.Symbol)
	return s.admit(ctx, sig)
}

// admit 校验+去重+落流水。任何拒绝都没有副作用
func (s *Service) admit(ctx context.Context, sig model.Signal) (model.Signal, error) {
	if sig.Symbol == "" || !sig.Action.Valid() {
		err := errors.New(ecode.InvalidSchema, "")
		s.record(ctx, sig, "rejected", "invalid_schema")
		return model.Signal{}, err
	}

	if sig.ID == "" {
		sig.ID = s.idempotencyKey(sig)
	}

	if s.dedup.Seen(ctx, sig.ID, sig.ReceivedAt) {
		err := errors.New(ecode.DuplicateErr, "")
		s.record(ctx, sig, "rejected", "duplicate")
		return model.Signal{}, err
	}

	s.record(ctx, sig, "accepted", "")
	return sig, nil
}

// idempotencyKey 来源没给id时按(来源,symbol,action,时间桶)推导
func (s *Service) idempotencyKey(sig model.Signal) string {
	bucket := sig.ReceivedAt.Truncate(keyBucket).Unix()
	h := sha256.New()
	h.Write([]byte(sig.Source))
	h.Write([]byte{0})
	h.Write([]byte(sig.Venue))
	h.Write([]byte{0})
	h.Write([]byte(sig.Symbol))
	h.Write([]byte{0})
	h.Write([]byte(sig.Action))
	h.Write([]byte{0})
	h.Write([]byte(cast.ToString(bucket)))
	return hex.EncodeToString(h.Sum(nil))
}

// journalEntry 信号流水的一行
type journalEntry struct {
	At       time.Time    `json:"at"`
	Decision string       `json:"decision"`
	Reason   string       `json:"reason,omitempty"`
	Signal   model.Signal `json:"signal"`
}

func (s *Service) record(ctx context.Context, sig model.Signal, decision, reason string) {
	if s.journal != nil {
		if err := s.journal.Record(journalEntry{At: time.Now(), Decision: decision, Reason: reason, Signal: sig}); err != nil {
			logger.Errorf("signal journal append failed: %v", err)
		}
	}
	if s.sdao != nil {
		rec := &model.SignalRecord{
			SignalID: sig.ID,
			Venue:    sig.Venue,
			Symbol:   sig.Symbol,
			Action:   string(sig.Action),
			Source:   sig.Source,
			Strategy: sig.Strategy,
			Price:    sig.Price,
			Decision: decision,
			Reason:   reason,
			Raw:      []byte(sig.Raw),
		}
		if err := s.sdao.Insert(ctx, rec); err != nil {
			logger.Errorf("signal record insert failed: %v", err)
		}
	}
	if s.events != nil && decision == "accepted" {
		_ = s.events.Produce(ctx, sig.ID, journalEntry{At: time.Now(), Decision: decision, Signal: sig})
	}
}

// ID生成器，内部策略信号用
func (s *Service) NextID() string {
	return s.node.Generate().String()
}
