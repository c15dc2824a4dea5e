package api

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"signalflow/conf"
	"signalflow/internal/dao"
	"signalflow/internal/engine"
	"signalflow/internal/handler/position"
	"signalflow/internal/handler/webhook"
	"signalflow/internal/ingest"
	"signalflow/internal/model"
	"signalflow/internal/risk"
	"signalflow/internal/router"
	"signalflow/internal/store"
	"signalflow/internal/strategy"
	"signalflow/internal/venue"
	"signalflow/pkg/kafka"
	"signalflow/pkg/logger"
	"signalflow/pkg/recorder"
)

// App 聚合需要在shutdown时收尾的组件
type App struct {
	Router      Router
	Coordinator *engine.Coordinator
	Producer    *strategy.RSIProducer
	Events      kafka.ProducerService
}

func InitApp(db *gorm.DB) *App {
	appCfg := conf.AppConfig

	var sdao *dao.SignalDao
	var pdao *dao.PositionDao
	if db != nil {
		sdao = dao.NewSignalDao(db)
		pdao = dao.NewPositionDao(db)
	}

	// venue注册。paper/live是显式配置，绝不隐式切换
	registry := venue.NewRegistry()
	var def venue.Venue
	switch appCfg.Venue.Mode {
	case "live":
		okx := venue.NewOkx(appCfg.Venue.Okx)
		registry.Register(okx)
		def = okx
		logger.Warn("live trading mode, orders will hit the real venue")
	default:
		paper := venue.NewPaper("paper", appCfg.Venue.PaperEquity, appCfg.Venue.FeeRate)
		registry.Register(paper)
		def = paper
		logger.Infof("paper trading mode, starting equity %.2f", appCfg.Venue.PaperEquity)
	}
	defaultName := def.Name()
	if _, ok := registry.Get(appCfg.Venue.Default); ok {
		defaultName = appCfg.Venue.Default
	}

	var events kafka.ProducerService
	if appCfg.Kafka.Broker != "" {
		events = kafka.NewKafkaProducer(appCfg.Kafka.Broker, appCfg.Kafka.Topic)
	}

	// 信号流水，append-only
	var journal *recorder.JSONFileRecorder
	if appCfg.Webhook.JournalPath != "" {
		journal = &recorder.JSONFileRecorder{Path: appCfg.Webhook.JournalPath}
	}

	dedup := ingest.NewDeduper(appCfg.Webhook.DedupWindow, appCfg.Redis.Enabled)
	ing := ingest.NewService(appCfg.Webhook, defaultName, dedup, journal, sdao, events)

	// 当日风控基线用venue的真实权益，拉不到就退回配置值
	startingEquity := appCfg.Venue.PaperEquity
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if eq, err := def.FetchBalance(ctx); err == nil && eq > 0 {
		startingEquity = eq
	} else if err != nil {
		logger.Warnf("fetch starting equity failed, fallback to %.2f: %v", startingEquity, err)
	}
	cancel()

	daily := risk.NewDailyTracker(appCfg.Risk.DailyLossLimitPct, startingEquity, time.Now())
	riskEng := risk.NewEngine(appCfg.Risk)
	positions := store.NewPositionStore(pdao)
	recoverPositions(positions, pdao)

	coord := engine.NewCoordinator(appCfg.Engine, registry, riskEng, daily, positions, journal, events)
	coord.Start()

	// 告警目前只进日志和事件流
	go func() {
		for a := range coord.Alerts() {
			logger.L().Warn("execution alert",
				zap.String("key", a.Key.String()),
				zap.String("signal_id", a.SignalID),
				zap.String("message", a.Message),
				zap.String("error", a.Err))
			if events != nil {
				_ = events.Produce(context.Background(), a.SignalID, a)
			}
		}
	}()

	producer := strategy.NewRSIProducer(appCfg.Strategy, def, ing, coord)
	producer.Start()

	wh := webhook.NewWebhookHandler(appCfg.Webhook, ing, coord)
	ph := position.NewPositionHandler(positions, daily)

	return &App{
		Router:      router.NewApiRouter(wh, ph),
		Coordinator: coord,
		Producer:    producer,
		Events:      events,
	}
}

// recoverPositions 重启恢复：库里的非终态仓位装回内存表并标记待对账，
// 由监控环节继续跟踪止盈止损
func recoverPositions(positions *store.PositionStore, pdao *dao.PositionDao) {
	if pdao == nil {
		return
	}
	records, err := pdao.ListOpen(context.Background())
	if err != nil {
		logger.Errorf("position recovery failed: %v", err)
		return
	}
	for _, r := range records {
		var tiers []model.TakeProfitTier
		if len(r.TakeProfits) > 0 {
			_ = json.Unmarshal(r.TakeProfits, &tiers)
		}
		pos := &model.Position{
			Key:         model.PositionKey{Venue: r.Venue, Symbol: r.Symbol},
			SignalID:    r.SignalID,
			State:       model.PositionState(r.State),
			Side:        model.OrderSide(r.Side),
			EntryPrice:  r.EntryPrice,
			Quantity:    r.Quantity,
			InitialQty:  r.Quantity,
			StopPrice:   r.StopPrice,
			TakeProfits: tiers,
			RealizedPnl: r.RealizedPnl,
			Fees:        r.Fees,
			OpenedAt:    r.OpenedAt,
			// 进程中断期间交易所侧可能有未知成交
			NeedsReconciliation: true,
		}
		// opening/closing卡在中间态的，回到open由人工对账
		if pos.State != model.PosOpen {
			pos.State = model.PosOpen
		}
		positions.Upsert(pos)
		logger.Warnf("recovered position %s qty=%.8f, flagged for reconciliation", pos.Key, pos.Quantity)
	}
}
