package consts

// gin context中使用的key
const (
	RequestId = "request_id"
)

// 信号来源
const (
	SourceWebhook  = "webhook"  // TradingView等外部告警
	SourceStrategy = "strategy" // 内部策略产出
)
