package engine

import (
	"time"

	"signalflow/internal/model"
	"signalflow/pkg/logger"
)

// Alert 交易所异步失败的告警。仓位状态是事实，告警只是通知
type Alert struct {
	Key      model.PositionKey `json:"key"`
	SignalID string            `json:"signal_id"`
	Message  string            `json:"message"`
	Err      string            `json:"error,omitempty"`
	At       time.Time         `json:"at"`
}

func (c *Coordinator) alert(key model.PositionKey, signalID, message string, err error) {
	a := Alert{Key: key, SignalID: signalID, Message: message, At: time.Now()}
	if err != nil {
		a.Err = err.Error()
	}
	select {
	case c.alerts <- a:
	default:
		// 告警队列满了也不能阻塞交易链路
		logger.Warnf("alert channel full, dropping: %s %s", key, message)
	}
}

// Alerts 告警订阅通道
func (c *Coordinator) Alerts() <-chan Alert {
	return c.alerts
}
