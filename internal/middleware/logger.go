package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"signalflow/internal/consts"
	"signalflow/pkg/logger"
)

func Logger(c *gin.Context) {
	// 请求前
	t := time.Now()
	reqPath := c.Request.URL.Path
	reqId := c.GetString(consts.RequestId)
	method := c.Request.Method
	ip := c.ClientIP()
	requestBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		requestBody = []byte{}
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

	logger.L().Info("[Request Start]",
		zap.String(consts.RequestId, reqId),
		zap.String("host", ip),
		zap.String("path", reqPath),
		zap.String("method", method),
		zap.String("body", string(requestBody)))

	c.Next()
	// 请求后
	latency := time.Since(t)
	logger.L().Info("[Request End]",
		zap.String(consts.RequestId, reqId),
		zap.String("host", ip),
		zap.String("path", reqPath),
		zap.Duration("cost", latency))
}
