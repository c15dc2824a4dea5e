package webhook

import (
	"bytes"
	"io"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"

	"signalflow/conf"
	"signalflow/internal/engine"
	"signalflow/internal/ingest"
	"signalflow/internal/model"
	"signalflow/pkg/errors"
	"signalflow/pkg/errors/ecode"
	"signalflow/pkg/logger"
	"signalflow/pkg/response"
)

// TradingView Webhook 的接收器

type WebhookHandler struct {
	cfg   conf.WebhookConfig
	ing   *ingest.Service
	coord *engine.Coordinator
}

func NewWebhookHandler(cfg conf.WebhookConfig, ing *ingest.Service, coord *engine.Coordinator) *WebhookHandler {
	return &WebhookHandler{cfg: cfg, ing: ing, coord: coord}
}

// HandleWebhook 接收POST请求，信号同步走完 校验 -> 去重 -> 风控 -> 下单，
// 响应里直接带上接受/拒绝的结果
func (wh *WebhookHandler) HandleWebhook() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			response.JSON(ctx, errors.New(ecode.BadRequestErr, "failed to read body"), nil)
			return
		}
		ctx.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		// 配置了签名头时必须验签
		if wh.cfg.SignatureHeader != "" {
			signature := ctx.GetHeader(wh.cfg.SignatureHeader)
			if signature == "" || !wh.ing.VerifySignature(body, signature) {
				response.RequireAuthErr(ctx, errors.New(ecode.RequireAuthErr, "invalid signature"))
				return
			}
		}

		var payload model.WebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			response.JSON(ctx, errors.New(ecode.InvalidSchema, "invalid json"), nil)
			return
		}

		sig, err := wh.ing.IngestWebhook(ctx.Request.Context(), payload, body)
		if err != nil {
			if errors.Is(err, ecode.SecretMismatch) {
				// 密钥不对不给任何细节
				response.RequireAuthErr(ctx, errors.New(ecode.RequireAuthErr, "unauthorized"))
				return
			}
			response.JSON(ctx, err, nil)
			return
		}
		logger.Infof("webhook signal accepted: %s %s %s", sig.ID, sig.Symbol, sig.Action)

		result, err := wh.coord.Process(ctx.Request.Context(), sig)
		if err != nil {
			response.JSON(ctx, err, gin.H{"signal_id": sig.ID})
			return
		}
		response.JSON(ctx, nil, result)
	}
}
