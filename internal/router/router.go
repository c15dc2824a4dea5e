package router

import (
	"github.com/gin-gonic/gin"

	"signalflow/internal/handler/position"
	"signalflow/internal/handler/webhook"
	"signalflow/internal/middleware"
)

type ApiRouter struct {
	webhookHandler  *webhook.WebhookHandler
	positionHandler *position.PositionHandler
}

func NewApiRouter(wh *webhook.WebhookHandler, ph *position.PositionHandler) *ApiRouter {
	return &ApiRouter{webhookHandler: wh, positionHandler: ph}
}

func (api *ApiRouter) Load(g *gin.Engine) {

	base := g.Group("/api/v1")

	// webhook不挂防抖中间件，幂等去重在ingest层做
	base.POST("/webhook", api.webhookHandler.HandleWebhook())

	p := base.Group("/positions", middleware.AntiDuplicate())
	{
		p.GET("/list", api.positionHandler.PositionGetList())
		p.GET("/detail", api.positionHandler.PositionGetDetail())
	}

	r := base.Group("/risk", middleware.AntiDuplicate())
	{
		r.GET("/daily", api.positionHandler.RiskGetDaily())
	}
}
