package position

import (
	"time"

	"github.com/gin-gonic/gin"

	"signalflow/internal/model"
	"signalflow/internal/risk"
	"signalflow/internal/store"
	"signalflow/pkg/errors"
	"signalflow/pkg/errors/ecode"
	"signalflow/pkg/response"
)

type PositionHandler struct {
	store *store.PositionStore
	daily *risk.DailyTracker
}

func NewPositionHandler(s *store.PositionStore, daily *risk.DailyTracker) *PositionHandler {
	return &PositionHandler{store: s, daily: daily}
}

// PositionGetList 返回仓位列表，默认只给活跃的，all=1时含终态
func (ph *PositionHandler) PositionGetList() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		var list []*model.Position
		if ctx.Query("all") == "1" {
			list = ph.store.ListAll()
		} else {
			list = ph.store.ListOpen()
		}
		response.JSON(ctx, nil, list)
	}
}

// PositionGetDetail 按venue+symbol查单个仓位
func (ph *PositionHandler) PositionGetDetail() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		key := model.PositionKey{
			Venue:  ctx.Query("venue"),
			Symbol: ctx.Query("symbol"),
		}
		if key.Venue == "" || key.Symbol == "" {
			response.JSON(ctx, errors.New(ecode.BadRequestErr, "venue and symbol are required"), nil)
			return
		}
		p, ok := ph.store.Get(key)
		if !ok {
			response.JSON(ctx, errors.New(ecode.NoOpenPosition, ""), nil)
			return
		}
		response.JSON(ctx, nil, p)
	}
}

// RiskGetDaily 当日风控状态：起始权益、累计盈亏、熔断标志
func (ph *PositionHandler) RiskGetDaily() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		response.JSON(ctx, nil, ph.daily.Snapshot(time.Now()))
	}
}
