package venue

import (
	"context"
	"sync"

	"signalflow/internal/model"
)

// Venue 统一的交易所能力接口。鉴权、限流、符号映射都在实现内部消化，
// 协调器只面对这一层
type Venue interface {
	Name() string
	// 最新报价
	Quote(ctx context.Context, symbol string) (*model.Quote, error)
	// 下单。order.ClientID携带幂等键，重复提交交易所侧去重
	PlaceOrder(ctx context.Context, order *model.Order) (*model.OrderAck, error)
	// 撤销订单
	CancelOrder(ctx context.Context, orderID, symbol string) error
	// 账户权益（USDT计）
	FetchBalance(ctx context.Context) (float64, error)
	// 查询某symbol的持仓数量
	FetchPosition(ctx context.Context, symbol string) (float64, error)
}

// Registry 按名字注册venue，信号里的exchange字段用来路由
type Registry struct {
	mu     sync.RWMutex
	venues map[string]Venue
}

func NewRegistry() *Registry {
	return &Registry{venues: make(map[string]Venue)}
}

func (r *Registry) Register(v Venue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.venues[v.Name()] = v
}

func (r *Registry) Get(name string) (Venue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.venues[name]
	return v, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.venues))
	for n := range r.venues {
		names = append(names, n)
	}
	return names
}
