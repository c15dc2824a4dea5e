package venue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"signalflow/internal/model"
)

// Paper 模拟盘。内存撮合，立即全额成交，clientID幂等去重。
// paper模式是显式配置出来的，不是运行时开关
type Paper struct {
	name    string
	feeRate float64

	mu       sync.Mutex
	equity   float64
	prices   map[string]float64
	holdings map[string]float64           // symbol -> 持仓数量
	acks     map[string]*model.OrderAck   // clientID -> 回执，重复提交原样返回
	orders   map[string]*model.Order      // orderID -> 订单
	canceled map[string]bool
}

func NewPaper(name string, equity, feeRate float64) *Paper {
	if name == "" {
		name = "paper"
	}
	return &Paper{
		name:     name,
		feeRate:  feeRate,
		equity:   equity,
		prices:   make(map[string]float64),
		holdings: make(map[string]float64),
		acks:     make(map[string]*model.OrderAck),
		orders:   make(map[string]*model.Order),
		canceled: make(map[string]bool),
	}
}

func (p *Paper) Name() string { return p.name }

// SetPrice 设置行情，测试和联调用
func (p *Paper) SetPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prices[symbol] = price
}

func (p *Paper) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	price, ok := p.prices[symbol]
	if !ok {
		return nil, NewPermanent(p.name, "quote", fmt.Errorf("unknown symbol %s", symbol))
	}
	return &model.Quote{Symbol: symbol, Price: price, At: time.Now()}, nil
}

func (p *Paper) PlaceOrder(ctx context.Context, order *model.Order) (*model.OrderAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// 同一clientID重复提交，直接返回首次回执
	if order.ClientID != "" {
		if ack, ok := p.acks[order.ClientID]; ok {
			return ack, nil
		}
	}

	price := order.Price
	if price <= 0 {
		var ok bool
		price, ok = p.prices[order.Symbol]
		if !ok {
			return nil, NewPermanent(p.name, "place_order", fmt.Errorf("no market price for %s", order.Symbol))
		}
	}
	if order.Quantity <= 0 {
		return nil, NewPermanent(p.name, "place_order", errors.New("quantity must be positive"))
	}

	notional := price * order.Quantity
	if order.Side == model.Buy && notional > p.equity {
		return nil, NewPermanent(p.name, "place_order", errors.New("insufficient balance"))
	}

	ack := &model.OrderAck{
		OrderID:   uuid.NewString(),
		ClientID:  order.ClientID,
		FilledQty: order.Quantity,
		AvgPrice:  price,
		Fee:       notional * p.feeRate,
	}

	switch order.Side {
	case model.Buy:
		p.holdings[order.Symbol] += order.Quantity
		p.equity -= notional + ack.Fee
	case model.Sell:
		p.holdings[order.Symbol] -= order.Quantity
		p.equity += notional - ack.Fee
	}

	p.orders[ack.OrderID] = order
	if order.ClientID != "" {
		p.acks[order.ClientID] = ack
	}
	return ack, nil
}

func (p *Paper) CancelOrder(ctx context.Context, orderID, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[orderID]; !ok {
		return NewPermanent(p.name, "cancel_order", fmt.Errorf("order %s not found", orderID))
	}
	p.canceled[orderID] = true
	return nil
}

func (p *Paper) FetchBalance(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.equity, nil
}

func (p *Paper) FetchPosition(ctx context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holdings[symbol], nil
}
