package venue

import (
	"context"
	"errors"
	"strings"
	"time"

	goexv2 "github.com/nntaoli-project/goex/v2"
	goexmodel "github.com/nntaoli-project/goex/v2/model"
	"github.com/nntaoli-project/goex/v2/options"

	"signalflow/conf"
	"signalflow/internal/model"
)

// Okx 现货venue，基于goex v2。
// goex的私有API没有context，统一用channel+超时包一层
type Okx struct {
	name      string
	pub       goexv2.IPubRest
	prv       goexv2.IPrvRest
	quoteCoin string
}

func NewOkx(cfg conf.OkxConfig) *Okx {
	opts := []options.ApiOption{
		options.WithApiKey(cfg.ApiKey),
		options.WithApiSecretKey(cfg.SecretKey),
		options.WithPassphrase(cfg.Password),
	}
	if cfg.Simulated {
		// okx v5 模拟交易需要单独的header
		goexv2.DefaultHttpCli.SetHeaders("x-simulated-trading", "1")
	}
	pub := goexv2.OKx.Spot
	return &Okx{
		name:      "okx",
		pub:       pub,
		prv:       pub.NewPrvApi(opts...),
		quoteCoin: "USDT",
	}
}

func (e *Okx) Name() string { return e.name }

// symbol 格式转换: "BTC/USDT" -> goex 需要的 CurrencyPair
func (e *Okx) toCurrencyPair(symbol string) (goexmodel.CurrencyPair, error) {
	parts := strings.Split(symbol, "/")
	if len(parts) == 1 {
		parts = strings.Split(symbol, "-")
	}
	if len(parts) > 2 {
		parts = parts[:2]
	}
	if len(parts) != 2 {
		return goexmodel.CurrencyPair{}, errors.New("invalid symbol format, expected like BTC/USDT")
	}
	return e.pub.NewCurrencyPair(parts[0], parts[1])
}

// call 在goroutine里执行goex调用，尊重ctx超时
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

func (e *Okx) Quote(ctx context.Context, symbol string) (*model.Quote, error) {
	pair, err := e.toCurrencyPair(symbol)
	if err != nil {
		return nil, NewPermanent(e.name, "quote", err)
	}
	last, err := call(ctx, func() (float64, error) {
		ticker, _, err := e.pub.GetTicker(pair)
		if err != nil {
			return 0, err
		}
		if ticker == nil {
			return 0, errors.New("empty ticker")
		}
		return ticker.Last, nil
	})
	if err != nil {
		return nil, Classify(e.name, "quote", err)
	}
	return &model.Quote{Symbol: symbol, Price: last, At: time.Now()}, nil
}

func (e *Okx) PlaceOrder(ctx context.Context, order *model.Order) (*model.OrderAck, error) {
	pair, err := e.toCurrencyPair(order.Symbol)
	if err != nil {
		return nil, NewPermanent(e.name, "place_order", err)
	}

	var side goexmodel.OrderSide
	switch order.Side {
	case model.Buy:
		side = goexmodel.Spot_Buy
	case model.Sell:
		side = goexmodel.Spot_Sell
	default:
		return nil, NewPermanent(e.name, "place_order", errors.New("invalid order side"))
	}

	orderType := goexmodel.OrderType_Market
	if order.OrderType == model.Limit {
		orderType = goexmodel.OrderType_Limit
	}

	var opts []goexmodel.OptionParameter
	if cid := clientOrderID(order.ClientID); cid != "" {
		// clOrdId让交易所侧对重试提交去重
		opts = append(opts, goexmodel.OptionParameter{Key: "clOrdId", Value: cid})
	}

	created, err := call(ctx, func() (*goexmodel.Order, error) {
		o, _, err := e.prv.CreateOrder(pair, order.Quantity, order.Price, side, orderType, opts...)
		return o, err
	})
	if err != nil {
		return nil, Classify(e.name, "place_order", err)
	}

	// 市价单通常立即成交，查一次订单状态拿成交均价
	info, err := call(ctx, func() (*goexmodel.Order, error) {
		o, _, err := e.prv.GetOrderInfo(pair, created.Id)
		return o, err
	})
	ack := &model.OrderAck{OrderID: created.Id, ClientID: order.ClientID}
	if err != nil || info == nil {
		// 下单成功但查询失败：按委托量记，后续监控环节校准
		ack.FilledQty = order.Quantity
		ack.AvgPrice = order.Price
		return ack, nil
	}
	ack.FilledQty = info.ExecutedQty
	ack.AvgPrice = info.PriceAvg
	if ack.AvgPrice <= 0 {
		ack.AvgPrice = order.Price
	}
	ack.Partial = info.ExecutedQty > 0 && info.ExecutedQty < order.Quantity
	if info.ExecutedQty <= 0 {
		ack.FilledQty = order.Quantity
		ack.Partial = false
	}
	return ack, nil
}

func (e *Okx) CancelOrder(ctx context.Context, orderID, symbol string) error {
	pair, err := e.toCurrencyPair(symbol)
	if err != nil {
		return NewPermanent(e.name, "cancel_order", err)
	}
	_, err = call(ctx, func() (struct{}, error) {
		_, err := e.prv.CancelOrder(pair, orderID)
		return struct{}{}, err
	})
	if err != nil {
		return Classify(e.name, "cancel_order", err)
	}
	return nil
}

func (e *Okx) FetchBalance(ctx context.Context) (float64, error) {
	bal, err := call(ctx, func() (map[string]goexmodel.Account, error) {
		accounts, _, err := e.prv.GetAccount(e.quoteCoin)
		return accounts, err
	})
	if err != nil {
		return 0, Classify(e.name, "fetch_balance", err)
	}
	acc, ok := bal[e.quoteCoin]
	if !ok {
		return 0, NewPermanent(e.name, "fetch_balance", errors.New("no "+e.quoteCoin+" account"))
	}
	return acc.Balance, nil
}

func (e *Okx) FetchPosition(ctx context.Context, symbol string) (float64, error) {
	pair, err := e.toCurrencyPair(symbol)
	if err != nil {
		return 0, NewPermanent(e.name, "fetch_position", err)
	}
	base := pair.Symbol[:strings.Index(pair.Symbol, "-")]
	bal, err := call(ctx, func() (map[string]goexmodel.Account, error) {
		accounts, _, err := e.prv.GetAccount(base)
		return accounts, err
	})
	if err != nil {
		return 0, Classify(e.name, "fetch_position", err)
	}
	acc, ok := bal[base]
	if !ok {
		return 0, nil
	}
	return acc.Balance, nil
}

// clientOrderID okx的clOrdId只允许字母数字且最长32位
func clientOrderID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= 32 {
			break
		}
	}
	return b.String()
}
