package utils

import "strings"

// FormatSymbol 将 TradingView ticker 转换为服务端可识别的 symbol
// BTCUSDT -> BTC/USDT，已经带斜杠的原样返回
func FormatSymbol(tvSymbol string) string {
	tvSymbol = strings.ToUpper(strings.TrimSpace(tvSymbol))
	if strings.Contains(tvSymbol, "/") {
		return tvSymbol
	}
	// 后缀 quote 币种列表
	quotes := []string{"USDT", "USDC", "USD"}

	for _, q := range quotes {
		if strings.HasSuffix(tvSymbol, q) && len(tvSymbol) > len(q) {
			base := strings.TrimSuffix(tvSymbol, q)
			return base + "/" + q
		}
	}
	// 没匹配到就返回原始值
	return tvSymbol
}
