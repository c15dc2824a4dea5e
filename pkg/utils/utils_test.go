package utils

import "testing"

func TestFormatSymbol(t *testing.T) {
	cases := map[string]string{
		"BTCUSDT":   "BTC/USDT",
		"btcusdt":   "BTC/USDT",
		"ETH/USDT":  "ETH/USDT",
		"SOLUSDC":   "SOL/USDC",
		"DOGEUSD":   "DOGE/USD",
		" ethusdt ": "ETH/USDT",
		"USDT":      "USDT", // 光秃秃的quote不拆
		"WEIRD":     "WEIRD",
	}
	for in, want := range cases {
		if got := FormatSymbol(in); got != want {
			t.Errorf("FormatSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}
