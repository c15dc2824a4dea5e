package ecode

// 错误码定义。0表示成功，非0为业务错误
const (
	Success = 0

	// 通用
	InternalErr    = 10001
	RequireAuthErr = 10002
	BadRequestErr  = 10003

	// 信号接入
	InvalidSchema  = 20001 // 信号字段缺失或非法
	DuplicateErr   = 20002 // 幂等键重复
	SecretMismatch = 20003 // webhook密钥不匹配

	// 风控
	DailyBreaker  = 21001 // 当日亏损熔断
	PositionLimit = 21002 // 超过最大持仓数
	SizeTooSmall  = 21003 // 仓位计算结果过小
	KeyOccupied   = 21004 // 同一(venue,symbol)已有持仓

	// 交易所
	VenueTransient = 22001 // 瞬时错误，可重试
	VenuePermanent = 22002 // 永久错误，终止
	VenueAuth      = 22003 // 鉴权错误
	RetryExhausted = 22004 // 重试次数耗尽

	// 一致性
	NoOpenPosition = 23001 // close信号找不到对应持仓
)

var messages = map[int]string{
	Success:        "ok",
	InternalErr:    "internal error",
	RequireAuthErr: "authentication required",
	BadRequestErr:  "bad request",
	InvalidSchema:  "invalid_schema",
	DuplicateErr:   "duplicate",
	SecretMismatch: "secret mismatch",
	DailyBreaker:   "daily_breaker",
	PositionLimit:  "position_limit",
	SizeTooSmall:   "size_too_small",
	KeyOccupied:    "duplicate_key",
	VenueTransient: "venue transient error",
	VenuePermanent: "venue permanent error",
	VenueAuth:      "venue auth error",
	RetryExhausted: "retry budget exhausted",
	NoOpenPosition: "no open position",
}

// Message 返回错误码的默认文案
func Message(code int) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return "unknown error"
}
