package venue

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// 交易所错误分类。协调器按类别决定重试策略

type Class int

const (
	ClassTransient Class = iota // 超时、限流、5xx，可重试
	ClassPermanent              // 参数错误、余额不足等，不重试
	ClassAuth                   // 密钥无效
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassPermanent:
		return "permanent"
	case ClassAuth:
		return "auth"
	}
	return "unknown"
}

type Error struct {
	Venue      string
	Op         string
	Class      Class
	RetryAfter time.Duration // 限流时交易所给的退避提示，0表示用默认退避
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("venue %s %s: %s: %v", e.Venue, e.Op, e.Class, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewTransient(venueName, op string, err error) *Error {
	return &Error{Venue: venueName, Op: op, Class: ClassTransient, Err: err}
}

// NewRateLimited 限流是瞬时错误的子类，带退避提示
func NewRateLimited(venueName, op string, retryAfter time.Duration, err error) *Error {
	return &Error{Venue: venueName, Op: op, Class: ClassTransient, RetryAfter: retryAfter, Err: err}
}

func NewPermanent(venueName, op string, err error) *Error {
	return &Error{Venue: venueName, Op: op, Class: ClassPermanent, Err: err}
}

func NewAuth(venueName, op string, err error) *Error {
	return &Error{Venue: venueName, Op: op, Class: ClassAuth, Err: err}
}

// IsTransient 是否可重试
func IsTransient(err error) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Class == ClassTransient
	}
	return false
}

// RetryAfterHint 限流退避提示，没有则返回0
func RetryAfterHint(err error) time.Duration {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.RetryAfter
	}
	return 0
}

// Classify 把底层HTTP/SDK错误归类。goex只返回裸error，这里按特征判断
func Classify(venueName, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var ve *Error
	if errors.As(err, &ve) {
		return ve
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransient(venueName, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTransient(venueName, op, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return NewRateLimited(venueName, op, 0, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") || strings.Contains(msg, "504") ||
		strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset"):
		return NewTransient(venueName, op, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "signature") || strings.Contains(msg, "passphrase"):
		return NewAuth(venueName, op, err)
	}
	return NewPermanent(venueName, op, err)
}
