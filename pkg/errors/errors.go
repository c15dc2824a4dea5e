package errors

import (
	"errors"
	"fmt"

	"signalflow/pkg/errors/ecode"
)

// 带错误码的error，response层通过DecodeErr还原code和message

type CodedError struct {
	Code    int
	Message string
	cause   error
}

func (e *CodedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("code=%d message=%s cause=%v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("code=%d message=%s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error { return e.cause }

// New 根据错误码创建错误，message为空时取ecode默认文案
func New(code int, message string) *CodedError {
	if message == "" {
		message = ecode.Message(code)
	}
	return &CodedError{Code: code, Message: message}
}

// Newf 格式化创建
func Newf(code int, format string, args ...interface{}) *CodedError {
	return &CodedError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap 包装已有错误并附加错误码
func Wrap(err error, code int, message string) *CodedError {
	if message == "" {
		message = ecode.Message(code)
	}
	return &CodedError{Code: code, Message: message, cause: err}
}

// DecodeErr 解出错误码和文案。nil表示成功
func DecodeErr(err error) (int, string) {
	if err == nil {
		return ecode.Success, ecode.Message(ecode.Success)
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code, ce.Message
	}
	return ecode.InternalErr, err.Error()
}

// Code 只取错误码
func Code(err error) int {
	c, _ := DecodeErr(err)
	return c
}

// Is 判断err是否携带指定错误码
func Is(err error, code int) bool {
	return Code(err) == code
}
