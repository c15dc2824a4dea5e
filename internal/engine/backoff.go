package engine

import "time"

const (
	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// Backoff 第attempt次重试前的指数退避时长：base * 2^attempt，封顶backoffMax
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		return backoffBase
	}
	// 2^30秒已远超上限，提前截断防溢出
	if attempt > 30 {
		return backoffMax
	}
	d := backoffBase * time.Duration(1<<attempt)
	if d > backoffMax {
		return backoffMax
	}
	return d
}
