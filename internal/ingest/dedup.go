package ingest

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"signalflow/pkg/cache"
)

// 幂等去重。进程内LRU为主，配置了redis时再做一层跨进程占位

type Deduper struct {
	window   time.Duration
	mu       sync.Mutex // 查和占位要在同一临界区，否则并发同id都能漏过
	seen     *lru.Cache // id -> 首次出现时间
	useRedis bool
}

func NewDeduper(window time.Duration, useRedis bool) *Deduper {
	c, _ := lru.New(4096)
	return &Deduper{window: window, seen: c, useRedis: useRedis}
}

// Seen 返回true表示窗口内已处理过该id。首次调用会占位
func (d *Deduper) Seen(ctx context.Context, id string, now time.Time) bool {
	d.mu.Lock()
	if v, ok := d.seen.Get(id); ok {
		if first, ok := v.(time.Time); ok && now.Sub(first) < d.window {
			d.mu.Unlock()
			return true
		}
	}
	d.seen.Add(id, now)
	d.mu.Unlock()

	if d.useRedis {
		ok, err := cache.SetNXKey(ctx, "signal:dedup:"+id, d.window)
		if err == nil && !ok {
			return true
		}
		// redis不可用时退化为本地去重
	}
	return false
}
