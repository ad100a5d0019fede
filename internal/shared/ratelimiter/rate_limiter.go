// Package ratelimiter はキーごとの操作回数を固定ウィンドウで制限します。
package ratelimiter

import (
	"sync"
	"time"
)

// RateLimiterInterface は、評価の送信などの操作の頻度を制限するインターフェースです。
type RateLimiterInterface interface {
	Allow(key string) (bool, time.Duration)
}

// RateLimiterは、キー（ブラウザセッションなど）ごとに操作の頻度を制限します。
type RateLimiter struct {
	limit    int           // interval あたりの上限
	interval time.Duration // どの単位でリセットするか
	now      func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	count     int
	lastReset time.Time
}

// NewRateLimiterは新しいRateLimiterのインスタンスを生成します。
// limitが0以下の場合は制限しません。
func NewRateLimiter(limit int, interval time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		interval: interval,
		now:      time.Now,
		windows:  make(map[string]*window),
	}
}

// Allowはkeyの操作を1回数え、上限内であればtrueを返します。
// 上限に達している場合は、次のウィンドウまでの待ち時間を返します。
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	if rl.limit <= 0 {
		return true, 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	w, ok := rl.windows[key]
	if !ok {
		w = &window{lastReset: now}
		rl.windows[key] = w
	}
	// interval を過ぎたらカウントリセット
	if now.Sub(w.lastReset) >= rl.interval {
		w.count = 0
		w.lastReset = now
	}

	if w.count >= rl.limit {
		return false, rl.interval - now.Sub(w.lastReset)
	}
	w.count++
	return true, 0
}

// sweepLocked は期限切れのウィンドウを捨てます。
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for k, w := range rl.windows {
		if now.Sub(w.lastReset) >= rl.interval {
			delete(rl.windows, k)
		}
	}
}
