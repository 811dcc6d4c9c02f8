package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	TriggerRate     rate.Limit    // スキャントリガーのレート（req/sec）
	TriggerBurst    int           // スキャントリガーのバーストサイズ
	WebhookRate     rate.Limit    // Webhookのレート（req/sec）
	WebhookBurst    int           // Webhookのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// NewRateLimiterConfig は毎分あたりのリクエスト数からレート制限設定を生成する。
func NewRateLimiterConfig(triggerPerMin, webhookPerMin int) RateLimiterConfig {
	return RateLimiterConfig{
		TriggerRate:     rate.Limit(float64(triggerPerMin) / 60.0),
		TriggerBurst:    triggerPerMin,
		WebhookRate:     rate.Limit(float64(webhookPerMin) / 60.0),
		WebhookBurst:    webhookPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
// スキャントリガーのレート制限とWebhookのレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	triggerMu       sync.RWMutex
	triggerLimiters map[string]*clientLimiter

	webhookMu       sync.RWMutex
	webhookLimiters map[string]*clientLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		triggerLimiters: make(map[string]*clientLimiter),
		webhookLimiters: make(map[string]*clientLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// TriggerMiddleware はスキャントリガー専用のレート制限ミドルウェアを返す。
// クライアントIPをキーに制限する。
func (rl *RateLimiter) TriggerMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := clientIPFromRequest(r)

			limiter := rl.getOrCreateTriggerLimiter(clientIP)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.TriggerRate)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", clientIP),
					slog.String("limit_type", "trigger"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WebhookMiddleware はWebhook受信専用のレート制限ミドルウェアを返す。
// スキャントリガーのレート制限とは独立に動作する。
func (rl *RateLimiter) WebhookMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := clientIPFromRequest(r)

			limiter := rl.getOrCreateWebhookLimiter(clientIP)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.WebhookRate)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", clientIP),
					slog.String("limit_type", "webhook"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// getOrCreateTriggerLimiter はクライアントIPに対応するリミッターを取得または生成する。
func (rl *RateLimiter) getOrCreateTriggerLimiter(clientIP string) *rate.Limiter {
	rl.triggerMu.Lock()
	defer rl.triggerMu.Unlock()

	cl, ok := rl.triggerLimiters[clientIP]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rl.config.TriggerRate, rl.config.TriggerBurst),
		}
		rl.triggerLimiters[clientIP] = cl
	}
	cl.lastAccess = time.Now()

	return cl.limiter
}

// getOrCreateWebhookLimiter はクライアントIPに対応するリミッターを取得または生成する。
func (rl *RateLimiter) getOrCreateWebhookLimiter(clientIP string) *rate.Limiter {
	rl.webhookMu.Lock()
	defer rl.webhookMu.Unlock()

	cl, ok := rl.webhookLimiters[clientIP]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rl.config.WebhookRate, rl.config.WebhookBurst),
		}
		rl.webhookLimiters[clientIP] = cl
	}
	cl.lastAccess = time.Now()

	return cl.limiter
}

// cleanupLoop は定期的に期限切れエントリを削除する。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.triggerMu.Lock()
	for clientIP, cl := range rl.triggerLimiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.triggerLimiters, clientIP)
		}
	}
	rl.triggerMu.Unlock()

	rl.webhookMu.Lock()
	for clientIP, cl := range rl.webhookLimiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(rl.webhookLimiters, clientIP)
		}
	}
	rl.webhookMu.Unlock()
}

// clientIPFromRequest はリクエストからクライアントIPを取り出す。
// ポート部を除いたIPのみを返す。分離できない場合はRemoteAddrをそのまま使う。
func clientIPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "Too many requests. Please try again later.",
		"category": "system",
		"action":   "Please wait and retry after the specified time.",
	})
}
