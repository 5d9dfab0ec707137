package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/foodmark/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	WriteRate       rate.Limit    // リスト変更・投稿のレート（req/sec）
	WriteBurst      int           // リスト変更・投稿のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min、リスト変更 30 req/min（ユーザーごと、未ログインはIPごと）
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 30)
}

// NewRateLimiterConfig は1分あたりの許容回数からレート制限設定を生成する。
// バーストは1分間の許容回数と同じにする。
func NewRateLimiterConfig(generalPerMinute, writePerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		WriteRate:       rate.Limit(float64(writePerMinute) / 60.0),
		WriteBurst:      writePerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet は1種類のレート制限についてクライアントごとのリミッターを管理する。
type limiterSet struct {
	name  string
	rate  rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

func newLimiterSet(name string, r rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		name:     name,
		rate:     r,
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

// allow はクライアントのトークンを1つ消費できるかを返す。
func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	cl, exists := s.limiters[key]
	if !exists {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.rate, s.burst)}
		s.limiters[key] = cl
	}
	cl.lastAccess = now
	s.mu.Unlock()

	return cl.limiter.AllowN(now, 1)
}

func (s *limiterSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// evict は最終アクセスからttlを超えたエントリを削除する。
func (s *limiterSet) evict(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cl := range s.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

// RateLimiter はクライアントごとのレート制限を管理する。
// API全般のレート制限とリスト変更のレート制限の2種類を提供する。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterSet
	write   *limiterSet
	now     func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterSet("general", config.GeneralRate, config.GeneralBurst),
		write:   newLimiterSet("write", config.WriteRate, config.WriteBurst),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go rl.cleanupLoop()
	}

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// セッションミドルウェアの後に置くとユーザー単位、それ以外はクライアントIP単位で制限する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// WriteMiddleware はリスト変更・投稿専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) WriteMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.write)
}

func (rl *RateLimiter) middleware(set *limiterSet) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !set.allow(key, rl.now()) {
				writeRateLimitResponse(w, set.rate)
				slog.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("limit_type", set.name),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// WriteLimiterCount は現在管理されているリスト変更リミッターのエントリ数を返す。
func (rl *RateLimiter) WriteLimiterCount() int {
	return rl.write.count()
}

// clientKey はレート制限の単位を決める。ログイン中はユーザーID、未ログインはIP。
func clientKey(r *http.Request) string {
	if userID := OptionalUserID(r.Context()); userID != "" {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
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
	now := rl.now()
	rl.general.evict(now, ttl)
	rl.write.evict(now, ttl)
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
