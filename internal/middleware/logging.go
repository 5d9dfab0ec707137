package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// requestInfoContextKey はログ用のリクエスト情報を格納するキー。
var requestInfoContextKey = contextKey("request_info")

// requestInfo は内側のミドルウェアが判明させた情報をロギングミドルウェアに戻すための入れ物。
// セッションミドルウェアはロギングより内側で動くため、コンテキストの値だけでは外側に伝わらない。
type requestInfo struct {
	mu     sync.Mutex
	userID string
}

func (i *requestInfo) setUserID(userID string) {
	i.mu.Lock()
	i.userID = userID
	i.mu.Unlock()
}

func (i *requestInfo) getUserID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.userID
}

func requestInfoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoContextKey).(*requestInfo)
	return info
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_id（認証済みの場合）を含む。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			info := requestInfoFrom(r.Context())
			if info == nil {
				info = &requestInfo{}
				r = r.WithContext(context.WithValue(r.Context(), requestInfoContextKey, info))
			}
			// 外側で既にユーザーIDが決まっている場合（テストなど）
			if userID := OptionalUserID(r.Context()); userID != "" {
				info.setUserID(userID)
			}

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}
			if userID := info.getUserID(); userID != "" {
				args = append(args, slog.String("user_id", userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}
