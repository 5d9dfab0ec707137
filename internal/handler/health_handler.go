package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthChecker はデータベースの疎通確認に使う。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker == nil {
			writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := checker.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Database: "unreachable"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
	}
}
