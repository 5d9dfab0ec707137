// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/foodmark/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 認証済みユーザーIDをリクエストコンテキストに注入するミドルウェアを返す。
// 有効なセッションが無いリクエストには401 AUTH_REQUIREDを返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := resolveUserID(r, sessionFinder)
			if userID == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.ErrAuthRequired)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
		})
	}
}

// NewOptionalSessionMiddleware はセッションがあればユーザーIDを注入し、
// 無ければ未ログインのまま次のハンドラーに渡すミドルウェアを返す。
// 閲覧系のAPIでリストの所属情報を付けるかどうかの判定に使う。
func NewOptionalSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID := resolveUserID(r, sessionFinder); userID != "" {
				r = r.WithContext(withUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolveUserID はCookieのセッションを検証し、有効ならユーザーIDを返す。
func resolveUserID(r *http.Request, sessionFinder SessionFinder) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	session, err := sessionFinder.FindByID(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to find session",
			slog.String("error", err.Error()),
		)
		return ""
	}
	// リポジトリはDB時刻で期限を見ているが、時計のずれに備えて手元でも確認する
	if session == nil || session.Expired(time.Now()) {
		return ""
	}
	return session.UserID
}

// withUserID はコンテキストにユーザーIDを注入し、リクエストログにも記録させる。
func withUserID(ctx context.Context, userID string) context.Context {
	if info := requestInfoFrom(ctx); info != nil {
		info.setUserID(userID)
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// OptionalUserID はコンテキストのユーザーIDを返す。未ログインの場合は空文字。
func OptionalUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDContextKey).(string)
	return userID
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return withUserID(ctx, userID)
}
