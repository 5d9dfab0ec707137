package handler

import (
	"context"
	"net/http"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Withdraw はユーザーの退会処理を実行する。
	// 3つの個人リスト、セッション、ユーザーを削除し、メモリ上のリストも手放す。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	cookies AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
// 退会後にセッションCookieを消すため、認証ハンドラーと同じCookie設定を受け取る。
func NewUserHandler(service UserServiceInterface, cookies AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		cookies: cookies,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.cookies.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
