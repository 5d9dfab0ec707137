package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/foodmark/internal/model"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

// --- DELETE /api/users/me テスト ---

func TestUserHandler_Withdraw_Success(t *testing.T) {
	withdrawCalled := false
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			withdrawCalled = true
			if userID != "user-123" {
				t.Errorf("userID = %q, want %q", userID, "user-123")
			}
			return nil
		},
	}

	h := NewUserHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	if !withdrawCalled {
		t.Error("expected Withdraw to be called")
	}
}

func TestUserHandler_Withdraw_NoUserID_ReturnsUnauthorized(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	// ユーザーIDを注入しない
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestUserHandler_Withdraw_UserNotFound(t *testing.T) {
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			return model.NewUserNotFoundError()
		},
	}

	h := NewUserHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestUserHandler_Withdraw_InternalError(t *testing.T) {
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			return errors.New("transaction failed")
		},
	}

	h := NewUserHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
}

// TestUserHandler_Withdraw_ClearsSessionCookie は退会後にセッションCookieを消すことを検証する。
func TestUserHandler_Withdraw_ClearsSessionCookie(t *testing.T) {
	h := NewUserHandler(&mockUserService{}, AuthHandlerConfig{CookieDomain: "foodmark.example", CookieSecure: true})

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req = withUserID(req, "user-123")
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected session cookie to be cleared")
	}
	if sessionCookie.MaxAge != -1 {
		t.Errorf("MaxAge = %d, want -1", sessionCookie.MaxAge)
	}
	if !sessionCookie.Secure || sessionCookie.Domain != "foodmark.example" {
		t.Errorf("cookie = %+v, want secure cookie on foodmark.example", sessionCookie)
	}
}

// TestUserHandler_Withdraw_FailureKeepsCookie は退会に失敗した場合はセッションを残すことを検証する。
func TestUserHandler_Withdraw_FailureKeepsCookie(t *testing.T) {
	svc := &mockUserService{
		withdrawFn: func(ctx context.Context, userID string) error {
			return &model.GatewayError{Op: "delete", List: model.ListVisited, Err: errors.New("timeout")}
		},
	}
	h := NewUserHandler(svc, AuthHandlerConfig{})

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/users/me", nil), "user-123")
	w := httptest.NewRecorder()

	h.Withdraw(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Errorf("cookies = %v, want none", w.Result().Cookies())
	}
}
