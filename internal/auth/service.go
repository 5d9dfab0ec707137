// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/foodmark/internal/model"
	"github.com/hitoshi/foodmark/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// IdentityObserver はアイデンティティの取得と喪失を受け取る。
// membership.Registryが実装し、個人リストの読み込みと破棄を行う。
type IdentityObserver interface {
	SignedIn(ctx context.Context, userID string)
	SignedOut(userID string)
}

type noopObserver struct{}

func (noopObserver) SignedIn(context.Context, string) {}
func (noopObserver) SignedOut(string)                 {}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithIdentityObserver はサインイン・サインアウトの通知先を設定する。
func WithIdentityObserver(o IdentityObserver) Option {
	return func(s *Service) { s.observer = o }
}

// WithLogger はロガーを設定する。未指定の場合はslog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	observer    IdentityObserver
	logger      *slog.Logger
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
	opts ...Option,
) *Service {
	s := &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		observer:    noopObserver{},
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 初回ログインの場合はusersとidentitiesを同時に作成する。
// セッション発行後にIdentityObserverへ通知し、個人リストの読み込みを始めさせる。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	userID, err := s.resolveUser(ctx, userInfo)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.observer.SignedIn(ctx, userID)
	return session, nil
}

// resolveUser はIdPアカウントに紐付くユーザーIDを返す。無ければ作成する。
func (s *Service) resolveUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}
	if identity != nil {
		s.logger.Info("existing user logged in",
			slog.String("user_id", identity.UserID),
			slog.String("provider", info.Provider),
		)
		return identity.UserID, nil
	}

	now := s.now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     info.Email,
		Name:      info.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUser.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}

	err = s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity)
	if errors.Is(err, repository.ErrConstraintViolation) {
		// 同じアカウントの初回ログインが並行し、先に作成された
		identity, findErr := s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
		if findErr == nil && identity != nil {
			return identity.UserID, nil
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	s.logger.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("provider", info.Provider),
	)
	return newUser.ID, nil
}

// Logout はセッションを破棄し、そのユーザーの個人リストを手放す。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to find session: %w", err)
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if session != nil {
		s.observer.SignedOut(session.UserID)
		s.logger.Info("user logged out", slog.String("user_id", session.UserID))
	}
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
// セッションが無効な場合はmodel.ErrAuthRequiredを返す。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, model.ErrAuthRequired
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.Expired(s.now()) {
		return nil, model.ErrAuthRequired
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
