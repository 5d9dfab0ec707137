// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/foodmark/internal/model"
	"github.com/hitoshi/foodmark/internal/repository"
)

// ListDeleter は個人リスト1種類分の一括削除インターフェース。
type ListDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// StoreReleaser はメモリ上の個人リストを破棄する。membership.Registryが実装する。
type StoreReleaser interface {
	Release(userID string)
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	lists       map[model.ListKind]ListDeleter
	releaser    StoreReleaser
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// listsのnil要素は削除対象から外す（usersのCASCADEに任せる）。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	lists map[model.ListKind]ListDeleter,
	releaser StoreReleaser,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		lists:       lists,
		releaser:    releaser,
		logger:      logger,
	}
}

// withdrawOrder は個人リストを削除する順序。
var withdrawOrder = []model.ListKind{model.ListFavorites, model.ListWishlist, model.ListVisited}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: メモリ上のリスト → favorites → wishlist → visited → sessions → user
// （identities、submitted_itemsはCASCADE削除）
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	s.logger.Info("退会処理を開始します", slog.String("user_id", userID))

	// 以降の削除が途中で失敗しても、古いリストを返し続けないよう先に手放す
	if s.releaser != nil {
		s.releaser.Release(userID)
	}

	for _, kind := range withdrawOrder {
		deleter := s.lists[kind]
		if deleter == nil {
			continue
		}
		if err := deleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("%sの削除に失敗しました: %w", kind.Label(), err)
		}
	}

	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// 並行した退会で先に削除された
			return model.NewUserNotFoundError()
		}
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	s.logger.Info("退会処理が完了しました", slog.String("user_id", userID))
	return nil
}
