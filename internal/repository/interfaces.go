// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/foodmark/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
var ErrNotFound = errors.New("record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、個人リスト、投稿はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// FavoriteRepository はお気に入りの永続化インターフェース。
type FavoriteRepository interface {
	// ListByUserID はユーザーのお気に入りを全件取得する。
	// 不正な行は読み飛ばされ、重複は先頭の行が優先される。
	ListByUserID(ctx context.Context, userID string) ([]model.FavoriteEntry, error)

	// Insert はお気に入りを追加する。既に存在する場合はメモを上書きする。
	Insert(ctx context.Context, userID, itemID, note string) error

	// Delete はお気に入りを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID, itemID string) error

	// UpdateNote はメモを更新する。対象が存在しない場合はErrNotFoundを返す。
	UpdateNote(ctx context.Context, userID, itemID, note string) error

	// DeleteByUserID はユーザーのお気に入りを全て削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// WishlistRepository は行ってみたいリストの永続化インターフェース。
type WishlistRepository interface {
	// ListByUserID はユーザーの行ってみたいリストを全件取得する。
	ListByUserID(ctx context.Context, userID string) ([]model.WishlistEntry, error)

	// Insert は項目を追加する。既に存在する場合は何もしない。
	Insert(ctx context.Context, userID, itemID string) error

	// Delete は項目を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID, itemID string) error

	// DeleteByUserID はユーザーの行ってみたいリストを全て削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// VisitedRepository は行ったリストの永続化インターフェース。
type VisitedRepository interface {
	// ListByUserID はユーザーの行ったリストを全件取得する。
	ListByUserID(ctx context.Context, userID string) ([]model.VisitedEntry, error)

	// Insert は評価・メモなしで項目を追加する。既に存在する場合は何もしない。
	Insert(ctx context.Context, userID, itemID string) error

	// Delete は項目を削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, userID, itemID string) error

	// Upsert は評価とメモを設定する。項目が無ければ追加する。
	Upsert(ctx context.Context, userID, itemID string, details model.VisitedDetails) error

	// DeleteByUserID はユーザーの行ったリストを全て削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SubmissionRepository はユーザー投稿の永続化インターフェース。
type SubmissionRepository interface {
	// Create は未承認の投稿を作成する。
	Create(ctx context.Context, submission *model.Submission) error

	// ListApproved は承認済みの投稿を作成日時の新しい順に取得する。
	ListApproved(ctx context.Context) ([]*model.Submission, error)
}
