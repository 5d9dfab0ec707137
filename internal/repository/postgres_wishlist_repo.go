package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/foodmark/internal/model"
)

// PostgresWishlistRepo はPostgreSQLを使用した行ってみたいリストのリポジトリ。
type PostgresWishlistRepo struct {
	db *sql.DB
}

// NewPostgresWishlistRepo はPostgresWishlistRepoを生成する。
func NewPostgresWishlistRepo(db *sql.DB) *PostgresWishlistRepo {
	return &PostgresWishlistRepo{db: db}
}

// ListByUserID はユーザーの行ってみたいリストを登録順に全件取得する。
func (r *PostgresWishlistRepo) ListByUserID(ctx context.Context, userID string) ([]model.WishlistEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT mon_an_id FROM wishlist WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("行ってみたいリストの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var raw []wishlistRow
	for rows.Next() {
		var row wishlistRow
		if err := rows.Scan(&row.ItemID); err != nil {
			return nil, fmt.Errorf("行ってみたいリストの読み込みに失敗しました: %w", err)
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("行ってみたいリストの読み込みに失敗しました: %w", err)
	}

	entries, report := mapWishlistRows(raw)
	report.logIfDirty(model.ListWishlist, userID)
	return entries, nil
}

// Insert は項目を追加する。既に存在する場合は何もしない。
func (r *PostgresWishlistRepo) Insert(ctx context.Context, userID, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO wishlist (user_id, mon_an_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, mon_an_id) DO NOTHING`,
		userID, itemID,
	)
	if err != nil {
		return translateWriteError(err, "行ってみたいリストへの追加に失敗しました")
	}
	return nil
}

// Delete は項目を削除する。
func (r *PostgresWishlistRepo) Delete(ctx context.Context, userID, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist WHERE user_id = $1 AND mon_an_id = $2`,
		userID, itemID,
	)
	if err != nil {
		return fmt.Errorf("行ってみたいリストからの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの行ってみたいリストを全て削除する。
func (r *PostgresWishlistRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの行ってみたいリストの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ WishlistRepository = (*PostgresWishlistRepo)(nil)
