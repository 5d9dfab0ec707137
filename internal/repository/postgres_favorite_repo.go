package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/foodmark/internal/model"
)

// PostgresFavoriteRepo はPostgreSQLを使用したお気に入りリポジトリ。
type PostgresFavoriteRepo struct {
	db *sql.DB
}

// NewPostgresFavoriteRepo はPostgresFavoriteRepoを生成する。
func NewPostgresFavoriteRepo(db *sql.DB) *PostgresFavoriteRepo {
	return &PostgresFavoriteRepo{db: db}
}

// ListByUserID はユーザーのお気に入りを登録順に全件取得する。
func (r *PostgresFavoriteRepo) ListByUserID(ctx context.Context, userID string) ([]model.FavoriteEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT mon_an_id, note FROM favorites WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("お気に入りの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var raw []favoriteRow
	for rows.Next() {
		var row favoriteRow
		if err := rows.Scan(&row.ItemID, &row.Note); err != nil {
			return nil, fmt.Errorf("お気に入りの読み込みに失敗しました: %w", err)
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("お気に入りの読み込みに失敗しました: %w", err)
	}

	entries, report := mapFavoriteRows(raw)
	report.logIfDirty(model.ListFavorites, userID)
	return entries, nil
}

// Insert はお気に入りを追加する。
// UNIQUE(user_id, mon_an_id)制約を利用したINSERT ON CONFLICTで、既存の場合はメモを上書きする。
func (r *PostgresFavoriteRepo) Insert(ctx context.Context, userID, itemID, note string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO favorites (user_id, mon_an_id, note)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, mon_an_id) DO UPDATE SET
		     note = EXCLUDED.note,
		     updated_at = now()`,
		userID, itemID, note,
	)
	if err != nil {
		return translateWriteError(err, "お気に入りの追加に失敗しました")
	}
	return nil
}

// Delete はお気に入りを削除する。
func (r *PostgresFavoriteRepo) Delete(ctx context.Context, userID, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND mon_an_id = $2`,
		userID, itemID,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの削除に失敗しました: %w", err)
	}
	return nil
}

// UpdateNote はお気に入りのメモを更新する。対象が存在しない場合はErrNotFoundを返す。
func (r *PostgresFavoriteRepo) UpdateNote(ctx context.Context, userID, itemID, note string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE favorites SET note = $3, updated_at = now()
		 WHERE user_id = $1 AND mon_an_id = $2`,
		userID, itemID, note,
	)
	if err != nil {
		return fmt.Errorf("お気に入りのメモ更新に失敗しました: %w", err)
	}
	return requireAffected(result, "お気に入りのメモ更新に失敗しました")
}

// DeleteByUserID はユーザーのお気に入りを全て削除する。
func (r *PostgresFavoriteRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーのお気に入りの削除に失敗しました: %w", err)
	}
	return nil
}

// requireAffected は更新件数が0の場合にErrNotFoundを返す。
func requireAffected(result sql.Result, action string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: 更新件数の取得に失敗: %w", action, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", action, ErrNotFound)
	}
	return nil
}

// compile-time interface check
var _ FavoriteRepository = (*PostgresFavoriteRepo)(nil)
