package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/foodmark/internal/model"
)

// PostgresVisitedRepo はPostgreSQLを使用した行ったリストのリポジトリ。
type PostgresVisitedRepo struct {
	db *sql.DB
}

// NewPostgresVisitedRepo はPostgresVisitedRepoを生成する。
func NewPostgresVisitedRepo(db *sql.DB) *PostgresVisitedRepo {
	return &PostgresVisitedRepo{db: db}
}

// ListByUserID はユーザーの行ったリストを登録順に全件取得する。
func (r *PostgresVisitedRepo) ListByUserID(ctx context.Context, userID string) ([]model.VisitedEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT mon_an_id, rating, notes FROM visited WHERE user_id = $1 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("行ったリストの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var raw []visitedRow
	for rows.Next() {
		var row visitedRow
		if err := rows.Scan(&row.ItemID, &row.Rating, &row.Notes); err != nil {
			return nil, fmt.Errorf("行ったリストの読み込みに失敗しました: %w", err)
		}
		raw = append(raw, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("行ったリストの読み込みに失敗しました: %w", err)
	}

	entries, report := mapVisitedRows(raw)
	report.logIfDirty(model.ListVisited, userID)
	return entries, nil
}

// Insert は評価・メモなしで項目を追加する。既に存在する場合は何もしない。
func (r *PostgresVisitedRepo) Insert(ctx context.Context, userID, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO visited (user_id, mon_an_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, mon_an_id) DO NOTHING`,
		userID, itemID,
	)
	if err != nil {
		return translateWriteError(err, "行ったリストへの追加に失敗しました")
	}
	return nil
}

// Delete は項目を削除する。
func (r *PostgresVisitedRepo) Delete(ctx context.Context, userID, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM visited WHERE user_id = $1 AND mon_an_id = $2`,
		userID, itemID,
	)
	if err != nil {
		return fmt.Errorf("行ったリストからの削除に失敗しました: %w", err)
	}
	return nil
}

// Upsert は評価とメモを設定する。項目が無ければ追加し、あれば両方を上書きする。
func (r *PostgresVisitedRepo) Upsert(ctx context.Context, userID, itemID string, details model.VisitedDetails) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO visited (user_id, mon_an_id, rating, notes)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, mon_an_id) DO UPDATE SET
		     rating = EXCLUDED.rating,
		     notes = EXCLUDED.notes,
		     updated_at = now()`,
		userID, itemID, nullableInt(details.Rating), nullableString(details.Notes),
	)
	if err != nil {
		return translateWriteError(err, "行ったリストの更新に失敗しました")
	}
	return nil
}

// DeleteByUserID はユーザーの行ったリストを全て削除する。
func (r *PostgresVisitedRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM visited WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの行ったリストの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ VisitedRepository = (*PostgresVisitedRepo)(nil)
