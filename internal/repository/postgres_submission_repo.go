package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/foodmark/internal/model"
)

// PostgresSubmissionRepo はPostgreSQLを使用したユーザー投稿リポジトリ。
type PostgresSubmissionRepo struct {
	db *sql.DB
}

// NewPostgresSubmissionRepo はPostgresSubmissionRepoを生成する。
func NewPostgresSubmissionRepo(db *sql.DB) *PostgresSubmissionRepo {
	return &PostgresSubmissionRepo{db: db}
}

// Create は未承認の投稿を作成する。承認状態は常にfalseで保存する。
func (r *PostgresSubmissionRepo) Create(ctx context.Context, s *model.Submission) error {
	images := s.Images
	if images == nil {
		images = []string{}
	}
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO submitted_items (
		     id, user_id, name, category_id, images, description, address, city,
		     google_map_url, facebook_url, tags, price_min, price_max,
		     opening_hours, phone, is_approved, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, false, $16)`,
		s.ID, s.UserID, s.Name, s.CategoryID, pq.Array(images), s.Description, s.Address, s.City,
		s.GoogleMapURL, s.FacebookURL, pq.Array(tags), nullableInt(s.PriceMin), nullableInt(s.PriceMax),
		s.OpeningHours, s.Phone, s.CreatedAt,
	)
	if err != nil {
		return translateWriteError(err, "投稿の作成に失敗しました")
	}
	return nil
}

// ListApproved は承認済みの投稿を作成日時の新しい順に取得する。
func (r *PostgresSubmissionRepo) ListApproved(ctx context.Context) ([]*model.Submission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, category_id, images, description, address, city,
		        google_map_url, facebook_url, tags, price_min, price_max,
		        opening_hours, phone, is_approved, created_at
		 FROM submitted_items
		 WHERE is_approved = true
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("承認済み投稿の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var submissions []*model.Submission
	for rows.Next() {
		s := &model.Submission{}
		var priceMin, priceMax sql.NullInt64
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Name, &s.CategoryID, pq.Array(&s.Images), &s.Description, &s.Address, &s.City,
			&s.GoogleMapURL, &s.FacebookURL, pq.Array(&s.Tags), &priceMin, &priceMax,
			&s.OpeningHours, &s.Phone, &s.IsApproved, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("承認済み投稿の読み込みに失敗しました: %w", err)
		}
		s.PriceMin = intFromNull(priceMin)
		s.PriceMax = intFromNull(priceMax)
		submissions = append(submissions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("承認済み投稿の読み込みに失敗しました: %w", err)
	}

	return submissions, nil
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// compile-time interface check
var _ SubmissionRepository = (*PostgresSubmissionRepo)(nil)
