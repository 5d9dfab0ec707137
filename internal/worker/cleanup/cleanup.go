// Package cleanup は期限切れセッションと放置された未承認投稿の定期削除ジョブを提供する。
package cleanup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	// TargetSessions は期限切れセッションの削除対象名。
	TargetSessions = "sessions"
	// TargetSubmissions は未承認投稿の削除対象名。
	TargetSubmissions = "submissions"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Recorder は削除件数の記録先。metrics.Collectorが実装する。
type Recorder interface {
	RecordCleanup(target string, deleted int64)
}

type noopRecorder struct{}

func (noopRecorder) RecordCleanup(string, int64) {}

// CleanupJob は期限切れセッションと保持期間を超えた未承認投稿を削除する。
// 削除は冪等で、対象が無くてもエラーにならない。
type CleanupJob struct {
	db       Executor
	logger   *slog.Logger
	recorder Recorder

	RetentionDays int // 未承認投稿の保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderがnilの場合は記録しない。
func NewCleanupJob(db Executor, logger *slog.Logger, recorder Recorder) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		recorder:      recorder,
		RetentionDays: 30,
	}
}

// Run は両方の削除を実行する。片方が失敗しても、もう片方は実行する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessions, sessErr := j.exec(ctx, TargetSessions,
		`DELETE FROM sessions WHERE expires_at <= now()`)
	submissions, subErr := j.exec(ctx, TargetSubmissions,
		`DELETE FROM submitted_items WHERE is_approved = false AND created_at < now() - $1::interval`,
		fmt.Sprintf("%d days", j.RetentionDays))

	if err := errors.Join(sessErr, subErr); err != nil {
		return err
	}

	j.logger.Info("cleanup job completed",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_submissions", submissions),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (j *CleanupJob) exec(ctx context.Context, target, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		j.logger.Error("cleanup failed",
			slog.String("target", target),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("failed to clean up %s: %w", target, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count of %s: %w", target, err)
	}
	j.recorder.RecordCleanup(target, deleted)
	return deleted, nil
}

// RunLoop は起動直後に1回、以降interval毎にRunを実行する。ctxがキャンセルされるまで戻らない。
// Runの失敗はログに残してループを続ける。
func (j *CleanupJob) RunLoop(ctx context.Context, interval time.Duration) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("cleanup loop stopped")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
