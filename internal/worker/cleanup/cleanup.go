// Package cleanup は完了ジョブとメールログの自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超過した終端状態のジョブと
// メールログを日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は保持期間を超過したジョブとメールログの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
// pending/runningのジョブは削除対象外。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	RetentionDays int // ジョブとメールログの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は30日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:            db,
		logger:        logger,
		RetentionDays: 30,
	}
}

// Run は保持期間を超過した終端状態のジョブとメールログを削除する。
// created_atがRetentionDays日前より古い行をDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d days", j.RetentionDays)

	jobQuery := `DELETE FROM jobs WHERE status IN ('succeeded', 'dead') AND created_at < now() - $1::interval`
	jobResult, err := j.db.ExecContext(ctx, jobQuery, interval)
	if err != nil {
		j.logger.Error("ジョブクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("ジョブクリーンアップの実行に失敗: %w", err)
	}

	deletedJobs, err := jobResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	logQuery := `DELETE FROM email_logs WHERE created_at < now() - $1::interval`
	logResult, err := j.db.ExecContext(ctx, logQuery, interval)
	if err != nil {
		j.logger.Error("メールログクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("メールログクリーンアップの実行に失敗: %w", err)
	}

	deletedLogs, err := logResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_jobs", deletedJobs),
		slog.Int64("deleted_email_logs", deletedLogs),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
