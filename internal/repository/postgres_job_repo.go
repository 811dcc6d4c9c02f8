package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
)

// PostgresJobRepo はPostgreSQLを使用したジョブリポジトリ。
type PostgresJobRepo struct {
	db *sql.DB
}

// NewPostgresJobRepo はPostgresJobRepoを生成する。
func NewPostgresJobRepo(db *sql.DB) *PostgresJobRepo {
	return &PostgresJobRepo{db: db}
}

const jobColumns = `id, job_type, payload, status, attempts, max_attempts,
	        run_at, last_error, created_at, updated_at`

// scanJob は1行分のジョブデータをスキャンする。
func scanJob(row interface{ Scan(...any) error }) (*model.Job, error) {
	job := &model.Job{}

	err := row.Scan(
		&job.ID, &job.Type, &job.Payload, &job.Status,
		&job.Attempts, &job.MaxAttempts, &job.RunAt,
		&job.LastError, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return job, nil
}

// Enqueue はジョブをキューに登録する。
func (r *PostgresJobRepo) Enqueue(ctx context.Context, job *model.Job) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, job_type, payload, status, attempts,
		        max_attempts, run_at, last_error, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.Type, job.Payload, job.Status, job.Attempts,
		job.MaxAttempts, job.RunAt, job.LastError,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ジョブの登録に失敗しました: %w", err)
	}
	return nil
}

// ClaimDue は実行時刻を迎えたジョブを最大limit件取得し、runningに遷移させる。
// FOR UPDATE SKIP LOCKEDにより複数ワーカーが同じジョブを取得することはない。
func (r *PostgresJobRepo) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT `+jobColumns+`
		 FROM jobs
		 WHERE status = 'pending' AND run_at <= $1
		 ORDER BY run_at ASC
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("実行対象ジョブの取得に失敗しました: %w", err)
	}

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("ジョブデータのスキャンに失敗しました: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("ジョブデータの読み取りに失敗しました: %w", err)
	}
	rows.Close()

	for _, job := range jobs {
		_, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = 'running', attempts = attempts + 1,
			        updated_at = now()
			 WHERE id = $1`,
			job.ID,
		)
		if err != nil {
			return nil, fmt.Errorf("ジョブの実行中への遷移に失敗しました: %w", err)
		}
		job.Status = model.JobStatusRunning
		job.Attempts++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return jobs, nil
}

// MarkSucceeded はジョブを成功として記録する。
func (r *PostgresJobRepo) MarkSucceeded(ctx context.Context, jobID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'succeeded', last_error = NULL,
		        updated_at = now()
		 WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("ジョブの成功記録に失敗しました: %w", err)
	}
	return nil
}

// MarkRetry はジョブを再試行待ちに戻す。runAtが次回の実行時刻となる。
func (r *PostgresJobRepo) MarkRetry(ctx context.Context, jobID string, runAt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'pending', run_at = $2, last_error = $3,
		        updated_at = now()
		 WHERE id = $1`,
		jobID, runAt, lastError,
	)
	if err != nil {
		return fmt.Errorf("ジョブの再試行登録に失敗しました: %w", err)
	}
	return nil
}

// MarkDead は再試行回数を使い切ったジョブを失敗として確定させる。
func (r *PostgresJobRepo) MarkDead(ctx context.Context, jobID string, lastError string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'dead', last_error = $2, updated_at = now()
		 WHERE id = $1`,
		jobID, lastError,
	)
	if err != nil {
		return fmt.Errorf("ジョブの失敗確定に失敗しました: %w", err)
	}
	return nil
}

// RequeueStuck はrunningのまま放置されたジョブをpendingに戻す。
// ワーカーのクラッシュでジョブが宙に浮いた場合の回復処理。
func (r *PostgresJobRepo) RequeueStuck(ctx context.Context, olderThan time.Time) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'pending', updated_at = now()
		 WHERE status = 'running' AND updated_at < $1`,
		olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("滞留ジョブの再登録に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("再登録件数の取得に失敗しました: %w", err)
	}
	return int(affected), nil
}
