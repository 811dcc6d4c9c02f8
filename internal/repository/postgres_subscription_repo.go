package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/cronpost/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

const subscriptionColumns = `id, nid, user_id, name, enabled, cron_expression,
	        timezone, endpoint, last_run_at, next_run_at, failure_count,
	        last_failure_at, created_at, updated_at`

// scanSubscription は1行分の購読データをスキャンする。
func scanSubscription(row interface{ Scan(...any) error }) (*model.Subscription, error) {
	sub := &model.Subscription{}
	var lastRunAt, nextRunAt, lastFailureAt sql.NullTime

	err := row.Scan(
		&sub.ID, &sub.NID, &sub.UserID, &sub.Name, &sub.Enabled,
		&sub.CronExpression, &sub.Timezone, &sub.Endpoint,
		&lastRunAt, &nextRunAt, &sub.FailureCount,
		&lastFailureAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.LastRunAt = nullTimeValue(lastRunAt)
	sub.NextRunAt = nullTimeValue(nextRunAt)
	sub.LastFailureAt = nullTimeValue(lastFailureAt)

	return sub, nil
}

// FindByID は指定IDの購読を取得する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByID(ctx context.Context, id string) (*model.Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("購読の取得に失敗しました: %w", err)
	}
	return sub, nil
}

// FindByNID は公開識別子で購読を検索する。見つからない場合はnilを返す。
func (r *PostgresSubscriptionRepo) FindByNID(ctx context.Context, nid string) (*model.Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE nid = $1`, nid)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("公開識別子による購読の検索に失敗しました: %w", err)
	}
	return sub, nil
}

// ListEnabled は有効な購読をすべて取得する。
// 実行判定はアプリケーション側のcron評価で行うため、
// ここではenabledのみで絞り込む読み取り専用クエリとする。
func (r *PostgresSubscriptionRepo) ListEnabled(ctx context.Context) ([]*model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions
		 WHERE enabled = TRUE
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("有効な購読の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var subs []*model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("購読データのスキャンに失敗しました: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読データの読み取りに失敗しました: %w", err)
	}

	return subs, nil
}

// CountByUserID はユーザーの購読数を返す。
func (r *PostgresSubscriptionRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM subscriptions WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("購読数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Create は購読を作成する。
func (r *PostgresSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, nid, user_id, name, enabled,
		        cron_expression, timezone, endpoint, last_run_at, next_run_at,
		        failure_count, last_failure_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		sub.ID, sub.NID, sub.UserID, sub.Name, sub.Enabled,
		sub.CronExpression, sub.Timezone, sub.Endpoint,
		nullTime(sub.LastRunAt), nullTime(sub.NextRunAt),
		sub.FailureCount, nullTime(sub.LastFailureAt),
		sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("購読の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は購読の設定を更新する。
func (r *PostgresSubscriptionRepo) Update(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET
		    name = $2, enabled = $3, cron_expression = $4,
		    timezone = $5, endpoint = $6, next_run_at = $7, updated_at = now()
		 WHERE id = $1`,
		sub.ID, sub.Name, sub.Enabled, sub.CronExpression,
		sub.Timezone, sub.Endpoint, nullTime(sub.NextRunAt),
	)
	if err != nil {
		return fmt.Errorf("購読の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateRunState はフェッチ後の実行状態を更新する。
func (r *PostgresSubscriptionRepo) UpdateRunState(ctx context.Context, sub *model.Subscription) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET
		    last_run_at = $2, next_run_at = $3, failure_count = $4,
		    last_failure_at = $5, updated_at = now()
		 WHERE id = $1`,
		sub.ID, nullTime(sub.LastRunAt), nullTime(sub.NextRunAt),
		sub.FailureCount, nullTime(sub.LastFailureAt),
	)
	if err != nil {
		return fmt.Errorf("購読の実行状態の更新に失敗しました: %w", err)
	}
	return nil
}

// DisableByUserID は指定ユーザーの有効な購読をすべて無効化する。
func (r *PostgresSubscriptionRepo) DisableByUserID(ctx context.Context, userID string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET enabled = FALSE, updated_at = now()
		 WHERE user_id = $1 AND enabled = TRUE`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("購読の一括無効化に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("無効化件数の取得に失敗しました: %w", err)
	}
	return int(affected), nil
}

// Delete は指定IDの購読を削除する。
func (r *PostgresSubscriptionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("購読の削除に失敗しました: %w", err)
	}
	return nil
}
