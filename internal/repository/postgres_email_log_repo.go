package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
)

// PostgresEmailLogRepo はPostgreSQLを使用したメール送信ログリポジトリ。
type PostgresEmailLogRepo struct {
	db *sql.DB
}

// NewPostgresEmailLogRepo はPostgresEmailLogRepoを生成する。
func NewPostgresEmailLogRepo(db *sql.DB) *PostgresEmailLogRepo {
	return &PostgresEmailLogRepo{db: db}
}

// Create はメール送信ログを記録する。
func (r *PostgresEmailLogRepo) Create(ctx context.Context, log *model.EmailLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO email_logs (id, user_id, subscription_id, recipient_email,
		        subject, email_type, status, provider_msg_id, error_message,
		        sent_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		log.ID, log.UserID, nullString(log.SubscriptionID),
		log.RecipientEmail, log.Subject, log.EmailType, log.Status,
		log.ProviderMsgID, log.ErrorMessage,
		nullTime(log.SentAt), log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("メール送信ログの記録に失敗しました: %w", err)
	}
	return nil
}

// MarkSent はログを送信完了として更新する。
func (r *PostgresEmailLogRepo) MarkSent(ctx context.Context, id, providerMsgID string, sentAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE email_logs SET status = 'sent', provider_msg_id = $2, sent_at = $3
		 WHERE id = $1`,
		id, providerMsgID, sentAt,
	)
	if err != nil {
		return fmt.Errorf("メール送信ログの送信完了記録に失敗しました: %w", err)
	}
	return nil
}

// MarkFailed はログを送信失敗（またはスキップ）として更新する。
func (r *PostgresEmailLogRepo) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE email_logs SET status = 'failed', error_message = $2
		 WHERE id = $1`,
		id, reason,
	)
	if err != nil {
		return fmt.Errorf("メール送信ログの失敗記録に失敗しました: %w", err)
	}
	return nil
}

// CountForUserSince は指定時刻以降にユーザー宛に送信されたメール数を返す。
// プランごとの日次送信上限の判定に使用する。
func (r *PostgresEmailLogRepo) CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM email_logs
		 WHERE user_id = $1 AND status = 'sent' AND created_at >= $2`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("メール送信数の取得に失敗しました: %w", err)
	}
	return count, nil
}
