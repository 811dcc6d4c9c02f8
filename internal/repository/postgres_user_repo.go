package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, nid, email, name, plan_tier, email_status,
	        email_status_updated_at, email_bounce_reason, bounce_count,
	        last_bounce_at, created_at, updated_at`

// scanUser は1行分のユーザーデータをスキャンする。
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var bounceReason sql.NullString
	var statusUpdatedAt, lastBounceAt sql.NullTime

	err := row.Scan(
		&user.ID, &user.NID, &user.Email, &user.Name,
		&user.PlanTier, &user.EmailStatus,
		&statusUpdatedAt, &bounceReason, &user.BounceCount,
		&lastBounceAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.EmailBounceReason = nullStringValue(bounceReason)
	user.EmailStatusUpdatedAt = nullTimeValue(statusUpdatedAt)
	user.LastBounceAt = nullTimeValue(lastBounceAt)

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メールアドレスによるユーザーの検索に失敗しました: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。メールアドレスは小文字に正規化して保存する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, nid, email, name, plan_tier, email_status,
		        bounce_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.NID, strings.ToLower(strings.TrimSpace(user.Email)),
		user.Name, user.PlanTier, user.EmailStatus,
		user.BounceCount, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateEmailStatus はユーザーのメール受信状態を更新する。
func (r *PostgresUserRepo) UpdateEmailStatus(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET
		    email_status = $2, email_status_updated_at = $3,
		    email_bounce_reason = $4, bounce_count = $5,
		    last_bounce_at = $6, updated_at = now()
		 WHERE id = $1`,
		user.ID, user.EmailStatus, nullTime(user.EmailStatusUpdatedAt),
		nullString(user.EmailBounceReason), user.BounceCount,
		nullTime(user.LastBounceAt),
	)
	if err != nil {
		return fmt.Errorf("メール受信状態の更新に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nullTime は*time.Timeをsql.NullTimeに変換する。
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// nullTimeValue はsql.NullTimeから*time.Timeを取得する。
func nullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}
