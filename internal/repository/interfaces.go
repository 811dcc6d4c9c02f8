// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。
	// メールアドレスは小文字に正規化して照合する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateEmailStatus はユーザーのメール受信状態を更新する。
	// email_status、email_status_updated_at、email_bounce_reason、
	// bounce_count、last_bounce_atを更新する。
	UpdateEmailStatus(ctx context.Context, user *model.User) error
}

// SubscriptionRepository は購読データの永続化インターフェース。
type SubscriptionRepository interface {
	// FindByID は指定IDの購読を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Subscription, error)

	// FindByNID は公開識別子で購読を検索する。見つからない場合はnilを返す。
	FindByNID(ctx context.Context, nid string) (*model.Subscription, error)

	// ListEnabled は有効な購読をすべて取得する。
	// スキャナーが実行判定のために使用する読み取り専用クエリ。
	ListEnabled(ctx context.Context) ([]*model.Subscription, error)

	// CountByUserID はユーザーの購読数を返す。
	CountByUserID(ctx context.Context, userID string) (int, error)

	// Create は購読を作成する。
	Create(ctx context.Context, sub *model.Subscription) error

	// Update は購読の設定（名前、cron式、タイムゾーン、エンドポイント、
	// 有効フラグ、next_run_at）を更新する。
	Update(ctx context.Context, sub *model.Subscription) error

	// UpdateRunState はフェッチ成功後の実行状態を更新する。
	// last_run_at、next_run_at、failure_count、last_failure_atを更新する。
	UpdateRunState(ctx context.Context, sub *model.Subscription) error

	// DisableByUserID は指定ユーザーの有効な購読をすべて無効化する。
	// バウンス/苦情によるメール送信停止時に使用する。無効化した件数を返す。
	DisableByUserID(ctx context.Context, userID string) (int, error)

	// Delete は指定IDの購読を削除する。
	Delete(ctx context.Context, id string) error
}

// JobRepository は永続ジョブキューの操作インターフェース。
// at-least-once配信: ClaimDueで取得したジョブは処理完了時に
// MarkSucceeded/MarkRetry/MarkDeadのいずれかで状態を確定させること。
type JobRepository interface {
	// Enqueue はジョブをキューに登録する。
	Enqueue(ctx context.Context, job *model.Job) error

	// ClaimDue は実行時刻を迎えたpendingジョブを最大limit件取得し、
	// runningに遷移させる。FOR UPDATE SKIP LOCKEDにより
	// 複数ワーカーが同一ジョブを取得しないことを保証する。
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]*model.Job, error)

	// MarkSucceeded はジョブを成功として確定する。
	MarkSucceeded(ctx context.Context, jobID string) error

	// MarkRetry はジョブを失敗として記録し、runAtを指定してpendingに戻す。
	MarkRetry(ctx context.Context, jobID string, runAt time.Time, lastError string) error

	// MarkDead はリトライ上限に達したジョブを打ち切りとして確定する。
	MarkDead(ctx context.Context, jobID string, lastError string) error

	// RequeueStuck はrunningのまま一定時間経過したジョブをpendingに戻す。
	// ワーカーのクラッシュ等で確定されなかったジョブの回収に使用する。
	// 戻した件数を返す。
	RequeueStuck(ctx context.Context, olderThan time.Time) (int, error)
}

// EmailLogRepository はメール送信ログの永続化インターフェース。
type EmailLogRepository interface {
	// Create はメール送信ログを作成する。
	Create(ctx context.Context, log *model.EmailLog) error

	// MarkSent はログを送信完了として更新する。
	MarkSent(ctx context.Context, id, providerMsgID string, sentAt time.Time) error

	// MarkFailed はログを送信失敗（またはスキップ）として更新する。
	MarkFailed(ctx context.Context, id, reason string) error

	// CountForUserSince は指定時刻以降にユーザーへ送信されたメール数を返す。
	// プランのデイリークォータ判定に使用する。statusがsentのログのみを数える。
	CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error)
}
