// Package model はドメインモデルを定義する。
package model

import "time"

// JobType はジョブキューで処理されるジョブの種別を表す。
type JobType string

const (
	// JobTypeFetchSubscriptionData は購読エンドポイントのフェッチジョブ。
	JobTypeFetchSubscriptionData JobType = "fetch_subscription_data"
	// JobTypeSendSubscriptionEmail はフェッチ成功時の通知メールジョブ。
	JobTypeSendSubscriptionEmail JobType = "send_subscription_email"
	// JobTypeSendSubscriptionFailureEmail はフェッチ失敗時の通知メールジョブ。
	JobTypeSendSubscriptionFailureEmail JobType = "send_subscription_failure_email"
)

// JobStatus はジョブの処理状態を表す。
type JobStatus string

const (
	// JobStatusPending は実行待ちの状態。
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning はワーカーが処理中の状態。
	JobStatusRunning JobStatus = "running"
	// JobStatusSucceeded は処理が成功した状態。
	JobStatusSucceeded JobStatus = "succeeded"
	// JobStatusDead はリトライ上限に達して打ち切られた状態。
	JobStatusDead JobStatus = "dead"
)

// Job は永続ジョブキューの1ジョブを表す。
// at-least-once配信であり、同一ジョブが複数回実行される可能性がある。
// ハンドラーは重複実行を許容するように実装すること。
type Job struct {
	ID          string
	Type        JobType
	Payload     []byte // JSONエンコードされたペイロード
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	RunAt       time.Time // この時刻以降に実行可能
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
