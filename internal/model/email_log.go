// Package model はドメインモデルを定義する。
package model

import "time"

// EmailType は送信メールの種別を表す。
type EmailType string

const (
	// EmailTypeSubscription はフェッチ成功時のデータ通知メール。
	EmailTypeSubscription EmailType = "subscription"
	// EmailTypeFailure はフェッチ失敗時の通知メール。
	EmailTypeFailure EmailType = "failure"
)

// EmailLogStatus はメール送信ログの状態を表す。
type EmailLogStatus string

const (
	// EmailLogStatusQueued は送信待ちの状態。
	EmailLogStatusQueued EmailLogStatus = "queued"
	// EmailLogStatusSent は送信が完了した状態。
	EmailLogStatusSent EmailLogStatus = "sent"
	// EmailLogStatusFailed は送信が失敗またはスキップされた状態。
	EmailLogStatusFailed EmailLogStatus = "failed"
)

// EmailLog はメール送信の監査ログを表す。
// 送信スキップ（抑制）の場合も記録し、プランのデイリークォータ計算にも使用される。
type EmailLog struct {
	ID             string
	UserID         string
	SubscriptionID string
	RecipientEmail string
	Subject        string
	EmailType      EmailType
	Status         EmailLogStatus
	ProviderMsgID  string
	ErrorMessage   string
	SentAt         *time.Time
	CreatedAt      time.Time
}
