// Package model はドメインモデルを定義する。
package model

import "time"

// EmailStatus はユーザーのメール受信可否状態を表す。
type EmailStatus string

const (
	// EmailStatusActive はメール送信可能な状態。
	EmailStatusActive EmailStatus = "active"
	// EmailStatusBounced はバウンスによりメール送信が停止された状態。
	EmailStatusBounced EmailStatus = "bounced"
	// EmailStatusComplained は苦情（スパム報告）によりメール送信が停止された状態。
	EmailStatusComplained EmailStatus = "complained"
	// EmailStatusSuppressed は管理者操作によりメール送信が停止された状態。
	EmailStatusSuppressed EmailStatus = "suppressed"
)

// PlanTier は課金プランの階層を表す。
type PlanTier string

const (
	// PlanTierFree は無料プラン。
	PlanTierFree PlanTier = "free"
	// PlanTierStarter はスタータープラン。
	PlanTierStarter PlanTier = "starter"
	// PlanTierPro はプロプラン。
	PlanTierPro PlanTier = "pro"
)

// User はサービス利用ユーザーを表す。
// メールのバウンス/苦情状態と課金プランを保持し、
// 通知メール送信可否の判定に使用される。
type User struct {
	ID                   string
	NID                  string // 公開用の短い識別子（nanoid）
	Email                string
	Name                 string
	PlanTier             PlanTier
	EmailStatus          EmailStatus
	EmailStatusUpdatedAt *time.Time
	EmailBounceReason    string
	BounceCount          int
	LastBounceAt         *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CanReceiveEmails はユーザーがメールを受信可能な状態かを返す。
func (u *User) CanReceiveEmails() bool {
	return u.EmailStatus == EmailStatusActive
}
