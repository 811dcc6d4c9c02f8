// Package privilege はプランごとの利用上限の判定を行う。
package privilege

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
)

// Limits はプランの利用上限。
type Limits struct {
	// MaxSubscriptions は作成できる購読数の上限。
	MaxSubscriptions int
	// MaxEmailsPerDay は1日に受信できる通知メール数の上限。
	MaxEmailsPerDay int
}

// tierLimits はプランごとの上限テーブル。
var tierLimits = map[model.PlanTier]Limits{
	model.PlanTierFree:    {MaxSubscriptions: 2, MaxEmailsPerDay: 10},
	model.PlanTierStarter: {MaxSubscriptions: 10, MaxEmailsPerDay: 100},
	model.PlanTierPro:     {MaxSubscriptions: 50, MaxEmailsPerDay: 1000},
}

// LimitsForTier は指定プランの上限を返す。
// 未知のプランはfreeとして扱う。
func LimitsForTier(tier model.PlanTier) Limits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[model.PlanTierFree]
}

// SubscriptionCounter はユーザーの購読数の取得インターフェース。
type SubscriptionCounter interface {
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// EmailCounter はユーザーの送信済みメール数の取得インターフェース。
type EmailCounter interface {
	CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// Service はプランの上限判定サービス。
type Service struct {
	subCounter   SubscriptionCounter
	emailCounter EmailCounter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(subCounter SubscriptionCounter, emailCounter EmailCounter) *Service {
	return &Service{
		subCounter:   subCounter,
		emailCounter: emailCounter,
	}
}

// CanCreateSubscription はユーザーが新しい購読を作成できるかを判定する。
// 上限に達している場合はfalseと理由を返す。
func (s *Service) CanCreateSubscription(ctx context.Context, user *model.User) (bool, string, error) {
	limits := LimitsForTier(user.PlanTier)

	count, err := s.subCounter.CountByUserID(ctx, user.ID)
	if err != nil {
		return false, "", fmt.Errorf("購読数の取得に失敗しました: %w", err)
	}

	if count >= limits.MaxSubscriptions {
		return false, fmt.Sprintf("プラン %s の購読数上限（%d件）に達しています", user.PlanTier, limits.MaxSubscriptions), nil
	}
	return true, "", nil
}

// CanReceiveEmail はユーザーが本日さらに通知メールを受信できるかを判定する。
// 集計対象はUTCの当日0時以降に送信されたメール。
func (s *Service) CanReceiveEmail(ctx context.Context, user *model.User, now time.Time) (bool, string, error) {
	limits := LimitsForTier(user.PlanTier)

	startOfDay := now.UTC().Truncate(24 * time.Hour)
	count, err := s.emailCounter.CountForUserSince(ctx, user.ID, startOfDay)
	if err != nil {
		return false, "", fmt.Errorf("メール送信数の取得に失敗しました: %w", err)
	}

	if count >= limits.MaxEmailsPerDay {
		return false, fmt.Sprintf("プラン %s の日次メール上限（%d通）に達しています", user.PlanTier, limits.MaxEmailsPerDay), nil
	}
	return true, "", nil
}
