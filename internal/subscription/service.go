// Package subscription は購読管理のドメインロジックを提供する。
package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/hitoshi/cronpost/internal/cron"
	"github.com/hitoshi/cronpost/internal/model"
	"github.com/hitoshi/cronpost/internal/privilege"
	"github.com/hitoshi/cronpost/internal/repository"
	"github.com/hitoshi/cronpost/internal/security"
)

// nidLength は公開識別子の長さ。
const nidLength = 10

// CreationGate は購読作成の上限判定インターフェース。
type CreationGate interface {
	CanCreateSubscription(ctx context.Context, user *model.User) (bool, string, error)
}

// CreateInput は購読作成の入力。
type CreateInput struct {
	Name           string
	CronExpression string
	Timezone       string
	Endpoint       string
}

// UpdateInput は購読更新の入力。
type UpdateInput struct {
	Name           string
	CronExpression string
	Timezone       string
	Endpoint       string
}

// Service は購読管理のサービス層。
// cron式とエンドポイントの検証、プラン上限の確認、
// 公開識別子の発行、次回実行時刻の計算を行う。
type Service struct {
	subRepo  repository.SubscriptionRepository
	userRepo repository.UserRepository
	gate     CreationGate
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	subRepo repository.SubscriptionRepository,
	userRepo repository.UserRepository,
	gate CreationGate,
) *Service {
	return &Service{
		subRepo:  subRepo,
		userRepo: userRepo,
		gate:     gate,
	}
}

// Create は新しい購読を作成する。
// cron式とエンドポイントを検証し、プランの購読数上限を確認した上で
// 公開識別子を発行し、初回のnext_run_atを計算して保存する。
func (s *Service) Create(ctx context.Context, userID string, input CreateInput) (*model.Subscription, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	allowed, _, err := s.gate.CanCreateSubscription(ctx, user)
	if err != nil {
		return nil, err
	}
	if !allowed {
		limits := privilege.LimitsForTier(user.PlanTier)
		return nil, model.NewSubscriptionLimitError(limits.MaxSubscriptions)
	}

	now := time.Now()
	nextRun, err := s.validateSchedule(input.CronExpression, input.Timezone, now)
	if err != nil {
		return nil, err
	}
	if apiErr := security.ValidateEndpoint(input.Endpoint); apiErr != nil {
		return nil, apiErr
	}

	nid, err := gonanoid.New(nidLength)
	if err != nil {
		return nil, fmt.Errorf("公開識別子の生成に失敗しました: %w", err)
	}

	sub := &model.Subscription{
		ID:             uuid.NewString(),
		NID:            nid,
		UserID:         userID,
		Name:           input.Name,
		Enabled:        true,
		CronExpression: input.CronExpression,
		Timezone:       input.Timezone,
		Endpoint:       input.Endpoint,
		NextRunAt:      &nextRun,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Get は所有者を確認した上で購読を返す。
func (s *Service) Get(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error) {
	return s.findOwned(ctx, userID, subscriptionID)
}

// Update は購読の設定を更新する。
// cron式またはタイムゾーンが変わった場合はnext_run_atを再計算する。
func (s *Service) Update(ctx context.Context, userID, subscriptionID string, input UpdateInput) (*model.Subscription, error) {
	sub, err := s.findOwned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	nextRun, err := s.validateSchedule(input.CronExpression, input.Timezone, now)
	if err != nil {
		return nil, err
	}
	if apiErr := security.ValidateEndpoint(input.Endpoint); apiErr != nil {
		return nil, apiErr
	}

	sub.Name = input.Name
	sub.CronExpression = input.CronExpression
	sub.Timezone = input.Timezone
	sub.Endpoint = input.Endpoint
	sub.NextRunAt = &nextRun
	sub.UpdatedAt = now

	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Enable は購読を有効化する。
// next_run_atを現在時刻から再計算し、連続失敗回数をリセットして
// 縮退状態から復帰させる。
func (s *Service) Enable(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error) {
	sub, err := s.findOwned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	nextRun, err := s.validateSchedule(sub.CronExpression, sub.Timezone, now)
	if err != nil {
		return nil, err
	}

	sub.Enabled = true
	sub.NextRunAt = &nextRun
	sub.UpdatedAt = now
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if sub.FailureCount > 0 {
		sub.FailureCount = 0
		if err := s.subRepo.UpdateRunState(ctx, sub); err != nil {
			return nil, err
		}
	}

	return sub, nil
}

// Disable は購読を無効化する。スキャナーの走査対象から外れる。
func (s *Service) Disable(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error) {
	sub, err := s.findOwned(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	sub.Enabled = false
	sub.UpdatedAt = time.Now()
	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Delete は所有者を確認した上で購読を削除する。
func (s *Service) Delete(ctx context.Context, userID, subscriptionID string) error {
	sub, err := s.findOwned(ctx, userID, subscriptionID)
	if err != nil {
		return err
	}
	return s.subRepo.Delete(ctx, sub.ID)
}

// findOwned は購読を取得し、所有者が一致することを確認する。
// 存在しない場合と所有者が異なる場合はいずれもSubscriptionNotFoundを返す。
func (s *Service) findOwned(ctx context.Context, userID, subscriptionID string) (*model.Subscription, error) {
	sub, err := s.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("購読の取得に失敗しました: %w", err)
	}
	if sub == nil || sub.UserID != userID {
		return nil, model.NewSubscriptionNotFoundError(subscriptionID)
	}
	return sub, nil
}

// validateSchedule はcron式とタイムゾーンを検証し、次回実行時刻を返す。
func (s *Service) validateSchedule(expr, timezone string, now time.Time) (time.Time, error) {
	if !cron.IsValidExpression(expr) {
		return time.Time{}, model.NewInvalidCronExpressionError(expr)
	}
	next, err := cron.NextOccurrence(expr, timezone, now)
	if err != nil {
		return time.Time{}, model.NewInvalidCronExpressionError(expr)
	}
	return next, nil
}
