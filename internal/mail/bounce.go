package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
	"github.com/hitoshi/cronpost/internal/repository"
)

const (
	// BounceTypeHard は恒久的な配信不能（宛先不明など）。
	BounceTypeHard = "HardBounce"
	// BounceTypeSoft は一時的な配信失敗（メールボックス満杯など）。
	BounceTypeSoft = "SoftBounce"

	// softBounceThreshold はソフトバウンスで受信停止とする閾値。
	softBounceThreshold = 3
)

// BounceNotification はメールプロバイダーからのバウンス通知を表す。
type BounceNotification struct {
	Email       string
	Type        string
	Description string
	OccurredAt  time.Time
}

// BounceProcessor はバウンス/苦情通知を処理し、
// ユーザーのメール受信状態と購読の有効状態を更新する。
type BounceProcessor struct {
	userRepo repository.UserRepository
	subRepo  repository.SubscriptionRepository
	logger   *slog.Logger
}

// NewBounceProcessor はBounceProcessorの新しいインスタンスを生成する。
func NewBounceProcessor(
	userRepo repository.UserRepository,
	subRepo repository.SubscriptionRepository,
	logger *slog.Logger,
) *BounceProcessor {
	return &BounceProcessor{
		userRepo: userRepo,
		subRepo:  subRepo,
		logger:   logger,
	}
}

// ProcessBounce はバウンス通知を処理する。
// ハードバウンスは即時、ソフトバウンスは閾値到達で受信停止とし、
// 受信停止となった場合はそのユーザーの全購読を無効化する。
// 未知のメールアドレスへの通知は無視する。
func (p *BounceProcessor) ProcessBounce(ctx context.Context, n BounceNotification) error {
	user, err := p.userRepo.FindByEmail(ctx, n.Email)
	if err != nil {
		return fmt.Errorf("バウンス対象ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		p.logger.Warn("バウンス通知の対象ユーザーが見つかりません",
			slog.String("email", n.Email),
		)
		return nil
	}

	user.BounceCount++
	user.LastBounceAt = &n.OccurredAt
	user.EmailBounceReason = n.Description

	suppress := n.Type == BounceTypeHard || user.BounceCount >= softBounceThreshold
	if suppress && user.EmailStatus == model.EmailStatusActive {
		user.EmailStatus = model.EmailStatusBounced
		user.EmailStatusUpdatedAt = &n.OccurredAt
	}

	if err := p.userRepo.UpdateEmailStatus(ctx, user); err != nil {
		return fmt.Errorf("メール受信状態の更新に失敗しました: %w", err)
	}

	p.logger.Info("バウンス通知を処理しました",
		slog.String("user_id", user.ID),
		slog.String("bounce_type", n.Type),
		slog.Int("bounce_count", user.BounceCount),
		slog.String("email_status", string(user.EmailStatus)),
	)

	if user.EmailStatus == model.EmailStatusBounced {
		return p.disableSubscriptions(ctx, user.ID)
	}
	return nil
}

// ProcessComplaint は苦情（スパム報告）通知を処理する。
// 即時に受信停止とし、そのユーザーの全購読を無効化する。
func (p *BounceProcessor) ProcessComplaint(ctx context.Context, email string, occurredAt time.Time) error {
	user, err := p.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("苦情対象ユーザーの検索に失敗しました: %w", err)
	}
	if user == nil {
		p.logger.Warn("苦情通知の対象ユーザーが見つかりません",
			slog.String("email", email),
		)
		return nil
	}

	user.EmailStatus = model.EmailStatusComplained
	user.EmailStatusUpdatedAt = &occurredAt

	if err := p.userRepo.UpdateEmailStatus(ctx, user); err != nil {
		return fmt.Errorf("メール受信状態の更新に失敗しました: %w", err)
	}

	p.logger.Info("苦情通知を処理しました",
		slog.String("user_id", user.ID),
	)

	return p.disableSubscriptions(ctx, user.ID)
}

// disableSubscriptions はユーザーの全購読を無効化する。
func (p *BounceProcessor) disableSubscriptions(ctx context.Context, userID string) error {
	count, err := p.subRepo.DisableByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("購読の一括無効化に失敗しました: %w", err)
	}

	p.logger.Info("メール受信停止に伴い購読を無効化しました",
		slog.String("user_id", userID),
		slog.Int("disabled_count", count),
	)
	return nil
}
