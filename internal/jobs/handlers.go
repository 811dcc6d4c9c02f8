package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cronpost/internal/mail"
	"github.com/hitoshi/cronpost/internal/model"
	"github.com/hitoshi/cronpost/internal/repository"
	"github.com/hitoshi/cronpost/internal/worker/fetch"
)

// EndpointFetcher はエンドポイントフェッチの実行インターフェース。
type EndpointFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Result, error)
}

// NextRunCalculator は次回実行時刻の計算インターフェース。
type NextRunCalculator interface {
	CalculateNextRun(expr, timezone string, now time.Time) *time.Time
}

// FetchMetrics はフェッチ処理のメトリクス記録インターフェース。
type FetchMetrics interface {
	RecordFetchSuccess()
	RecordFetchFailure(reason string)
	RecordFetchLatency(duration time.Duration)
}

// FetchHandler はfetch_subscription_dataジョブを処理する。
// 購読のエンドポイントをフェッチし、結果に応じて購読の実行状態を
// 更新し、通知メールジョブを投入する。
type FetchHandler struct {
	subRepo   repository.SubscriptionRepository
	fetcher   EndpointFetcher
	evaluator NextRunCalculator
	queue     *Queue
	metrics   FetchMetrics
	logger    *slog.Logger
}

// NewFetchHandler はFetchHandlerの新しいインスタンスを生成する。
func NewFetchHandler(
	subRepo repository.SubscriptionRepository,
	fetcher EndpointFetcher,
	evaluator NextRunCalculator,
	queue *Queue,
	metrics FetchMetrics,
	logger *slog.Logger,
) *FetchHandler {
	return &FetchHandler{
		subRepo:   subRepo,
		fetcher:   fetcher,
		evaluator: evaluator,
		queue:     queue,
		metrics:   metrics,
		logger:    logger,
	}
}

// Handle はフェッチジョブを1件処理する。
// 削除済み・無効化済み・縮退中の購読は何もせず成功として扱う。
// フェッチ失敗時は失敗通知ジョブを投入した上で元のエラーを返し、
// キュー側の再試行に委ねる。
func (h *FetchHandler) Handle(ctx context.Context, payload []byte) error {
	var p FetchPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("ペイロードのデコードに失敗しました: %w", err)
	}

	sub, err := h.subRepo.FindByID(ctx, p.SubscriptionID)
	if err != nil {
		return fmt.Errorf("購読の取得に失敗しました: %w", err)
	}
	if sub == nil {
		h.logger.Warn("フェッチ対象の購読が存在しません",
			slog.String("subscription_id", p.SubscriptionID),
		)
		return nil
	}
	if !sub.Enabled {
		h.logger.Info("無効化された購読のためフェッチをスキップします",
			slog.String("subscription_id", sub.ID),
		)
		return nil
	}
	if sub.IsDegraded() {
		h.logger.Info("連続失敗の閾値に達しているためフェッチをスキップします",
			slog.String("subscription_id", sub.ID),
			slog.Int("failure_count", sub.FailureCount),
		)
		return nil
	}

	start := time.Now()
	result, fetchErr := h.fetcher.Fetch(ctx, sub.Endpoint)
	h.metrics.RecordFetchLatency(time.Since(start))

	now := time.Now()

	if fetchErr != nil {
		h.metrics.RecordFetchFailure(fetchErr.Error())
		return h.handleFailure(ctx, sub, fetchErr, now)
	}

	h.metrics.RecordFetchSuccess()

	next := h.evaluator.CalculateNextRun(sub.CronExpression, sub.Timezone, now)
	fetch.ApplySuccess(sub, now, next)
	if err := h.subRepo.UpdateRunState(ctx, sub); err != nil {
		return fmt.Errorf("購読の実行状態の更新に失敗しました: %w", err)
	}

	emailPayload := EmailPayload{
		SubscriptionID: sub.ID,
		Data:           json.RawMessage(result.Data),
		Status:         result.Status,
		FetchedAt:      result.FetchedAt,
	}
	if err := h.queue.EnqueueEmail(ctx, emailPayload); err != nil {
		return fmt.Errorf("通知メールジョブの投入に失敗しました: %w", err)
	}

	h.logger.Info("フェッチジョブが完了しました",
		slog.String("subscription_id", sub.ID),
		slog.Int("http_status", result.Status),
	)
	return nil
}

// handleFailure はフェッチ失敗時の状態更新と失敗通知ジョブの投入を行う。
func (h *FetchHandler) handleFailure(ctx context.Context, sub *model.Subscription, fetchErr error, now time.Time) error {
	fetch.ApplyFailure(sub, now)
	if err := h.subRepo.UpdateRunState(ctx, sub); err != nil {
		h.logger.Error("失敗状態の更新に失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("error", err.Error()),
		)
	}

	failurePayload := FailureEmailPayload{
		SubscriptionID: sub.ID,
		ErrorMessage:   fetchErr.Error(),
		FailedAt:       now,
		FailureCount:   sub.FailureCount,
	}
	if err := h.queue.EnqueueFailureEmail(ctx, failurePayload); err != nil {
		h.logger.Error("失敗通知ジョブの投入に失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("error", err.Error()),
		)
	}

	h.logger.Warn("フェッチジョブが失敗しました",
		slog.String("subscription_id", sub.ID),
		slog.Int("failure_count", sub.FailureCount),
		slog.String("error", fetchErr.Error()),
	)

	// 元のエラーを返してキュー側の再試行に委ねる
	return fetchErr
}

// SendGate は通知メールの送信可否判定インターフェース。
type SendGate interface {
	CanSend(ctx context.Context, user *model.User, now time.Time) (bool, string, error)
}

// MessageBuilder は通知メール本文の構築インターフェース。
type MessageBuilder interface {
	BuildSubscriptionEmail(user *model.User, sub *model.Subscription, data []byte, fetchedAt time.Time, status int) (mail.Message, error)
	BuildFailureEmail(user *model.User, sub *model.Subscription, errorMessage string, failedAt time.Time) (mail.Message, error)
}

// EmailMetrics はメール送信のメトリクス記録インターフェース。
type EmailMetrics interface {
	RecordEmailSent(emailType string)
	RecordEmailSuppressed(reason string)
}

// EmailHandler はsend_subscription_emailと
// send_subscription_failure_emailジョブを処理する。
// 抑制ゲートを通過した場合のみ送信し、結果をメール送信ログに記録する。
type EmailHandler struct {
	subRepo      repository.SubscriptionRepository
	userRepo     repository.UserRepository
	emailLogRepo repository.EmailLogRepository
	gate         SendGate
	builder      MessageBuilder
	sender       mail.Sender
	metrics      EmailMetrics
	logger       *slog.Logger
}

// NewEmailHandler はEmailHandlerの新しいインスタンスを生成する。
func NewEmailHandler(
	subRepo repository.SubscriptionRepository,
	userRepo repository.UserRepository,
	emailLogRepo repository.EmailLogRepository,
	gate SendGate,
	builder MessageBuilder,
	sender mail.Sender,
	metrics EmailMetrics,
	logger *slog.Logger,
) *EmailHandler {
	return &EmailHandler{
		subRepo:      subRepo,
		userRepo:     userRepo,
		emailLogRepo: emailLogRepo,
		gate:         gate,
		builder:      builder,
		sender:       sender,
		metrics:      metrics,
		logger:       logger,
	}
}

// HandleSubscriptionEmail はフェッチ成功通知メールジョブを処理する。
func (h *EmailHandler) HandleSubscriptionEmail(ctx context.Context, payload []byte) error {
	var p EmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("ペイロードのデコードに失敗しました: %w", err)
	}

	user, sub, err := h.loadRecipient(ctx, p.SubscriptionID)
	if err != nil || user == nil {
		return err
	}

	msg, err := h.builder.BuildSubscriptionEmail(user, sub, p.Data, p.FetchedAt, p.Status)
	if err != nil {
		return err
	}

	return h.deliver(ctx, user, sub, msg, model.EmailTypeSubscription)
}

// HandleFailureEmail はフェッチ失敗通知メールジョブを処理する。
func (h *EmailHandler) HandleFailureEmail(ctx context.Context, payload []byte) error {
	var p FailureEmailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("ペイロードのデコードに失敗しました: %w", err)
	}

	user, sub, err := h.loadRecipient(ctx, p.SubscriptionID)
	if err != nil || user == nil {
		return err
	}

	msg, err := h.builder.BuildFailureEmail(user, sub, p.ErrorMessage, p.FailedAt)
	if err != nil {
		return err
	}

	return h.deliver(ctx, user, sub, msg, model.EmailTypeFailure)
}

// loadRecipient は購読と送信先ユーザーを取得する。
// どちらかが存在しない場合は(nil, nil, nil)を返し、ジョブは成功として扱われる。
func (h *EmailHandler) loadRecipient(ctx context.Context, subscriptionID string) (*model.User, *model.Subscription, error) {
	sub, err := h.subRepo.FindByID(ctx, subscriptionID)
	if err != nil {
		return nil, nil, fmt.Errorf("購読の取得に失敗しました: %w", err)
	}
	if sub == nil {
		h.logger.Warn("通知対象の購読が存在しません",
			slog.String("subscription_id", subscriptionID),
		)
		return nil, nil, nil
	}

	user, err := h.userRepo.FindByID(ctx, sub.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		h.logger.Warn("通知対象のユーザーが存在しません",
			slog.String("user_id", sub.UserID),
		)
		return nil, nil, nil
	}

	return user, sub, nil
}

// deliver は抑制ゲートの判定、送信、ログ記録を行う。
// 抑制された場合は送信せず、失敗扱いのログのみを残して成功を返す。
func (h *EmailHandler) deliver(ctx context.Context, user *model.User, sub *model.Subscription, msg mail.Message, emailType model.EmailType) error {
	now := time.Now()

	entry := &model.EmailLog{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		SubscriptionID: sub.ID,
		RecipientEmail: msg.To,
		Subject:        msg.Subject,
		EmailType:      emailType,
		Status:         model.EmailLogStatusQueued,
		CreatedAt:      now,
	}
	if err := h.emailLogRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("メール送信ログの記録に失敗しました: %w", err)
	}

	allowed, reason, err := h.gate.CanSend(ctx, user, now)
	if err != nil {
		return err
	}
	if !allowed {
		h.metrics.RecordEmailSuppressed(reason)
		h.logger.Info("通知メールの送信を抑制しました",
			slog.String("user_id", user.ID),
			slog.String("subscription_id", sub.ID),
			slog.String("reason", reason),
		)
		if err := h.emailLogRepo.MarkFailed(ctx, entry.ID, reason); err != nil {
			h.logger.Error("メール送信ログの更新に失敗しました",
				slog.String("email_log_id", entry.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	msgID, sendErr := h.sender.Send(ctx, msg)
	if sendErr != nil {
		if err := h.emailLogRepo.MarkFailed(ctx, entry.ID, sendErr.Error()); err != nil {
			h.logger.Error("メール送信ログの更新に失敗しました",
				slog.String("email_log_id", entry.ID),
				slog.String("error", err.Error()),
			)
		}
		return sendErr
	}

	if err := h.emailLogRepo.MarkSent(ctx, entry.ID, msgID, time.Now()); err != nil {
		h.logger.Error("メール送信ログの更新に失敗しました",
			slog.String("email_log_id", entry.ID),
			slog.String("error", err.Error()),
		)
	}

	h.metrics.RecordEmailSent(string(emailType))
	h.logger.Info("通知メールを送信しました",
		slog.String("user_id", user.ID),
		slog.String("subscription_id", sub.ID),
		slog.String("email_type", string(emailType)),
		slog.String("message_id", msgID),
	)
	return nil
}
