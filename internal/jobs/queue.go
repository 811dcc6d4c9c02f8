// Package jobs はPostgresを使用した永続ジョブキューを提供する。
// スキャナーが投入したフェッチジョブと、その結果の通知メールジョブを
// at-least-onceで処理する。
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/cronpost/internal/model"
	"github.com/hitoshi/cronpost/internal/repository"
)

// FetchPayload はフェッチジョブのペイロード。
type FetchPayload struct {
	SubscriptionID string `json:"subscription_id"`
}

// EmailPayload はフェッチ成功通知メールジョブのペイロード。
type EmailPayload struct {
	SubscriptionID string          `json:"subscription_id"`
	Data           json.RawMessage `json:"data"`
	Status         int             `json:"status"`
	FetchedAt      time.Time       `json:"fetched_at"`
}

// FailureEmailPayload はフェッチ失敗通知メールジョブのペイロード。
type FailureEmailPayload struct {
	SubscriptionID string    `json:"subscription_id"`
	ErrorMessage   string    `json:"error_message"`
	FailedAt       time.Time `json:"failed_at"`
	FailureCount   int       `json:"failure_count"`
}

// Queue はジョブの投入を行う。
type Queue struct {
	jobRepo     repository.JobRepository
	maxAttempts int
}

// NewQueue はQueueの新しいインスタンスを生成する。
// maxAttemptsが0以下の場合はデフォルト値3を使用する。
func NewQueue(jobRepo repository.JobRepository, maxAttempts int) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Queue{jobRepo: jobRepo, maxAttempts: maxAttempts}
}

// EnqueueFetch は指定購読のフェッチジョブを投入する。
func (q *Queue) EnqueueFetch(ctx context.Context, subscriptionID string) error {
	return q.enqueue(ctx, model.JobTypeFetchSubscriptionData, FetchPayload{
		SubscriptionID: subscriptionID,
	})
}

// EnqueueEmail はフェッチ成功通知メールジョブを投入する。
func (q *Queue) EnqueueEmail(ctx context.Context, payload EmailPayload) error {
	return q.enqueue(ctx, model.JobTypeSendSubscriptionEmail, payload)
}

// EnqueueFailureEmail はフェッチ失敗通知メールジョブを投入する。
func (q *Queue) EnqueueFailureEmail(ctx context.Context, payload FailureEmailPayload) error {
	return q.enqueue(ctx, model.JobTypeSendSubscriptionFailureEmail, payload)
}

func (q *Queue) enqueue(ctx context.Context, jobType model.JobType, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ペイロードのエンコードに失敗しました: %w", err)
	}

	now := time.Now()
	job := &model.Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     data,
		Status:      model.JobStatusPending,
		Attempts:    0,
		MaxAttempts: q.maxAttempts,
		RunAt:       now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return q.jobRepo.Enqueue(ctx, job)
}
