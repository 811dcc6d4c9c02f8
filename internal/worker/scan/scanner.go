// Package scan は実行時刻を迎えた購読の検出とフェッチジョブの投入を行う。
package scan

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
	"github.com/hitoshi/cronpost/internal/repository"
)

// DueEvaluator は購読の実行判定インターフェース。
type DueEvaluator interface {
	// IsDue は購読が現在時刻で実行対象かを判定する。
	IsDue(sub *model.Subscription, now time.Time) bool
}

// FetchEnqueuer はフェッチジョブの投入インターフェース。
type FetchEnqueuer interface {
	// EnqueueFetch は指定購読のフェッチジョブをキューに登録する。
	EnqueueFetch(ctx context.Context, subscriptionID string) error
}

// Scanner は有効な購読を走査し、実行時刻を迎えたものに
// フェッチジョブを投入する。走査自体は読み取り専用で冪等であり、
// 周期の重複実行があってもジョブキュー側のat-least-once配信に収束する。
type Scanner struct {
	subRepo   repository.SubscriptionRepository
	evaluator DueEvaluator
	enqueuer  FetchEnqueuer
	logger    *slog.Logger
}

// NewScanner はScannerの新しいインスタンスを生成する。
func NewScanner(
	subRepo repository.SubscriptionRepository,
	evaluator DueEvaluator,
	enqueuer FetchEnqueuer,
	logger *slog.Logger,
) *Scanner {
	return &Scanner{
		subRepo:   subRepo,
		evaluator: evaluator,
		enqueuer:  enqueuer,
		logger:    logger,
	}
}

// Start は指定間隔のティッカーでスキャナーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scanner) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("購読スキャナーを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("スキャンサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("購読スキャナーを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("スキャンサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はスキャンを1回実行し、実行対象の購読にフェッチジョブを投入する。
// 1件の投入失敗が残りの購読の処理を妨げることはない。
func (s *Scanner) RunOnce(ctx context.Context) error {
	start := time.Now()

	due, err := s.Scan(ctx, start)
	if err != nil {
		return err
	}

	if len(due) == 0 {
		s.logger.Info("実行対象の購読はありません")
		return nil
	}

	enqueued := 0
	for _, sub := range due {
		if err := s.enqueuer.EnqueueFetch(ctx, sub.ID); err != nil {
			s.logger.Error("フェッチジョブの投入に失敗しました",
				slog.String("subscription_id", sub.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		enqueued++
	}

	duration := time.Since(start)
	s.logger.Info("スキャンサイクルが完了しました",
		slog.Int("due_count", len(due)),
		slog.Int("enqueued_count", enqueued),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Scan は有効な購読を走査し、実行時刻を迎えたものを返す。
// 読み取り専用であり、状態は一切変更しない。
func (s *Scanner) Scan(ctx context.Context, now time.Time) ([]*model.Subscription, error) {
	subs, err := s.subRepo.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	var due []*model.Subscription
	for _, sub := range subs {
		if s.evaluator.IsDue(sub, now) {
			due = append(due, sub)
		}
	}

	return due, nil
}
