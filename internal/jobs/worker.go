package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
	"github.com/hitoshi/cronpost/internal/repository"
)

// Handler はジョブ種別ごとの処理インターフェース。
// エラーを返すとジョブは再試行され、上限到達で打ち切られる。
// at-least-once配信のため、Handleは重複実行を許容すること。
type Handler interface {
	Handle(ctx context.Context, payload []byte) error
}

// HandlerFunc は関数をHandlerとして使用するためのアダプター。
type HandlerFunc func(ctx context.Context, payload []byte) error

// Handle はf(ctx, payload)を呼び出す。
func (f HandlerFunc) Handle(ctx context.Context, payload []byte) error {
	return f(ctx, payload)
}

// Worker はジョブキューのポーリングと実行を行う。
// 実行時刻を迎えたジョブをバッチで取得し、semaphoreパターンで
// 最大並列数を制御しながらハンドラーを実行する。
type Worker struct {
	jobRepo        repository.JobRepository
	logger         *slog.Logger
	handlers       map[model.JobType]Handler
	pollInterval   time.Duration
	claimBatch     int
	maxConcurrency int
	backoffBase    time.Duration
	stuckTimeout   time.Duration
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// 0以下の設定値にはデフォルト値を使用する。
func NewWorker(
	jobRepo repository.JobRepository,
	logger *slog.Logger,
	pollInterval time.Duration,
	claimBatch int,
	maxConcurrency int,
	backoffBase time.Duration,
) *Worker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if claimBatch <= 0 {
		claimBatch = 50
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	if backoffBase <= 0 {
		backoffBase = 2 * time.Second
	}
	return &Worker{
		jobRepo:        jobRepo,
		logger:         logger,
		handlers:       make(map[model.JobType]Handler),
		pollInterval:   pollInterval,
		claimBatch:     claimBatch,
		maxConcurrency: maxConcurrency,
		backoffBase:    backoffBase,
		stuckTimeout:   5 * time.Minute,
	}
}

// Register はジョブ種別にハンドラーを登録する。
// 未登録の種別のジョブは実行されず打ち切られる。
func (w *Worker) Register(jobType model.JobType, handler Handler) {
	w.handlers[jobType] = handler
}

// Start はポーリングループを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("ジョブワーカーを開始しました",
		slog.Duration("poll_interval", w.pollInterval),
		slog.Int("claim_batch", w.claimBatch),
		slog.Int("max_concurrency", w.maxConcurrency),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ジョブワーカーを停止しました")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("ジョブサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は実行時刻を迎えたジョブを1バッチ取得して処理する。
func (w *Worker) RunOnce(ctx context.Context) error {
	// クラッシュ等でrunningのまま残ったジョブを回収する
	requeued, err := w.jobRepo.RequeueStuck(ctx, time.Now().Add(-w.stuckTimeout))
	if err != nil {
		w.logger.Error("滞留ジョブの回収に失敗しました",
			slog.String("error", err.Error()),
		)
	} else if requeued > 0 {
		w.logger.Warn("滞留ジョブを回収しました",
			slog.Int("requeued_count", requeued),
		)
	}

	claimed, err := w.jobRepo.ClaimDue(ctx, time.Now(), w.claimBatch)
	if err != nil {
		return err
	}
	if len(claimed) == 0 {
		return nil
	}

	sem := make(chan struct{}, w.maxConcurrency)
	var wg sync.WaitGroup

	for _, job := range claimed {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(j *model.Job) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			w.process(ctx, j)
		}(job)
	}

	wg.Wait()
	return nil
}

// process は1ジョブを実行し、結果に応じて状態を確定させる。
func (w *Worker) process(ctx context.Context, job *model.Job) {
	start := time.Now()

	handler, ok := w.handlers[job.Type]
	if !ok {
		w.logger.Error("未登録のジョブ種別です",
			slog.String("job_id", job.ID),
			slog.String("job_type", string(job.Type)),
		)
		w.markDead(ctx, job, fmt.Sprintf("未登録のジョブ種別: %s", job.Type))
		return
	}

	err := handler.Handle(ctx, job.Payload)
	duration := time.Since(start)

	if err == nil {
		if markErr := w.jobRepo.MarkSucceeded(ctx, job.ID); markErr != nil {
			w.logger.Error("ジョブの成功記録に失敗しました",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
		}
		w.logger.Info("ジョブが完了しました",
			slog.String("job_id", job.ID),
			slog.String("job_type", string(job.Type)),
			slog.Int("attempts", job.Attempts),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return
	}

	if job.Attempts >= job.MaxAttempts {
		w.logger.Error("ジョブがリトライ上限に達しました",
			slog.String("job_id", job.ID),
			slog.String("job_type", string(job.Type)),
			slog.Int("attempts", job.Attempts),
			slog.String("error", err.Error()),
		)
		w.markDead(ctx, job, err.Error())
		return
	}

	delay := BackoffDelay(w.backoffBase, job.Attempts)
	runAt := time.Now().Add(delay)

	w.logger.Warn("ジョブが失敗しました。再試行します",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.Type)),
		slog.Int("attempts", job.Attempts),
		slog.Duration("retry_delay", delay),
		slog.String("error", err.Error()),
	)
	if markErr := w.jobRepo.MarkRetry(ctx, job.ID, runAt, err.Error()); markErr != nil {
		w.logger.Error("ジョブの再試行登録に失敗しました",
			slog.String("job_id", job.ID),
			slog.String("error", markErr.Error()),
		)
	}
}

func (w *Worker) markDead(ctx context.Context, job *model.Job, reason string) {
	if err := w.jobRepo.MarkDead(ctx, job.ID, reason); err != nil {
		w.logger.Error("ジョブの打ち切り記録に失敗しました",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}
}

// BackoffDelay はattempt回目（1始まり）の失敗後の再試行遅延を計算する。
// base * 2^(attempt-1) の指数バックオフ。
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}
