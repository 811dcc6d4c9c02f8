package fetch

import (
	"time"

	"github.com/hitoshi/cronpost/internal/model"
)

// ApplySuccess はフェッチ成功時に購読の状態を更新する。
// 連続失敗回数を0にリセットし、last_run_atとnext_run_atを設定する。
func ApplySuccess(sub *model.Subscription, now time.Time, nextRun *time.Time) {
	sub.FailureCount = 0
	sub.LastRunAt = &now
	sub.NextRunAt = nextRun
	sub.UpdatedAt = now
}

// ApplyFailure はフェッチ失敗時に購読の状態を更新する。
// 連続失敗回数をインクリメントし、last_failure_atを記録する。
// next_run_atは進めない。閾値に達した購読はフェッチジョブ側で
// スキップされるため、ここではフラグ類を変更しない。
func ApplyFailure(sub *model.Subscription, now time.Time) {
	sub.FailureCount++
	sub.LastFailureAt = &now
	sub.UpdatedAt = now
}

// IsDegraded は購読が連続失敗の閾値に達しているかを返す。
func IsDegraded(sub *model.Subscription) bool {
	return sub.IsDegraded()
}
