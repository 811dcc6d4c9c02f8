// Package cron はcron式の評価を提供する。
// 5フィールド（分 時 日 月 曜日）のPOSIX形式cron式とIANAタイムゾーンから、
// 「実行時刻を過ぎているか」と「次回実行時刻」を判定する純粋な計算層。
// 不正なcron式は判定結果を「実行しない」に縮退させるだけで、
// スキャナーを停止させることはない。
package cron

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	robfig "github.com/robfig/cron/v3"

	"github.com/hitoshi/cronpost/internal/model"
)

// fieldPattern はcron式の各フィールドに許可される文字クラス。
// 数字と * , - / のみを許可し、名前付きフィールド（JAN、MON等）は
// 意図的に拒否する。完全なcron文法より厳格な事前チェックであり、
// 理論上有効な一部のcron式を拒否することは仕様である。
var fieldPattern = regexp.MustCompile(`^[0-9*,\-/]+$`)

// parser は5フィールドのcron式パーサー。
var parser = robfig.NewParser(
	robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow,
)

// IsValidExpression はcron式の構造的な事前チェックを行う。
// 空白区切りでちょうど5フィールドであり、各フィールドが
// 数字と * , - / のみで構成される場合にtrueを返す。
func IsValidExpression(expr string) bool {
	if expr == "" {
		return false
	}

	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return false
	}

	for _, part := range parts {
		if !fieldPattern.MatchString(part) {
			return false
		}
	}

	return true
}

// NextOccurrence はreferenceの厳密に後となる最初の実行時刻を、
// 指定したIANAタイムゾーンで計算する。
// timezoneが空の場合はUTCを使用する。
// 構造チェックの失敗、タイムゾーン不正、cron計算の失敗
// （実現不可能な組み合わせ等）の場合はエラーを返す。
func NextOccurrence(expr, timezone string, reference time.Time) (time.Time, error) {
	if !IsValidExpression(expr) {
		return time.Time{}, model.NewInvalidCronExpressionError(expr)
	}

	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("タイムゾーンの読み込みに失敗しました: %w", err)
	}

	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, model.NewInvalidCronExpressionError(expr)
	}

	next := schedule.Next(reference.In(loc))
	if next.IsZero() {
		// 5年以内に実行時刻が存在しない場合（robfigの探索上限）
		return time.Time{}, model.NewInvalidCronExpressionError(expr)
	}

	return next, nil
}

// Evaluator は購読の実行判定を行う。
// cron式の不正は「実行しない」としてログに記録され、エラーとして伝播しない。
type Evaluator struct {
	logger *slog.Logger
}

// NewEvaluator はEvaluatorの新しいインスタンスを生成する。
func NewEvaluator(logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{logger: logger}
}

// IsDue は購読が実行時刻を過ぎているかを判定する。
// 判定順序:
//  1. LastRunAtがnilの場合は実行対象（初回実行）。
//  2. NextRunAtがキャッシュされている場合は now >= NextRunAt で判定。
//  3. キャッシュがない場合はLastRunAtからcron式で次回時刻を再計算し、
//     その時刻が now 以前なら実行対象。計算エラー時は実行対象外としてログに記録する。
func (e *Evaluator) IsDue(sub *model.Subscription, now time.Time) bool {
	if sub.LastRunAt == nil {
		return true
	}

	if sub.NextRunAt != nil {
		return !now.Before(*sub.NextRunAt)
	}

	next, err := NextOccurrence(sub.CronExpression, sub.Timezone, *sub.LastRunAt)
	if err != nil {
		e.logger.Error("cron式の評価に失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("cron_expression", sub.CronExpression),
			slog.String("error", err.Error()),
		)
		return false
	}

	return !now.Before(next)
}

// CalculateNextRun はcron式とタイムゾーンから次回実行時刻を計算する。
// 計算できない場合はnilを返し、エラーをログに記録する。クラッシュはしない。
func (e *Evaluator) CalculateNextRun(expr, timezone string, now time.Time) *time.Time {
	next, err := NextOccurrence(expr, timezone, now)
	if err != nil {
		e.logger.Error("次回実行時刻の計算に失敗しました",
			slog.String("cron_expression", expr),
			slog.String("timezone", timezone),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &next
}
