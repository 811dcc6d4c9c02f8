// Package model はドメインモデルを定義する。
package model

import "time"

// FailureThreshold は連続フェッチ失敗によりフェッチをスキップする閾値。
// FailureCountがこの値以上の購読はDegraded状態となり、
// 成功によりリセットされるまでフェッチジョブが実行されない。
const FailureThreshold = 3

// Subscription はユーザーが登録した定期フェッチ購読を表す。
// cron式とタイムゾーンに基づいてエンドポイントを定期的にフェッチし、
// 結果をメールで通知する。
type Subscription struct {
	ID             string
	NID            string // 公開用の短い識別子（nanoid）
	UserID         string
	Name           string
	Enabled        bool
	CronExpression string // 5フィールドのcron式
	Timezone       string // IANAタイムゾーン名
	Endpoint       string // ユーザー入力のURL。信頼できない入力として扱う
	LastRunAt      *time.Time
	NextRunAt      *time.Time
	FailureCount   int
	LastFailureAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsDegraded は購読が連続失敗閾値に達しているかを返す。
// Degraded状態の購読はスキャン対象には残るが、フェッチジョブ内で
// ネットワークアクセスなしにスキップされる。
func (s *Subscription) IsDegraded() bool {
	return s.FailureCount >= FailureThreshold
}
