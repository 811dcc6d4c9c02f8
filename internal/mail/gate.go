package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
)

// QuotaChecker はプランの日次メール上限の判定インターフェース。
type QuotaChecker interface {
	CanReceiveEmail(ctx context.Context, user *model.User, now time.Time) (bool, string, error)
}

// Gate は通知メールの送信可否を判定する抑制ゲート。
// バウンス/苦情によるメール受信停止状態と、
// プランの日次送信上限の両方を確認する。
type Gate struct {
	quota QuotaChecker
}

// NewGate はGateの新しいインスタンスを生成する。
func NewGate(quota QuotaChecker) *Gate {
	return &Gate{quota: quota}
}

// CanSend はユーザーに通知メールを送信できるかを判定する。
// 送信できない場合はfalseと抑制理由を返す。
func (g *Gate) CanSend(ctx context.Context, user *model.User, now time.Time) (bool, string, error) {
	if !user.CanReceiveEmails() {
		return false, fmt.Sprintf("メール受信状態が %s のため送信を抑制しました", user.EmailStatus), nil
	}

	ok, reason, err := g.quota.CanReceiveEmail(ctx, user, now)
	if err != nil {
		return false, "", err
	}
	if !ok {
		return false, reason, nil
	}

	return true, "", nil
}
