package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
)

// TextSanitizer はメール本文に埋め込む外部由来テキストの無害化インターフェース。
type TextSanitizer interface {
	SanitizeText(input string) string
}

// excerptMaxLength はメール本文に埋め込むデータの最大文字数。
const excerptMaxLength = 2000

var subscriptionTmpl = template.Must(template.New("subscription").Parse(`<!DOCTYPE html>
<html>
<body>
  <h2>{{.SubscriptionName}} のデータが届きました</h2>
  <p>{{.UserName}} さん</p>
  <p>購読しているエンドポイントから新しいデータを取得しました。</p>
  <table>
    <tr><td>エンドポイント</td><td>{{.Endpoint}}</td></tr>
    <tr><td>取得時刻</td><td>{{.FetchedAt}}</td></tr>
    <tr><td>HTTPステータス</td><td>{{.Status}}</td></tr>
  </table>
  <pre>{{.Data}}</pre>
</body>
</html>
`))

var failureTmpl = template.Must(template.New("failure").Parse(`<!DOCTYPE html>
<html>
<body>
  <h2>{{.SubscriptionName}} のデータ取得に失敗しました</h2>
  <p>{{.UserName}} さん</p>
  <p>購読しているエンドポイントからのデータ取得に失敗しました。</p>
  <table>
    <tr><td>エンドポイント</td><td>{{.Endpoint}}</td></tr>
    <tr><td>失敗時刻</td><td>{{.FailedAt}}</td></tr>
    <tr><td>連続失敗回数</td><td>{{.FailureCount}}</td></tr>
    <tr><td>エラー内容</td><td>{{.ErrorMessage}}</td></tr>
  </table>
  {{if .Degraded}}
  <p>連続失敗が続いたため、この購読の自動実行は一時的に停止されています。
  エンドポイントの状態を確認してください。</p>
  {{end}}
</body>
</html>
`))

// Builder は通知メールの本文を構築する。
// 外部エンドポイント由来のテキストはサニタイザーを通してから埋め込む。
type Builder struct {
	sanitizer TextSanitizer
}

// NewBuilder はBuilderの新しいインスタンスを生成する。
func NewBuilder(sanitizer TextSanitizer) *Builder {
	return &Builder{sanitizer: sanitizer}
}

// BuildSubscriptionEmail はフェッチ成功の通知メールを構築する。
func (b *Builder) BuildSubscriptionEmail(user *model.User, sub *model.Subscription, data []byte, fetchedAt time.Time, status int) (Message, error) {
	excerpt := b.sanitizer.SanitizeText(truncate(string(data), excerptMaxLength))

	var buf bytes.Buffer
	err := subscriptionTmpl.Execute(&buf, map[string]any{
		"SubscriptionName": sub.Name,
		"UserName":         user.Name,
		"Endpoint":         sub.Endpoint,
		"FetchedAt":        fetchedAt.Format(time.RFC3339),
		"Status":           status,
		"Data":             excerpt,
	})
	if err != nil {
		return Message{}, fmt.Errorf("メール本文の構築に失敗しました: %w", err)
	}

	return Message{
		To:       user.Email,
		Subject:  fmt.Sprintf("[Cronpost] %s のデータが届きました", sub.Name),
		HTMLBody: buf.String(),
		Tag:      string(model.EmailTypeSubscription),
	}, nil
}

// BuildFailureEmail はフェッチ失敗の通知メールを構築する。
func (b *Builder) BuildFailureEmail(user *model.User, sub *model.Subscription, errorMessage string, failedAt time.Time) (Message, error) {
	sanitized := b.sanitizer.SanitizeText(truncate(errorMessage, excerptMaxLength))

	var buf bytes.Buffer
	err := failureTmpl.Execute(&buf, map[string]any{
		"SubscriptionName": sub.Name,
		"UserName":         user.Name,
		"Endpoint":         sub.Endpoint,
		"FailedAt":         failedAt.Format(time.RFC3339),
		"FailureCount":     sub.FailureCount,
		"ErrorMessage":     sanitized,
		"Degraded":         sub.IsDegraded(),
	})
	if err != nil {
		return Message{}, fmt.Errorf("メール本文の構築に失敗しました: %w", err)
	}

	return Message{
		To:       user.Email,
		Subject:  fmt.Sprintf("[Cronpost] %s のデータ取得に失敗しました", sub.Name),
		HTMLBody: buf.String(),
		Tag:      string(model.EmailTypeFailure),
	}, nil
}

// truncate は文字列を最大長で打ち切る。
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
