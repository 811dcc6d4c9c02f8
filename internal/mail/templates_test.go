package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
	"github.com/hitoshi/cronpost/internal/security"
)

// 成功通知メールに購読情報とデータが含まれることを検証
func TestBuilder_BuildSubscriptionEmail(t *testing.T) {
	b := NewBuilder(security.NewReportSanitizer())
	user := &model.User{Email: "taro@example.com", Name: "太郎"}
	sub := &model.Subscription{
		Name:     "毎朝の天気",
		Endpoint: "https://api.example.com/weather",
	}
	fetchedAt := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

	msg, err := b.BuildSubscriptionEmail(user, sub, []byte(`{"temperature":21.5}`), fetchedAt, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.To != "taro@example.com" {
		t.Errorf("msg.To = %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "毎朝の天気") {
		t.Errorf("subject should contain subscription name: %q", msg.Subject)
	}
	if !strings.Contains(msg.HTMLBody, "https://api.example.com/weather") {
		t.Error("body should contain the endpoint")
	}
	if !strings.Contains(msg.HTMLBody, "2025-03-15T09:00:00Z") {
		t.Error("body should contain the fetch timestamp")
	}
	if msg.Tag != string(model.EmailTypeSubscription) {
		t.Errorf("msg.Tag = %q", msg.Tag)
	}
}

// データ中のHTMLタグがサニタイズされることを検証
func TestBuilder_BuildSubscriptionEmail_SanitizesData(t *testing.T) {
	b := NewBuilder(security.NewReportSanitizer())
	user := &model.User{Email: "taro@example.com"}
	sub := &model.Subscription{Name: "テスト", Endpoint: "https://api.example.com/data"}

	msg, err := b.BuildSubscriptionEmail(user, sub,
		[]byte(`<script>alert(1)</script>data`), time.Now(), 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if strings.Contains(msg.HTMLBody, "<script>") {
		t.Error("body should not contain raw script tags")
	}
}

// 失敗通知メールに失敗回数とエラー内容が含まれることを検証
func TestBuilder_BuildFailureEmail(t *testing.T) {
	b := NewBuilder(security.NewReportSanitizer())
	user := &model.User{Email: "taro@example.com", Name: "太郎"}
	sub := &model.Subscription{
		Name:         "毎朝の天気",
		Endpoint:     "https://api.example.com/weather",
		FailureCount: 2,
	}
	failedAt := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

	msg, err := b.BuildFailureEmail(user, sub, "エンドポイントがステータス 503 を返しました", failedAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(msg.Subject, "失敗") {
		t.Errorf("subject should mention failure: %q", msg.Subject)
	}
	if !strings.Contains(msg.HTMLBody, "503") {
		t.Error("body should contain the error message")
	}
	if msg.Tag != string(model.EmailTypeFailure) {
		t.Errorf("msg.Tag = %q", msg.Tag)
	}
}

// 閾値到達時に失敗通知メールへ停止の案内が含まれることを検証
func TestBuilder_BuildFailureEmail_DegradedNotice(t *testing.T) {
	b := NewBuilder(security.NewReportSanitizer())
	user := &model.User{Email: "taro@example.com"}
	sub := &model.Subscription{
		Name:         "テスト",
		Endpoint:     "https://api.example.com/data",
		FailureCount: model.FailureThreshold,
	}

	msg, err := b.BuildFailureEmail(user, sub, "タイムアウト", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(msg.HTMLBody, "一時的に停止") {
		t.Error("body should mention automatic runs being paused")
	}
}

// 長大なデータが上限で打ち切られることを検証
func TestTruncate(t *testing.T) {
	long := strings.Repeat("a", excerptMaxLength+100)
	got := truncate(long, excerptMaxLength)
	if len(got) != excerptMaxLength {
		t.Errorf("len = %d, want %d", len(got), excerptMaxLength)
	}

	short := "短いデータ"
	if truncate(short, excerptMaxLength) != short {
		t.Error("short input should be unchanged")
	}
}
