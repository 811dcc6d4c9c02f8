// Package mail は通知メールの構築・送信・抑制判定を行う。
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mrz1836/postmark"
)

// Message は送信する1通のメールを表す。
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	Tag      string
}

// Sender はメール送信のインターフェース。
// 送信に成功した場合はプロバイダー側のメッセージIDを返す。
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// PostmarkSender はPostmarkを使用したメール送信実装。
type PostmarkSender struct {
	client  *postmark.Client
	from    string
	replyTo string
}

// NewPostmarkSender はPostmarkSenderの新しいインスタンスを生成する。
func NewPostmarkSender(serverToken, accountToken, from, replyTo string) *PostmarkSender {
	return &PostmarkSender{
		client:  postmark.NewClient(serverToken, accountToken),
		from:    from,
		replyTo: replyTo,
	}
}

// Send はPostmarkのトランザクショナルAPIでメールを送信する。
func (s *PostmarkSender) Send(ctx context.Context, msg Message) (string, error) {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		ReplyTo:  s.replyTo,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		HTMLBody: msg.HTMLBody,
	})
	if err != nil {
		return "", fmt.Errorf("メール送信に失敗しました: %w", err)
	}
	if resp.ErrorCode > 0 {
		return "", fmt.Errorf("メール送信に失敗しました: postmark error %d - %s", resp.ErrorCode, resp.Message)
	}
	return resp.MessageID, nil
}

// DevSender は開発環境用のメール送信実装。
// 実際には送信せず、内容をログに出力する。
type DevSender struct {
	logger *slog.Logger
}

// NewDevSender はDevSenderの新しいインスタンスを生成する。
func NewDevSender(logger *slog.Logger) *DevSender {
	return &DevSender{logger: logger}
}

// Send はメール内容をログに出力し、擬似的なメッセージIDを返す。
func (s *DevSender) Send(_ context.Context, msg Message) (string, error) {
	msgID := "dev-" + uuid.NewString()
	s.logger.Info("開発モード: メールを送信した扱いにします",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("tag", msg.Tag),
		slog.String("message_id", msgID),
		slog.Int("body_bytes", len(msg.HTMLBody)),
	)
	return msgID, nil
}
