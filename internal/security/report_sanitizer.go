package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ReportSanitizerService は通知メールに埋め込むテキストのサニタイズ機能の
// インターフェースを定義する。フェッチしたデータの抜粋、エンドポイントURL、
// エラーメッセージなど、ユーザーまたは外部エンドポイント由来の文字列は
// メール本文へ埋め込む前に必ずこのサービスを通すこと。
type ReportSanitizerService interface {
	// SanitizeText は入力からすべてのHTMLマークアップを除去した
	// プレーンテキストを返す。空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// reportSanitizer はReportSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type reportSanitizer struct {
	policy *bluemonday.Policy
}

// NewReportSanitizer はReportSanitizerServiceの新しいインスタンスを生成する。
// メール本文はHTMLとしてレンダリングされるため、外部由来の文字列に
// タグが混入していても一切通過させない全除去ポリシーを使用する。
func NewReportSanitizer() *reportSanitizer {
	return &reportSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeText は入力からすべてのHTMLマークアップを除去する。
func (s *reportSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
