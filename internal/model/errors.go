// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, fetch, cron, email, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	// URL検証（SSRF防止ポリシー）
	ErrCodeInvalidURLFormat       = "INVALID_URL_FORMAT"
	ErrCodeHTTPSRequired          = "HTTPS_REQUIRED"
	ErrCodePort443Required        = "PORT_443_REQUIRED"
	ErrCodeHostnameNotAllowed     = "HOSTNAME_NOT_ALLOWED"
	ErrCodeInvalidDomainStructure = "INVALID_DOMAIN_STRUCTURE"
	ErrCodeBlockedHostname        = "BLOCKED_HOSTNAME"
	ErrCodeURLTooLong             = "URL_TOO_LONG"

	// cron式
	ErrCodeInvalidCronExpression = "INVALID_CRON_EXPRESSION"

	// フェッチ
	ErrCodeRequestFailed      = "REQUEST_FAILED"
	ErrCodeInvalidContentType = "INVALID_CONTENT_TYPE"

	// 購読
	ErrCodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeSubscriptionLimit    = "SUBSCRIPTION_LIMIT"

	// ユーザー
	ErrCodeUserNotFound = "USER_NOT_FOUND"
)

// NewInvalidURLFormatError はURL形式不正エラーを生成する。
func NewInvalidURLFormatError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURLFormat,
		Message:  "無効なURL形式です。",
		Category: "validation",
		Action:   "正しいURL形式（https:// で始まる絶対URL）を入力してください。",
	}
}

// NewHTTPSRequiredError はHTTPS必須エラーを生成する。
func NewHTTPSRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeHTTPSRequired,
		Message:  "無効なURLです: HTTPSが必須です。",
		Category: "validation",
		Action:   "https:// で始まるURLを入力してください。",
	}
}

// NewPort443RequiredError はポート443必須エラーを生成する。
func NewPort443RequiredError() *APIError {
	return &APIError{
		Code:     ErrCodePort443Required,
		Message:  "無効なURLです: ポート443のHTTPSのみ許可されています。",
		Category: "validation",
		Action:   "ポート指定を削除するか、443を指定してください。",
	}
}

// NewHostnameNotAllowedError はホスト名不正エラーを生成する。
func NewHostnameNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeHostnameNotAllowed,
		Message:  "無効なURLです: ホスト名が許可されていません。",
		Category: "validation",
		Action:   "公開されているWebサイトのホスト名を入力してください。",
	}
}

// NewInvalidDomainStructureError はドメイン構造不正エラーを生成する。
func NewInvalidDomainStructureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDomainStructure,
		Message:  "無効なURLです: ホスト名が正しいドメイン構造を持っていません。",
		Category: "validation",
		Action:   "example.com のようなドット区切りの完全なドメイン名を入力してください。",
	}
}

// NewBlockedHostnameError はブロック対象ホスト名エラーを生成する。
func NewBlockedHostnameError(hostname string) *APIError {
	return &APIError{
		Code:     ErrCodeBlockedHostname,
		Message:  fmt.Sprintf("無効なURLです: ホスト名 %s は許可されていません。", hostname),
		Category: "validation",
		Action:   "ローカルネットワークやメタデータエンドポイントへのアクセスは許可されていません。公開URLを入力してください。",
	}
}

// NewURLTooLongError はURL長超過エラーを生成する。
func NewURLTooLongError() *APIError {
	return &APIError{
		Code:     ErrCodeURLTooLong,
		Message:  "無効なURLです: URLが長すぎます。",
		Category: "validation",
		Action:   "URLは2000文字以内で入力してください。",
	}
}

// NewInvalidCronExpressionError はcron式不正エラーを生成する。
func NewInvalidCronExpressionError(expr string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCronExpression,
		Message:  fmt.Sprintf("無効なcron式です: %s", expr),
		Category: "cron",
		Action:   "5フィールド（分 時 日 月 曜日）のcron式を入力してください。使用できる文字は数字と * , - / のみです。",
	}
}

// NewRequestFailedError はフェッチリクエスト失敗エラーを生成する。
// codeはネットワークエラー種別（timeout、dns等）またはHTTPステータスを表す。
func NewRequestFailedError(message, code string) *APIError {
	return &APIError{
		Code:     ErrCodeRequestFailed,
		Message:  fmt.Sprintf("リクエストに失敗しました: %s (%s)", message, code),
		Category: "fetch",
		Action:   "エンドポイントが稼働しているか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewInvalidContentTypeError はContent-Type不正エラーを生成する。
func NewInvalidContentTypeError(contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidContentType,
		Message:  fmt.Sprintf("無効なContent-Typeです: %s。JSONレスポンスのみ許可されています。", contentType),
		Category: "fetch",
		Action:   "エンドポイントが application/json を返すことを確認してください。",
	}
}

// NewSubscriptionNotFoundError は購読が見つからない場合のエラーを生成する。
func NewSubscriptionNotFoundError(subscriptionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotFound,
		Message:  fmt.Sprintf("指定された購読が見つかりません: %s", subscriptionID),
		Category: "validation",
		Action:   "購読IDを確認してください。",
	}
}

// NewSubscriptionLimitError は購読数上限エラーを生成する。
func NewSubscriptionLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionLimit,
		Message:  fmt.Sprintf("購読数がプランの上限（%d件）に達しています。", limit),
		Category: "validation",
		Action:   "不要な購読を削除するか、プランをアップグレードしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "system",
		Action:   "ユーザーIDを確認してください。",
	}
}
