// Package security はアプリケーションのセキュリティ機能を提供する。
//
// このサービスの機能自体が「ユーザーが指定したURLをフェッチする」ことであるため、
// SSRF（サーバーサイドリクエストフォージェリ）への防御が中心となる。
// URLGuardは静的なポリシー検証を、SafeClientはDNS解決後のIPアドレス検証を担う。
package security

import (
	"net/url"
	"strings"

	"github.com/hitoshi/cronpost/internal/model"
)

// maxURLLength はエンドポイントURLの最大長。
const maxURLLength = 2000

// blockedHostnames はブロック対象のホスト名（小文字で照合）。
// クラウドメタデータエンドポイントとローカルホスト系の固定リスト。
var blockedHostnames = []string{
	"localhost",
	"0.0.0.0",
	".", // DNSルート
	"metadata.google.internal",
	"169.254.169.254",
	"consul.service.consul",
}

// ValidateEndpoint はユーザー入力のエンドポイントURLをポリシー検証する。
// ネットワークI/Oを一切行わない静的検証であり、すべてのフェッチの前提条件となる。
// チェックは以下の順に行われ、最初の違反で打ち切る:
//  1. 絶対URLとしてパース可能であること
//  2. スキームがhttpsであること
//  3. 実効ポートが443であること
//  4. ホスト名が空でないこと
//  5. ホスト名がドット区切りで2ラベル以上の構造を持つこと
//     （裸のホスト名、先頭/末尾/連続ドット、空のTLDを拒否）
//  6. ホスト名が固定ブロックリストに含まれないこと
//  7. URL全体が2000文字以内であること
//
// このポリシーはホスト名のDNS解決を行わないため、パブリックなホスト名が
// 内部IPを指すケースは検出できない。その層の防御はSafeClientが担う。
func ValidateEndpoint(rawURL string) *model.APIError {
	parsed, err := url.Parse(rawURL)
	if err != nil || !parsed.IsAbs() {
		return model.NewInvalidURLFormatError()
	}

	if parsed.Scheme != "https" {
		return model.NewHTTPSRequiredError()
	}

	port := parsed.Port()
	if port != "" && port != "443" {
		return model.NewPort443RequiredError()
	}

	hostname := strings.ToLower(parsed.Hostname())
	if strings.TrimSpace(hostname) == "" {
		return model.NewHostnameNotAllowedError()
	}

	labels := strings.Split(hostname, ".")
	if len(labels) < 2 {
		return model.NewInvalidDomainStructureError()
	}
	for _, label := range labels {
		if label == "" {
			return model.NewInvalidDomainStructureError()
		}
	}

	for _, blocked := range blockedHostnames {
		if hostname == blocked {
			return model.NewBlockedHostnameError(hostname)
		}
	}

	if len(rawURL) > maxURLLength {
		return model.NewURLTooLongError()
	}

	return nil
}
