package security

import (
	"net/http"
	"time"

	"github.com/doyensec/safeurl"
)

// SafeClientFactory はSSRF防止機能付きHTTPクライアントの生成インターフェース。
type SafeClientFactory interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client
}

// safeClientFactory はSafeClientFactoryの実装。
type safeClientFactory struct{}

// NewSafeClientFactory はSafeClientFactoryの新しいインスタンスを生成する。
func NewSafeClientFactory() *safeClientFactory {
	return &safeClientFactory{}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlのnet.Dialer Controlフックにより、DNS解決後のIPアドレスが
// プライベート/ループバック/リンクローカル/メタデータ範囲の場合は
// 接続自体が拒否される。DNS再バインディング攻撃にも対応している。
//
// ValidateEndpointの静的ポリシーはDNS解決を行わないため、
// パブリックなホスト名が内部IPを指すケースはこの層で防止される。
// 許可スキームはhttpsのみ、許可ポートは443のみ。
func (f *safeClientFactory) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	wrappedClient := safeurl.Client(config)
	client := wrappedClient.Client

	// リダイレクト追跡は検証済みURL以外への到達経路となるため追跡しない。
	// 3xxレスポンスはそのまま呼び出し元に返り、フェッチ失敗として扱われる。
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return client
}
