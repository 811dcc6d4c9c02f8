// Package fetch は購読エンドポイントからの安全なデータ取得を行う。
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/cronpost/internal/model"
	"github.com/hitoshi/cronpost/internal/security"
)

const (
	// userAgent は外部エンドポイントへのリクエストで名乗るUser-Agent。
	userAgent = "Cronpost-Fetcher/1.0"

	// DefaultTimeout はフェッチのデフォルトタイムアウト。
	DefaultTimeout = 5 * time.Second
	// DefaultMaxBodySize はレスポンスボディのデフォルト上限（1MiB）。
	DefaultMaxBodySize = 1 << 20
)

// ClientFactory はSSRF防止機能付きHTTPクライアントの生成インターフェース。
type ClientFactory interface {
	NewSafeClient(timeout time.Duration) *http.Client
}

// Result はフェッチ結果を表す。
// ステータスコードが500未満であればエラーとせず結果として返す。
type Result struct {
	// Data は取得したレスポンスボディ（JSON）。
	Data []byte
	// Status はHTTPステータスコード。
	Status int
	// Headers はレスポンスヘッダー。
	Headers http.Header
	// URL はフェッチしたエンドポイントURL。
	URL string
	// FetchedAt はフェッチ完了時刻。
	FetchedAt time.Time
}

// Fetcher は検証済みエンドポイントへの安全なHTTPフェッチを行う。
// URL検証、SSRF防止クライアント、ボディサイズ制限、
// Content-Type検証の各ガードをすべて通過したデータのみを返す。
type Fetcher struct {
	clientFactory ClientFactory
	logger        *slog.Logger
	timeout       time.Duration
	maxBodySize   int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(clientFactory ClientFactory, logger *slog.Logger, timeout time.Duration, maxBodySize int64) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &Fetcher{
		clientFactory: clientFactory,
		logger:        logger,
		timeout:       timeout,
		maxBodySize:   maxBodySize,
	}
}

// Fetch は指定URLからJSONデータを取得する。
// URL検証に失敗した場合、ネットワークエラーの場合、ステータスが500以上の場合、
// Content-Typeがapplication/jsonでない場合はエラーを返す。
// 4xxはエンドポイント側の応答として結果のまま返す。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	start := time.Now()

	// 静的なURL検証。フェッチ直前にも必ず実施する。
	// 登録時に検証済みでも、その後のポリシー変更に追従するため。
	if apiErr := security.ValidateEndpoint(rawURL); apiErr != nil {
		f.logger.Warn("エンドポイントURLの検証に失敗しました",
			slog.String("url", rawURL),
			slog.String("error_code", apiErr.Code),
		)
		return nil, apiErr
	}

	client := f.clientFactory.NewSafeClient(f.timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRequestFailedError(err.Error(), "NETWORK_ERROR")
	}
	defer resp.Body.Close()

	// 500以上はエンドポイント側の障害としてハードエラー扱い。
	if resp.StatusCode >= 500 {
		f.logger.Warn("エンドポイントがサーバーエラーを返しました",
			slog.String("url", rawURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewRequestFailedError(
			fmt.Sprintf("エンドポイントがステータス %d を返しました", resp.StatusCode),
			fmt.Sprintf("HTTP_%d", resp.StatusCode),
		)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		f.logger.Warn("Content-Typeがapplication/jsonではありません",
			slog.String("url", rawURL),
			slog.String("content_type", contentType),
		)
		return nil, model.NewInvalidContentTypeError(contentType)
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		f.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRequestFailedError(
			fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()), "READ_ERROR")
	}

	duration := time.Since(start)
	fetchedAt := time.Now()

	f.logger.Info("エンドポイントのフェッチが完了しました",
		slog.String("url", rawURL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("body_bytes", len(body)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return &Result{
		Data:      body,
		Status:    resp.StatusCode,
		Headers:   resp.Header,
		URL:       rawURL,
		FetchedAt: fetchedAt,
	}, nil
}
