package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/cronpost/internal/middleware"
	"github.com/hitoshi/cronpost/internal/model"
)

// ScanRunner は期限到来スキャンを一回実行するインターフェース。
type ScanRunner interface {
	// RunOnce は期限到来購読の走査とジョブ投入を一回実行する。
	RunOnce(ctx context.Context) error
}

// TriggerHandler は外部タイマーからのスキャントリガーを受け付けるHTTPハンドラー。
// Bearerトークンによる認証が必須。
type TriggerHandler struct {
	scanner ScanRunner
	token   string
	logger  *slog.Logger
}

// NewTriggerHandler はTriggerHandlerを生成する。
func NewTriggerHandler(scanner ScanRunner, token string, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{
		scanner: scanner,
		token:   token,
		logger:  logger,
	}
}

// TriggerScan は期限到来スキャンを起動する。
// POST /internal/scan
func (h *TriggerHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
			Code:     "UNAUTHORIZED",
			Message:  "認証に失敗しました。",
			Category: "system",
			Action:   "正しいトリガートークンを指定してください。",
		})
		return
	}

	if err := h.scanner.RunOnce(r.Context()); err != nil {
		h.logger.Error("スキャンの実行に失敗しました", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "scan_completed"})
}

// authorized はAuthorizationヘッダーのBearerトークンを検証する。
// タイミング攻撃を避けるため定数時間比較を使う。
func (h *TriggerHandler) authorized(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) == 1
}
