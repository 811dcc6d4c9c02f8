package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/cronpost/internal/mail"
	"github.com/hitoshi/cronpost/internal/middleware"
	"github.com/hitoshi/cronpost/internal/model"
)

// BounceIngester はバウンス/苦情通知の処理インターフェース。
type BounceIngester interface {
	// ProcessBounce はバウンス通知を処理する。
	ProcessBounce(ctx context.Context, n mail.BounceNotification) error
	// ProcessComplaint は迷惑メール報告を処理する。
	ProcessComplaint(ctx context.Context, email string, occurredAt time.Time) error
}

// WebhookHandler はメールプロバイダーからのWebhook通知を受け付けるHTTPハンドラー。
type WebhookHandler struct {
	ingester BounceIngester
	logger   *slog.Logger
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(ingester BounceIngester, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		ingester: ingester,
		logger:   logger,
	}
}

// emailWebhookRequest はPostmarkのバウンス/苦情Webhookペイロード。
type emailWebhookRequest struct {
	RecordType  string    `json:"RecordType"`
	Type        string    `json:"Type"`
	Email       string    `json:"Email"`
	Description string    `json:"Description"`
	BouncedAt   time.Time `json:"BouncedAt"`
}

// HandleEmailEvent はバウンス/苦情通知を受け付ける。
// POST /webhooks/email
func (h *WebhookHandler) HandleEmailEvent(w http.ResponseWriter, r *http.Request) {
	var req emailWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	if req.Email == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "Emailフィールドが必要です。",
			Category: "validation",
			Action:   "通知ペイロードにEmailを含めてください。",
		})
		return
	}

	occurredAt := req.BouncedAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	var err error
	switch req.RecordType {
	case "Bounce":
		err = h.ingester.ProcessBounce(r.Context(), mail.BounceNotification{
			Email:       req.Email,
			Type:        req.Type,
			Description: req.Description,
			OccurredAt:  occurredAt,
		})
	case "SpamComplaint":
		err = h.ingester.ProcessComplaint(r.Context(), req.Email, occurredAt)
	default:
		// 未知のイベント種別は受領のみ（プロバイダーの再送を防ぐ）
		h.logger.Warn("未知のWebhookイベントを受信しました",
			slog.String("record_type", req.RecordType),
		)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err != nil {
		h.logger.Error("Webhook通知の処理に失敗しました",
			slog.String("record_type", req.RecordType),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.WriteHeader(http.StatusOK)
}
