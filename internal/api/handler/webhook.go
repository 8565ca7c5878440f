package handler

import (
	"io"
	"net/http"

	"github.com/ayo6706/restaurant-loyalty/internal/service"
	"go.uber.org/zap"
)

// maxWebhookBody caps payment event payloads; real events are a few hundred bytes.
const maxWebhookBody = 64 << 10

// WebhookHandler handles incoming webhook events from external systems.
type WebhookHandler struct {
	webhookSvc *service.WebhookService
}

// NewWebhookHandler creates a new WebhookHandler instance.
func NewWebhookHandler(webhookSvc *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookSvc: webhookSvc,
	}
}

// HandlePaymentWebhook handles POST /v1/webhooks/payments
// It verifies the HMAC signature and awards or reverses the order's points.
func (h *WebhookHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		zap.L().Error("read webhook body failed", zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Failed to read request body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")

	resp, err := h.webhookSvc.HandlePaymentEvent(r.Context(), body, signature)
	if err != nil {
		RespondServiceError(w, r, err, "process payment webhook")
		return
	}

	RespondJSON(w, http.StatusOK, resp)
}
