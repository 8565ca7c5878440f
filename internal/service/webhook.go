package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"go.uber.org/zap"
)

const (
	EventOrderPaid     = "order.paid"
	EventOrderRefunded = "order.refunded"
)

var (
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrUnsupportedEvent   = errors.New("unsupported payment event")
	ErrInvalidEventFormat = errors.New("invalid payment event payload")
)

// WebhookService turns signed payment-processor events into ledger awards
// and reversals.
type WebhookService struct {
	awards  *AwardService
	refunds *RefundService
	hmacKey []byte
	skipSig bool
}

// NewWebhookService creates a new WebhookService instance.
func NewWebhookService(awards *AwardService, refunds *RefundService, hmacKey string, skipSignature bool) *WebhookService {
	return &WebhookService{
		awards:  awards,
		refunds: refunds,
		hmacKey: []byte(hmacKey),
		skipSig: skipSignature,
	}
}

// PaymentEvent is the payment processor's notification body.
type PaymentEvent struct {
	EventID string `json:"event_id"`
	Event   string `json:"event"`
	OrderID int64  `json:"order_id"`
}

// PaymentEventResponse reports what the ledger did with an event.
type PaymentEventResponse struct {
	Event   string               `json:"event"`
	OrderID int64                `json:"order_id"`
	Award   *models.AwardResult  `json:"award,omitempty"`
	Refund  *models.RefundResult `json:"refund,omitempty"`
}

// HandlePaymentEvent verifies the HMAC signature, records the order's new
// payment status and awards or reverses its points. Processors retry
// deliveries; the award and refund paths are idempotent per order.
func (s *WebhookService) HandlePaymentEvent(ctx context.Context, payload []byte, signature string) (*PaymentEventResponse, error) {
	if !s.verifyHMAC(payload, signature) {
		return nil, ErrInvalidSignature
	}

	var event PaymentEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEventFormat, err)
	}
	event.Event = strings.ToLower(strings.TrimSpace(event.Event))
	if event.OrderID <= 0 {
		return nil, models.Invalid("order_id", "must be positive")
	}

	resp := &PaymentEventResponse{Event: event.Event, OrderID: event.OrderID}
	var err error
	switch event.Event {
	case EventOrderPaid:
		resp.Award, err = s.awards.MarkOrderPaid(ctx, event.OrderID)
	case EventOrderRefunded:
		resp.Refund, err = s.refunds.MarkOrderRefunded(ctx, event.OrderID)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, event.Event)
	}
	if err != nil {
		if !errors.Is(err, models.ErrOrderNotFound) {
			zap.L().Error("payment event processing failed",
				zap.String("event_id", event.EventID),
				zap.String("event", event.Event),
				zap.Int64("order_id", event.OrderID),
				zap.Error(err))
		}
		return nil, err
	}
	return resp, nil
}

// verifyHMAC verifies the HMAC signature of the payload.
func (s *WebhookService) verifyHMAC(payload []byte, signature string) bool {
	if s.skipSig {
		return true
	}
	if len(s.hmacKey) == 0 {
		return false
	}

	h := hmac.New(sha256.New, s.hmacKey)
	h.Write(payload)
	expectedSig := "sha256=" + hex.EncodeToString(h.Sum(nil))

	// Use hmac.Equal for constant-time comparison
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
