package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/ayo6706/restaurant-loyalty/internal/api/middleware"
	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// LoyaltyHandler serves the customer-facing /v1/loyalty routes. Every route
// acts on the identity resolved from the bearer token.
type LoyaltyHandler struct {
	resolver    *service.IdentityResolver
	ledger      *service.LedgerService
	awards      *service.AwardService
	redemptions *service.RedemptionService
	vouchers    *service.VoucherService
	claims      *service.ClaimService
	recovery    *service.RecoveryService
}

// NewLoyaltyHandler creates a new LoyaltyHandler instance.
func NewLoyaltyHandler(
	resolver *service.IdentityResolver,
	ledger *service.LedgerService,
	awards *service.AwardService,
	redemptions *service.RedemptionService,
	vouchers *service.VoucherService,
	claims *service.ClaimService,
	recovery *service.RecoveryService,
) *LoyaltyHandler {
	return &LoyaltyHandler{
		resolver:    resolver,
		ledger:      ledger,
		awards:      awards,
		redemptions: redemptions,
		vouchers:    vouchers,
		claims:      claims,
		recovery:    recovery,
	}
}

func (h *LoyaltyHandler) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		RespondError(w, r, http.StatusUnauthorized, "auth/unauthorized", "missing caller in auth context")
		return domain.Identity{}, false
	}
	id, err := h.resolver.Resolve(r.Context(), caller)
	if err != nil {
		RespondServiceError(w, r, err, "resolve identity")
		return domain.Identity{}, false
	}
	return id, true
}

// GetBalance handles GET /v1/loyalty/balance
func (h *LoyaltyHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.Balance(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "get balance")
		return
	}
	RespondJSON(w, http.StatusOK, balance)
}

// HistoryResponse is one page of ledger entries.
type HistoryResponse struct {
	Entries []models.LedgerEntry `json:"entries"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// GetHistory handles GET /v1/loyalty/history?limit=&offset=
func (h *LoyaltyHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-limit", "limit must be an integer")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-offset", "offset must be an integer")
		return
	}
	entries, err := h.ledger.History(r.Context(), id, limit, offset)
	if err != nil {
		RespondServiceError(w, r, err, "list history")
		return
	}
	RespondJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Limit: limit, Offset: offset})
}

// ListVouchers handles GET /v1/loyalty/vouchers
func (h *LoyaltyHandler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	vouchers, err := h.vouchers.ListForCustomer(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "list vouchers")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"vouchers": vouchers})
}

// ListEligibleVouchers handles GET /v1/loyalty/vouchers/eligible?subtotal=25.00
func (h *LoyaltyHandler) ListEligibleVouchers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	subtotal, err := parseAmount(r.URL.Query().Get("subtotal"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-subtotal", "subtotal must be a non-negative decimal amount")
		return
	}
	vouchers, err := h.vouchers.ListEligible(r.Context(), id, subtotal)
	if err != nil {
		RespondServiceError(w, r, err, "list eligible vouchers")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"vouchers": vouchers})
}

// UseVoucherRequest represents the request body for spending a voucher.
type UseVoucherRequest struct {
	OrderID  *int64 `json:"order_id,omitempty"`
	Subtotal string `json:"subtotal"`
}

// UseVoucher handles POST /v1/loyalty/vouchers/{code}/use
func (h *LoyaltyHandler) UseVoucher(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req UseVoucherRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	subtotal, err := parseAmount(req.Subtotal)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-subtotal", "subtotal must be a non-negative decimal amount")
		return
	}
	voucher, err := h.vouchers.Use(r.Context(), id, service.UseVoucherRequest{
		Code:     chi.URLParam(r, "code"),
		OrderID:  req.OrderID,
		Subtotal: subtotal,
	})
	if err != nil {
		RespondServiceError(w, r, err, "use voucher")
		return
	}
	RespondJSON(w, http.StatusOK, voucher)
}

// RedeemRequest represents the request body for exchanging points.
type RedeemRequest struct {
	RewardID int64 `json:"reward_id"`
}

// Redeem handles POST /v1/loyalty/redemptions
func (h *LoyaltyHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req RedeemRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	result, err := h.redemptions.Redeem(r.Context(), id, req.RewardID)
	if err != nil {
		RespondServiceError(w, r, err, "redeem reward")
		return
	}
	RespondJSON(w, http.StatusCreated, result)
}

// ClaimRequest represents the request body for a promotional claim.
type ClaimRequest struct {
	Day int `json:"day"`
}

// Claim handles POST /v1/loyalty/claims
func (h *LoyaltyHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	var req ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	result, err := h.claims.Claim(r.Context(), id, req.Day)
	if err != nil {
		RespondServiceError(w, r, err, "claim promo day")
		return
	}
	RespondJSON(w, http.StatusCreated, result)
}

// ListClaims handles GET /v1/loyalty/claims?year=
func (h *LoyaltyHandler) ListClaims(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	year, err := queryInt(r, "year", int(h.claims.Campaign().Year()))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-year", "year must be an integer")
		return
	}
	claims, err := h.claims.ListClaims(r.Context(), id, int32(year))
	if err != nil {
		RespondServiceError(w, r, err, "list claims")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"year": year, "claims": claims})
}

// Recover handles POST /v1/loyalty/recover
// It links orders placed without an account to the caller by phone and
// awards them.
func (h *LoyaltyHandler) Recover(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	result, err := h.recovery.Recover(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "recover orders")
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// SignupBonusResponse reports whether this call granted the bonus.
type SignupBonusResponse struct {
	Granted bool                `json:"granted"`
	Entry   *models.LedgerEntry `json:"entry,omitempty"`
}

// GrantSignupBonus handles POST /v1/loyalty/signup-bonus
func (h *LoyaltyHandler) GrantSignupBonus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identity(w, r)
	if !ok {
		return
	}
	entry, err := h.awards.GrantSignupBonus(r.Context(), id)
	if err != nil {
		RespondServiceError(w, r, err, "grant signup bonus")
		return
	}
	RespondJSON(w, http.StatusOK, SignupBonusResponse{Granted: entry != nil, Entry: entry})
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func parseAmount(raw string) (domain.Money, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.NewMoney(0), nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return domain.Money{}, err
	}
	if d.IsNegative() {
		return domain.Money{}, models.Invalid("subtotal", "must not be negative")
	}
	return domain.MoneyFromDecimal(d), nil
}
