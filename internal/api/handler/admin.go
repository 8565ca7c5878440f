package handler

import (
	"net/http"
	"strings"

	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/service"
)

// AdminHandler serves operator routes under /v1/admin. Customers are named by
// key ("legacy:7" or "external:abc") and resolved like any caller, so linked
// profiles are honored.
type AdminHandler struct {
	resolver       *service.IdentityResolver
	awards         *service.AwardService
	refunds        *service.RefundService
	claims         *service.ClaimService
	reconciliation *service.ReconciliationService
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(
	resolver *service.IdentityResolver,
	awards *service.AwardService,
	refunds *service.RefundService,
	claims *service.ClaimService,
	reconciliation *service.ReconciliationService,
) *AdminHandler {
	return &AdminHandler{
		resolver:       resolver,
		awards:         awards,
		refunds:        refunds,
		claims:         claims,
		reconciliation: reconciliation,
	}
}

func (h *AdminHandler) resolveCustomer(w http.ResponseWriter, r *http.Request, raw string) (domain.Identity, bool) {
	if strings.TrimSpace(raw) == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-customer", "customer is required")
		return domain.Identity{}, false
	}
	caller, err := callerParam(raw)
	if err != nil {
		RespondServiceError(w, r, err, "parse customer")
		return domain.Identity{}, false
	}
	id, err := h.resolver.Resolve(r.Context(), caller)
	if err != nil {
		RespondServiceError(w, r, err, "resolve identity")
		return domain.Identity{}, false
	}
	return id, true
}

// MarkOrderPaid handles POST /v1/admin/orders/{id}/paid
// It records the order as paid, then awards it to whoever owns it.
func (h *AdminHandler) MarkOrderPaid(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathInt64(r, "id")
	if err != nil {
		RespondServiceError(w, r, err, "parse order id")
		return
	}
	result, err := h.awards.MarkOrderPaid(r.Context(), orderID)
	if err != nil {
		RespondServiceError(w, r, err, "award order")
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// RefundOrder handles POST /v1/admin/orders/{id}/refund
// It records the order as refunded, then reverses its award.
func (h *AdminHandler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathInt64(r, "id")
	if err != nil {
		RespondServiceError(w, r, err, "parse order id")
		return
	}
	result, err := h.refunds.MarkOrderRefunded(r.Context(), orderID)
	if err != nil {
		RespondServiceError(w, r, err, "refund order")
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// AdminAwardRequest represents the request body for a manual credit.
type AdminAwardRequest struct {
	Customer string `json:"customer"`
	Points   int64  `json:"points"`
	Reason   string `json:"reason"`
}

// Award handles POST /v1/admin/awards
func (h *AdminHandler) Award(w http.ResponseWriter, r *http.Request) {
	var req AdminAwardRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	id, ok := h.resolveCustomer(w, r, req.Customer)
	if !ok {
		return
	}
	entry, err := h.awards.AdminAward(r.Context(), id, req.Points, req.Reason)
	if err != nil {
		RespondServiceError(w, r, err, "admin award")
		return
	}
	RespondJSON(w, http.StatusCreated, entry)
}

// ReconcileRequest selects one customer or, with All, every customer.
// DryRun defaults to true; repairs need an explicit false.
type ReconcileRequest struct {
	Customer string `json:"customer,omitempty"`
	All      bool   `json:"all,omitempty"`
	DryRun   *bool  `json:"dry_run,omitempty"`
}

// Reconcile handles POST /v1/admin/reconciliation
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := decodeJSON(r, &req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	dryRun := req.DryRun == nil || *req.DryRun

	if req.All {
		summary, err := h.reconciliation.ReconcileAll(r.Context(), dryRun)
		if err != nil {
			RespondServiceError(w, r, err, "reconcile all")
			return
		}
		RespondJSON(w, http.StatusOK, summary)
		return
	}

	id, ok := h.resolveCustomer(w, r, req.Customer)
	if !ok {
		return
	}
	report, err := h.reconciliation.Reconcile(r.Context(), id, dryRun)
	if err != nil {
		RespondServiceError(w, r, err, "reconcile")
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

// ResetClaim handles DELETE /v1/admin/claims?customer=&day=&year=
// It removes the claim and its voucher so the slot can be claimed again.
func (h *AdminHandler) ResetClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := h.resolveCustomer(w, r, r.URL.Query().Get("customer"))
	if !ok {
		return
	}
	day, err := queryInt(r, "day", 0)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-day", "day must be an integer")
		return
	}
	year, err := queryInt(r, "year", int(h.claims.Campaign().Year()))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-year", "year must be an integer")
		return
	}
	if err := h.claims.ResetClaim(r.Context(), id, day, int32(year)); err != nil {
		RespondServiceError(w, r, err, "reset claim")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
