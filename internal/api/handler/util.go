package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayo6706/restaurant-loyalty/internal/api/middleware"
	"github.com/ayo6706/restaurant-loyalty/internal/api/problem"
	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// RespondServiceError maps err onto a problem response, logging anything that
// is not a caller mistake.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error, operation string) {
	if status, problemType, ok := mapServiceError(err); ok {
		var verr *models.ValidationError
		if errors.As(err, &verr) && verr.Field != "" {
			problem.WriteInvalid(w, r, status, problem.Type(problemType), "", err.Error(),
				problem.InvalidParam{Name: verr.Field, Reason: verr.Message})
			return
		}
		RespondError(w, r, status, problemType, err.Error())
		return
	}
	if status, problemType, message, ok := mapDBError(err); ok {
		RespondError(w, r, status, problemType, message)
		return
	}
	zap.L().Error(operation+" failed",
		zap.Error(err),
		zap.String("trace_id", middleware.TraceIDFromContext(r.Context())),
	)
	RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
}

func mapServiceError(err error) (status int, problemType string, ok bool) {
	switch {
	case errors.Is(err, models.ErrInvalidIdentity):
		return http.StatusUnauthorized, "identity/missing", true
	case errors.Is(err, models.ErrInsufficientPoints):
		return http.StatusConflict, "loyalty/insufficient-points", true
	case errors.Is(err, models.ErrInvalidPoints):
		return http.StatusBadRequest, "loyalty/invalid-points", true
	case errors.Is(err, models.ErrOrderNotFound):
		return http.StatusNotFound, "order/not-found", true
	case errors.Is(err, models.ErrRewardNotFound):
		return http.StatusNotFound, "reward/not-found", true
	case errors.Is(err, models.ErrRewardInactive):
		return http.StatusConflict, "reward/inactive", true
	case errors.Is(err, models.ErrVoucherNotFound):
		return http.StatusNotFound, "voucher/not-found", true
	case errors.Is(err, models.ErrVoucherNotUsable):
		return http.StatusConflict, "voucher/not-usable", true
	case errors.Is(err, models.ErrBelowMinimumOrder):
		return http.StatusUnprocessableEntity, "voucher/below-minimum-order", true
	case errors.Is(err, models.ErrInvalidClaimDay):
		return http.StatusBadRequest, "claim/invalid-day", true
	case errors.Is(err, models.ErrClaimNotOpen):
		return http.StatusConflict, "claim/not-open", true
	case errors.Is(err, models.ErrSlotNotConfigured):
		return http.StatusNotFound, "claim/slot-not-configured", true
	case errors.Is(err, models.ErrSlotAlreadyClaimed):
		return http.StatusConflict, "claim/already-claimed", true
	case errors.Is(err, models.ErrClaimNotFound):
		return http.StatusNotFound, "claim/not-found", true
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusUnauthorized, "webhook/invalid-signature", true
	case errors.Is(err, service.ErrUnsupportedEvent):
		return http.StatusBadRequest, "webhook/unsupported-event", true
	case errors.Is(err, service.ErrInvalidEventFormat):
		return http.StatusBadRequest, "webhook/invalid-payload", true
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, "request/validation", true
	default:
		return 0, "", false
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}

// decodeJSON rejects unknown fields so typos in admin payloads surface early.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func pathInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v <= 0 {
		return 0, models.Invalid(name, "must be a positive integer")
	}
	return v, nil
}

// callerParam parses an admin-supplied customer key ("legacy:7" or
// "external:abc") into a caller for the identity resolver.
func callerParam(raw string) (service.Caller, error) {
	key, err := domain.ParseCustomerKey(raw)
	if err != nil {
		return service.Caller{}, models.Invalid("customer", err.Error())
	}
	if legacy, ok := key.Legacy(); ok {
		return service.Caller{LegacyCustomerID: &legacy}, nil
	}
	external, _ := key.External()
	return service.Caller{ExternalUserID: &external}, nil
}
