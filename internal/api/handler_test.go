package api_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ayo6706/restaurant-loyalty/internal/api"
	"github.com/ayo6706/restaurant-loyalty/internal/api/middleware"
	"github.com/ayo6706/restaurant-loyalty/internal/config"
	"github.com/ayo6706/restaurant-loyalty/internal/domain"
	"github.com/ayo6706/restaurant-loyalty/internal/idempotency"
	"github.com/ayo6706/restaurant-loyalty/internal/models"
	"github.com/ayo6706/restaurant-loyalty/internal/repository"
	"github.com/ayo6706/restaurant-loyalty/internal/service"
	"github.com/ayo6706/restaurant-loyalty/internal/testutil/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testJWTSecret   = "test-secret-0123456789-test-secret"
	testJWTIssuer   = "restaurant-auth-test"
	testJWTAudience = "loyalty-api-test"
	testHookKey     = "hook-secret"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

type testAPI struct {
	store    *memstore.Store
	campaign domain.Campaign
	router   chi.Router
}

func setupAPI(t *testing.T, pinger fakePinger) *testAPI {
	t.Helper()

	store := memstore.New()
	cfg := &config.Config{
		HTTPPort:             "0",
		JWTSecret:            testJWTSecret,
		JWTIssuer:            testJWTIssuer,
		JWTAudience:          testJWTAudience,
		WebhookHMACKey:       testHookKey,
		WebhookSkipSignature: false,
		PublicRateLimitRPS:   1000,
		AuthRateLimitRPS:     1000,
		IdempotencyTTL:       time.Hour,
	}

	// The campaign opens today so day 1 is always claimable.
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	campaign, err := domain.NewCampaign(time.Now().In(loc).Format("2006-01-02"), 25, "America/New_York")
	require.NoError(t, err)

	resolver := service.NewIdentityResolver(store)
	awards := service.NewAwardService(store, resolver, service.BonusConfig{SignupPoints: 100})
	refunds := service.NewRefundService(store, resolver)
	svc := api.Services{
		Resolver:       resolver,
		Ledger:         service.NewLedgerService(store),
		Awards:         awards,
		Redemptions:    service.NewRedemptionService(store),
		Vouchers:       service.NewVoucherService(store),
		Claims:         service.NewClaimService(store, campaign),
		Refunds:        refunds,
		Recovery:       service.NewRecoveryService(store, awards, service.DefaultRecoveryWindow),
		Reconciliation: service.NewReconciliationService(store, resolver),
		Webhook:        service.NewWebhookService(awards, refunds, testHookKey, false),
	}
	idemStore := idempotency.NewStore(nil, store, cfg.IdempotencyTTL)
	router := api.NewRouter(cfg, zap.NewNop(), pinger, idemStore, nil, svc).Routes()
	return &testAPI{store: store, campaign: campaign, router: router}
}

func generateTestToken(customerID int64) string {
	return generateTokenWithRole(customerID, "", "customer")
}

func generateTokenWithRole(customerID int64, subject, role string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"role": role,
		"iss":  testJWTIssuer,
		"aud":  testJWTAudience,
		"iat":  now.Unix(),
		"nbf":  now.Add(-30 * time.Second).Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
	if customerID > 0 {
		claims["customer_id"] = customerID
	}
	if subject != "" {
		claims["sub"] = subject
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString(middleware.JWTSecret())
	return tokenString
}

func adminToken() string {
	return generateTokenWithRole(0, "ops-admin", middleware.RoleAdmin)
}

func (a *testAPI) do(t *testing.T, method, path, token, idemKey string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) balance(t *testing.T, token string) models.Balance {
	t.Helper()
	w := a.do(t, http.MethodGet, "/v1/loyalty/balance", token, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var balance models.Balance
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	return balance
}

func (a *testAPI) adminAward(t *testing.T, customer string, points int64) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/v1/admin/awards", adminToken(), "award-"+customer, map[string]any{
		"customer": customer,
		"points":   points,
		"reason":   "goodwill",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func problemType(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	typ, _ := body["type"].(string)
	return typ
}

func sign(payload []byte) string {
	h := hmac.New(sha256.New, []byte(testHookKey))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

func TestRFC7807ProblemDetails(t *testing.T) {
	a := setupAPI(t, fakePinger{})

	w := a.do(t, http.MethodGet, "/v1/loyalty/balance", "", "", nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["type"])
	assert.Equal(t, float64(http.StatusUnauthorized), body["status"])
	assert.NotEmpty(t, body["title"])
	assert.NotEmpty(t, body["detail"])
	assert.Equal(t, "/v1/loyalty/balance", body["instance"])
	assert.NotEmpty(t, body["request_id"])
}

func TestTokenWithoutIdentityClaimsRejected(t *testing.T) {
	a := setupAPI(t, fakePinger{})

	w := a.do(t, http.MethodGet, "/v1/loyalty/balance", generateTokenWithRole(0, "", "customer"), "", nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, problemType(t, w), "auth/invalid-token-claims")
}

func TestBalanceStartsAtZero(t *testing.T) {
	a := setupAPI(t, fakePinger{})

	balance := a.balance(t, generateTestToken(7))

	assert.Equal(t, "legacy:7", balance.CustomerKey)
	assert.Zero(t, balance.Points)
	assert.Zero(t, balance.TotalEarned)
}

func TestPaymentWebhookAwardsOrder(t *testing.T) {
	a := setupAPI(t, fakePinger{})
	_, err := a.store.Queries().CreateOrder(context.Background(), repository.CreateOrderParams{
		ID:               900,
		LegacyCustomerID: ptr(int64(7)),
		TotalCents:       4210,
		PaymentStatus:    domain.PaymentStatusPending,
	})
	require.NoError(t, err)

	payload := []byte(`{"event_id":"evt_1","event":"order.paid","order_id":900}`)
	post := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/payments", bytes.NewReader(payload))
		req.Header.Set("X-Webhook-Signature", signature)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		return w
	}

	w := post("sha256=deadbeef")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, problemType(t, w), "webhook/invalid-signature")

	w = post(sign(payload))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp service.PaymentEventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Award)
	assert.Equal(t, int64(42), resp.Award.Points)

	w = post(sign(payload))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Award.AlreadyAwarded)

	assert.Equal(t, int64(42), a.balance(t, generateTestToken(7)).Points)
}

func TestRedemptionIdempotencyReplay(t *testing.T) {
	a := setupAPI(t, fakePinger{})
	_, err := a.store.Queries().UpsertReward(context.Background(), repository.UpsertRewardParams{
		ID:             5,
		Name:           "Free fries",
		PointsRequired: 100,
		DiscountType:   domain.DiscountTypeFixed,
		DiscountValue:  399,
		Active:         true,
	})
	require.NoError(t, err)
	a.adminAward(t, "legacy:7", 150)
	token := generateTestToken(7)

	w := a.do(t, http.MethodPost, "/v1/loyalty/redemptions", token, "", map[string]any{"reward_id": 5})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, problemType(t, w), "idempotency/missing-key")

	first := a.do(t, http.MethodPost, "/v1/loyalty/redemptions", token, "redeem-1", map[string]any{"reward_id": 5})
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := a.do(t, http.MethodPost, "/v1/loyalty/redemptions", token, "redeem-1", map[string]any{"reward_id": 5})
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "postgres", replay.Header().Get("X-Idempotent-Replay"))
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	conflict := a.do(t, http.MethodPost, "/v1/loyalty/redemptions", token, "redeem-1", map[string]any{"reward_id": 6})
	require.Equal(t, http.StatusConflict, conflict.Code)

	assert.Equal(t, int64(50), a.balance(t, token).Points)
	assert.Len(t, a.store.Vouchers(), 1)

	w = a.do(t, http.MethodPost, "/v1/loyalty/redemptions", token, "redeem-2", map[string]any{"reward_id": 5})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, problemType(t, w), "loyalty/insufficient-points")
}

func TestIdempotencyKeysAreScopedPerCustomer(t *testing.T) {
	a := setupAPI(t, fakePinger{})

	for _, id := range []int64{1, 2} {
		w := a.do(t, http.MethodPost, "/v1/loyalty/signup-bonus", generateTestToken(id), "same-key", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp struct {
			Granted bool `json:"granted"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Granted)
		assert.Empty(t, w.Header().Get("X-Idempotent-Replay"))
	}
	assert.Equal(t, int64(100), a.balance(t, generateTestToken(2)).Points)
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	a := setupAPI(t, fakePinger{})

	w := a.do(t, http.MethodPost, "/v1/admin/awards", generateTestToken(7), "k1", map[string]any{
		"customer": "legacy:7",
		"points":   10,
		"reason":   "self-service",
	})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/v1/admin/awards", adminToken(), "k2", map[string]any{
		"customer": "legacy:7",
		"points":   0,
		"reason":   "nothing",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, problemType(t, w), "loyalty/invalid-points")

	w = a.do(t, http.MethodPost, "/v1/admin/awards", adminToken(), "k3", map[string]any{
		"customer": "customer-7",
		"points":   10,
		"reason":   "typo",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, problemType(t, w), "request/validation")
	var body struct {
		InvalidParams []struct {
			Name string `json:"name"`
		} `json:"invalid_params"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.InvalidParams, 1)
	assert.Equal(t, "customer", body.InvalidParams[0].Name)
}

func TestLinkedIdentitiesShareBalance(t *testing.T) {
	a := setupAPI(t, fakePinger{})
	_, err := a.store.Queries().UpsertCustomerProfile(context.Background(), repository.UpsertCustomerProfileParams{
		ExternalUserID:   "auth0|abc",
		LegacyCustomerID: ptr(int64(7)),
	})
	require.NoError(t, err)

	a.adminAward(t, "external:auth0|abc", 35)

	legacy := a.balance(t, generateTestToken(7))
	external := a.balance(t, generateTokenWithRole(0, "auth0|abc", "customer"))
	assert.Equal(t, int64(35), legacy.Points)
	assert.Equal(t, legacy, external)
	assert.Len(t, a.store.Balances(), 1)
}

func TestClaimAndResetPromoDay(t *testing.T) {
	a := setupAPI(t, fakePinger{})
	ctx := context.Background()
	reward, err := a.store.Queries().UpsertReward(ctx, repository.UpsertRewardParams{
		ID:            30,
		Name:          "Free cookie",
		DiscountType:  domain.DiscountTypeFixed,
		DiscountValue: 250,
		Code:          ptr("COOKIE1"),
		Active:        true,
	})
	require.NoError(t, err)
	_, err = a.store.Queries().UpsertPromoSlot(ctx, repository.UpsertPromoSlotParams{
		Year:     a.campaign.Year(),
		Day:      1,
		RewardID: reward.ID,
	})
	require.NoError(t, err)
	token := generateTestToken(4)

	w := a.do(t, http.MethodPost, "/v1/loyalty/claims", token, "claim-1", map[string]any{"day": 1})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var claimed models.ClaimResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &claimed))
	assert.Equal(t, "COOKIE1", claimed.Voucher.Code)

	w = a.do(t, http.MethodPost, "/v1/loyalty/claims", token, "claim-2", map[string]any{"day": 1})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, problemType(t, w), "claim/already-claimed")

	w = a.do(t, http.MethodPost, "/v1/loyalty/claims", token, "claim-3", map[string]any{"day": 2})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, problemType(t, w), "claim/not-open")

	w = a.do(t, http.MethodGet, "/v1/loyalty/claims", token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listed struct {
		Claims []models.ClaimRecord `json:"claims"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listed))
	require.Len(t, listed.Claims, 1)

	w = a.do(t, http.MethodDelete, "/v1/admin/claims?customer=legacy:4&day=1", adminToken(), "", nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	assert.Empty(t, a.store.Claims())
	assert.Empty(t, a.store.Vouchers())

	w = a.do(t, http.MethodPost, "/v1/loyalty/claims", token, "claim-4", map[string]any{"day": 1})
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestUseVoucherAtCheckout(t *testing.T) {
	a := setupAPI(t, fakePinger{})
	_, err := a.store.Queries().UpsertReward(context.Background(), repository.UpsertRewardParams{
		ID:             8,
		Name:           "$5 off",
		PointsRequired: 50,
		DiscountType:   domain.DiscountTypeFixed,
		DiscountValue:  500,
		MinOrderCents:  2000,
		Active:         true,
	})
	require.NoError(t, err)
	a.adminAward(t, "legacy:3", 50)
	token := generateTestToken(3)

	w := a.do(t, http.MethodPost, "/v1/loyalty/redemptions", token, "r1", map[string]any{"reward_id": 8})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var redeemed models.RedemptionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &redeemed))
	code := redeemed.Voucher.Code

	w = a.do(t, http.MethodGet, "/v1/loyalty/vouchers/eligible?subtotal=abc", token, "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(t, http.MethodGet, "/v1/loyalty/vouchers/eligible?subtotal=25.00", token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var eligible struct {
		Vouchers []models.Voucher `json:"vouchers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &eligible))
	require.Len(t, eligible.Vouchers, 1)

	w = a.do(t, http.MethodPost, "/v1/loyalty/vouchers/"+code+"/use", token, "u1", map[string]any{"subtotal": "12.00"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, problemType(t, w), "voucher/below-minimum-order")

	w = a.do(t, http.MethodPost, "/v1/loyalty/vouchers/"+code+"/use", token, "u2", map[string]any{"subtotal": "25.00", "order_id": 77})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var used models.Voucher
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &used))
	assert.Equal(t, domain.VoucherStatusRedeemed, used.Status)

	w = a.do(t, http.MethodPost, "/v1/loyalty/vouchers/"+code+"/use", token, "u3", map[string]any{"subtotal": "25.00"})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, problemType(t, w), "voucher/not-usable")
}

func TestAdminReconciliationDefaultsToDryRun(t *testing.T) {
	a := setupAPI(t, fakePinger{})
	a.adminAward(t, "legacy:9", 20)

	w := a.do(t, http.MethodPost, "/v1/admin/reconciliation", adminToken(), "", map[string]any{"customer": "legacy:9"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var report models.ReconciliationReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.True(t, report.DryRun)
	assert.False(t, report.HasDiscrepancies())

	w = a.do(t, http.MethodPost, "/v1/admin/reconciliation", adminToken(), "", map[string]any{"all": true, "dry_run": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var summary models.ReconciliationSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.False(t, summary.DryRun)
	assert.Equal(t, 1, summary.Customers)
}

func TestHealthEndpoints(t *testing.T) {
	a := setupAPI(t, fakePinger{})
	w := a.do(t, http.MethodGet, "/health/live", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = a.do(t, http.MethodGet, "/health/ready", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	down := setupAPI(t, fakePinger{err: errors.New("connection refused")})
	w = down.do(t, http.MethodGet, "/health/ready", "", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, problemType(t, w), "health/database-unavailable")
}

func TestOpenAPIServed(t *testing.T) {
	a := setupAPI(t, fakePinger{})
	w := a.do(t, http.MethodGet, "/openapi.yaml", "", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/v1/loyalty/balance")
}

func ptr[T any](v T) *T {
	return &v
}

func TestAdminMarksPendingOrderPaidAndRefunded(t *testing.T) {
	a := setupAPI(t, fakePinger{})
	ctx := context.Background()
	_, err := a.store.Queries().CreateOrder(ctx, repository.CreateOrderParams{
		ID:               910,
		LegacyCustomerID: ptr(int64(7)),
		TotalCents:       1599,
		PaymentStatus:    domain.PaymentStatusPending,
	})
	require.NoError(t, err)

	w := a.do(t, http.MethodPost, "/v1/admin/orders/910/paid", adminToken(), "paid-910", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var award models.AwardResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &award))
	assert.False(t, award.Skipped)
	assert.Equal(t, int64(15), award.Points)
	assert.Equal(t, int64(15), a.balance(t, generateTestToken(7)).Points)

	order, err := a.store.Queries().GetOrder(ctx, 910)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, order.PaymentStatus)

	w = a.do(t, http.MethodPost, "/v1/admin/orders/910/refund", adminToken(), "refund-910", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Zero(t, a.balance(t, generateTestToken(7)).Points)

	order, err = a.store.Queries().GetOrder(ctx, 910)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusRefunded, order.PaymentStatus)

	w = a.do(t, http.MethodPost, "/v1/admin/orders/911/paid", adminToken(), "paid-911", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, problemType(t, w), "order/not-found")
}

func TestAdminAwardLoggedOnce(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	a := setupAPI(t, fakePinger{})
	a.adminAward(t, "legacy:7", 40)

	applied := logs.FilterMessage("admin award applied").All()
	require.Len(t, applied, 1)
	assert.Equal(t, "legacy:7", applied[0].ContextMap()["customer_key"])
}
