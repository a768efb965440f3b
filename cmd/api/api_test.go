package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/domain/memory"
	"storefront/internal/domain/orders"
	"storefront/internal/domain/products"
	"storefront/internal/kvstore"
	"storefront/internal/payments"
	"storefront/internal/ratelimiter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	ownerID      = 1
	staffID      = 2
	viewerID     = 3
	managerID    = 4
	otherOwnerID = 10
	superAdminID = 99
)

type testServer struct {
	t        *testing.T
	app      *application
	handler  http.Handler
	db       *memory.DB
	provider *payments.StaticProvider
	widget   int64
	gadget   int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config{
		env:         "test",
		storeDriver: "memory",
		currency:    "NPR",
		auth: authConfig{
			basic: basicConfig{user: "svc", pass: "s3cret"},
			token: tokenConfig{secret: "test-secret", exp: time.Hour, iss: "storefront-test"},
		},
		rateLimiter: ratelimiter.Config{Enabled: true, Window: time.Minute},
	}

	kv := kvstore.NewMemoryStore(0)
	t.Cleanup(kv.Close)

	db := memory.New(orders.NewOrderNumberGenerator("test", ""))
	db.SeedTenant(1, "acme", "pro")
	db.SeedTenant(2, "globex", "free")
	db.SeedMember(1, ownerID, "owner")
	db.SeedMember(1, staffID, "staff")
	db.SeedMember(1, viewerID, "viewer")
	db.SeedMember(1, managerID, "manager")
	db.SeedMember(2, otherOwnerID, "owner")
	db.SeedSuperAdmin(superAdminID)

	widget, err := db.SeedProduct(1, products.CreateInput{SKU: "WIDGET", Name: "Widget", PriceCents: 2500, Currency: "NPR", InitialStock: 10, LowStockThreshold: 2})
	require.NoError(t, err)
	gadget, err := db.SeedProduct(1, products.CreateInput{SKU: "GADGET", Name: "Gadget", PriceCents: 1000, Currency: "NPR", InitialStock: 1})
	require.NoError(t, err)

	provider := payments.NewStaticProvider()
	mgr := payments.NewPaymentManager()
	mgr.RegisterProvider(provider)

	app, err := newApplication(cfg, db.Container(kv), mgr, nil, zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(app.ledger.Wait)

	return &testServer{
		t:        t,
		app:      app,
		handler:  app.mount(),
		db:       db,
		provider: provider,
		widget:   widget.ID,
		gadget:   gadget.ID,
	}
}

func (s *testServer) token(tenantID, principalID int64) string {
	s.t.Helper()
	tok, err := s.app.authenticator.GenerateToken(auth.Principal{TenantID: tenantID, PrincipalID: principalID}, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) pay(ref string, amount int64) {
	s.provider.Add(payments.LookupResult{
		ReferenceID: ref, Status: payments.ProviderStatusCompleted,
		AmountCents: amount, Currency: "NPR", TenantID: 1,
	})
}

type call struct {
	method  string
	path    string
	token   string
	body    any
	headers map[string]string
}

func (s *testServer) do(c call) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		switch b := c.body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(s.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

type apiError struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apiError {
	t.Helper()
	var e apiError
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e), rr.Body.String())
	return e
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	env := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func checkoutBody(productID, qty int64, ref string) map[string]any {
	return map[string]any{
		"lines":             []map[string]any{{"product_id": productID, "quantity": qty, "unit_price_cents": 1}},
		"shipping":          map[string]any{"method": "pickup"},
		"payment_reference": ref,
	}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(call{method: http.MethodGet, path: "/v1/health"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMissingBearerIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(call{method: http.MethodGet, path: "/v1/orders"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "UNAUTHORIZED", decodeError(t, rr).Error.Code)

	rr = s.do(call{method: http.MethodGet, path: "/v1/orders", token: "not-a-jwt"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTokenForNonMemberIsRejected(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(call{method: http.MethodGet, path: "/v1/orders", token: s.token(2, staffID)})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCheckoutOverHTTP(t *testing.T) {
	s := newTestServer(t)
	s.pay("pay_http_0001", 5000)
	tok := s.token(1, staffID)
	headers := map[string]string{"Idempotency-Key": "order-attempt-0001"}

	rr := s.do(call{method: http.MethodPost, path: "/v1/checkout", token: tok, body: checkoutBody(s.widget, 2, "pay_http_0001"), headers: headers})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("X-RateLimit-Limit"))

	var first struct {
		Order    orders.Order `json:"order"`
		Replayed bool         `json:"replayed"`
	}
	decodeData(t, rr, &first)
	assert.False(t, first.Replayed)
	// the client's unit price is ignored
	assert.Equal(t, int64(5000), first.Order.TotalCents)
	assert.Equal(t, int64(8), s.db.OnHand(1, s.widget))

	rr = s.do(call{method: http.MethodPost, path: "/v1/checkout", token: tok, body: checkoutBody(s.widget, 2, "pay_http_0001"), headers: headers})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "true", rr.Header().Get("Idempotent-Replayed"))

	var second struct {
		Order    orders.Order `json:"order"`
		Replayed bool         `json:"replayed"`
	}
	decodeData(t, rr, &second)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, int64(8), s.db.OnHand(1, s.widget))
	assert.Equal(t, 1, s.db.OrderCount(1))
}

func TestCheckoutViewerIsForbidden(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(call{method: http.MethodPost, path: "/v1/checkout", token: s.token(1, viewerID), body: checkoutBody(s.widget, 1, "pay_http_0002")})
	require.Equal(t, http.StatusForbidden, rr.Code)

	e := decodeError(t, rr)
	assert.Equal(t, "FORBIDDEN", e.Error.Code)
	assert.Equal(t, "orders.create", e.Error.Details["required"])
	assert.Equal(t, "viewer", e.Error.Details["actual_role"])
}

func TestCheckoutRequestValidation(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(1, staffID)

	tests := map[string]any{
		"empty lines":     map[string]any{"lines": []any{}, "payment_reference": "pay_x_000001"},
		"zero quantity":   checkoutBody(s.widget, 0, "pay_x_000001"),
		"missing payment": map[string]any{"lines": []map[string]any{{"product_id": s.widget, "quantity": 1}}},
		"unknown field":   `{"lines":[{"product_id":1,"quantity":1}],"payment_reference":"pay_x_000001","total":1}`,
		"malformed json":  `{"lines":`,
		"shipping cost":   map[string]any{"lines": []map[string]any{{"product_id": s.widget, "quantity": 1}}, "shipping": map[string]any{"method": "standard", "cost_cents": 0}, "payment_reference": "pay_x_000001"},
		"bad idempotency": nil,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			c := call{method: http.MethodPost, path: "/v1/checkout", token: tok, body: body}
			if name == "bad idempotency" {
				c.body = checkoutBody(s.widget, 1, "pay_x_000001")
				c.headers = map[string]string{"Idempotency-Key": "short"}
			}
			rr := s.do(c)
			require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", decodeError(t, rr).Error.Code)
		})
	}
}

func TestCheckoutAmountMismatch(t *testing.T) {
	s := newTestServer(t)
	s.pay("pay_http_0003", 2400)

	rr := s.do(call{method: http.MethodPost, path: "/v1/checkout", token: s.token(1, staffID), body: checkoutBody(s.widget, 1, "pay_http_0003")})
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code, rr.Body.String())
	e := decodeError(t, rr)
	assert.Equal(t, "amount mismatch", e.Error.Details["reason"])
	assert.Equal(t, int64(10), s.db.OnHand(1, s.widget))
}

func TestProviderOutageIsServiceUnavailable(t *testing.T) {
	s := newTestServer(t)
	outage := &payments.StatusError{Provider: "static", Code: http.StatusServiceUnavailable}
	s.provider.FailNext(outage, outage, outage)

	body := map[string]any{"payment_reference": "pay_http_0004", "amount_cents": 100}
	rr := s.do(call{method: http.MethodPost, path: "/v1/payments/validate", token: s.token(1, managerID), body: body})
	require.Equal(t, http.StatusServiceUnavailable, rr.Code, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "TRANSIENT", decodeError(t, rr).Error.Code)
}

func TestValidatePayment(t *testing.T) {
	s := newTestServer(t)
	s.pay("pay_http_0005", 1000)
	tok := s.token(1, managerID)

	rr := s.do(call{method: http.MethodPost, path: "/v1/payments/validate", token: tok, body: map[string]any{"payment_reference": "pay_http_0005", "amount_cents": 1000}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var v payments.Validation
	decodeData(t, rr, &v)
	assert.True(t, v.IsValid)

	rr = s.do(call{method: http.MethodPost, path: "/v1/payments/validate", token: tok, body: map[string]any{"payment_reference": "pay_http_0005", "amount_cents": 5000}})
	require.Equal(t, http.StatusOK, rr.Code)
	decodeData(t, rr, &v)
	assert.False(t, v.IsValid)
	assert.Equal(t, payments.ReasonAmountMismatch, v.Reason)

	// staff holds no payments.validate grant
	rr = s.do(call{method: http.MethodPost, path: "/v1/payments/validate", token: s.token(1, staffID), body: map[string]any{"payment_reference": "pay_http_0005", "amount_cents": 1000}})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestValidatePaymentKeyIsTenantScoped(t *testing.T) {
	s := newTestServer(t)
	s.pay("pay_acme_secret", 1500)
	key := map[string]string{"Idempotency-Key": "shared-key-1"}

	rr := s.do(call{method: http.MethodPost, path: "/v1/payments/validate", token: s.token(1, managerID), headers: key,
		body: map[string]any{"payment_reference": "pay_acme_secret", "amount_cents": 1500}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var v payments.Validation
	decodeData(t, rr, &v)
	require.True(t, v.IsValid)

	rr = s.do(call{method: http.MethodPost, path: "/v1/payments/validate", token: s.token(2, otherOwnerID), headers: key,
		body: map[string]any{"payment_reference": "pay_globex_nothing", "amount_cents": 1}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var other payments.Validation
	decodeData(t, rr, &other)
	assert.False(t, other.IsValid)
	assert.Equal(t, "pay_globex_nothing", other.ReferenceID)
	assert.Equal(t, int64(2), other.TenantID)

	rr = s.do(call{method: http.MethodPost, path: "/v1/payments/validate", token: s.token(1, managerID), headers: key,
		body: map[string]any{"payment_reference": "pay_acme_secret", "amount_cents": 1500, "currency": "USD"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var usd payments.Validation
	decodeData(t, rr, &usd)
	assert.False(t, usd.IsValid)
	assert.Equal(t, payments.ReasonCurrencyMismatch, usd.Reason)

	rr = s.do(call{method: http.MethodPost, path: "/v1/payments/validate", token: s.token(1, managerID),
		headers: map[string]string{"Idempotency-Key": "k"},
		body:    map[string]any{"payment_reference": "pay_acme_secret", "amount_cents": 1500}})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestInitiatePaymentRecordsPendingReference(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{"amount_cents": 2500, "product_name": "Widget"}

	rr := s.do(call{method: http.MethodPost, path: "/v1/payments/initiate?method=static", token: s.token(1, staffID), body: body})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var res payments.InitiateResult
	decodeData(t, rr, &res)
	require.NotEmpty(t, res.ReferenceID)

	ref, err := s.app.store.Payments.GetReference(t.Context(), res.ReferenceID)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, "pending", ref.Status)
	assert.Equal(t, int64(1), ref.TenantID)

	rr = s.do(call{method: http.MethodPost, path: "/v1/payments/initiate?method=paypal", token: s.token(1, staffID), body: body})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestInventoryAdjustments(t *testing.T) {
	s := newTestServer(t)
	path := "/v1/inventory/" + strconv.FormatInt(s.widget, 10) + "/adjustments"

	t.Run("staff cannot adjust", func(t *testing.T) {
		rr := s.do(call{method: http.MethodPost, path: path, token: s.token(1, staffID), body: map[string]any{"delta": 5, "reason": "restock"}})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("manager restocks", func(t *testing.T) {
		rr := s.do(call{method: http.MethodPost, path: path, token: s.token(1, managerID), body: map[string]any{"delta": 5, "reason": "restock"}})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, int64(15), s.db.OnHand(1, s.widget))
	})

	t.Run("absolute quantity", func(t *testing.T) {
		rr := s.do(call{method: http.MethodPost, path: path, token: s.token(1, managerID), body: map[string]any{"quantity": 12, "reason": "correction"}})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, int64(12), s.db.OnHand(1, s.widget))
	})

	t.Run("below zero", func(t *testing.T) {
		rr := s.do(call{method: http.MethodPost, path: path, token: s.token(1, managerID), body: map[string]any{"delta": -100, "reason": "damage"}})
		require.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "INSUFFICIENT_STOCK", decodeError(t, rr).Error.Code)
	})

	t.Run("both delta and quantity", func(t *testing.T) {
		rr := s.do(call{method: http.MethodPost, path: path, token: s.token(1, managerID), body: map[string]any{"delta": 1, "quantity": 3, "reason": "correction"}})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("history is paginated", func(t *testing.T) {
		rr := s.do(call{method: http.MethodGet, path: path + "?limit=1", token: s.token(1, viewerID)})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var page adjustmentsPage
		decodeData(t, rr, &page)
		require.Len(t, page.Adjustments, 1)
		assert.Equal(t, 2, page.Pagination.Total)
		assert.True(t, page.Pagination.HasNext)
	})
}

func TestCrossTenantAccess(t *testing.T) {
	s := newTestServer(t)
	s.pay("pay_http_0006", 1000)
	rr := s.do(call{method: http.MethodPost, path: "/v1/checkout", token: s.token(1, staffID), body: checkoutBody(s.gadget, 1, "pay_http_0006")})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var res struct {
		Order orders.Order `json:"order"`
	}
	decodeData(t, rr, &res)
	orderPath := "/v1/orders/" + strconv.FormatInt(res.Order.ID, 10)

	t.Run("other tenant sees not found", func(t *testing.T) {
		rr := s.do(call{method: http.MethodGet, path: orderPath, token: s.token(2, otherOwnerID)})
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("tenant header without super-admin", func(t *testing.T) {
		rr := s.do(call{method: http.MethodGet, path: orderPath, token: s.token(2, otherOwnerID), headers: map[string]string{"X-Tenant-ID": "1"}})
		require.Equal(t, http.StatusForbidden, rr.Code)
		assert.Equal(t, "TENANT_ISOLATION_VIOLATION", decodeError(t, rr).Error.Code)
	})

	t.Run("super-admin bypass", func(t *testing.T) {
		rr := s.do(call{method: http.MethodGet, path: orderPath, token: s.token(2, superAdminID), headers: map[string]string{"X-Tenant-ID": "1"}})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	})
}

func TestCancelOrderRestoresStock(t *testing.T) {
	s := newTestServer(t)
	s.pay("pay_http_0007", 2500)
	rr := s.do(call{method: http.MethodPost, path: "/v1/checkout", token: s.token(1, staffID), body: checkoutBody(s.widget, 1, "pay_http_0007")})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var res struct {
		Order orders.Order `json:"order"`
	}
	decodeData(t, rr, &res)
	path := "/v1/orders/" + strconv.FormatInt(res.Order.ID, 10) + "/cancel"

	rr = s.do(call{method: http.MethodPost, path: path, token: s.token(1, staffID)})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = s.do(call{method: http.MethodPost, path: path, token: s.token(1, managerID), body: map[string]any{"reason": "refund"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var o orders.Order
	decodeData(t, rr, &o)
	assert.Equal(t, orders.StatusCancelled, o.Status)
	assert.Equal(t, int64(10), s.db.OnHand(1, s.widget))

	rr = s.do(call{method: http.MethodPost, path: path, token: s.token(1, managerID)})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRateLimitOverHTTP(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(2, otherOwnerID)
	limit := ratelimiter.LimitForTier("free")

	for i := 0; i < limit; i++ {
		rr := s.do(call{method: http.MethodGet, path: "/v1/products", token: tok})
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i+1)
	}

	rr := s.do(call{method: http.MethodGet, path: "/v1/products", token: tok})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decodeError(t, rr).Error.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))

	// tenant 1 has its own window
	rr = s.do(call{method: http.MethodGet, path: "/v1/products", token: s.token(1, viewerID)})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTokenEndpoint(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{"tenant_id": 1, "principal_id": managerID}

	rr := s.do(call{method: http.MethodPost, path: "/v1/auth/token", body: body})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	basic := "Basic " + base64.StdEncoding.EncodeToString([]byte("svc:s3cret"))
	rr = s.do(call{method: http.MethodPost, path: "/v1/auth/token", body: body, headers: map[string]string{"Authorization": basic}})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var tok tokenResponse
	decodeData(t, rr, &tok)
	assert.Equal(t, "manager", tok.Role)

	rr = s.do(call{method: http.MethodGet, path: "/v1/orders", token: tok.Token})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(call{method: http.MethodPost, path: "/v1/auth/token", body: map[string]any{"tenant_id": 2, "principal_id": managerID}, headers: map[string]string{"Authorization": basic}})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestDemotionAppliesToIssuedToken(t *testing.T) {
	s := newTestServer(t)
	tok := s.token(1, managerID)
	s.pay("pay_demote0001", 2500)
	body := map[string]any{"payment_reference": "pay_demote0001", "amount_cents": 2500}

	rr := s.do(call{method: http.MethodPost, path: "/v1/payments/validate", token: tok, body: body})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(call{method: http.MethodPut, path: "/v1/members/" + strconv.FormatInt(managerID, 10), token: s.token(1, ownerID), body: map[string]any{"role": "viewer"}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(call{method: http.MethodPost, path: "/v1/payments/validate", token: tok, body: body})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestMemberManagement(t *testing.T) {
	s := newTestServer(t)

	t.Run("manager cannot manage members", func(t *testing.T) {
		rr := s.do(call{method: http.MethodPut, path: "/v1/members/50", token: s.token(1, managerID), body: map[string]any{"role": "staff"}})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("owner assigns and removes", func(t *testing.T) {
		rr := s.do(call{method: http.MethodPut, path: "/v1/members/50", token: s.token(1, ownerID), body: map[string]any{"role": "admin"}})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		rr = s.do(call{method: http.MethodDelete, path: "/v1/members/50", token: s.token(1, ownerID)})
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		rr := s.do(call{method: http.MethodPut, path: "/v1/members/51", token: s.token(1, ownerID), body: map[string]any{"role": "emperor"}})
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("cannot remove self", func(t *testing.T) {
		rr := s.do(call{method: http.MethodDelete, path: "/v1/members/1", token: s.token(1, ownerID)})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}
