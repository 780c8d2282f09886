package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Overland-East-Bay/club-registry/internal/platform/auth/jwks_testutil"
	"github.com/Overland-East-Bay/club-registry/internal/platform/auth/jwtverifier"
	"github.com/Overland-East-Bay/club-registry/internal/platform/config"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestAuthRouter(t *testing.T) (http.Handler, func(now time.Time, sub string) string) {
	t.Helper()

	jwksSrv, setKeys := jwks_testutil.NewRotatingJWKSServer()
	t.Cleanup(jwksSrv.Close)

	kp, err := jwks_testutil.GenerateRSAKeypair("kid-1")
	if err != nil {
		t.Fatalf("GenerateRSAKeypair: %v", err)
	}
	setKeys([]jwks_testutil.Keypair{kp})

	cfg := config.JWTConfig{
		Issuer:                 "test-iss",
		Audience:               "test-aud",
		JWKSURL:                jwksSrv.URL,
		ClockSkew:              0,
		JWKSRefreshInterval:    10 * time.Minute,
		JWKSMinRefreshInterval: 0,
		HTTPTimeout:            2 * time.Second,
	}

	clk := fixedClock{t: time.Unix(1700000000, 0)}
	v := jwtverifier.NewWithOptions(cfg, nil, clk)

	mint := func(now time.Time, sub string) string {
		jwt, err := jwks_testutil.MintRS256JWT(kp, cfg.Issuer, cfg.Audience, sub, now, 5*time.Minute, nil)
		if err != nil {
			t.Fatalf("MintRS256JWT: %v", err)
		}
		return jwt
	}

	st := newStack(t)
	st.deposit(t, "57", 42)
	h := NewRouterWithOptions(st.server, RouterOptions{
		AuthMiddleware: NewAuthMiddleware(v),
		Metrics:        http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
	})
	return h, mint
}

func TestAuthMiddleware_MissingHeader_401(t *testing.T) {
	t.Parallel()

	h, _ := newTestAuthRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/accounts/57/balance", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if er.Error.Code != "UNAUTHORIZED" {
		t.Fatalf("code: got %q", er.Error.Code)
	}
	if !er.Error.RequestId.IsSpecified() || er.Error.RequestId.IsNull() {
		t.Fatalf("expected requestId to be set")
	}
	if rid, err := er.Error.RequestId.Get(); err != nil || rid == "" {
		t.Fatalf("expected requestId to be a non-empty string")
	}
	if er.Error.Details.IsSpecified() {
		t.Fatalf("expected details to be omitted")
	}
}

func TestAuthMiddleware_MalformedHeader_401(t *testing.T) {
	t.Parallel()

	h, _ := newTestAuthRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/accounts/57/balance", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InvalidToken_401(t *testing.T) {
	t.Parallel()

	h, _ := newTestAuthRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/accounts/57/balance", nil)
	req.Header.Set("Authorization", "Bearer not.a.jwt")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_ValidToken_AllowsRequestAndSetsSubject(t *testing.T) {
	t.Parallel()

	h, mint := newTestAuthRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/accounts/57/balance", nil)
	req.Header.Set("Authorization", "Bearer "+mint(time.Unix(1700000000, 0), "57"))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var got BalanceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Account != "57" || got.Balance != "42" {
		t.Fatalf("unexpected balance: %+v", got)
	}
}

func TestAuthMiddleware_PublicPaths(t *testing.T) {
	t.Parallel()

	h, _ := newTestAuthRouter(t)
	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status %d", path, rec.Code)
		}
	}
}

func TestMalformedBody_Is422JSON(t *testing.T) {
	t.Parallel()

	h, mint := newTestAuthRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/clubs/5/payments", nil)
	req.Header.Set("Authorization", "Bearer "+mint(time.Unix(1700000000, 0), "57"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d want %d body=%s", rec.Code, http.StatusUnprocessableEntity, rec.Body.String())
	}
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if er.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("code: got %q", er.Error.Code)
	}
}

func TestDevAuthMiddleware_DefaultSubject(t *testing.T) {
	t.Parallel()

	st := newStack(t)
	st.deposit(t, "dev-local", 3)
	h := NewRouterWithOptions(st.server, RouterOptions{AuthMiddleware: NewDevAuthMiddleware("dev-local")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/dev-local/balance", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d body=%s", rec.Code, rec.Body.String())
	}

	noDefault := NewRouterWithOptions(st.server, RouterOptions{AuthMiddleware: NewDevAuthMiddleware("")})
	rec = httptest.NewRecorder()
	noDefault.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/accounts/57/balance", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want 401", rec.Code)
	}
}
