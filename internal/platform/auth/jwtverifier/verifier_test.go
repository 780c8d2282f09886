package jwtverifier_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Overland-East-Bay/club-registry/internal/platform/auth/jwks_testutil"
	"github.com/Overland-East-Bay/club-registry/internal/platform/auth/jwtverifier"
	"github.com/Overland-East-Bay/club-registry/internal/platform/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	srv     *httptest.Server
	setKeys func([]jwks_testutil.Keypair)
	fetches func() int64
	clk     *fakeClock
	cfg     config.JWTConfig
	v       *jwtverifier.Verifier
}

func newFixture(t *testing.T, refresh time.Duration, keys ...jwks_testutil.Keypair) *fixture {
	t.Helper()
	srv, setKeys, fetches := jwks_testutil.NewCountingJWKSServer()
	t.Cleanup(srv.Close)
	setKeys(keys)

	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cfg := config.JWTConfig{
		Issuer:                 "test-iss",
		Audience:               "test-aud",
		JWKSURL:                srv.URL,
		ClockSkew:              0,
		JWKSRefreshInterval:    refresh,
		JWKSMinRefreshInterval: 0,
		HTTPTimeout:            2 * time.Second,
	}
	return &fixture{
		srv:     srv,
		setKeys: setKeys,
		fetches: fetches,
		clk:     clk,
		cfg:     cfg,
		v:       jwtverifier.NewWithOptions(cfg, nil, clk),
	}
}

func mustKeypair(t *testing.T, kid string) jwks_testutil.Keypair {
	t.Helper()
	kp, err := jwks_testutil.GenerateRSAKeypair(kid)
	if err != nil {
		t.Fatalf("GenerateRSAKeypair: %v", err)
	}
	return kp
}

func (f *fixture) mint(t *testing.T, kp jwks_testutil.Keypair, sub string, exp time.Duration) string {
	t.Helper()
	tok, err := jwks_testutil.MintRS256JWT(kp, f.cfg.Issuer, f.cfg.Audience, sub, f.clk.Now(), exp, nil)
	if err != nil {
		t.Fatalf("MintRS256JWT: %v", err)
	}
	return tok
}

func TestVerifier_Verify_ValidToken(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t, "kid-1")
	f := newFixture(t, 10*time.Minute, kp)

	sub, err := f.v.Verify(context.Background(), f.mint(t, kp, "57", 5*time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if sub != "57" {
		t.Fatalf("sub mismatch: got %q", sub)
	}
}

func TestVerifier_Verify_AudienceArray(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t, "kid-1")
	f := newFixture(t, 10*time.Minute, kp)

	tok, err := jwks_testutil.MintRS256JWT(kp, f.cfg.Issuer, []string{"other", f.cfg.Audience}, "57", f.clk.Now(), time.Minute, nil)
	if err != nil {
		t.Fatalf("MintRS256JWT: %v", err)
	}
	if _, err := f.v.Verify(context.Background(), tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifier_Verify_Expired(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t, "kid-1")
	f := newFixture(t, 10*time.Minute, kp)

	if _, err := f.v.Verify(context.Background(), f.mint(t, kp, "57", -1*time.Minute)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestVerifier_Verify_NotYetValid(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t, "kid-1")
	f := newFixture(t, 10*time.Minute, kp)

	nbf := time.Minute
	tok, _ := jwks_testutil.MintRS256JWT(kp, f.cfg.Issuer, f.cfg.Audience, "57", f.clk.Now(), 5*time.Minute, &nbf)
	if _, err := f.v.Verify(context.Background(), tok); err == nil {
		t.Fatalf("expected error for future nbf")
	}
}

func TestVerifier_Verify_WrongIssuerOrAudience(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t, "kid-1")
	f := newFixture(t, 10*time.Minute, kp)

	jwtWrongIss, _ := jwks_testutil.MintRS256JWT(kp, "wrong-iss", f.cfg.Audience, "57", f.clk.Now(), 5*time.Minute, nil)
	if _, err := f.v.Verify(context.Background(), jwtWrongIss); err == nil {
		t.Fatalf("expected error for wrong iss")
	}

	jwtWrongAud, _ := jwks_testutil.MintRS256JWT(kp, f.cfg.Issuer, "wrong-aud", "57", f.clk.Now(), 5*time.Minute, nil)
	if _, err := f.v.Verify(context.Background(), jwtWrongAud); err == nil {
		t.Fatalf("expected error for wrong aud")
	}
}

func TestVerifier_Verify_BadSignature(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t, "kid-1")
	f := newFixture(t, 10*time.Minute, kp)

	// Mint a JWT with a different private key than what's in JWKS.
	other, _ := rsa.GenerateKey(rand.Reader, 2048)
	otherKP := jwks_testutil.Keypair{Kid: "kid-1", Private: other}
	if _, err := f.v.Verify(context.Background(), f.mint(t, otherKP, "57", 5*time.Minute)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestVerifier_Verify_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t, "kid-1")
	f := newFixture(t, 10*time.Minute, kp)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": f.cfg.Issuer,
		"aud": f.cfg.Audience,
		"sub": "57",
		"exp": f.clk.Now().Add(time.Minute).Unix(),
	})
	tok.Header["kid"] = "kid-1"
	signed, err := tok.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	if _, err := f.v.Verify(context.Background(), signed); err == nil {
		t.Fatalf("expected HS256 token to be rejected")
	}
}

func TestVerifier_Verify_MissingKidOrSubject(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t, "kid-1")
	f := newFixture(t, 10*time.Minute, kp)

	noKid := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": f.cfg.Issuer,
		"aud": f.cfg.Audience,
		"sub": "57",
		"exp": f.clk.Now().Add(time.Minute).Unix(),
	})
	signed, _ := noKid.SignedString(kp.Private)
	if _, err := f.v.Verify(context.Background(), signed); err == nil {
		t.Fatalf("expected error for missing kid")
	}

	if _, err := f.v.Verify(context.Background(), f.mint(t, kp, "", time.Minute)); err == nil {
		t.Fatalf("expected error for empty sub")
	}
}

func TestVerifier_Verify_JWKSRotation_OldKidRejected_NewKidAccepted(t *testing.T) {
	t.Parallel()

	k1 := mustKeypair(t, "kid-1")
	k2 := mustKeypair(t, "kid-2")
	f := newFixture(t, 1*time.Second, k1)

	jwt1 := f.mint(t, k1, "57", 5*time.Minute)
	if _, err := f.v.Verify(context.Background(), jwt1); err != nil {
		t.Fatalf("expected jwt1 to verify: %v", err)
	}

	// Rotate: JWKS now only contains kid-2.
	f.setKeys([]jwks_testutil.Keypair{k2})
	f.clk.Advance(2 * time.Second) // force interval refresh on next Verify call.

	// Old kid should be rejected after refresh.
	if _, err := f.v.Verify(context.Background(), jwt1); err == nil {
		t.Fatalf("expected jwt1 to be rejected after rotation")
	}

	sub, err := f.v.Verify(context.Background(), f.mint(t, k2, "56", 5*time.Minute))
	if err != nil {
		t.Fatalf("expected jwt2 to verify: %v", err)
	}
	if sub != "56" {
		t.Fatalf("sub mismatch: got %q", sub)
	}
}

func TestVerifier_Verify_CachesKeysBetweenRefreshes(t *testing.T) {
	t.Parallel()

	kp := mustKeypair(t, "kid-1")
	f := newFixture(t, 10*time.Minute, kp)
	tok := f.mint(t, kp, "57", 5*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.v.Verify(context.Background(), tok); err != nil {
				t.Errorf("Verify: %v", err)
			}
		}()
	}
	wg.Wait()
	for i := 0; i < 3; i++ {
		if _, err := f.v.Verify(context.Background(), tok); err != nil {
			t.Fatalf("Verify: %v", err)
		}
	}

	// Concurrent first calls may each observe an empty cache, but singleflight folds
	// overlapping fetches and later calls hit the cache.
	if n := f.fetches(); n < 1 || n > 8 {
		t.Fatalf("jwks fetched %d times", n)
	}
	before := f.fetches()
	if _, err := f.v.Verify(context.Background(), tok); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if f.fetches() != before {
		t.Fatalf("cached verify refetched jwks")
	}
}
