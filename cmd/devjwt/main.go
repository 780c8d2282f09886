package main

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/Overland-East-Bay/club-registry/internal/platform/logger"
)

// Tiny dev-only JWT issuer + JWKS server.
//
// This is NOT a full OIDC provider. It exists to support local development against
// real RS256 JWT verification (iss/aud/exp + JWKS).

type settings struct {
	Port     string        `env:"PORT" envDefault:"5556"`
	Issuer   string        `env:"ISSUER" envDefault:"http://devjwt:5556"`
	Audience string        `env:"AUDIENCE" envDefault:"club-registry"`
	Kid      string        `env:"KID" envDefault:"dev-kid-1"`
	TTL      time.Duration `env:"TTL" envDefault:"30m"`
}

type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type issuer struct {
	cfg  settings
	priv *rsa.PrivateKey
	now  func() time.Time
}

func main() {
	log, err := logger.New("info", true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "devjwt: %v\n", err)
		os.Exit(1)
	}

	var cfg settings
	if err := env.Parse(&cfg); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.Fatal("generate key", zap.Error(err))
	}
	iss := &issuer{cfg: cfg, priv: priv, now: func() time.Time { return time.Now().UTC() }}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           iss.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("devjwt listening",
		zap.String("addr", srv.Addr),
		zap.String("iss", cfg.Issuer),
		zap.String("aud", cfg.Audience),
		zap.String("kid", cfg.Kid),
		zap.Duration("ttl", cfg.TTL),
	)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal("listen", zap.Error(err))
	}
}

func (i *issuer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Common JWKS path used by many providers.
	mux.HandleFunc("/.well-known/jwks.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(publicJWKS(&i.priv.PublicKey, i.cfg.Kid))
	})

	// Mint a JWT:
	//   GET /token?sub=56
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		sub := strings.TrimSpace(r.URL.Query().Get("sub"))
		if sub == "" {
			http.Error(w, "missing sub", http.StatusBadRequest)
			return
		}
		now := i.now()
		token, err := i.mint(sub, now)
		if err != nil {
			http.Error(w, "failed to mint token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": token,
			"sub":   sub,
			"iss":   i.cfg.Issuer,
			"aud":   i.cfg.Audience,
			"exp":   now.Add(i.cfg.TTL).Unix(),
		})
	})

	return mux
}

func (i *issuer) mint(sub string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    i.cfg.Issuer,
		Subject:   sub,
		Audience:  jwt.ClaimStrings{i.cfg.Audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)), // small skew tolerance for local use
		IssuedAt:  jwt.NewNumericDate(now),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = i.cfg.Kid
	return tok.SignedString(i.priv)
}

func publicJWKS(pub *rsa.PublicKey, kid string) jwks {
	enc := base64.RawURLEncoding
	return jwks{Keys: []jwk{{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   enc.EncodeToString(pub.N.Bytes()),
		E:   enc.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}}
}
