package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	memclock "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/clock"
	memclubrepo "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/clubrepo"
	memeventlog "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/eventlog"
	memidempotency "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/idempotency"
	memledger "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/ledger"
	memtxn "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/txn"
	"github.com/Overland-East-Bay/club-registry/internal/app/clubs"
	"github.com/Overland-East-Bay/club-registry/internal/domain"
	"github.com/Overland-East-Bay/club-registry/internal/platform/serial"
)

type stack struct {
	ledger *memledger.Ledger
	events *memeventlog.Log
	idem   *memidempotency.Store
	clk    *memclock.ManualClock
	server *Server
}

func newStack(t *testing.T, admins ...string) *stack {
	t.Helper()

	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	repo := memclubrepo.NewRepo()
	ldg := memledger.NewLedger()
	events := memeventlog.NewLog()
	idem := memidempotency.NewStore()
	svc := clubs.NewService(clubs.Deps{
		Clubs:  repo,
		Ledger: ldg,
		Events: events,
		Tx:     memtxn.NewTransactor(repo, ldg),
		Clock:  clk,
	})
	exec := serial.New(8)
	t.Cleanup(exec.Close)

	return &stack{
		ledger: ldg,
		events: events,
		idem:   idem,
		clk:    clk,
		server: NewServer(svc, idem, ServerOptions{Executor: exec, AdminSubjects: admins, Clock: clk}),
	}
}

func (s *stack) deposit(t *testing.T, account string, amount uint64) {
	t.Helper()
	if err := s.ledger.Deposit(context.Background(), domain.AccountID(account), amount); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
}

// devRouter authenticates with X-Debug-Subject and no default subject.
func (s *stack) devRouter() http.Handler {
	return NewRouterWithOptions(s.server, RouterOptions{AuthMiddleware: NewDevAuthMiddleware("")})
}

type call struct {
	method  string
	path    string
	subject string
	body    any
	headers map[string]string
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	switch b := c.body.(type) {
	case nil:
		body = bytes.NewReader(nil)
	case string:
		body = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(c.method, c.path, body)
	if c.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.subject != "" {
		req.Header.Set("X-Debug-Subject", c.subject)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v\nbody=%s", err, rec.Body.String())
	}
	return out
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status=%d want=%d body=%s", rec.Code, want, rec.Body.String())
	}
}

func requireErrorCode(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, rec, wantStatus)
	er := decode[ErrorResponse](t, rec)
	if er.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", er.Error.Code, wantCode, rec.Body.String())
	}
}
