package itest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Overland-East-Bay/club-registry/internal/adapters/httpapi"
	memclock "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/clock"
	memclubrepo "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/clubrepo"
	memeventlog "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/eventlog"
	memidempotency "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/idempotency"
	memledger "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/ledger"
	memtxn "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/txn"
	"github.com/Overland-East-Bay/club-registry/internal/app/clubs"
	"github.com/Overland-East-Bay/club-registry/internal/domain"
	"github.com/Overland-East-Bay/club-registry/internal/platform/serial"
	clubrepoport "github.com/Overland-East-Bay/club-registry/internal/ports/out/clubrepo"
	eventlogport "github.com/Overland-East-Bay/club-registry/internal/ports/out/eventlog"
	idempotencyport "github.com/Overland-East-Bay/club-registry/internal/ports/out/idempotency"
	ledgerport "github.com/Overland-East-Bay/club-registry/internal/ports/out/ledger"
	txnport "github.com/Overland-East-Bay/club-registry/internal/ports/out/txn"
)

const adminSubject = "itest-root"

type backend string

const (
	backendMemory   backend = "memory"
	backendPostgres backend = "postgres"
)

// storage is one backend's set of adapters.
type storage struct {
	clubs  clubrepoport.Repository
	ledger ledgerport.Ledger
	events eventlogport.Publisher
	tx     txnport.Transactor
	idem   idempotencyport.Store
	// published returns the events recorded so far, oldest first.
	published func(t *testing.T) []domain.Event
}

// backends maps a backend to its constructor. Backends that need external services
// register themselves from build-tagged files.
var backends = map[backend]func(t *testing.T) storage{
	backendMemory: func(t *testing.T) storage {
		repo := memclubrepo.NewRepo()
		ldg := memledger.NewLedger()
		log := memeventlog.NewLog()
		return storage{
			clubs:     repo,
			ledger:    ldg,
			events:    log,
			tx:        memtxn.NewTransactor(repo, ldg),
			idem:      memidempotency.NewStore(),
			published: func(*testing.T) []domain.Event { return log.Events() },
		}
	},
}

func backendsFromEnv(t *testing.T) []backend {
	t.Helper()
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ITEST_BACKEND"))) {
	case "", "memory":
		return []backend{backendMemory}
	case "postgres":
		return []backend{backendPostgres}
	case "all":
		return []backend{backendMemory, backendPostgres}
	default:
		t.Fatalf("unknown ITEST_BACKEND value (expected memory|postgres|all)")
		return nil
	}
}

type testServer struct {
	baseURL string
	client  *http.Client
	store   storage
}

func newTestServer(t *testing.T, b backend) *testServer {
	t.Helper()

	open, ok := backends[b]
	if !ok {
		t.Skipf("backend %s not compiled in (build with -tags=integration)", b)
	}
	st := open(t)
	clk := memclock.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	svc := clubs.NewService(clubs.Deps{
		Clubs:  st.clubs,
		Ledger: st.ledger,
		Events: st.events,
		Tx:     st.tx,
		Clock:  clk,
	})
	exec := serial.New(16)
	t.Cleanup(exec.Close)
	api := httpapi.NewServer(svc, st.idem, httpapi.ServerOptions{
		Executor:      exec,
		AdminSubjects: []string{adminSubject},
		Clock:         clk,
	})

	// Dev auth with no default subject, so requests must provide X-Debug-Subject.
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{AuthMiddleware: httpapi.NewDevAuthMiddleware("")})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   st,
	}
}

func (s *testServer) deposit(t *testing.T, account string, amount uint64) {
	t.Helper()
	if err := s.store.ledger.Deposit(context.Background(), domain.AccountID(account), amount); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func (s *testServer) url(path string) string {
	if strings.HasPrefix(path, "/") {
		return s.baseURL + path
	}
	return s.baseURL + "/" + path
}

func (s *testServer) doJSON(t *testing.T, method string, path string, subject string, body any, headers ...string) (int, []byte, http.Header) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.url(path), r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if subject != "" {
		req.Header.Set("X-Debug-Subject", subject)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, resp.Header
}

type errorResponse struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestId string `json:"requestId"`
	} `json:"error"`
}

func mustUnmarshal[T any](t *testing.T, b []byte) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v\nbody=%s", err, string(b))
	}
	return out
}

func requireStatus(t *testing.T, status int, body []byte, want int) {
	t.Helper()
	if status != want {
		t.Fatalf("status=%d want=%d body=%s", status, want, string(body))
	}
}

func requireErrorCode(t *testing.T, status int, body []byte, wantStatus int, wantCode string) {
	t.Helper()
	requireStatus(t, status, body, wantStatus)
	got := mustUnmarshal[errorResponse](t, body)
	if got.Error.Code != wantCode {
		t.Fatalf("error.code=%q want=%q body=%s", got.Error.Code, wantCode, string(body))
	}
}

func requireHeaderPresent(t *testing.T, h http.Header, key string) {
	t.Helper()
	if strings.TrimSpace(h.Get(key)) == "" {
		t.Fatalf("expected header %q to be present", key)
	}
}
