package contracttest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/club-registry/internal/domain"
	clubrepoport "github.com/Overland-East-Bay/club-registry/internal/ports/out/clubrepo"
	eventlogport "github.com/Overland-East-Bay/club-registry/internal/ports/out/eventlog"
	idempotencyport "github.com/Overland-East-Bay/club-registry/internal/ports/out/idempotency"
	ledgerport "github.com/Overland-East-Bay/club-registry/internal/ports/out/ledger"
)

type CleanupFunc = func()

// EventReader returns everything a publisher has durably accepted, in publish order.
type EventReader func() ([]domain.Event, error)

type ClubRepoFactory func(t *testing.T) (clubrepoport.Repository, CleanupFunc)
type LedgerFactory func(t *testing.T) (ledgerport.Ledger, CleanupFunc)
type EventLogFactory func(t *testing.T) (eventlogport.Publisher, EventReader, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      "k-1",
		Subject:  domain.AccountID("57"),
		Method:   "POST",
		Route:    "/clubs/5/members",
		BodyHash: "",
	}
	rec := idempotencyport.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte("hash-abc"),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v", ok, err)
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.StatusCode != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// Fingerprints differing only by subject are distinct.
	other := fp
	other.Subject = "56"
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("expected miss for other subject, ok=%v err=%v", ok, err)
	}
}

func RunClubRepo(t *testing.T, newRepo ClubRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	if _, err := repo.Get(ctx, 5); !errors.Is(err, clubrepoport.ErrNotFound) {
		t.Fatalf("Get missing: err=%v, want ErrNotFound", err)
	}

	c := domain.NewClub("56", 1)
	if err := repo.Put(ctx, 5, c); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := repo.Get(ctx, 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Owner != "56" || got.AnnualExpenses != 1 || got.Members == nil || len(got.Members) != 0 {
		t.Fatalf("unexpected club: %#v", got)
	}

	// Roster round-trip, including moments beyond the signed 64-bit range.
	got.Members["57"] = domain.Moment(1_700_000_000)
	got.Members["58"] = domain.Moment(math.MaxUint64)
	got.Owner = "57"
	got.AnnualExpenses = math.MaxUint32
	if err := repo.Put(ctx, 5, got); err != nil {
		t.Fatalf("Put update: %v", err)
	}
	again, err := repo.Get(ctx, 5)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if again.Owner != "57" || again.AnnualExpenses != math.MaxUint32 {
		t.Fatalf("unexpected scalar fields: %#v", again)
	}
	if len(again.Members) != 2 || again.Members["57"] != 1_700_000_000 || again.Members["58"] != domain.Moment(math.MaxUint64) {
		t.Fatalf("unexpected roster: %#v", again.Members)
	}

	// Mutating a returned club must not leak into the store.
	again.Members["99"] = 1
	if fresh, _ := repo.Get(ctx, 5); fresh.IsMember("99") {
		t.Fatalf("returned roster aliases stored roster")
	}

	// Put replaces the whole record.
	if err := repo.Put(ctx, 5, domain.NewClub("60", 3)); err != nil {
		t.Fatalf("Put replace: %v", err)
	}
	replaced, err := repo.Get(ctx, 5)
	if err != nil {
		t.Fatalf("Get replaced: %v", err)
	}
	if replaced.Owner != "60" || replaced.AnnualExpenses != 3 || len(replaced.Members) != 0 {
		t.Fatalf("unexpected replaced club: %#v", replaced)
	}

	// Clubs are independent.
	if err := repo.Put(ctx, 6, domain.NewClub("61", 0)); err != nil {
		t.Fatalf("Put second: %v", err)
	}
	if c5, _ := repo.Get(ctx, 5); c5.Owner != "60" {
		t.Fatalf("club 5 changed by club 6 write: %#v", c5)
	}
}

func RunLedger(t *testing.T, newLedger LedgerFactory) {
	t.Helper()
	ctx := context.Background()

	l, cleanup := newLedger(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	// Account ids are unique per run so persistent backends can share a database.
	a := domain.AccountID("a-" + uuid.NewString())
	b := domain.AccountID("b-" + uuid.NewString())

	mustBalance := func(acct domain.AccountID, want uint64) {
		t.Helper()
		got, err := l.Balance(ctx, acct)
		if err != nil {
			t.Fatalf("Balance(%s): %v", acct, err)
		}
		if got != want {
			t.Fatalf("Balance(%s)=%d, want %d", acct, got, want)
		}
	}

	mustBalance(a, 0)
	if err := l.Deposit(ctx, a, 10); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	mustBalance(a, 10)

	if err := l.Transfer(ctx, a, b, 11, ledgerport.AllowDeath); !errors.Is(err, ledgerport.ErrInsufficientFunds) {
		t.Fatalf("overdraw: err=%v, want ErrInsufficientFunds", err)
	}
	mustBalance(a, 10)
	mustBalance(b, 0)

	if err := l.Transfer(ctx, a, b, 4, ledgerport.KeepAlive); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	mustBalance(a, 6)
	mustBalance(b, 4)

	if err := l.Transfer(ctx, a, b, 6, ledgerport.KeepAlive); !errors.Is(err, ledgerport.ErrWouldReap) {
		t.Fatalf("KeepAlive drain: err=%v, want ErrWouldReap", err)
	}
	mustBalance(a, 6)

	// Self-transfers are a no-op but still require cover.
	if err := l.Transfer(ctx, a, a, 6, ledgerport.AllowDeath); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	mustBalance(a, 6)
	if err := l.Transfer(ctx, a, a, 7, ledgerport.AllowDeath); !errors.Is(err, ledgerport.ErrInsufficientFunds) {
		t.Fatalf("self overdraw: err=%v, want ErrInsufficientFunds", err)
	}

	if err := l.Transfer(ctx, a, b, 6, ledgerport.AllowDeath); err != nil {
		t.Fatalf("AllowDeath drain: %v", err)
	}
	mustBalance(a, 0)
	mustBalance(b, 10)

	// Zero-value transfers from an empty account succeed.
	if err := l.Transfer(ctx, a, b, 0, ledgerport.KeepAlive); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}

	if err := l.Deposit(ctx, b, math.MaxUint64); !errors.Is(err, ledgerport.ErrBalanceOverflow) {
		t.Fatalf("overflow deposit: err=%v, want ErrBalanceOverflow", err)
	}
	mustBalance(b, 10)
}

func RunEventLog(t *testing.T, newLog EventLogFactory) {
	t.Helper()
	ctx := context.Background()

	pub, read, cleanup := newLog(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	clubID := domain.ClubID(uuid.New().ID())
	first := domain.Event{ID: uuid.NewString(), Kind: domain.EventClubCreated, ClubID: clubID, At: 100}
	second := domain.Event{ID: uuid.NewString(), Kind: domain.EventMemberAdded, ClubID: clubID, Member: "57", At: 101}
	third := domain.Event{ID: uuid.NewString(), Kind: domain.EventNewOwner, ClubID: clubID, NewOwner: "57", At: 102}
	for _, e := range []domain.Event{first, second, third} {
		if err := pub.Publish(ctx, e); err != nil {
			t.Fatalf("Publish %s: %v", e.Kind, err)
		}
	}

	all, err := read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got []domain.Event
	for _, e := range all {
		if e.ClubID == clubID {
			got = append(got, e)
		}
	}
	want := []domain.Event{first, second, third}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d: %#v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}
