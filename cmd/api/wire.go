package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Overland-East-Bay/club-registry/internal/adapters/httpapi"
	kafkaeventlog "github.com/Overland-East-Bay/club-registry/internal/adapters/kafka/eventlog"
	memclubrepo "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/clubrepo"
	memeventlog "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/eventlog"
	memidempotency "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/idempotency"
	memledger "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/ledger"
	memtxn "github.com/Overland-East-Bay/club-registry/internal/adapters/memory/txn"
	"github.com/Overland-East-Bay/club-registry/internal/adapters/postgres"
	pgclubrepo "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres/clubrepo"
	pgeventlog "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres/eventlog"
	pgidempotency "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres/idempotency"
	pgledger "github.com/Overland-East-Bay/club-registry/internal/adapters/postgres/ledger"
	redisadapter "github.com/Overland-East-Bay/club-registry/internal/adapters/redis"
	redisidempotency "github.com/Overland-East-Bay/club-registry/internal/adapters/redis/idempotency"
	"github.com/Overland-East-Bay/club-registry/internal/app/clubs"
	"github.com/Overland-East-Bay/club-registry/internal/domain"
	"github.com/Overland-East-Bay/club-registry/internal/platform/auth/jwtverifier"
	platformclock "github.com/Overland-East-Bay/club-registry/internal/platform/clock"
	"github.com/Overland-East-Bay/club-registry/internal/platform/config"
	"github.com/Overland-East-Bay/club-registry/internal/platform/serial"
	clubrepoport "github.com/Overland-East-Bay/club-registry/internal/ports/out/clubrepo"
	eventlogport "github.com/Overland-East-Bay/club-registry/internal/ports/out/eventlog"
	idempotencyport "github.com/Overland-East-Bay/club-registry/internal/ports/out/idempotency"
	ledgerport "github.com/Overland-East-Bay/club-registry/internal/ports/out/ledger"
	txnport "github.com/Overland-East-Bay/club-registry/internal/ports/out/txn"
)

const (
	executorQueue = 256
	purgeInterval = time.Hour
)

type app struct {
	handler http.Handler
	service *clubs.Service
	closers []func()
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// build wires the adapters selected by cfg into a ready HTTP handler. On error every
// resource acquired so far is released.
func build(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	clk := platformclock.NewSystemClock()
	issuer := cfg.AuthIssuer()

	var pool *pgxpool.Pool
	if needsPostgres(cfg) {
		p, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		if cfg.MigrateOnStart {
			if err := postgres.Migrate(ctx, p); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool = p
	}

	var (
		repo   clubrepoport.Repository
		ldg    ledgerport.Ledger
		tx     txnport.Transactor
		events eventlogport.Publisher
		idem   idempotencyport.Store
	)

	switch cfg.StorageBackend {
	case config.BackendPostgres:
		repo = pgclubrepo.NewRepo(pool)
		ldg = pgledger.NewLedger(pool)
		tx = postgres.NewTransactor(pool)
	default:
		r := memclubrepo.NewRepo()
		l := memledger.NewLedger()
		repo, ldg, tx = r, l, memtxn.NewTransactor(r, l)
	}

	switch cfg.EventLogBackend {
	case config.BackendPostgres:
		events = pgeventlog.NewOutbox(pool)
	case config.BackendKafka:
		client, err := kafkaeventlog.NewClient(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		events = kafkaeventlog.NewPublisher(client, cfg.KafkaTopic)
	default:
		events = memeventlog.NewLog()
	}

	switch cfg.IdempotencyBackend {
	case config.BackendPostgres:
		s := pgidempotency.NewStore(pool, issuer, pgidempotency.WithTTL(cfg.IdempotencyTTL))
		a.closers = append(a.closers, purgeEvery(ctx, purgeInterval, s, log))
		idem = s
	case config.BackendRedis:
		client, err := redisadapter.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		idem = redisidempotency.NewStore(client, redisidempotency.WithTTL(cfg.IdempotencyTTL))
	default:
		idem = memidempotency.NewStore()
	}

	if err := seedGenesis(ctx, ldg, cfg.GenesisBalances, log); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a.service = clubs.NewService(clubs.Deps{
		Clubs:   repo,
		Ledger:  ldg,
		Events:  events,
		Tx:      tx,
		Clock:   clk,
		Logger:  log,
		Metrics: clubs.NewMetrics(reg),
	})

	exec := serial.New(executorQueue)
	a.closers = append(a.closers, exec.Close)

	api := httpapi.NewServer(a.service, idem, httpapi.ServerOptions{
		Executor:      exec,
		AdminSubjects: cfg.AdminSubjects,
		Clock:         clk,
	})

	// Auth configuration:
	// - Production: require JWT_* env vars and enforce bearer auth
	// - Local dev: set AUTH_MODE=dev to bypass JWT verification and use X-Debug-Subject
	var authMW func(http.Handler) http.Handler
	switch cfg.AuthMode {
	case config.AuthModeDev:
		log.Warn("dev auth enabled; X-Debug-Subject is trusted", zap.String("default_subject", cfg.DevSubject))
		authMW = httpapi.NewDevAuthMiddleware(cfg.DevSubject)
	default:
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(cfg.JWT))
	}

	a.handler = httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		AuthMiddleware: authMW,
		Logger:         log,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})
	return a, nil
}

func needsPostgres(cfg config.Config) bool {
	return cfg.StorageBackend == config.BackendPostgres ||
		cfg.EventLogBackend == config.BackendPostgres ||
		cfg.IdempotencyBackend == config.BackendPostgres
}

// seedGenesis credits each configured account whose balance is still zero, so a
// restart against a persistent ledger does not credit it twice.
func seedGenesis(ctx context.Context, ldg ledgerport.Ledger, balances map[string]uint64, log *zap.Logger) error {
	for raw, amount := range balances {
		acct := domain.NormalizeAccountID(raw)
		if acct == "" || amount == 0 {
			continue
		}
		have, err := ldg.Balance(ctx, acct)
		if err != nil {
			return fmt.Errorf("genesis balance %s: %w", acct, err)
		}
		if have != 0 {
			continue
		}
		if err := ldg.Deposit(ctx, acct, amount); err != nil {
			return fmt.Errorf("genesis deposit %s: %w", acct, err)
		}
		log.Info("genesis deposit", zap.String("account", string(acct)), zap.Uint64("amount", amount))
	}
	return nil
}

type expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// purgeEvery deletes expired idempotency records on a ticker until the returned stop
// func is called.
func purgeEvery(parent context.Context, every time.Duration, s expirer, log *zap.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := s.DeleteExpired(ctx)
				if err != nil {
					log.Warn("idempotency purge failed", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Debug("idempotency records purged", zap.Int64("count", n))
				}
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
