package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterOptions struct {
	// AuthMiddleware guards every API route. Nil leaves routes unauthenticated, which
	// makes every request fail with 401 since handlers require a subject.
	AuthMiddleware func(http.Handler) http.Handler
	Logger         *zap.Logger
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

// NewRouter constructs the API HTTP router.
func NewRouter(s *Server) http.Handler {
	return NewRouterWithOptions(s, RouterOptions{})
}

func NewRouterWithOptions(s *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	// Baseline production-safe middleware (minimal but useful).
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)

	// Health endpoint is used for infra checks.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		if opts.AuthMiddleware != nil {
			r.Use(opts.AuthMiddleware)
		}
		r.Post("/clubs", s.CreateClub)
		r.Route("/clubs/{clubId}", func(r chi.Router) {
			r.Get("/", s.GetClub)
			r.Put("/owner", s.TransferOwnership)
			r.Put("/annual-expenses", s.SetAnnualExpense)
			r.Post("/members", s.AddMember)
			r.Post("/payments", s.PayMembershipExpense)
		})
		r.Get("/accounts/{accountId}/balance", s.GetBalance)
	})
	return r
}
