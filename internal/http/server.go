package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tesouraria/internal/core"
	"tesouraria/internal/log"
	"tesouraria/internal/metrics"
	"tesouraria/internal/middleware/ratelimit"
	"tesouraria/internal/middleware/security"
	"tesouraria/internal/middleware/trace"
)

// LedgerAPI is the service surface the handlers call.
type LedgerAPI interface {
	CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	DeleteEntry(ctx context.Context, ownerID, entryID string) error
	GetEntry(ctx context.Context, ownerID, entryID string) (core.Entry, error)
	ListEntries(ctx context.Context, ownerID string, filter core.EntryFilter) ([]core.Entry, error)

	GetConfiguration(ctx context.Context, ownerID string) (core.Configuration, error)
	SaveConfiguration(ctx context.Context, cfg core.Configuration) (core.Configuration, error)
	ProvisionOwner(ctx context.Context, ownerID, adminID string, fiscalYear int) (core.Configuration, bool, error)
	ManagedOwners(ctx context.Context, adminID string) ([]core.Configuration, error)

	RecalculateOwner(ctx context.Context, ownerID string) ([]core.MonthlyBalance, error)
	FiscalYear(ctx context.Context, ownerID string) (int, error)
	OpeningBalanceFor(ctx context.Context, ownerID string, month, year int) (decimal.Decimal, error)
	ComputePeriodTotals(ctx context.Context, ownerID string, month, year int) (core.PeriodTotals, error)
	Balances(ctx context.Context, ownerID string) ([]core.PeriodTotals, error)
	YearReport(ctx context.Context, ownerID string, month int) (core.YearReport, error)
}

// Options tune the server. The zero value is usable.
type Options struct {
	Logger         *log.Logger
	MetricsEnabled bool
	RateLimit      ratelimit.Config
}

type Server struct {
	http.Server
	svc          LedgerAPI
	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc LedgerAPI, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		svc:     svc,
		limiter: ratelimit.NewLimiter(opts.RateLimit),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	if opts.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	mux.HandleFunc("GET /api/owners/{owner}/entries", s.handleListEntries)
	mux.HandleFunc("POST /api/owners/{owner}/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /api/owners/{owner}/entries/{id}", s.handleGetEntry)
	mux.HandleFunc("PUT /api/owners/{owner}/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/owners/{owner}/entries/{id}", s.handleDeleteEntry)

	mux.HandleFunc("GET /api/owners/{owner}/configuration", s.handleGetConfiguration)
	mux.HandleFunc("PUT /api/owners/{owner}/configuration", s.handleSaveConfiguration)
	mux.HandleFunc("POST /api/owners/{owner}/provision", s.handleProvision)
	mux.HandleFunc("POST /api/owners/{owner}/recalculate", s.handleRecalculate)

	mux.HandleFunc("GET /api/owners/{owner}/opening", s.handleOpening)
	mux.HandleFunc("GET /api/owners/{owner}/totals", s.handleTotals)
	mux.HandleFunc("GET /api/owners/{owner}/balances", s.handleBalances)
	mux.HandleFunc("GET /api/owners/{owner}/report", s.handleReport)

	mux.HandleFunc("GET /api/admins/{admin}/owners", s.handleManagedOwners)

	detector := security.NewDetector(logger)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})
	tracer := trace.NewMiddleware(detector.ExtractClientIP, logger)

	// trace must wrap the mux directly to see the matched pattern
	var h http.Handler = tracer.Middleware(mux)
	h = limit(h)
	h = detector.Middleware(h)
	h = headers.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
