// Package http exposes the bot's small control surface: probes, reminder
// triggers, read-only report data and the Telegram webhook.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"vaultbot/internal/core"
	applog "vaultbot/internal/log"
	"vaultbot/internal/middleware/ratelimit"
	"vaultbot/internal/middleware/security"
	"vaultbot/internal/middleware/trace"
	"vaultbot/internal/services"
	"vaultbot/internal/sheets"
)

// Reports is the read side of services.ReportService used by the API.
type Reports interface {
	Summaries(ctx context.Context) (latest, previous *core.Summary, err error)
	ChartData(ctx context.Context) (core.TimeSeries, error)
}

// Pinger probes the storage backend for /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Reports    Reports
	Notifier   services.Notifier
	Recipients sheets.RecipientLister
	// Pinger is optional; without it /readyz always succeeds.
	Pinger Pinger
	// Webhook receives Telegram updates; the route is absent when nil.
	Webhook http.Handler
	// NotifyToken guards the notify and report API routes when set.
	NotifyToken string
	Logger      *applog.Logger
	RateLimit   ratelimit.Config
}

type Server struct {
	http.Server
	deps     Deps
	limiter  *ratelimit.Limiter
	detector *security.Detector

	stop         context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer wires the routes on a chi router and starts the rate limiter
// janitor. Call Shutdown to release it.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = applog.New(applog.DefaultConfig())
	}
	logger := deps.Logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		deps:     deps,
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		detector: security.NewDetector(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go s.limiter.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trace.Middleware(applog.NewStructuredLogger(logger), s.detector.ClientIP))
	r.Use(s.detector.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(applog.Middleware(logger))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ClientIP))
		r.Use(s.requireToken)
		r.Get("/notify", s.handleNotify)
		r.Post("/notify/all", s.handleNotifyAll)
		r.Get("/api/summary", s.handleSummary)
		r.Get("/api/timeseries", s.handleTimeSeries)
	})

	if deps.Webhook != nil {
		r.Post("/telegram/webhook", deps.Webhook.ServeHTTP)
	}

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the background janitor and the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.deps.Pinger.Ping(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness probe failed", applog.FieldError, err)
			ErrorJSON(w, http.StatusServiceUnavailable, "backend unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
