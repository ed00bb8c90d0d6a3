package api

import (
	"log/slog"
	"net/http"
	"time"

	"circulation-engine/internal/api/handler"
	mw "circulation-engine/internal/api/middleware"
	"circulation-engine/internal/config"
	"circulation-engine/internal/domain/book"
	"circulation-engine/internal/domain/loan"
	"circulation-engine/internal/domain/member"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/traceid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

func SetupRouter(
	circulationService loan.CirculationService,
	bookService book.Service,
	memberService member.Service,
	rdb redis.Cmdable,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	router := chi.NewRouter()

	setupMiddleware(router, rdb, cfg, logger)
	setupMetricsEndpoint(router, cfg, logger)
	setupAuthRoutes(router, cfg, logger)
	setupBookRoutes(router, cfg, bookService, logger)
	setupMemberRoutes(router, cfg, memberService, circulationService, logger)
	setupLoanRoutes(router, cfg, circulationService, logger)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	return router
}

func setupMiddleware(router *chi.Mux, rdb redis.Cmdable, cfg *config.Config, logger *slog.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(traceid.Middleware)
	router.Use(mw.StructuredLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(mw.NewRateLimiterMiddleware(rdb, cfg.Server.RateLimit, logger).Middleware)
	router.Use(mw.MetricsMiddleware())
}

func setupMetricsEndpoint(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	metricsPath := cfg.Metrics.Path
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	logger.Info("Setting up Prometheus metrics endpoint", "path", metricsPath)
	router.Handle(metricsPath, promhttp.Handler())
}

func setupAuthRoutes(router *chi.Mux, cfg *config.Config, logger *slog.Logger) {
	authHandler := handler.NewAuthHandler(*cfg, logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/token", authHandler.GenerateBearerToken)
	})
}

func setupBookRoutes(router *chi.Mux, cfg *config.Config, svc book.Service, logger *slog.Logger) {
	h := handler.NewBookHandler(svc, logger)

	router.Route("/books", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.CreateBook)
		r.Get("/", h.ListBooks)
		r.Route("/{bookID}", func(r chi.Router) {
			r.Get("/", h.GetBook)
			r.Put("/stock", h.UpdateStock)
			r.Delete("/", h.DeactivateBook)
			r.Put("/reactivate", h.ReactivateBook)
		})
	})
}

func setupMemberRoutes(router *chi.Mux, cfg *config.Config, svc member.Service, circulation loan.CirculationService, logger *slog.Logger) {
	h := handler.NewMemberHandler(svc, logger)
	loanHandler := handler.NewLoanHandler(circulation, logger)

	router.Route("/members", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.RegisterMember)
		r.Get("/", h.ListMembers)
		r.Route("/{memberID}", func(r chi.Router) {
			r.Get("/", h.GetMember)
			r.Delete("/", h.DeactivateMember)
			r.Put("/reactivate", h.ReactivateMember)
			r.Get("/loans", loanHandler.ListMemberLoans)
		})
	})
}

func setupLoanRoutes(router *chi.Mux, cfg *config.Config, svc loan.CirculationService, logger *slog.Logger) {
	h := handler.NewLoanHandler(svc, logger)

	router.Route("/loans", func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.Server.Auth, logger))
		r.Post("/", h.IssueLoan)
		r.Get("/overdue", h.ListOverdueLoans)
		r.Post("/sweep-overdue", h.SweepOverdue)
		r.Route("/{loanID}", func(r chi.Router) {
			r.Get("/", h.GetLoan)
			r.Post("/return", h.ReturnLoan)
			r.Post("/renew", h.RenewLoan)
			r.Post("/lost", h.MarkLoanLost)
			r.Post("/fine/pay", h.PayFine)
		})
	})
}
