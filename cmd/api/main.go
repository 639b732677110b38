package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/autoparts-api/internal/app"
	"github.com/noah-isme/autoparts-api/internal/audit"
	"github.com/noah-isme/autoparts-api/internal/auth"
	"github.com/noah-isme/autoparts-api/internal/cart"
	"github.com/noah-isme/autoparts-api/internal/config"
	"github.com/noah-isme/autoparts-api/internal/favorites"
	"github.com/noah-isme/autoparts-api/internal/health"
	"github.com/noah-isme/autoparts-api/internal/obs"
	"github.com/noah-isme/autoparts-api/internal/promotion"
	"github.com/noah-isme/autoparts-api/internal/quote"
	"github.com/noah-isme/autoparts-api/internal/ratelimit"
	"github.com/noah-isme/autoparts-api/internal/resilience"
	"github.com/noah-isme/autoparts-api/internal/security"
	"github.com/noah-isme/autoparts-api/migrations"
)

const shutdownGrace = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:    "autoparts-api",
			ServiceVersion: envOrDefault("APP_VERSION", ""),
			Endpoint:       cfg.OTLPEndpoint,
			Exporter:       envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio:  cfg.TracingSampling,
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.MigrateOnStart {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := app.NewPostgres(startCtx, cfg, "autoparts-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise database")
	}
	defer pool.Close()

	redisClient, err := app.NewRedis(startCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	redisOpt, err := app.TaskRedisOpt(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise task client")
	}
	taskClient := asynq.NewClient(redisOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	rateLimiter, err := app.NewLimiter(redisClient, cfg.RateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	svc := app.Build(cfg, pool, redisClient, taskClient, logger)
	authMiddleware := auth.Middleware{Verifier: svc.Verifier}
	quoteHandler := &quote.Handler{Quoter: svc.Quoter, Validate: svc.Validate}
	cartHandler := &cart.Handler{Svc: svc.Carts, Validate: svc.Validate}
	favoritesHandler := &favorites.Handler{Svc: svc.Favorites}
	promotionHandler := &promotion.Handler{Svc: svc.Admin, Validate: svc.Validate}
	auditRecorder := audit.HTTPRecorder{
		Sink:    audit.LogSink{Logger: logger.With().Str("component", "audit").Logger()},
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(security.Headers{EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{
		Max: cfg.HTTPBodyLimitBytes,
		Routes: []security.RouteLimit{
			{Prefix: "/api/v1/carts", Max: 4 << 10},
			{Prefix: "/api/v1/favorites", Max: 1 << 10},
		},
	}.Middleware)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Probes: map[string]health.Probe{
			"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		Timeout: 500 * time.Millisecond,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(ratelimit.Handler{
			Limiter: rateLimiter,
			OnError: func(err error) { logger.Warn().Err(err).Msg("rate limit store unavailable") },
		}.Middleware)

		v.Get("/items/{itemID}/price", quoteHandler.ItemPrice)
		v.Post("/quote", quoteHandler.Quote)

		v.Route("/carts", func(c chi.Router) {
			c.Post("/", cartHandler.Create)
			c.Get("/{cartID}", cartHandler.Get)
			c.Post("/{cartID}/items", cartHandler.AddItem)
			c.Patch("/{cartID}/items/{itemID}", cartHandler.UpdateItem)
			c.Delete("/{cartID}/items/{itemID}", cartHandler.RemoveItem)
		})

		v.Route("/favorites", func(f chi.Router) {
			f.Use(authMiddleware.RequireAuth)
			f.Get("/", favoritesHandler.List)
			f.Put("/{itemID}", favoritesHandler.Add)
			f.Delete("/{itemID}", favoritesHandler.Remove)
		})

		v.Route("/admin/promotions", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(authMiddleware.RequireRole(auth.RoleAdmin))
			admin.Use(auditRecorder.Middleware(audit.HTTPConfig{Resource: "promotion", ResourceIDParam: "promotionID"}))
			admin.Post("/", promotionHandler.Create)
			admin.Route("/{promotionID}", func(p chi.Router) {
				p.Get("/", promotionHandler.Get)
				p.Patch("/", promotionHandler.Update)
				p.Delete("/", promotionHandler.Delete)
				p.Post("/items", promotionHandler.LinkItems)
				p.Delete("/items/{itemID}", promotionHandler.UnlinkItem)
			})
		})
	})

	var handler http.Handler = r
	if tracingEnabled {
		handler = otelhttp.NewHandler(r, "autoparts-api")
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
