package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/autoparts-api/internal/app"
	"github.com/noah-isme/autoparts-api/internal/config"
	"github.com/noah-isme/autoparts-api/internal/obs"
	"github.com/noah-isme/autoparts-api/internal/promotion"
	"github.com/noah-isme/autoparts-api/internal/resilience"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)
	resilience.MustRegisterMetrics(nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:    "autoparts-worker",
			ServiceVersion: os.Getenv("APP_VERSION"),
			Endpoint:       cfg.OTLPEndpoint,
			Exporter:       os.Getenv("OBS_TRACING_EXPORTER"),
			SamplingRatio:  cfg.TracingSampling,
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := app.NewPostgres(startCtx, cfg, "autoparts-worker")
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
		logger.Fatal().Err(err).Msg("initialise task server")
	}

	svc := app.Build(cfg, pool, redisClient, nil, logger)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{app.TaskQueue: 1},
		Logger:      taskLogger{logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task_type", task.Type()).Msg("task failed")
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(promotion.TypeBoundary, svc.Boundaries)

	logger.Info().Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// taskLogger routes asynq's internal logging through zerolog.
type taskLogger struct {
	l zerolog.Logger
}

func (t taskLogger) Debug(args ...any) { t.l.Debug().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Info(args ...any)  { t.l.Info().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Warn(args ...any)  { t.l.Warn().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Error(args ...any) { t.l.Error().Msg(fmt.Sprint(args...)) }
func (t taskLogger) Fatal(args ...any) { t.l.Fatal().Msg(fmt.Sprint(args...)) }
