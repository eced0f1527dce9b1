package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"github.com/fossabot/authrim-sub007/internal/flow/cache"
	flowhandler "github.com/fossabot/authrim-sub007/internal/flow/handler"
	flowmetrics "github.com/fossabot/authrim-sub007/internal/flow/metrics"
	"github.com/fossabot/authrim-sub007/internal/flow/ports"
	"github.com/fossabot/authrim-sub007/internal/flow/service"
	"github.com/fossabot/authrim-sub007/internal/flow/store/definition"
	sessionstore "github.com/fossabot/authrim-sub007/internal/flow/store/session"
	jwttoken "github.com/fossabot/authrim-sub007/internal/jwt_token"
	"github.com/fossabot/authrim-sub007/internal/platform/config"
	"github.com/fossabot/authrim-sub007/internal/platform/httpserver"
	"github.com/fossabot/authrim-sub007/internal/platform/logger"
	platformredis "github.com/fossabot/authrim-sub007/internal/platform/redis"
	httptransport "github.com/fossabot/authrim-sub007/internal/transport/http"
	"github.com/fossabot/authrim-sub007/pkg/platform/audit"
	auditpublisher "github.com/fossabot/authrim-sub007/pkg/platform/audit/publisher"
	auditkafka "github.com/fossabot/authrim-sub007/pkg/platform/audit/sink/kafka"
	auditmemory "github.com/fossabot/authrim-sub007/pkg/platform/audit/store/memory"
	auditpostgres "github.com/fossabot/authrim-sub007/pkg/platform/audit/store/postgres"
	auditworker "github.com/fossabot/authrim-sub007/pkg/platform/audit/worker"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the flow service; main only assembles and runs.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defStore, auditStore, readiness, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	publisher := auditpublisher.New(auditpublisher.WithLogger(log))
	worker := auditworker.New(auditStore, publisher.Inbox(), log)

	svc := service.New(defStore, sessionstore.NewInMemoryStore(), cache.NewPlanCache(),
		service.WithLogger(log),
		service.WithMetrics(flowmetrics.New()),
		service.WithAuditPublisher(publisher),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "flow-engine", "flow-api")
	router := httptransport.NewRouter(httptransport.Dependencies{
		FlowHandler: flowhandler.New(svc, log),
		Validator:   jwttoken.NewJWTServiceAdapter(jwtService),
		Logger:      log,
		Readiness:   readiness,
	})

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(ctx)
	})
	group.Go(func() error {
		log.Info("starting flow engine", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// buildStores picks concrete stores from configuration: postgres-backed when
// POSTGRES_URL is set, in-memory otherwise; a redis read-through when
// REDIS_URL is set; a kafka audit sink when brokers are configured.
func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (ports.DefinitionStore, audit.Store, func(context.Context) error, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var defStore ports.DefinitionStore = definition.NewInMemoryStore()
	var auditStore audit.Store = auditmemory.New()
	var readiness func(context.Context) error

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, err
		}
		closers = append(closers, pool.Close)
		defStore = definition.NewPostgresStore(pool)
		readiness = pool.Ping

		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		auditStore = auditpostgres.New(db)
	}

	if cfg.Redis.URL != "" {
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, err
		}
		if client != nil {
			closers = append(closers, func() { _ = client.Close() })
			defStore = cache.NewRedisDefinitionStore(defStore, client.Client, cache.WithLogger(log))
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := auditkafka.New(ctx, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			cleanup()
			return nil, nil, nil, nil, err
		}
		closers = append(closers, sink.Close)
		auditStore = sink
	}

	return defStore, auditStore, readiness, cleanup, nil
}
