package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"vcanchor/internal/auth"
	credhandler "vcanchor/internal/credential/handler"
	credmetrics "vcanchor/internal/credential/metrics"
	credservice "vcanchor/internal/credential/service"
	requeststore "vcanchor/internal/credential/store/request"
	responsestore "vcanchor/internal/credential/store/response"
	credworker "vcanchor/internal/credential/worker"
	"vcanchor/internal/did"
	"vcanchor/internal/ledger"
	"vcanchor/internal/platform/config"
	"vcanchor/internal/platform/httpserver"
	"vcanchor/internal/platform/kafka"
	"vcanchor/internal/platform/logger"
	"vcanchor/internal/platform/metrics"
	"vcanchor/internal/platform/postgres"
	"vcanchor/internal/platform/redis"
	vphandler "vcanchor/internal/presentation/handler"
	vpmetrics "vcanchor/internal/presentation/metrics"
	vpservice "vcanchor/internal/presentation/service"
	vpstore "vcanchor/internal/presentation/store"
	rlmetrics "vcanchor/internal/ratelimit/metrics"
	rlmiddleware "vcanchor/internal/ratelimit/middleware"
	rlmodels "vcanchor/internal/ratelimit/models"
	rlstore "vcanchor/internal/ratelimit/store"
	schemahandler "vcanchor/internal/schema/handler"
	schemametrics "vcanchor/internal/schema/metrics"
	schemaservice "vcanchor/internal/schema/service"
	schemastore "vcanchor/internal/schema/store"
	"vcanchor/internal/signature"
	httptransport "vcanchor/internal/transport/http"
	audit "vcanchor/pkg/platform/audit"
	auditpublisher "vcanchor/pkg/platform/audit/publisher"
	auditmemory "vcanchor/pkg/platform/audit/store/memory"
	auditpostgres "vcanchor/pkg/platform/audit/store/postgres"
	auditworker "vcanchor/pkg/platform/audit/worker"
	"vcanchor/pkg/platform/circuit"
)

// infra holds the connections shared by every module. Nil fields are disabled.
type infra struct {
	db       *sql.DB
	redis    *redis.Client
	producer *kafka.Producer
}

type stores struct {
	requests  credservice.RequestStore
	responses credservice.ResponseStore
	schemas   schemaservice.Store
	vp        vpservice.Store
	storeTx   credservice.StoreTx
}

// main wires high-level dependencies, exposes the HTTP router and runs the
// background workers until SIGINT or SIGTERM.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("vcanchor exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	plat, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer plat.close(log)

	st := buildStores(plat.db)
	auditStore, outbox := buildAuditStore(plat, log)
	publisher := auditpublisher.NewPublisher(auditStore, auditpublisher.WithLogger(log))
	defer publisher.Close()

	gateway := ledger.NewClient(cfg.Ledger.URL,
		ledger.WithHTTPClient(&http.Client{Timeout: cfg.Ledger.RequestTimeout}),
		ledger.WithLogger(log),
		ledger.WithBreaker(circuit.New("ledger",
			circuit.WithFailureThreshold(cfg.Ledger.FailureThreshold),
			circuit.WithCooldown(cfg.Ledger.Cooldown),
		)),
		ledger.WithReceiptTimeout(cfg.Ledger.ReceiptTimeout),
		ledger.WithPollInterval(cfg.Ledger.PollInterval),
	)

	var resolver did.Resolver = did.NewLedgerResolver(gateway, did.WithResolverLogger(log))
	if plat.redis != nil {
		resolver = did.NewCachedResolver(resolver, plat.redis.Client, cfg.Redis.DIDCacheTTL, did.WithCacheLogger(log))
		log.Info("did resolution cache enabled", "ttl", cfg.Redis.DIDCacheTTL)
	}

	policy := signature.DefaultClaimPolicy()
	policy.IssuedAtSkew = cfg.Auth.IssuedAtSkew
	authn, err := auth.New(resolver,
		auth.WithLogger(log),
		auth.WithMetrics(auth.NewMetrics()),
		auth.WithClaimPolicy(policy),
		auth.WithDIDPrefixes(cfg.Auth.DIDPrefixes),
	)
	if err != nil {
		return fmt.Errorf("build authenticator: %w", err)
	}

	credentials, err := credservice.New(st.requests, st.responses, gateway,
		credservice.WithLogger(log),
		credservice.WithMetrics(credmetrics.New()),
		credservice.WithAuditPublisher(publisher),
		credservice.WithStoreTx(st.storeTx),
	)
	if err != nil {
		return fmt.Errorf("build credential service: %w", err)
	}
	schemas, err := schemaservice.New(st.schemas, gateway,
		schemaservice.WithLogger(log),
		schemaservice.WithMetrics(schemametrics.New()),
		schemaservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		return fmt.Errorf("build schema service: %w", err)
	}
	presentations, err := vpservice.New(st.vp, resolver,
		vpservice.WithLogger(log),
		vpservice.WithMetrics(vpmetrics.New()),
		vpservice.WithAuditPublisher(publisher),
	)
	if err != nil {
		return fmt.Errorf("build presentation service: %w", err)
	}

	sweeper, err := credworker.NewSweeper(credentials, cfg.Worker.SweepInterval, cfg.Worker.ResponseTimeout,
		credworker.WithLogger(log))
	if err != nil {
		return fmt.Errorf("build sweeper: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        metrics.New(),
		Authenticate:   auth.RequireDID(authn, log),
		RateLimit:      buildRateLimiter(cfg.RateLimit, plat, log).ByMethod,
		RequestTimeout: cfg.Server.WriteTimeout,
		HealthChecks:   plat.healthChecks(),
		Modules: []httptransport.Registrar{
			credhandler.New(credentials, log, credhandler.WithOperatorDIDs(cfg.Auth.OperatorDIDs)),
			schemahandler.New(schemas, log),
			vphandler.New(presentations, log),
		},
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting vcanchor", "addr", cfg.Server.Addr, "postgres", plat.db != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ignoreCanceled(sweeper.Run(gctx))
	})
	if outbox != nil && plat.producer != nil {
		relay := auditworker.NewRelay(outbox, plat.producer,
			auditworker.WithLogger(log),
			auditworker.WithInterval(cfg.Kafka.RelayInterval),
			auditworker.WithBatchSize(cfg.Kafka.RelayBatchSize),
		)
		g.Go(func() error {
			return ignoreCanceled(relay.Run(gctx))
		})
	}
	return g.Wait()
}

func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		in.db = db
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				in.close(log)
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		in.close(log)
		return nil, err
	}
	in.redis = rdb

	producer, err := kafka.NewProducer(ctx, cfg.Kafka, log)
	if err != nil {
		in.close(log)
		return nil, err
	}
	in.producer = producer
	return in, nil
}

func (in *infra) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if in.db != nil {
		checks["postgres"] = in.db.PingContext
	}
	if in.redis != nil {
		checks["redis"] = in.redis.Health
	}
	return checks
}

func (in *infra) close(log *slog.Logger) {
	if in.producer != nil {
		in.producer.Close()
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("failed to close postgres", "error", err)
		}
	}
}

func buildStores(db *sql.DB) stores {
	if db == nil {
		return stores{
			requests:  requeststore.NewInMemoryStore(),
			responses: responsestore.NewInMemoryStore(),
			schemas:   schemastore.NewInMemoryStore(),
			vp:        vpstore.NewInMemoryStore(),
		}
	}
	return stores{
		requests:  requeststore.NewPostgres(db),
		responses: responsestore.NewPostgres(db),
		schemas:   schemastore.NewPostgres(db),
		vp:        vpstore.NewPostgres(db),
		storeTx:   newPostgresStoreTx(db),
	}
}

// buildAuditStore picks where lifecycle events go. With Postgres they land in
// the outbox and the relay forwards them; otherwise they go straight to Kafka
// when configured, or to memory.
func buildAuditStore(in *infra, log *slog.Logger) (audit.Store, *auditpostgres.Store) {
	switch {
	case in.db != nil:
		outbox := auditpostgres.New(in.db)
		if in.producer == nil {
			log.Info("kafka disabled, lifecycle events stay in the outbox")
		}
		return outbox, outbox
	case in.producer != nil:
		return in.producer, nil
	default:
		return auditmemory.NewInMemoryStore(), nil
	}
}

func buildRateLimiter(cfg config.RateLimitConfig, in *infra, log *slog.Logger) *rlmiddleware.Middleware {
	var store rlmiddleware.Store = rlstore.NewInMemoryStore()
	if in.redis != nil {
		store = rlstore.NewRedisStore(in.redis.Client)
	}
	limits := map[rlmodels.EndpointClass]rlmodels.Limit{
		rlmodels.ClassRead:  {Requests: cfg.ReadRequests, Window: cfg.Window},
		rlmodels.ClassWrite: {Requests: cfg.WriteRequests, Window: cfg.Window},
	}
	return rlmiddleware.New(store, limits, log,
		rlmiddleware.WithDisabled(!cfg.Enabled),
		rlmiddleware.WithMetrics(rlmetrics.New()),
	)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
