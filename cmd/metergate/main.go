// Command metergate runs the metered-access gateway: a gin HTTP server
// in front of the market-data scanner, Postgres entitlement state, and
// Stripe checkout/webhook plumbing.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/migrate"

	gategin "github.com/open-rails/metergate/adapters/gin"
	"github.com/open-rails/metergate/adapters/ginutil"
	"github.com/open-rails/metergate/authflow"
	"github.com/open-rails/metergate/config"
	core "github.com/open-rails/metergate/core"
	"github.com/open-rails/metergate/entitlements"
	"github.com/open-rails/metergate/identity"
	"github.com/open-rails/metergate/marketdata"
	migrations "github.com/open-rails/metergate/migrations/postgres"
	"github.com/open-rails/metergate/payments"
	memorylimiter "github.com/open-rails/metergate/ratelimit/memory"
	redislimiter "github.com/open-rails/metergate/ratelimit/redis"
	"github.com/open-rails/metergate/reconcile"
	memorystore "github.com/open-rails/metergate/storage/memory"
	pgstore "github.com/open-rails/metergate/storage/postgres"
	redisstore "github.com/open-rails/metergate/storage/redis"
)

const eventRetention = 90 * 24 * time.Hour

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	if err := run(log); err != nil {
		log.WithError(err).Fatal("gateway exited")
	}
}

func run(log *logrus.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := applyMigrations(ctx, pool, log); err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
	}

	store := pgstore.NewEntitlementStore(pool)
	reconciler := reconcile.New(store, log)

	jobs, err := startJobs(ctx, pool, reconciler)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = jobs.Stop(stopCtx)
	}()

	sched := cron.New()
	_, err = sched.AddFunc("@daily", func() {
		if err := reconciler.PruneProcessedEvents(context.Background(), eventRetention); err != nil {
			log.WithError(err).Warn("billing event prune failed")
		}
	})
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	resolver, closeCache, err := buildResolver(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	defer closeCache()

	svc := &core.Service{
		Store:      store,
		Resolver:   resolver,
		Scanner:    marketdata.NewClient(cfg.ScannerURL, nil),
		Payments:   payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, cfg.StripeSuccessURL, cfg.StripeCancelURL),
		Reconciler: reconciler,
		Jobs:       jobs,
		Decisions:  entitlements.LogrusDecisionLogger{Log: log},
		Log:        log,
	}

	var flow *authflow.Flow
	if cfg.ClientID != "" {
		flow = authflow.New(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gategin.NewRouter(svc, flow, buildLimiter(rdb)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("gateway listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			return err
		}
	}
	return nil
}

// applyMigrations brings the schema up to date through the embedded
// migration registry, tracking applied migrations in bun's own table.
func applyMigrations(ctx context.Context, pool *pgxpool.Pool, log *logrus.Logger) error {
	db := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if !group.IsZero() {
		log.WithField("group", group.String()).Info("migrations applied")
	}
	return nil
}

// startJobs migrates river's own tables and starts the reconciliation
// worker pool.
func startJobs(ctx context.Context, pool *pgxpool.Pool, reconciler *reconcile.Reconciler) (*river.Client[pgx.Tx], error) {
	driver := riverpgxv5.New(pool)

	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, err
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, err
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &reconcile.Worker{Reconciler: reconciler})

	client, err := river.NewClient(driver, &river.Config{
		Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 4}},
		Workers: workers,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Start(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// buildResolver picks the identity resolution strategy: gateway-issued
// HS256 tokens, local ID-token verification against a JWKS, or the
// provider's userinfo endpoint, in that preference order. The returned
// func stops the cache, for callers that own the process lifetime.
func buildResolver(ctx context.Context, cfg config.Config, rdb *redis.Client) (identity.Resolver, func(), error) {
	var inner identity.Resolver
	switch {
	case cfg.JWTSecret != "":
		inner = identity.NewHS256Resolver(cfg.JWTSecret)
	case cfg.OIDCJWKSURL != "":
		r, err := identity.NewIDTokenResolver(ctx, cfg.OIDCJWKSURL, cfg.OIDCIssuer, cfg.OIDCAudience)
		if err != nil {
			return nil, nil, err
		}
		inner = r
	default:
		inner = identity.NewUserinfoResolver(cfg.UserinfoURL, nil)
	}

	var cache identity.Cache
	closeCache := func() {}
	if rdb != nil {
		cache = redisstore.NewIdentityCache(rdb, "", 5*time.Minute)
	} else {
		mem := memorystore.NewIdentityCache(5 * time.Minute)
		cache = mem
		closeCache = func() { _ = mem.Close() }
	}
	return identity.Cached{Inner: inner, Cache: cache}, closeCache, nil
}

// redisGate adapts the context-taking redis limiter to the adapter's
// RateLimiter interface.
type redisGate struct {
	l *redislimiter.Limiter
}

func (g redisGate) Allow(bucket, key string) (bool, error) {
	return g.l.Allow(context.Background(), bucket, key)
}

func buildLimiter(rdb *redis.Client) ginutil.RateLimiter {
	limits := map[string]redislimiter.Limit{
		ginutil.RLScan:    {Limit: 120, Window: time.Minute},
		ginutil.RLWebhook: {Limit: 60, Window: time.Minute},
		ginutil.RLOAuth:   {Limit: 30, Window: time.Minute},
	}
	if rdb != nil {
		return redisGate{l: redislimiter.New(rdb, limits)}
	}
	mem := make(map[string]memorylimiter.Limit, len(limits))
	for k, v := range limits {
		mem[k] = memorylimiter.Limit{Limit: v.Limit, Window: v.Window}
	}
	return memorylimiter.New(mem)
}
