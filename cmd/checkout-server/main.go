package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/marketplace-checkout/internal/address"
	"github.com/nikolayk812/marketplace-checkout/internal/apiclient"
	"github.com/nikolayk812/marketplace-checkout/internal/cache"
	"github.com/nikolayk812/marketplace-checkout/internal/config"
	"github.com/nikolayk812/marketplace-checkout/internal/geoimport"
	"github.com/nikolayk812/marketplace-checkout/internal/httpapi"
	"github.com/nikolayk812/marketplace-checkout/internal/metrics"
	"github.com/nikolayk812/marketplace-checkout/internal/payment"
	"github.com/nikolayk812/marketplace-checkout/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	importPath := flag.String("import", "", "load a SEPOMEX postal code file into the geo catalog and exit")
	importLatin1 := flag.Bool("latin1", true, "the import file is ISO-8859-1 encoded")
	flag.Parse()

	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	log.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *importPath, *importLatin1); err != nil {
		log.WithError(err).Fatal("checkout server failed")
	}
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = os.Stdout
	return log
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger, importPath string, latin1 bool) error {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.WithError(err).Warn("close redis client")
		}
	}()

	geo := repository.NewGeo(pool)
	postal := cache.NewPostalLookup(geo, cache.NewRedisCache(redisClient, cfg.CacheTTL), log)

	if importPath != "" {
		return importCatalog(ctx, importPath, latin1, geo, postal, log)
	}

	api, err := apiclient.New(apiclient.Options{
		BaseURL:          cfg.APIBaseURL,
		Timeout:          cfg.RequestTimeout,
		FailureThreshold: cfg.BreakerFailures,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		Log:              log,
	})
	if err != nil {
		return fmt.Errorf("apiclient.New: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(reg)

	resolver := address.NewResolver(postal, geo, log)
	sessions := httpapi.NewSessions(httpapi.SessionDeps{
		Carts:       api,
		Quotes:      api,
		Payments:    payment.NewCoordinator(api, log),
		Resolver:    resolver,
		Currency:    cfg.Currency,
		QuietPeriod: cfg.PostalDebounce,
		Log:         log,
		Metrics:     checkoutMetrics,
	})
	defer sessions.Close()

	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler(reg))
	r.Mount("/", httpapi.NewRouter(httpapi.NewHandler(sessions, resolver, cfg.RequestTimeout, log)))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go evictIdle(ctx, sessions, cfg.SessionIdle, log)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("checkout server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("srv.ListenAndServe: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("srv.Shutdown: %w", err)
	}

	log.Info("server exited")
	return nil
}

func evictIdle(ctx context.Context, sessions *httpapi.Sessions, idle time.Duration, log logrus.FieldLogger) {
	if idle <= 0 {
		return
	}

	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.EvictIdle(idle); n > 0 {
				log.WithFields(logrus.Fields{"evicted": n, "active": sessions.Len()}).Info("idle sessions evicted")
			}
		}
	}
}

func importCatalog(ctx context.Context, path string, latin1 bool, geo *repository.GeoRepository, postal *cache.PostalLookup, log logrus.FieldLogger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("os.Open: %w", err)
	}
	defer f.Close()

	nbs, err := geoimport.Parse(f, latin1)
	if err != nil {
		return fmt.Errorf("geoimport.Parse: %w", err)
	}

	inserted, err := geoimport.Load(ctx, geo, postal, nbs, 1000, log)
	if err != nil {
		return fmt.Errorf("geoimport.Load: %w", err)
	}

	log.WithFields(logrus.Fields{
		"rows":     len(nbs),
		"inserted": inserted,
	}).Info("geo catalog imported")

	return nil
}
