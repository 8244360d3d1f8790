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

	gateAuth "github.com/MrEthical07/gateAuth"
	"github.com/MrEthical07/gateAuth/gormstore"
	"github.com/MrEthical07/gateAuth/httpapi"
	"github.com/MrEthical07/gateAuth/internal/config"
	promexport "github.com/MrEthical07/gateAuth/metrics/export/prometheus"
	"github.com/MrEthical07/gateAuth/password"
	"github.com/MrEthical07/gateAuth/permission"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", os.Getenv("GATEAUTH_CONFIG"), "path to the YAML config file")
	envFile := flag.String("env-file", ".env", "optional .env file")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := cfg.Logger()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	engineCfg := cfg.Engine()

	hasher, err := password.NewChain(password.Config{
		Memory:      engineCfg.Password.Memory,
		Time:        engineCfg.Password.Time,
		Parallelism: engineCfg.Password.Parallelism,
		SaltLength:  engineCfg.Password.SaltLength,
		KeyLength:   engineCfg.Password.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}

	db, err := gormstore.Open(cfg.Database.DSN, cfg.Pool())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	store := gormstore.New(db, hasher, log.WithField("component", "gormstore"))
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := importCatalogs(ctx, store, cfg.Auth.CatalogPath, log); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	engine, err := gateAuth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithIdentityStore(store).
		WithRoleStore(store).
		WithDirectory(store).
		WithPasswordHasher(hasher).
		WithLogger(log.WithField("component", "engine")).
		WithAuditSink(gateAuth.NewLogrusSink(log.WithField("component", "audit"))).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if _, err := engine.Ping(ctx); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	added, err := engine.SyncAdminGrants(ctx)
	if err != nil {
		return fmt.Errorf("sync admin grants: %w", err)
	}

	report := engine.SecurityReport()
	entry := log.WithFields(logrus.Fields{
		"admin_role":     report.AdminRole,
		"grants_added":   added,
		"access_ttl":     report.AccessTTL.String(),
		"refresh_ttl":    report.RefreshTTL.String(),
		"pruning_active": report.PruningActive,
	})
	for _, w := range report.Warnings {
		entry.Warn(w)
	}
	entry.Info("engine ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promexport.NewCollector(engine),
	)

	api := httpapi.New(engine, httpapi.Options{
		SecureCookie: cfg.Server.SecureCookie,
		Metrics:      httpapi.NewHTTPMetrics(reg),
		Logger:       log.WithField("component", "http"),
	})

	servers := []*http.Server{{
		Addr:         cfg.Server.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}}
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		servers = append(servers, &http.Server{
			Addr:        cfg.Server.MetricsAddr,
			Handler:     mux,
			ReadTimeout: cfg.Server.ReadTimeout,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			log.WithField("addr", srv.Addr).Info("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// importCatalogs upserts the built-in endpoint catalog and, when set, the
// operator's catalog file.
func importCatalogs(ctx context.Context, store *gormstore.Store, path string, log logrus.FieldLogger) error {
	catalogs := make([]*permission.Catalog, 0, 2)

	builtin, err := httpapi.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("built-in catalog: %w", err)
	}
	catalogs = append(catalogs, builtin)

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open catalog: %w", err)
		}
		extra, err := permission.LoadCatalog(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("load catalog %s: %w", path, err)
		}
		catalogs = append(catalogs, extra)
	}

	for _, c := range catalogs {
		n, err := store.ImportCatalog(ctx, c)
		if err != nil {
			return fmt.Errorf("import catalog: %w", err)
		}
		log.WithField("transactions", n).Debug("catalog imported")
	}
	return nil
}
