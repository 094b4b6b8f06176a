package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	server "flex_reviews/internal/adapters/http_server"
	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/adapters/provider"
	redisad "flex_reviews/internal/adapters/redis"
	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
	"flex_reviews/internal/fixtures"
	"flex_reviews/internal/shared"
	"flex_reviews/internal/storage/memory"
	mysqlrepo "flex_reviews/internal/storage/mysql"
)

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.SetLevel(cfg.LogLevel)

	reg := observability.InitRegistry()
	observability.Serve(cfg.HTTP.MetricsAddr, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// deps
	store, closeStore := approvalStore(cfg)
	defer closeStore()

	var cache domain.Cache
	if cfg.Cache.Enabled {
		rc := redisad.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rc.Close()
		cache = redisad.New(rc)
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Cache.TTL).Msg("review cache enabled")
	}

	reviews := app.NewReviewService(providers(cfg), fixtures.MustLoad(), store, cache, cfg.Provider.Timeout, cfg.Cache.TTL)
	approvals := app.NewApprovalService(store, cfg.Store.Kind)

	// http
	srv := server.New(server.Options{
		RequestTimeout:    cfg.HTTP.RequestTimeout,
		CORSOrigins:       cfg.HTTP.CORSOrigins,
		RateLimitRequests: cfg.HTTP.RateLimitRequests,
		RateLimitWindow:   cfg.HTTP.RateLimitWindow,
	})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{Reviews: reviews, Approvals: approvals})

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Str("approvals", cfg.Store.Kind).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func providerOptions(cfg shared.Config, base string, rps int) provider.Options {
	return provider.Options{
		BaseURL:         base,
		RPS:             rps,
		Timeout:         cfg.Provider.Timeout,
		BreakerFailures: uint32(cfg.Provider.BreakerFailures),
		BreakerTimeout:  cfg.Provider.BreakerTimeout,
	}
}

// providers builds every configured upstream; unconfigured ones are served from fixtures.
func providers(cfg shared.Config) []domain.ReviewsProvider {
	var out []domain.ReviewsProvider

	h, err := provider.NewHostaway(provider.HostawayConfig{
		Options:   providerOptions(cfg, cfg.Hostaway.BaseURL, cfg.Hostaway.RPS),
		AccountID: cfg.Hostaway.AccountID,
		APIKey:    cfg.Hostaway.APIKey,
	})
	if err == nil {
		out = append(out, h)
	} else {
		log.Warn().Err(err).Msg("hostaway disabled, serving fixture reviews")
	}

	p, err := provider.NewPlaces(provider.PlacesConfig{
		Options: providerOptions(cfg, cfg.Places.BaseURL, cfg.Places.RPS),
		APIKey:  cfg.Places.APIKey,
		PlaceID: cfg.Places.PlaceID,
	})
	if err == nil {
		out = append(out, p)
	} else {
		log.Warn().Err(err).Msg("google places disabled, serving fixture reviews")
	}
	return out
}

func approvalStore(cfg shared.Config) (domain.ApprovalStore, func()) {
	switch cfg.Store.Kind {
	case shared.StoreRedis:
		rc := redisad.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		return redisad.NewApprovals(rc), func() { _ = rc.Close() }

	case shared.StoreMySQL:
		db, err := mysqlrepo.Open(cfg.MySQL.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("mysql open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		if err := mysqlrepo.Migrate(db.DB); err != nil {
			log.Fatal().Err(err).Msg("migrations failed")
		}
		log.Info().Msg("database connection ok")
		return mysqlrepo.New(db), func() { _ = db.Close() }
	}
	return memory.NewApprovals(), func() {}
}
