package main

import (
	"context"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/adapters/provider"
	redisad "flex_reviews/internal/adapters/redis"
	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
	"flex_reviews/internal/fixtures"
	"flex_reviews/internal/shared"
)

type job struct {
	src domain.Source
	q   domain.ProviderQuery
}

func main() {
	cfg, err := shared.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.SetLevel(cfg.LogLevel)

	if !cfg.Cache.Enabled {
		log.Fatal().Msg("cache.enabled must be true to warm the review cache")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("redis", cfg.Redis.Addr).
		Int("workers", cfg.Ingest.Workers).
		Dur("ttl", cfg.Cache.TTL).
		Msg("ingestor starting")

	rc := redisad.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer rc.Close()
	if err := rc.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis ping failed")
	}

	opts := func(base string, rps int) provider.Options {
		return provider.Options{
			BaseURL:         base,
			RPS:             rps,
			Timeout:         cfg.Provider.Timeout,
			BreakerFailures: uint32(cfg.Provider.BreakerFailures),
			BreakerTimeout:  cfg.Provider.BreakerTimeout,
		}
	}

	var (
		ps   []domain.ReviewsProvider
		jobs []job
	)
	hostaway, err := provider.NewHostaway(provider.HostawayConfig{
		Options:   opts(cfg.Hostaway.BaseURL, cfg.Hostaway.RPS),
		AccountID: cfg.Hostaway.AccountID,
		APIKey:    cfg.Hostaway.APIKey,
	})
	if err == nil {
		ps = append(ps, hostaway)
		jobs = append(jobs, baseJobs(domain.SourceHostaway)...)
		jobs = append(jobs, listingJobs(ctx, hostaway)...)
	} else {
		log.Warn().Err(err).Msg("hostaway not configured, skipping")
	}
	places, err := provider.NewPlaces(provider.PlacesConfig{
		Options: opts(cfg.Places.BaseURL, cfg.Places.RPS),
		APIKey:  cfg.Places.APIKey,
		PlaceID: cfg.Places.PlaceID,
	})
	if err == nil {
		ps = append(ps, places)
		jobs = append(jobs, baseJobs(domain.SourcePlaces)...)
	} else {
		log.Warn().Err(err).Msg("google places not configured, skipping")
	}
	if len(jobs) == 0 {
		log.Fatal().Msg("no provider configured, nothing to warm")
	}

	svc := app.NewReviewService(ps, fixtures.MustLoad(), nil, redisad.New(rc), cfg.Provider.Timeout, cfg.Cache.TTL)
	sem := semaphore.NewWeighted(int64(cfg.Ingest.Workers))
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
		warmed atomic.Int64
	)

	for _, j := range jobs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("ingestion interrupted")
			break
		}

		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			defer sem.Release(1)

			n, err := svc.Warm(ctx, j.src, j.q)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("source", string(j.src)).Str("listing", j.q.ListingID).Err(err).Msg("warm failed")
				return
			}
			warmed.Add(int64(n))
			log.Debug().Str("source", string(j.src)).Str("listing", j.q.ListingID).Int("reviews", n).Msg("warm ok")
		}(j)
	}

	wg.Wait()
	log.Info().
		Int("jobs", len(jobs)).
		Int32("failed", failed.Load()).
		Int64("reviews", warmed.Load()).
		Msg("ingestion completed")
}

// baseJobs covers the unfiltered snapshot and the default published view.
func baseJobs(src domain.Source) []job {
	return []job{
		{src: src},
		{src: src, q: domain.ProviderQuery{Status: domain.StatusPublished}},
	}
}

func listingJobs(ctx context.Context, lp domain.ListingsProvider) []job {
	listings, err := lp.FetchListings(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("listing discovery failed, warming account-wide snapshots only")
		return nil
	}
	out := make([]job, 0, len(listings))
	for _, l := range listings {
		out = append(out, job{
			src: domain.SourceHostaway,
			q:   domain.ProviderQuery{ListingID: strconv.FormatInt(l.ID, 10), Status: domain.StatusPublished},
		})
	}
	log.Info().Int("listings", len(listings)).Msg("listings discovered")
	return out
}
