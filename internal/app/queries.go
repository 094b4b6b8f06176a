package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/domain"
)

const DefaultProviderTimeout = 10 * time.Second

type ReviewService struct {
	providers map[domain.Source]domain.ReviewsProvider
	fallback  domain.FallbackDataset
	approvals domain.ApprovalStore
	cache     domain.Cache
	timeout   time.Duration
	cacheTTL  time.Duration
	group     singleflight.Group
}

// NewReviewService wires the read side. cache and approvals may be nil.
func NewReviewService(ps []domain.ReviewsProvider, fallback domain.FallbackDataset, approvals domain.ApprovalStore,
	cache domain.Cache, timeout, ttl time.Duration) *ReviewService {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	byName := make(map[domain.Source]domain.ReviewsProvider, len(ps))
	for _, p := range ps {
		byName[p.Source()] = p
	}
	return &ReviewService{
		providers: byName,
		fallback:  fallback,
		approvals: approvals,
		cache:     cache,
		timeout:   timeout,
		cacheTTL:  ttl,
	}
}

type ListQuery struct {
	Source       domain.Source
	Upstream     domain.ProviderQuery
	Filter       ReviewFilter
	IncludeStats bool
}

type ListResult struct {
	Reviews       []domain.CanonicalReview
	UsingMockData bool
	Stats         *domain.StatisticsReport
}

// snapshot is what one provider load produces; shared between concurrent callers.
type snapshot struct {
	reviews []domain.CanonicalReview
	mock    bool
}

func (s *ReviewService) Knows(src domain.Source) bool {
	if _, ok := s.providers[src]; ok {
		return true
	}
	_, ok := s.fallback[src]
	return ok
}

func (s *ReviewService) List(ctx context.Context, q ListQuery) (ListResult, error) {
	if !s.Knows(q.Source) {
		return ListResult{}, domain.ErrUnknownSource
	}
	reviews, mock := s.load(ctx, q.Source, q.Upstream)
	if err := s.mergeApprovals(ctx, reviews); err != nil {
		return ListResult{}, err
	}

	out := ListResult{Reviews: q.Filter.Apply(reviews), UsingMockData: mock}
	if q.IncludeStats {
		st := Aggregate(out.Reviews)
		out.Stats = &st
	}
	return out, nil
}

// Public is the guest-facing view: approved reviews only, newest first.
func (s *ReviewService) Public(ctx context.Context, src domain.Source, f ReviewFilter) (ListResult, error) {
	approved := true
	f.Approved = &approved
	if f.SortBy == "" {
		f.SortBy = SortByDate
	}
	return s.List(ctx, ListQuery{
		Source:       src,
		Upstream:     domain.ProviderQuery{Status: domain.StatusPublished},
		Filter:       f,
		IncludeStats: true,
	})
}

// Get looks a review up by id, asking the provider directly when it supports
// single lookups and searching the loaded review set otherwise.
func (s *ReviewService) Get(ctx context.Context, src domain.Source, id domain.ReviewID) (domain.CanonicalReview, error) {
	if !s.Knows(src) {
		return domain.CanonicalReview{}, domain.ErrUnknownSource
	}

	if f, ok := s.providers[src].(domain.ReviewFetcher); ok {
		fctx, cancel := context.WithTimeout(ctx, s.timeout)
		raw, err := f.FetchReview(fctx, id.String())
		cancel()
		if err == nil && len(raw) > 0 {
			one := []domain.CanonicalReview{NormalizeReview(raw, src)}
			if err := s.mergeApprovals(ctx, one); err != nil {
				return domain.CanonicalReview{}, err
			}
			return one[0], nil
		}
		log.Debug().Err(err).Str("source", string(src)).Str("id", id.String()).
			Msg("single review lookup failed, searching review set")
	}

	reviews, _ := s.load(ctx, src, domain.ProviderQuery{})
	for _, r := range reviews {
		if r.ID.String() != id.String() {
			continue
		}
		one := []domain.CanonicalReview{r}
		if err := s.mergeApprovals(ctx, one); err != nil {
			return domain.CanonicalReview{}, err
		}
		return one[0], nil
	}
	return domain.CanonicalReview{}, fmt.Errorf("review %s/%s: %w", src, id, domain.ErrNotFound)
}

func (s *ReviewService) Properties(ctx context.Context, src domain.Source) ([]domain.PropertySummary, bool, error) {
	if !s.Knows(src) {
		return nil, false, domain.ErrUnknownSource
	}
	reviews, mock := s.load(ctx, src, domain.ProviderQuery{})
	if err := s.mergeApprovals(ctx, reviews); err != nil {
		return nil, false, err
	}
	return PropertySummaries(reviews), mock, nil
}

func snapshotKey(src domain.Source, q domain.ProviderQuery) string {
	return fmt.Sprintf("reviews:%s:%s:%s:%s:%s", src, q.ListingID, q.StartDate, q.EndDate, q.Status)
}

// load never fails: provider errors and empty results both degrade to the fallback
// dataset. The returned slice is owned by the caller.
func (s *ReviewService) load(ctx context.Context, src domain.Source, q domain.ProviderQuery) ([]domain.CanonicalReview, bool) {
	key := snapshotKey(src, q)

	if s.cache != nil && s.cacheTTL > 0 {
		var cached []domain.CanonicalReview
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		}
		if ok {
			return cached, false
		}
	}

	v, _, _ := s.group.Do(key, func() (any, error) {
		// detached so one caller going away doesn't fail the others sharing this load
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.fetchLive(fctx, src, q, key), nil
	})
	snap := v.(snapshot)

	out := make([]domain.CanonicalReview, len(snap.reviews))
	copy(out, snap.reviews)
	return out, snap.mock
}

func (s *ReviewService) fetchLive(ctx context.Context, src domain.Source, q domain.ProviderQuery, key string) snapshot {
	p, ok := s.providers[src]
	if !ok {
		return s.fallbackSnapshot(src, "unconfigured")
	}

	raws, err := p.FetchReviews(ctx, q)
	if err != nil {
		ev := log.Warn()
		if errors.Is(err, domain.ErrProviderNotConfigured) {
			ev = log.Debug()
		}
		ev.Err(err).Str("source", string(src)).Msg("provider fetch failed, using fallback dataset")
		return s.fallbackSnapshot(src, "error")
	}
	if len(raws) == 0 {
		log.Info().Str("source", string(src)).Msg("provider returned no reviews, using fallback dataset")
		return s.fallbackSnapshot(src, "empty")
	}

	reviews := NormalizeReviews(raws, src)
	s.store(ctx, key, reviews)
	return snapshot{reviews: reviews}
}

func (s *ReviewService) store(ctx context.Context, key string, reviews []domain.CanonicalReview) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, reviews, int(s.cacheTTL.Seconds())); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (s *ReviewService) fallbackSnapshot(src domain.Source, reason string) snapshot {
	observability.ObserveFallback(string(src), reason)
	return snapshot{reviews: NormalizeReviews(s.fallback.For(src), src), mock: true}
}

func (s *ReviewService) mergeApprovals(ctx context.Context, reviews []domain.CanonicalReview) error {
	if s.approvals == nil || len(reviews) == 0 {
		return nil
	}
	keys := make([]domain.ReviewKey, len(reviews))
	for i, r := range reviews {
		keys[i] = r.Key()
	}
	approved, err := s.approvals.Approved(ctx, keys)
	if err != nil {
		return fmt.Errorf("load approvals: %w", err)
	}
	on := make(map[domain.ReviewKey]struct{}, len(approved))
	off := make(map[domain.ReviewKey]struct{}, len(keys))
	for _, k := range keys {
		if approved[k] {
			on[k] = struct{}{}
		} else {
			off[k] = struct{}{}
		}
	}
	SetApproval(reviews, on, true)
	SetApproval(reviews, off, false)
	return nil
}
