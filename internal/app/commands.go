package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"flex_reviews/internal/adapters/observability"
	"flex_reviews/internal/domain"
)

// SetApproval sets the approval flag on every review whose key is in keys and
// leaves the rest untouched. It returns how many reviews matched.
func SetApproval(reviews []domain.CanonicalReview, keys map[domain.ReviewKey]struct{}, approved bool) int {
	n := 0
	for i := range reviews {
		if _, ok := keys[reviews[i].Key()]; ok {
			reviews[i].IsApproved = approved
			n++
		}
	}
	return n
}

type ApprovalService struct {
	store     domain.ApprovalStore
	storeName string
	now       func() time.Time
}

func NewApprovalService(store domain.ApprovalStore, storeName string) *ApprovalService {
	return &ApprovalService{store: store, storeName: storeName, now: time.Now}
}

// ApprovalRequest scopes every id to Source; an empty Source infers it per id.
type ApprovalRequest struct {
	Source   domain.Source
	IDs      []domain.ReviewID
	Approved bool
}

type ApprovalResult struct {
	BatchID   string            `json:"batchId"`
	Source    domain.Source     `json:"provider,omitempty"`
	ReviewIDs []domain.ReviewID `json:"reviewIds"`
	Approved  bool              `json:"approved"`
	Timestamp time.Time         `json:"timestamp"`
}

// Apply records the requested flag for every id, scoped by source.
func (s *ApprovalService) Apply(ctx context.Context, req ApprovalRequest) (ApprovalResult, error) {
	res := ApprovalResult{
		BatchID:   uuid.NewString(),
		Source:    req.Source,
		ReviewIDs: req.IDs,
		Approved:  req.Approved,
		Timestamp: s.now().UTC(),
	}
	if res.ReviewIDs == nil {
		res.ReviewIDs = []domain.ReviewID{}
	}

	seen := make(map[domain.ReviewKey]struct{}, len(req.IDs))
	keys := make([]domain.ReviewKey, 0, len(req.IDs))
	for _, id := range req.IDs {
		if id.IsZero() {
			continue
		}
		src := req.Source
		if src == "" {
			src = SourceForID(id)
		}
		k := domain.ReviewKey{Source: src, ID: id.String()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return res, nil
	}

	if err := s.store.SetApproved(ctx, domain.ApprovalChange{BatchID: res.BatchID, Keys: keys, Approved: req.Approved}); err != nil {
		return ApprovalResult{}, fmt.Errorf("store approvals: %w", err)
	}
	observability.ObserveApprovals(s.storeName, req.Approved, len(keys))
	log.Info().
		Str("batch", res.BatchID).
		Strs("sources", keySources(keys)).
		Int("count", len(keys)).
		Bool("approved", req.Approved).
		Msg("approval updated")
	return res, nil
}

func keySources(keys []domain.ReviewKey) []string {
	var out []string
	seen := map[domain.Source]bool{}
	for _, k := range keys {
		if !seen[k.Source] {
			seen[k.Source] = true
			out = append(out, string(k.Source))
		}
	}
	return out
}

// Warm fetches q from the provider and stores the normalized snapshot in the
// cache without touching the fallback dataset. An empty live result drops any
// stale snapshot so readers fall back. Used by the ingestor.
func (s *ReviewService) Warm(ctx context.Context, src domain.Source, q domain.ProviderQuery) (int, error) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return 0, fmt.Errorf("warm %s: cache disabled", src)
	}
	p, ok := s.providers[src]
	if !ok {
		return 0, fmt.Errorf("warm %s: %w", src, domain.ErrProviderNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raws, err := p.FetchReviews(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("warm %s: %w", src, err)
	}
	key := snapshotKey(src, q)
	if len(raws) == 0 {
		if err := s.cache.Del(ctx, key); err != nil {
			return 0, fmt.Errorf("warm %s: cache del: %w", src, err)
		}
		return 0, nil
	}
	reviews := NormalizeReviews(raws, src)
	if err := s.cache.Set(ctx, key, reviews, int(s.cacheTTL.Seconds())); err != nil {
		return 0, fmt.Errorf("warm %s: cache set: %w", src, err)
	}
	return len(reviews), nil
}
