package domain

import "context"

// ReviewsProvider fetches raw reviews from one upstream source.
// An empty result and an error are treated the same by callers: both fall back.
type ReviewsProvider interface {
	Source() Source
	FetchReviews(ctx context.Context, q ProviderQuery) ([]RawReview, error)
}

// ReviewFetcher is implemented by providers that can look up a single review.
type ReviewFetcher interface {
	FetchReview(ctx context.Context, id string) (RawReview, error)
}

type ListingsProvider interface {
	FetchListings(ctx context.Context) ([]Listing, error)
}

// ApprovalStore keeps curation state. Keys absent from the store are unapproved.
type ApprovalStore interface {
	SetApproved(ctx context.Context, ch ApprovalChange) error
	Approved(ctx context.Context, keys []ReviewKey) (map[ReviewKey]bool, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// ProviderQuery is forwarded upstream as-is; empty fields are omitted.
type ProviderQuery struct {
	ListingID string
	StartDate string
	EndDate   string
	Status    string
}

type Listing struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type ApprovalChange struct {
	BatchID  string
	Keys     []ReviewKey
	Approved bool
}
