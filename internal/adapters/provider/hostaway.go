package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"flex_reviews/internal/domain"
)

const DefaultHostawayBase = "https://api.hostaway.com/v1"

type HostawayConfig struct {
	Options
	AccountID string
	APIKey    string
}

// Hostaway talks to the Hostaway public API.
type Hostaway struct {
	base    string
	account string
	t       *transport
}

var (
	_ domain.ReviewsProvider  = (*Hostaway)(nil)
	_ domain.ReviewFetcher    = (*Hostaway)(nil)
	_ domain.ListingsProvider = (*Hostaway)(nil)
)

func NewHostaway(cfg HostawayConfig) (*Hostaway, error) {
	if cfg.APIKey == "" || cfg.AccountID == "" {
		return nil, fmt.Errorf("hostaway: %w", domain.ErrProviderNotConfigured)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultHostawayBase
	}
	key := cfg.APIKey
	return &Hostaway{
		base:    base,
		account: cfg.AccountID,
		t: newTransport("hostaway", cfg.Options, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+key)
		}),
	}, nil
}

func (h *Hostaway) Source() domain.Source { return domain.SourceHostaway }

// envelope is the wrapper every Hostaway response uses.
type envelope struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

func (e envelope) ok() bool {
	return e.Status == "success" && len(e.Result) > 0 && string(e.Result) != "null"
}

// FetchReviews lists reviews; a non-success envelope is reported as no reviews.
func (h *Hostaway) FetchReviews(ctx context.Context, q domain.ProviderQuery) ([]domain.RawReview, error) {
	v := url.Values{}
	v.Set("accountId", h.account)
	for k, val := range map[string]string{
		"listingId": q.ListingID,
		"startDate": q.StartDate,
		"endDate":   q.EndDate,
		"status":    q.Status,
	} {
		if val != "" {
			v.Set(k, val)
		}
	}

	var env envelope
	if err := h.t.getJSON(ctx, "reviews", h.base+"/reviews?"+v.Encode(), &env); err != nil {
		return nil, err
	}
	if !env.ok() {
		return []domain.RawReview{}, nil
	}
	var out []domain.RawReview
	if err := json.Unmarshal(env.Result, &out); err != nil {
		return nil, fmt.Errorf("hostaway reviews: decode result: %w", err)
	}
	return out, nil
}

func (h *Hostaway) FetchReview(ctx context.Context, id string) (domain.RawReview, error) {
	var env envelope
	if err := h.t.getJSON(ctx, "review", h.base+"/reviews/"+url.PathEscape(id), &env); err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, fmt.Errorf("hostaway review %s: %w", id, domain.ErrNotFound)
	}
	var out domain.RawReview
	if err := json.Unmarshal(env.Result, &out); err != nil {
		return nil, fmt.Errorf("hostaway review %s: decode result: %w", id, err)
	}
	return out, nil
}

type hostawayListing struct {
	ID           json.Number `json:"id"`
	Name         string      `json:"name"`
	InternalName string      `json:"internalListingName"`
}

func (h *Hostaway) FetchListings(ctx context.Context) ([]domain.Listing, error) {
	v := url.Values{}
	v.Set("accountId", h.account)

	var env envelope
	if err := h.t.getJSON(ctx, "listings", h.base+"/listings?"+v.Encode(), &env); err != nil {
		return nil, err
	}
	if !env.ok() {
		return []domain.Listing{}, nil
	}
	var raw []hostawayListing
	if err := json.Unmarshal(env.Result, &raw); err != nil {
		return nil, fmt.Errorf("hostaway listings: decode result: %w", err)
	}

	out := make([]domain.Listing, 0, len(raw))
	for _, l := range raw {
		id, err := l.ID.Int64()
		if err != nil {
			continue
		}
		name := l.Name
		if name == "" {
			name = l.InternalName
		}
		out = append(out, domain.Listing{ID: id, Name: name})
	}
	return out, nil
}
