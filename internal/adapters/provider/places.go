package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"flex_reviews/internal/domain"
)

const DefaultPlacesBase = "https://maps.googleapis.com/maps/api/place"

type PlacesConfig struct {
	Options
	APIKey  string
	PlaceID string
}

// Places reads reviews from the Google Places details endpoint for one place.
type Places struct {
	base    string
	key     string
	placeID string
	t       *transport
}

var _ domain.ReviewsProvider = (*Places)(nil)

func NewPlaces(cfg PlacesConfig) (*Places, error) {
	if cfg.APIKey == "" || cfg.PlaceID == "" {
		return nil, fmt.Errorf("places: %w", domain.ErrProviderNotConfigured)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultPlacesBase
	}
	return &Places{
		base:    base,
		key:     cfg.APIKey,
		placeID: cfg.PlaceID,
		t:       newTransport("places", cfg.Options, nil),
	}, nil
}

func (p *Places) Source() domain.Source { return domain.SourcePlaces }

type placesDetails struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Name    string             `json:"name"`
		Reviews []domain.RawReview `json:"reviews"`
	} `json:"result"`
}

// FetchReviews returns the reviews Places exposes for the configured place.
// Places has no server-side filtering, so q is ignored.
func (p *Places) FetchReviews(ctx context.Context, _ domain.ProviderQuery) ([]domain.RawReview, error) {
	v := url.Values{}
	v.Set("place_id", p.placeID)
	v.Set("fields", "name,reviews")
	v.Set("key", p.key)

	var d placesDetails
	if err := p.t.getJSON(ctx, "details", p.base+"/details/json?"+v.Encode(), &d); err != nil {
		return nil, err
	}
	switch d.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return []domain.RawReview{}, nil
	default:
		return nil, fmt.Errorf("places details: status %q: %s", d.Status, d.ErrorMessage)
	}

	out := make([]domain.RawReview, 0, len(d.Result.Reviews))
	for _, r := range d.Result.Reviews {
		if r == nil {
			continue
		}
		r["place_id"] = p.placeID
		if d.Result.Name != "" {
			r["place_name"] = d.Result.Name
		}
		out = append(out, r)
	}
	return out, nil
}
