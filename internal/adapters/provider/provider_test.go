package provider_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"flex_reviews/internal/adapters/provider"
	"flex_reviews/internal/domain"
)

func newHostaway(t *testing.T, url string, failures uint32) *provider.Hostaway {
	t.Helper()
	h, err := provider.NewHostaway(provider.HostawayConfig{
		Options:   provider.Options{BaseURL: url, RPS: 100, BreakerFailures: failures, BreakerTimeout: time.Minute},
		AccountID: "61148",
		APIKey:    "test-key",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	return h
}

func TestHostaway_FetchReviews_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization header = %q", got)
		}
		if got := r.URL.Query().Get("accountId"); got != "61148" {
			t.Errorf("accountId = %q", got)
		}
		if got := r.URL.Query().Get("listingId"); got != "42" {
			t.Errorf("listingId = %q", got)
		}
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "success",
				"result": []map[string]any{{"id": 7453, "rating": 9.2}},
			})
		}
	}))
	defer ts.Close()

	h := newHostaway(t, ts.URL, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	got, err := h.FetchReviews(ctx, domain.ProviderQuery{ListingID: "42"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 review, got %d", len(got))
	}
	if id, _ := got[0]["id"].(float64); id != 7453 {
		t.Fatalf("unexpected payload: %+v", got[0])
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestHostaway_FetchReviews_NonSuccessEnvelopeIsEmpty(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "fail", "result": nil})
	}))
	defer ts.Close()

	got, err := newHostaway(t, ts.URL, 10).FetchReviews(context.Background(), domain.ProviderQuery{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestHostaway_FetchReview_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := newHostaway(t, ts.URL, 10).FetchReview(ctx, "1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHostaway_FetchListings(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/listings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"success","result":[{"id":101,"name":"Shoreditch Heights"},{"id":102,"internalListingName":"Mayfair"}]}`))
	}))
	defer ts.Close()

	got, err := newHostaway(t, ts.URL, 10).FetchListings(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := []domain.Listing{{ID: 101, Name: "Shoreditch Heights"}, {ID: 102, Name: "Mayfair"}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("listings = %+v, want %+v", got, want)
	}
}

func TestHostaway_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	h := newHostaway(t, ts.URL, 2)
	for i := 0; i < 2; i++ {
		if _, err := h.FetchReviews(context.Background(), domain.ProviderQuery{}); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	_, err := h.FetchReviews(context.Background(), domain.ProviderQuery{})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected 2 upstream calls, got %d", n)
	}
}

func TestNewHostaway_RequiresCredentials(t *testing.T) {
	_, err := provider.NewHostaway(provider.HostawayConfig{AccountID: "1"})
	if !errors.Is(err, domain.ErrProviderNotConfigured) {
		t.Fatalf("expected ErrProviderNotConfigured, got %v", err)
	}
}

func TestNewPlaces_RequiresKeyAndPlace(t *testing.T) {
	_, err := provider.NewPlaces(provider.PlacesConfig{APIKey: "k"})
	if !errors.Is(err, domain.ErrProviderNotConfigured) {
		t.Fatalf("expected ErrProviderNotConfigured, got %v", err)
	}
}

func TestPlaces_FetchReviews_AnnotatesPlace(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/details/json" || q.Get("place_id") != "place-1" || q.Get("key") != "k" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		if q.Get("fields") != "name,reviews" {
			t.Errorf("fields = %q", q.Get("fields"))
		}
		_, _ = w.Write([]byte(`{"status":"OK","result":{"name":"The Flex","reviews":[{"author_name":"Jo","rating":4,"text":"Great","time":1700000000}]}}`))
	}))
	defer ts.Close()

	p, err := provider.NewPlaces(provider.PlacesConfig{
		Options: provider.Options{BaseURL: ts.URL, RPS: 100},
		APIKey:  "k",
		PlaceID: "place-1",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got, err := p.FetchReviews(context.Background(), domain.ProviderQuery{})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 1 || got[0]["place_id"] != "place-1" || got[0]["place_name"] != "The Flex" {
		t.Fatalf("unexpected reviews: %+v", got)
	}
}

func TestPlaces_FetchReviews_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
	}))
	defer ts.Close()

	p, err := provider.NewPlaces(provider.PlacesConfig{
		Options: provider.Options{BaseURL: ts.URL, RPS: 100},
		APIKey:  "k",
		PlaceID: "place-1",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := p.FetchReviews(context.Background(), domain.ProviderQuery{}); err == nil {
		t.Fatalf("expected error for REQUEST_DENIED")
	}
}
