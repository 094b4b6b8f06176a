package httpserver_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpserver "flex_reviews/internal/adapters/http_server"
	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
	"flex_reviews/internal/fixtures"
	"flex_reviews/internal/storage/memory"
)

type stubProvider struct {
	src  domain.Source
	raws []domain.RawReview
	err  error
}

func (p *stubProvider) Source() domain.Source { return p.src }
func (p *stubProvider) FetchReviews(context.Context, domain.ProviderQuery) ([]domain.RawReview, error) {
	return p.raws, p.err
}

func newServer(t *testing.T, ps ...domain.ReviewsProvider) *httpserver.Server {
	t.Helper()
	if len(ps) == 0 {
		ps = []domain.ReviewsProvider{&stubProvider{src: domain.SourceHostaway, err: errors.New("upstream down")}}
	}
	store := memory.NewApprovals()
	s := httpserver.New(httpserver.Options{RequestTimeout: 5 * time.Second})
	s.MountHandlers(&httpserver.Handlers{
		Reviews:   app.NewReviewService(ps, fixtures.MustLoad(), store, nil, time.Second, 0),
		Approvals: app.NewApprovalService(store, "memory"),
	})
	return s
}

func do(t *testing.T, s *httpserver.Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.Mux().ServeHTTP(rr, req)

	var out map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), "body: %s", rr.Body.String())
	}
	return rr, out
}

func TestList_FallsBackWhenProviderFails(t *testing.T) {
	s := newServer(t)

	rr, out := do(t, s, http.MethodGet, "/api/reviews/hostaway", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, out["success"])

	meta := out["meta"].(map[string]any)
	assert.Equal(t, true, meta["usingMockData"])
	assert.EqualValues(t, 7, meta["count"])
	assert.NotEmpty(t, meta["timestamp"])
	assert.Len(t, out["data"], 7)

	stats, ok := out["stats"].(map[string]any)
	require.True(t, ok, "stats should be included by default")
	assert.EqualValues(t, 7, stats["totalReviews"])
}

func TestList_LiveDataAndStatsOff(t *testing.T) {
	live := &stubProvider{src: domain.SourceHostaway, raws: []domain.RawReview{
		{"id": 1.0, "rating": 8.0, "status": "published", "listingName": "A"},
	}}
	s := newServer(t, live)

	rr, out := do(t, s, http.MethodGet, "/api/reviews/hostaway?includeStats=false", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, out["meta"].(map[string]any)["usingMockData"])
	assert.Nil(t, out["stats"])
	assert.Len(t, out["data"], 1)
}

func TestList_FiltersAndSorts(t *testing.T) {
	s := newServer(t)

	_, out := do(t, s, http.MethodGet, "/api/reviews/hostaway?channel=Airbnb&minRating=9&sortBy=rating", "")
	data := out["data"].([]any)
	require.Len(t, data, 3)
	assert.EqualValues(t, 9.8, data[0].(map[string]any)["rating"])
	assert.EqualValues(t, 9.5, data[1].(map[string]any)["rating"])
	assert.EqualValues(t, 9.2, data[2].(map[string]any)["rating"])

	_, out = do(t, s, http.MethodGet, "/api/reviews/hostaway?startDate=2024-10-01&endDate=2024-10-12", "")
	assert.Len(t, out["data"], 3)
}

func TestList_RejectsBadParams(t *testing.T) {
	s := newServer(t)
	for _, target := range []string{
		"/api/reviews/hostaway?minRating=eleven",
		"/api/reviews/hostaway?minRating=11",
		"/api/reviews/hostaway?startDate=yesterday",
		"/api/reviews/hostaway?sortBy=guest",
		"/api/reviews/hostaway?listingId=abc",
	} {
		rr, out := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, target)
		assert.Equal(t, false, out["success"], target)
		assert.NotEmpty(t, out["error"], target)
	}
}

func TestList_UnknownProvider(t *testing.T) {
	rr, out := do(t, newServer(t), http.MethodGet, "/api/reviews/airbnb", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, false, out["success"])
}

func TestApprove_NonArrayIsRejectedWithoutMutation(t *testing.T) {
	s := newServer(t)

	for _, body := range []string{
		`{"reviewIds": 7453, "approved": true}`,
		`{"reviewIds": "7453", "approved": true}`,
		`{"approved": true}`,
	} {
		rr, out := do(t, s, http.MethodPost, "/api/reviews/approve", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
		assert.Equal(t, false, out["success"])
		assert.Equal(t, "reviewIds must be an array", out["error"])
	}

	_, out := do(t, s, http.MethodGet, "/api/reviews/hostaway?approved=true", "")
	assert.Len(t, out["data"], 0)
}

func TestApprove_RejectsNonScalarIDs(t *testing.T) {
	rr, _ := do(t, newServer(t), http.MethodPost, "/api/reviews/approve", `{"reviewIds":[{"id":1}],"approved":true}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestApprove_ThenPublicView(t *testing.T) {
	s := newServer(t)

	rr, out := do(t, s, http.MethodPost, "/api/reviews/approve", `{"reviewIds":[7459,"7456"],"approved":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "2 reviews approved", out["message"])
	data := out["data"].(map[string]any)
	assert.Equal(t, []any{7459.0, "7456"}, data["reviewIds"])
	assert.Equal(t, true, data["approved"])
	assert.NotEmpty(t, data["batchId"])
	assert.NotEmpty(t, data["timestamp"])

	_, out = do(t, s, http.MethodGet, "/api/reviews/hostaway/public", "")
	pub := out["data"].([]any)
	require.Len(t, pub, 2)
	// newest first
	assert.EqualValues(t, 7456, pub[0].(map[string]any)["id"])
	assert.EqualValues(t, 7459, pub[1].(map[string]any)["id"])
	for _, r := range pub {
		assert.Equal(t, true, r.(map[string]any)["isApproved"])
	}

	rr, out = do(t, s, http.MethodPost, "/api/reviews/approve", `{"reviewIds":[7459]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1 reviews unapproved", out["message"])

	_, out = do(t, s, http.MethodGet, "/api/reviews/hostaway/public", "")
	assert.Len(t, out["data"], 1)
}

func TestGet_FoundWithETag(t *testing.T) {
	s := newServer(t)

	rr, out := do(t, s, http.MethodGet, "/api/reviews/hostaway/7454", "")
	require.Equal(t, http.StatusOK, rr.Code)
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, "James Chen", out["data"].(map[string]any)["guestName"])

	req := httptest.NewRequest(http.MethodGet, "/api/reviews/hostaway/7454", nil)
	req.Header.Set("If-None-Match", etag)
	rr2 := httptest.NewRecorder()
	s.Mux().ServeHTTP(rr2, req)
	assert.Equal(t, http.StatusNotModified, rr2.Code)
}

func TestGet_NotFound(t *testing.T) {
	rr, out := do(t, newServer(t), http.MethodGet, "/api/reviews/hostaway/99999", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Review not found", out["error"])
}

func TestProperties_SortedByAverageDesc(t *testing.T) {
	rr, out := do(t, newServer(t), http.MethodGet, "/api/reviews/properties", "")
	require.Equal(t, http.StatusOK, rr.Code)

	data := out["data"].([]any)
	require.Len(t, data, 3)
	names := make([]string, len(data))
	for i, p := range data {
		names[i] = p.(map[string]any)["name"].(string)
	}
	assert.Equal(t, []string{
		"Studio W1 B - 8 Mayfair Studios",
		"2B N1 A - 29 Shoreditch Heights",
		"1B E2 C - 15 Brick Lane Lofts",
	}, names)
	assert.EqualValues(t, 9.5, data[0].(map[string]any)["averageRating"])
}

func TestHealth(t *testing.T) {
	rr, out := do(t, newServer(t), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, "Flex Living Reviews API", out["service"])
	assert.NotEmpty(t, out["timestamp"])
}

func TestPanicBecomesJSON500(t *testing.T) {
	s := newServer(t)
	s.Mount("/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") }))

	rr, out := do(t, s, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Internal server error", out["error"])
	assert.Equal(t, "kaboom", out["message"])
	assert.NotContains(t, rr.Body.String(), "goroutine")
}

func TestApprove_WithoutProviderInfersPlacesFromID(t *testing.T) {
	s := newServer(t)

	rr, out := do(t, s, http.MethodPost, "/api/reviews/approve", `{"reviewIds":["google_1727782200"],"approved":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1 reviews approved", out["message"])
	assert.NotContains(t, out["data"].(map[string]any), "provider")

	_, out = do(t, s, http.MethodGet, "/api/reviews/google/public", "")
	pub := out["data"].([]any)
	require.Len(t, pub, 1)
	assert.Equal(t, "google_1727782200", pub[0].(map[string]any)["id"])
	assert.Equal(t, true, pub[0].(map[string]any)["isApproved"])

	_, out = do(t, s, http.MethodGet, "/api/reviews/hostaway/public", "")
	assert.Len(t, out["data"], 0)
}

func TestApprove_ExplicitProviderKeepsScope(t *testing.T) {
	s := newServer(t)

	rr, out := do(t, s, http.MethodPost, "/api/reviews/approve",
		`{"reviewIds":["google_1727782200"],"approved":true,"provider":"hostaway"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hostaway", out["data"].(map[string]any)["provider"])

	_, out = do(t, s, http.MethodGet, "/api/reviews/google/public", "")
	assert.Len(t, out["data"], 0)
}

func TestTimeoutIsJSON(t *testing.T) {
	s := httpserver.New(httpserver.Options{RequestTimeout: 20 * time.Millisecond})
	s.Mount("/slow", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))

	rr, out := do(t, s, http.MethodGet, "/slow", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "Request timeout", out["error"])
}
