package domain

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Source tags the upstream format a review came from.
type Source string

const (
	SourceHostaway Source = "hostaway"
	SourcePlaces   Source = "google"
)

// Sources lists every source the service knows how to normalize.
var Sources = []Source{SourceHostaway, SourcePlaces}

// ParseSource maps a provider path segment to a Source.
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hostaway":
		return SourceHostaway, nil
	case "google", "places", "google-places":
		return SourcePlaces, nil
	}
	return "", ErrUnknownSource
}

type ReviewType string

const (
	GuestToHost ReviewType = "guest-to-host"
	HostToGuest ReviewType = "host-to-guest"
)

const (
	StatusPublished = "published"
	StatusPending   = "pending"
)

// ReviewID is a provider identifier. Providers emit integers or strings and the
// JSON form is preserved on output.
type ReviewID struct {
	value   string
	numeric bool
}

func NumericID(n int64) ReviewID { return ReviewID{value: strconv.FormatInt(n, 10), numeric: true} }
func StringID(s string) ReviewID { return ReviewID{value: s} }

// ParseReviewID reads an id from a URL or request body string; integer text is numeric.
func ParseReviewID(s string) ReviewID {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NumericID(n)
	}
	return StringID(s)
}

func (id ReviewID) String() string { return id.value }
func (id ReviewID) IsZero() bool   { return id.value == "" }
func (id ReviewID) Numeric() bool  { return id.numeric }

func (id ReviewID) MarshalJSON() ([]byte, error) {
	if id.value == "" {
		return []byte("null"), nil
	}
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func (id *ReviewID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ReviewID{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = StringID(s)
		return nil
	}
	if n, err := strconv.ParseInt(string(b), 10, 64); err == nil {
		*id = NumericID(n)
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*id = StringID(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// ReviewKey scopes an id by its source; two providers may reuse the same id.
type ReviewKey struct {
	Source Source
	ID     string
}

func (k ReviewKey) String() string { return string(k.Source) + ":" + k.ID }

// RawReview is an untyped provider record as decoded from JSON.
type RawReview = map[string]any

type CategoryRating struct {
	Category string  `json:"category"`
	Rating   float64 `json:"rating"`
}

// CanonicalReview is the normalized review every downstream consumer works with.
// Ratings are on a 0–10 scale; a nil OverallRating means the provider gave none.
type CanonicalReview struct {
	ID              ReviewID         `json:"id"`
	Source          Source           `json:"source"`
	ReviewType      ReviewType       `json:"type"`
	Status          string           `json:"status"`
	OverallRating   *float64         `json:"rating"`
	BodyText        string           `json:"publicReview"`
	CategoryRatings []CategoryRating `json:"reviewCategory"`
	SubmittedAt     string           `json:"submittedAt,omitempty"`
	GuestName       string           `json:"guestName"`
	PropertyName    string           `json:"listingName"`
	ListingID       *int64           `json:"listingId,omitempty"`
	ReservationID   *int64           `json:"reservationId,omitempty"`
	Channel         string           `json:"channel"`
	CreatedAt       string           `json:"createdAt,omitempty"`
	UpdatedAt       string           `json:"updatedAt,omitempty"`

	// places only
	ProfilePhotoURL         string `json:"profilePhotoUrl,omitempty"`
	RelativeTimeDescription string `json:"relativeTimeDescription,omitempty"`
	PlaceID                 string `json:"googlePlaceId,omitempty"`

	// set by curation, never by ingestion
	IsApproved bool `json:"isApproved"`
}

func (r CanonicalReview) Key() ReviewKey { return ReviewKey{Source: r.Source, ID: r.ID.String()} }

// RatingOrZero is the rating used by aggregation: absent counts as 0.
func (r CanonicalReview) RatingOrZero() float64 {
	if r.OverallRating == nil {
		return 0
	}
	return *r.OverallRating
}

var submittedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// SubmittedTime parses SubmittedAt; zone-less timestamps are read as UTC.
func (r CanonicalReview) SubmittedTime() (time.Time, bool) {
	s := strings.TrimSpace(r.SubmittedAt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range submittedLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FallbackDataset holds the raw records served when a provider is unavailable.
type FallbackDataset map[Source][]RawReview

// For returns a copy of the slice for src so callers can't reorder the fixture.
func (d FallbackDataset) For(src Source) []RawReview {
	in := d[src]
	out := make([]RawReview, len(in))
	copy(out, in)
	return out
}
