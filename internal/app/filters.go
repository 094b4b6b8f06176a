package app

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"flex_reviews/internal/domain"
)

const (
	SortByDate   = "date"
	SortByRating = "rating"

	// StatusAny disables the status filter.
	StatusAny = "all"
)

// ReviewFilter is applied after normalization. Zero values disable a criterion.
type ReviewFilter struct {
	ListingID *int64
	Start     *time.Time
	End       *time.Time // inclusive
	Status    string
	Channel   string
	Property  string
	MinRating *float64
	Approved  *bool
	SortBy    string
}

var dateParamLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDateParam reads a startDate/endDate value. A bare date used as an end bound
// covers the whole day.
func ParseDateParam(s string, endOfDay bool) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		if endOfDay {
			return d.Add(24*time.Hour - time.Nanosecond), nil
		}
		return d, nil
	}
	for _, layout := range dateParamLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.Invalid("date", "must be YYYY-MM-DD or RFC3339, got "+strconv.Quote(s))
}

func (f ReviewFilter) Match(r domain.CanonicalReview) bool {
	if f.ListingID != nil && (r.ListingID == nil || *r.ListingID != *f.ListingID) {
		return false
	}
	if f.Start != nil || f.End != nil {
		ts, ok := r.SubmittedTime()
		if !ok {
			return false
		}
		if f.Start != nil && ts.Before(*f.Start) {
			return false
		}
		if f.End != nil && ts.After(*f.End) {
			return false
		}
	}
	if f.Status != "" && f.Status != StatusAny && r.Status != f.Status {
		return false
	}
	if f.Channel != "" && r.Channel != f.Channel {
		return false
	}
	if f.Property != "" && r.PropertyName != f.Property {
		return false
	}
	if f.MinRating != nil && r.RatingOrZero() < *f.MinRating {
		return false
	}
	if f.Approved != nil && r.IsApproved != *f.Approved {
		return false
	}
	return true
}

// Apply filters then sorts into a new slice.
func (f ReviewFilter) Apply(in []domain.CanonicalReview) []domain.CanonicalReview {
	out := make([]domain.CanonicalReview, 0, len(in))
	for _, r := range in {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	SortReviews(out, f.SortBy)
	return out
}

// SortReviews orders newest first ("date") or highest rated first ("rating").
// Any other key keeps provider order.
func SortReviews(rs []domain.CanonicalReview, by string) {
	switch by {
	case SortByDate:
		sort.SliceStable(rs, func(i, j int) bool {
			ti, oki := rs[i].SubmittedTime()
			tj, okj := rs[j].SubmittedTime()
			if oki != okj {
				return oki
			}
			return ti.After(tj)
		})
	case SortByRating:
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].RatingOrZero() > rs[j].RatingOrZero() })
	}
}
