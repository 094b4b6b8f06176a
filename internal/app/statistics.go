package app

import (
	"math"
	"sort"

	"flex_reviews/internal/domain"
)

// Rating-distribution lower bounds, inclusive.
const (
	excellentFrom = 9.0
	goodFrom      = 7.5
	fairFrom      = 6.0
)

func round2(v float64) float64 { return math.Round(v*100) / 100 }

type sumCount struct {
	sum   float64
	count int
}

func (s sumCount) avg() float64 {
	if s.count == 0 {
		return 0
	}
	return round2(s.sum / float64(s.count))
}

// Aggregate summarises reviews in one pass. Reviews without a rating count as 0
// in the overall, channel and property averages and land in the "poor" bucket.
func Aggregate(reviews []domain.CanonicalReview) domain.StatisticsReport {
	rep := domain.StatisticsReport{
		CategoryAverages:  map[string]float64{},
		ChannelBreakdown:  map[string]*domain.Breakdown{},
		PropertyBreakdown: map[string]*domain.Breakdown{},
	}
	if len(reviews) == 0 {
		return rep
	}

	cats := map[string]*sumCount{}
	channels := map[string]*sumCount{}
	props := map[string]*sumCount{}
	total := 0.0

	for _, r := range reviews {
		for _, c := range r.CategoryRatings {
			acc, ok := cats[c.Category]
			if !ok {
				acc = &sumCount{}
				cats[c.Category] = acc
			}
			acc.sum += c.Rating
			acc.count++
		}

		rating := r.RatingOrZero()
		total += rating
		addToBucket(rep.ChannelBreakdown, channels, r.Channel, rating, r.ID)
		addToBucket(rep.PropertyBreakdown, props, r.PropertyName, rating, r.ID)
		bumpDistribution(&rep.RatingDistribution, rating)
	}

	for name, acc := range cats {
		rep.CategoryAverages[name] = acc.avg()
	}
	for name, acc := range channels {
		rep.ChannelBreakdown[name].AverageRating = acc.avg()
	}
	for name, acc := range props {
		rep.PropertyBreakdown[name].AverageRating = acc.avg()
	}

	rep.TotalReviews = len(reviews)
	rep.AverageRating = round2(total / float64(len(reviews)))
	return rep
}

func addToBucket(out map[string]*domain.Breakdown, acc map[string]*sumCount, key string, rating float64, id domain.ReviewID) {
	b, ok := out[key]
	if !ok {
		b = &domain.Breakdown{Reviews: []domain.ReviewID{}}
		out[key] = b
		acc[key] = &sumCount{}
	}
	b.Count++
	b.Reviews = append(b.Reviews, id)
	acc[key].sum += rating
	acc[key].count++
}

// RatingBucket names the distribution bucket a rating falls in.
func RatingBucket(rating float64) string {
	switch {
	case rating >= excellentFrom:
		return "excellent"
	case rating >= goodFrom:
		return "good"
	case rating >= fairFrom:
		return "fair"
	}
	return "poor"
}

func bumpDistribution(d *domain.RatingDistribution, rating float64) {
	switch RatingBucket(rating) {
	case "excellent":
		d.Excellent++
	case "good":
		d.Good++
	case "fair":
		d.Fair++
	default:
		d.Poor++
	}
}

// PropertySummaries groups reviews by property name, sorted by average rating
// descending. Ties keep first-seen order.
func PropertySummaries(reviews []domain.CanonicalReview) []domain.PropertySummary {
	type acc struct {
		summary domain.PropertySummary
		rating  sumCount
		cats    map[string]*sumCount
	}
	order := []string{}
	byName := map[string]*acc{}

	for _, r := range reviews {
		a, ok := byName[r.PropertyName]
		if !ok {
			a = &acc{summary: domain.PropertySummary{Name: r.PropertyName}, cats: map[string]*sumCount{}}
			byName[r.PropertyName] = a
			order = append(order, r.PropertyName)
		}
		a.summary.ReviewCount++
		if r.IsApproved {
			a.summary.ApprovedCount++
		}
		a.rating.sum += r.RatingOrZero()
		a.rating.count++
		for _, c := range r.CategoryRatings {
			sc, ok := a.cats[c.Category]
			if !ok {
				sc = &sumCount{}
				a.cats[c.Category] = sc
			}
			sc.sum += c.Rating
			sc.count++
		}
	}

	out := make([]domain.PropertySummary, 0, len(order))
	for _, name := range order {
		a := byName[name]
		a.summary.AverageRating = a.rating.avg()
		a.summary.CategoryAverages = make(map[string]float64, len(a.cats))
		for c, sc := range a.cats {
			a.summary.CategoryAverages[c] = sc.avg()
		}
		out = append(out, a.summary)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AverageRating > out[j].AverageRating })
	return out
}
