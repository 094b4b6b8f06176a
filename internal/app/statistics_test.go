package app_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
)

func rated(id int64, rating float64, channel, property string, cats ...domain.CategoryRating) domain.CanonicalReview {
	return domain.CanonicalReview{
		ID:              domain.NumericID(id),
		Source:          domain.SourceHostaway,
		OverallRating:   &rating,
		Channel:         channel,
		PropertyName:    property,
		CategoryRatings: cats,
	}
}

func TestAggregate_Empty(t *testing.T) {
	rep := app.Aggregate(nil)
	assert.Equal(t, 0, rep.TotalReviews)
	assert.Equal(t, 0.0, rep.AverageRating)
	assert.NotNil(t, rep.CategoryAverages)
	assert.Empty(t, rep.CategoryAverages)
	assert.NotNil(t, rep.ChannelBreakdown)
	assert.Empty(t, rep.ChannelBreakdown)
	assert.NotNil(t, rep.PropertyBreakdown)
	assert.Empty(t, rep.PropertyBreakdown)
}

func TestAggregate_ChannelBreakdown(t *testing.T) {
	rep := app.Aggregate([]domain.CanonicalReview{
		rated(1, 10, "A", "P"),
		rated(2, 6, "A", "P"),
		rated(3, 8, "B", "Q"),
	})

	assert.Equal(t, 3, rep.TotalReviews)
	assert.Equal(t, 8.0, rep.AverageRating)

	require.Contains(t, rep.ChannelBreakdown, "A")
	assert.Equal(t, 2, rep.ChannelBreakdown["A"].Count)
	assert.Equal(t, 8.0, rep.ChannelBreakdown["A"].AverageRating)
	assert.Equal(t, []domain.ReviewID{domain.NumericID(1), domain.NumericID(2)}, rep.ChannelBreakdown["A"].Reviews)

	require.Contains(t, rep.ChannelBreakdown, "B")
	assert.Equal(t, 1, rep.ChannelBreakdown["B"].Count)
	assert.Equal(t, 8.0, rep.ChannelBreakdown["B"].AverageRating)

	assert.Equal(t, 2, rep.PropertyBreakdown["P"].Count)
	assert.Equal(t, 1, rep.PropertyBreakdown["Q"].Count)
}

func TestAggregate_MissingRatingCountsAsZero(t *testing.T) {
	rep := app.Aggregate([]domain.CanonicalReview{
		rated(1, 9, "A", "P"),
		{ID: domain.NumericID(2), Channel: "A", PropertyName: "P"},
	})
	assert.Equal(t, 4.5, rep.AverageRating)
	assert.Equal(t, 4.5, rep.ChannelBreakdown["A"].AverageRating)
	assert.Equal(t, 1, rep.RatingDistribution.Poor)
	assert.Equal(t, 1, rep.RatingDistribution.Excellent)
}

func TestAggregate_CategoryAveragesUseOwnDenominator(t *testing.T) {
	rep := app.Aggregate([]domain.CanonicalReview{
		rated(1, 9, "A", "P", domain.CategoryRating{Category: "cleanliness", Rating: 10}, domain.CategoryRating{Category: "value", Rating: 7}),
		rated(2, 8, "A", "P", domain.CategoryRating{Category: "cleanliness", Rating: 9}),
		rated(3, 7, "A", "P"),
	})
	assert.Equal(t, 9.5, rep.CategoryAverages["cleanliness"])
	assert.Equal(t, 7.0, rep.CategoryAverages["value"])
}

func TestRatingBucket_LowerBoundInclusive(t *testing.T) {
	cases := map[float64]string{
		10:   "excellent",
		9.0:  "excellent",
		8.99: "good",
		7.5:  "good",
		7.49: "fair",
		6.0:  "fair",
		5.99: "poor",
		0:    "poor",
	}
	for rating, want := range cases {
		if got := app.RatingBucket(rating); got != want {
			t.Errorf("RatingBucket(%v) = %s, want %s", rating, got, want)
		}
	}

	rep := app.Aggregate([]domain.CanonicalReview{
		rated(1, 9.0, "A", "P"), rated(2, 7.5, "A", "P"), rated(3, 6.0, "A", "P"), rated(4, 5.9, "A", "P"),
	})
	assert.Equal(t, domain.RatingDistribution{Excellent: 1, Good: 1, Fair: 1, Poor: 1}, rep.RatingDistribution)
}

func TestPropertySummaries_SortedDescending(t *testing.T) {
	approved := rated(4, 9, "A", "High")
	approved.IsApproved = true

	out := app.PropertySummaries([]domain.CanonicalReview{
		rated(1, 6, "A", "Low"),
		rated(2, 8, "A", "Mid", domain.CategoryRating{Category: "value", Rating: 8}),
		rated(3, 10, "A", "High"),
		approved,
		rated(5, 7, "A", "Low"),
	})
	require.Len(t, out, 3)
	assert.Equal(t, "High", out[0].Name)
	assert.Equal(t, 9.5, out[0].AverageRating)
	assert.Equal(t, 2, out[0].ReviewCount)
	assert.Equal(t, 1, out[0].ApprovedCount)
	assert.Equal(t, "Mid", out[1].Name)
	assert.Equal(t, map[string]float64{"value": 8}, out[1].CategoryAverages)
	assert.Equal(t, "Low", out[2].Name)
	assert.Equal(t, 6.5, out[2].AverageRating)

	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].AverageRating, out[i].AverageRating)
	}
}
