package fixtures_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flex_reviews/internal/app"
	"flex_reviews/internal/domain"
	"flex_reviews/internal/fixtures"
)

func TestLoad_HostawayFixtureNormalizes(t *testing.T) {
	d, err := fixtures.Load()
	require.NoError(t, err)

	reviews := app.NormalizeReviews(d.For(domain.SourceHostaway), domain.SourceHostaway)
	require.Len(t, reviews, 7)

	first := reviews[0]
	assert.Equal(t, "7453", first.ID.String())
	assert.True(t, first.ID.Numeric())
	require.NotNil(t, first.OverallRating)
	assert.Equal(t, 9.2, *first.OverallRating)
	assert.Equal(t, "Airbnb", first.Channel)
	assert.Len(t, first.CategoryRatings, 4)

	// the bundled set carries a repeated id on purpose
	assert.Equal(t, first.ID.String(), reviews[2].ID.String())
}

func TestLoad_PlacesFixtureNormalizes(t *testing.T) {
	d, err := fixtures.Load()
	require.NoError(t, err)

	reviews := app.NormalizeReviews(d.For(domain.SourcePlaces), domain.SourcePlaces)
	require.Len(t, reviews, 3)
	for _, r := range reviews {
		assert.Equal(t, "Google", r.Channel)
		assert.Equal(t, "The Flex Shoreditch", r.PropertyName)
		require.NotNil(t, r.OverallRating)
	}
	assert.Equal(t, 10.0, *reviews[0].OverallRating)
	assert.Equal(t, "google_1727782200", reviews[0].ID.String())
}

func TestFor_ReturnsCopy(t *testing.T) {
	d := fixtures.MustLoad()
	a := d.For(domain.SourceHostaway)
	a[0] = nil
	assert.NotNil(t, d.For(domain.SourceHostaway)[0])
}
