package domain

// Breakdown is one channel or property bucket of a StatisticsReport.
type Breakdown struct {
	Count         int        `json:"count"`
	AverageRating float64    `json:"averageRating"`
	Reviews       []ReviewID `json:"reviews"`
}

type RatingDistribution struct {
	Excellent int `json:"excellent"` // >= 9.0
	Good      int `json:"good"`      // [7.5, 9.0)
	Fair      int `json:"fair"`      // [6.0, 7.5)
	Poor      int `json:"poor"`      // < 6.0, or no rating
}

// StatisticsReport is recomputed on every request and never stored.
type StatisticsReport struct {
	TotalReviews       int                   `json:"totalReviews"`
	AverageRating      float64               `json:"averageRating"`
	CategoryAverages   map[string]float64    `json:"categoryAverages"`
	ChannelBreakdown   map[string]*Breakdown `json:"channelBreakdown"`
	PropertyBreakdown  map[string]*Breakdown `json:"propertyBreakdown"`
	RatingDistribution RatingDistribution    `json:"ratingDistribution"`
}

type PropertySummary struct {
	Name             string             `json:"name"`
	ReviewCount      int                `json:"reviewCount"`
	ApprovedCount    int                `json:"approvedCount"`
	AverageRating    float64            `json:"averageRating"`
	CategoryAverages map[string]float64 `json:"categoryAverages"`
}
