package models

import "time"

// Review is a read-only customer review. ProductID is empty for shop reviews.
type Review struct {
	ID        string    `json:"id" validate:"required"`
	ProductID string    `json:"productId,omitempty"`
	Author    string    `json:"author" validate:"required"`
	Rating    int       `json:"rating" validate:"min=1,max=5"`
	Title     string    `json:"title,omitempty"`
	Body      string    `json:"body"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewStats aggregates ratings; Distribution is keyed 1..5.
type ReviewStats struct {
	AverageRating      float64     `json:"averageRating" validate:"gte=0,lte=5"`
	TotalReviews       int         `json:"totalReviews" validate:"gte=0"`
	RatingDistribution map[int]int `json:"ratingDistribution"`
}
