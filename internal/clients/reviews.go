package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"storefront/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker/v2"
)

// ReviewsAPI reads reviews and stats from the backend review API.
type ReviewsAPI struct {
	baseURL  string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
	validate *validator.Validate
}

func NewReviewsAPI(baseURL string, timeout time.Duration) *ReviewsAPI {
	return &ReviewsAPI{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: timeout},
		breaker:  newBreaker("reviews-api", 30*time.Second),
		validate: validator.New(),
	}
}

func (a *ReviewsAPI) ProductReviews(ctx context.Context, productID string, page, pageSize int) ([]models.Review, error) {
	return a.reviews(ctx, "/api/reviews/products/"+url.PathEscape(productID), page, pageSize)
}

func (a *ReviewsAPI) ShopReviews(ctx context.Context, page, pageSize int) ([]models.Review, error) {
	return a.reviews(ctx, "/api/reviews/shop", page, pageSize)
}

func (a *ReviewsAPI) ProductStats(ctx context.Context, productID string) (*models.ReviewStats, error) {
	return a.stats(ctx, "/api/reviews/products/"+url.PathEscape(productID)+"/stats")
}

func (a *ReviewsAPI) ShopStats(ctx context.Context) (*models.ReviewStats, error) {
	return a.stats(ctx, "/api/reviews/shop/stats")
}

func (a *ReviewsAPI) reviews(ctx context.Context, path string, page, pageSize int) ([]models.Review, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	raw, err := a.get(ctx, path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	reviews, err := decodeEnvelope[[]models.Review](raw)
	if err != nil {
		return nil, fmt.Errorf("reviews %s: %w", path, err)
	}
	if reviews == nil {
		return nil, fmt.Errorf("reviews %s: %w: data is not a list", path, ErrUpstreamEnvelope)
	}
	if err := a.validate.Var(reviews, "dive"); err != nil {
		return nil, fmt.Errorf("reviews %s: %w: %v", path, ErrUpstreamEnvelope, err)
	}
	return reviews, nil
}

func (a *ReviewsAPI) stats(ctx context.Context, path string) (*models.ReviewStats, error) {
	raw, err := a.get(ctx, path)
	if err != nil {
		return nil, err
	}
	stats, err := decodeEnvelope[*models.ReviewStats](raw)
	if err != nil {
		return nil, fmt.Errorf("review stats %s: %w", path, err)
	}
	if stats == nil {
		return nil, fmt.Errorf("review stats %s: %w: missing data", path, ErrUpstreamEnvelope)
	}
	if err := a.validate.Struct(stats); err != nil {
		return nil, fmt.Errorf("review stats %s: %w: %v", path, ErrUpstreamEnvelope, err)
	}
	return stats, nil
}

func (a *ReviewsAPI) get(ctx context.Context, path string) ([]byte, error) {
	return a.breaker.Execute(func() ([]byte, error) {
		return fetch(ctx, a.client, http.MethodGet, a.baseURL+path, nil, nil)
	})
}
