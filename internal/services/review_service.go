package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/pkg/metrics"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ReviewSource is the live review API. *clients.ReviewsAPI implements it.
type ReviewSource interface {
	ProductReviews(ctx context.Context, productID string, page, pageSize int) ([]models.Review, error)
	ShopReviews(ctx context.Context, page, pageSize int) ([]models.Review, error)
	ProductStats(ctx context.Context, productID string) (*models.ReviewStats, error)
	ShopStats(ctx context.Context) (*models.ReviewStats, error)
}

const (
	defaultReviewPageSize = 10
	maxReviewPageSize     = 50
	maxReviewPage         = 10000
	maxCachedReviews      = 1024
)

// ReviewSummary is a page of reviews together with the stats for the same scope.
type ReviewSummary struct {
	Reviews []models.Review     `json:"reviews"`
	Stats   *models.ReviewStats `json:"stats"`
}

type cachedReviews struct {
	value   interface{}
	expires time.Time
}

// ReviewService reads reviews for product and shop pages. Failures never
// reach the caller: they become an empty list or nil stats.
type ReviewService struct {
	source      ReviewSource
	fallback    []models.Review
	useFallback bool
	revalidate  time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time

	sfg   singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedReviews
}

// NewReviewService builds the aggregator. When development is true the
// built-in dataset is served and source is never called.
func NewReviewService(source ReviewSource, development bool, revalidate time.Duration, m *metrics.Metrics) *ReviewService {
	return &ReviewService{
		source:      source,
		fallback:    FallbackReviews(),
		useFallback: development || source == nil,
		revalidate:  revalidate,
		metrics:     m,
		now:         time.Now,
		cache:       make(map[string]cachedReviews),
	}
}

func (s *ReviewService) GetProductReviews(ctx context.Context, productID string, page, pageSize int) []models.Review {
	page, pageSize = normalizePage(page, pageSize)
	if s.useFallback {
		return paginate(filterReviews(s.fallback, productID), page, pageSize)
	}
	key := fmt.Sprintf("product:%s:%d:%d", productID, page, pageSize)
	v := s.cached(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.source.ProductReviews(ctx, productID, page, pageSize)
	})
	return reviewsOrEmpty(v)
}

func (s *ReviewService) GetShopReviews(ctx context.Context, page, pageSize int) []models.Review {
	page, pageSize = normalizePage(page, pageSize)
	if s.useFallback {
		return paginate(filterReviews(s.fallback, ""), page, pageSize)
	}
	key := fmt.Sprintf("shop:%d:%d", page, pageSize)
	v := s.cached(ctx, key, func(ctx context.Context) (interface{}, error) {
		return s.source.ShopReviews(ctx, page, pageSize)
	})
	return reviewsOrEmpty(v)
}

// GetProductStats returns nil when nothing is known.
func (s *ReviewService) GetProductStats(ctx context.Context, productID string) *models.ReviewStats {
	if s.useFallback {
		return ComputeStats(filterReviews(s.fallback, productID))
	}
	v := s.cached(ctx, "product-stats:"+productID, func(ctx context.Context) (interface{}, error) {
		return s.source.ProductStats(ctx, productID)
	})
	stats, _ := v.(*models.ReviewStats)
	return stats
}

func (s *ReviewService) GetShopStats(ctx context.Context) *models.ReviewStats {
	if s.useFallback {
		return ComputeStats(filterReviews(s.fallback, ""))
	}
	v := s.cached(ctx, "shop-stats", func(ctx context.Context) (interface{}, error) {
		return s.source.ShopStats(ctx)
	})
	stats, _ := v.(*models.ReviewStats)
	return stats
}

// GetProductSummary fetches the first page and the stats concurrently.
func (s *ReviewService) GetProductSummary(ctx context.Context, productID string, pageSize int) ReviewSummary {
	var summary ReviewSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary.Reviews = s.GetProductReviews(gctx, productID, 1, pageSize)
		return nil
	})
	g.Go(func() error {
		summary.Stats = s.GetProductStats(gctx, productID)
		return nil
	})
	_ = g.Wait()
	return summary
}

// cached serves key from the revalidation cache, collapsing concurrent
// misses into one upstream call. Failed calls are not cached.
func (s *ReviewService) cached(ctx context.Context, key string, load func(context.Context) (interface{}, error)) interface{} {
	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expires) {
		s.observeCache("hit")
		return entry.value
	}
	s.observeCache("miss")

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		s.mu.RLock()
		entry, ok := s.cache[key]
		s.mu.RUnlock()
		if ok && s.now().Before(entry.expires) {
			return entry.value, nil
		}

		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if s.revalidate > 0 {
			s.store(key, v)
		}
		return v, nil
	})
	if err != nil {
		log.Printf("Warning: review lookup %s failed, rendering empty state: %v", key, err)
		if s.metrics != nil {
			s.metrics.UpstreamFailures.WithLabelValues("reviews").Inc()
		}
		return nil
	}
	return v
}

// store inserts v under key after sweeping expired entries. At capacity the
// entry closest to expiry is evicted.
func (s *ReviewService) store(key string, v interface{}) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range s.cache {
		if !now.Before(e.expires) {
			delete(s.cache, k)
		}
	}
	if _, exists := s.cache[key]; !exists && len(s.cache) >= maxCachedReviews {
		var oldest string
		var oldestAt time.Time
		for k, e := range s.cache {
			if oldest == "" || e.expires.Before(oldestAt) {
				oldest, oldestAt = k, e.expires
			}
		}
		delete(s.cache, oldest)
	}
	s.cache[key] = cachedReviews{value: v, expires: now.Add(s.revalidate)}
}

func (s *ReviewService) observeCache(result string) {
	if s.metrics != nil {
		s.metrics.ReviewCache.WithLabelValues(result).Inc()
	}
}

// ComputeStats derives the average (one decimal) and the 1..5 distribution.
// It returns nil for no reviews.
func ComputeStats(reviews []models.Review) *models.ReviewStats {
	if len(reviews) == 0 {
		return nil
	}
	stats := &models.ReviewStats{RatingDistribution: map[int]int{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}}
	sum := 0
	for _, r := range reviews {
		if r.Rating < 1 || r.Rating > 5 {
			continue
		}
		stats.RatingDistribution[r.Rating]++
		stats.TotalReviews++
		sum += r.Rating
	}
	if stats.TotalReviews == 0 {
		return nil
	}
	stats.AverageRating = math.Round(float64(sum)/float64(stats.TotalReviews)*10) / 10
	return stats
}

func reviewsOrEmpty(v interface{}) []models.Review {
	reviews, _ := v.([]models.Review)
	if reviews == nil {
		return []models.Review{}
	}
	return reviews
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxReviewPage {
		page = maxReviewPage
	}
	if pageSize < 1 {
		pageSize = defaultReviewPageSize
	}
	if pageSize > maxReviewPageSize {
		pageSize = maxReviewPageSize
	}
	return page, pageSize
}

func filterReviews(all []models.Review, productID string) []models.Review {
	out := make([]models.Review, 0, len(all))
	for _, r := range all {
		if r.ProductID == productID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func paginate(reviews []models.Review, page, pageSize int) []models.Review {
	if len(reviews) == 0 || page < 1 || pageSize < 1 || page-1 > (len(reviews)-1)/pageSize {
		return []models.Review{}
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > len(reviews) {
		end = len(reviews)
	}
	return reviews[start:end]
}

// FallbackReviews is the development dataset.
func FallbackReviews() []models.Review {
	day := func(n int) time.Time {
		return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC).AddDate(0, 0, n)
	}
	entries := []struct {
		product, author, title, body string
		rating                       int
		verified                     bool
	}{
		{"hydrating-serum", "Elin", "Min nya favorit", "Huden känns mjuk hela dagen.", 5, true},
		{"hydrating-serum", "Marcus", "Bra men liten flaska", "Fungerar fint under solskydd.", 4, true},
		{"hydrating-serum", "Sofia", "", "Absorberas snabbt, ingen klibbighet.", 5, false},
		{"night-cream", "Anna", "Rik och lugnande", "Perfekt för vintern.", 5, true},
		{"night-cream", "Johan", "Lite för tung", "Passar nog torr hud bättre än min.", 3, true},
		{"cleansing-balm", "Maja", "Smälter bort smink", "Doften är mild och skonsam.", 4, false},
		{"", "Karin", "Snabb leverans", "Paketet kom dagen efter beställning.", 5, true},
		{"", "Oskar", "Trevlig kundtjänst", "Fick hjälp att välja rätt produkter.", 5, false},
		{"", "Lina", "Bra men dyrt frakt", "Hade önskat fri frakt på lägre belopp.", 4, true},
	}
	reviews := make([]models.Review, 0, len(entries))
	for i, e := range entries {
		reviews = append(reviews, models.Review{
			ID:        "fallback-" + strconv.Itoa(i+1),
			ProductID: e.product,
			Author:    e.author,
			Rating:    e.rating,
			Title:     e.title,
			Body:      e.body,
			Verified:  e.verified,
			CreatedAt: day(i),
		})
	}
	return reviews
}
