package services_test

import (
	"context"
	"sync"
	"testing"

	"storefront/internal/cart"
	"storefront/internal/clients"
	"storefront/internal/models"
	"storefront/internal/repositories"
	"storefront/internal/services"
	"storefront/pkg/currency"
	"storefront/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	Type    string
	Payload interface{}
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishEvent(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Payload: payload})
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// MockPaymentGateway is a mock implementation of services.PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreatePaymentOrder(ctx context.Context, req clients.PaymentOrderRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) Charge(ctx context.Context, method, idempotencyKey string, payload interface{}) (*clients.ChargeResult, error) {
	args := m.Called(ctx, method, idempotencyKey, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.ChargeResult), args.Error(1)
}

type fixture struct {
	carts     *services.CartService
	cartRepo  *repositories.MockCartRepository
	discounts *repositories.MockDiscountRepository
	orders    *repositories.MockOrderRepository
	events    *recordingPublisher
	metrics   *metrics.Metrics
	resolver  *currency.Resolver
}

// newFixture seeds product A (100 kr, stock 10), product B (250 kr, stock 3)
// and discount GLOW10 (10 %, minimum 300 kr).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	products := repositories.NewMockProductRepository()
	for _, p := range []models.Product{
		{ID: "a", Slug: "hydrating-serum", Name: "Hydrating Serum", Category: "serum", Price: decimal.NewFromInt(100), Stock: 10},
		{ID: "b", Slug: "night-cream", Name: "Night Cream", Category: "cream", Price: decimal.NewFromInt(250), Stock: 3},
	} {
		p := p
		require.NoError(t, products.Create(ctx, &p))
	}

	discounts := repositories.NewMockDiscountRepository()
	require.NoError(t, discounts.Create(ctx, &models.DiscountCode{
		Code: "GLOW10", Percent: decimal.NewFromInt(10), Active: true, MinSubtotal: decimal.NewFromInt(300),
	}))

	f := &fixture{
		cartRepo:  repositories.NewMockCartRepository(),
		discounts: discounts,
		orders:    repositories.NewMockOrderRepository(),
		events:    &recordingPublisher{},
		metrics:   metrics.NewMetrics(prometheus.NewRegistry()),
		resolver: currency.NewResolver(map[string]decimal.Decimal{
			"EUR": decimal.RequireFromString("0.088"),
			"USD": decimal.RequireFromString("0.095"),
		}),
	}
	f.carts = services.NewCartService(
		f.cartRepo,
		services.NewProductService(products),
		services.NewDiscountService(discounts),
		f.resolver,
		cart.DefaultPolicy(),
		f.events,
		f.metrics,
	)
	return f
}

func (f *fixture) add(t *testing.T, cartID, productID string, qty int) *services.Snapshot {
	t.Helper()
	snap, err := f.carts.AddItem(context.Background(), cartID, services.AddItemInput{ProductID: productID, Quantity: qty}, services.AnyVersion, "sv")
	require.NoError(t, err)
	return snap
}
