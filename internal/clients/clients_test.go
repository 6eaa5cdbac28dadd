package clients_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/clients"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePaymentOrder(t *testing.T) {
	var got clients.PaymentOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payments/orders", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true,"data":{"orderCode":"7712345678"}}`))
	}))
	defer srv.Close()

	gw := clients.NewPaymentGateway(srv.URL, time.Second)
	code, err := gw.CreatePaymentOrder(context.Background(), clients.PaymentOrderRequest{Amount: 49900, Currency: "SEK", PaymentTimeout: 1800})
	require.NoError(t, err)
	assert.Equal(t, "7712345678", code)
	assert.Equal(t, int64(49900), got.Amount)
	assert.Equal(t, 1800, got.PaymentTimeout)
}

func TestCreatePaymentOrder_RejectsBadEnvelope(t *testing.T) {
	cases := map[string]string{
		"not json":     `<html>`,
		"failure":      `{"success":false,"error":"merchant disabled"}`,
		"missing code": `{"success":true,"data":{}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			_, err := clients.NewPaymentGateway(srv.URL, time.Second).CreatePaymentOrder(context.Background(), clients.PaymentOrderRequest{})
			assert.Error(t, err)
		})
	}
}

func TestCharge_SendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/payments/apple-pay", r.URL.Path)
		assert.Equal(t, "key-123", r.Header.Get(clients.IdempotencyKeyHeader))
		w.Write([]byte(`{"success":true,"transactionId":"tx-1"}`))
	}))
	defer srv.Close()

	res, err := clients.NewPaymentGateway(srv.URL, time.Second).Charge(context.Background(), "apple_pay", "key-123", map[string]string{"paymentData": "blob"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tx-1", res.TransactionID)
}

func TestCharge_DeclineIsAResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"success":false,"error":"Card declined"}`))
	}))
	defer srv.Close()

	res, err := clients.NewPaymentGateway(srv.URL, time.Second).Charge(context.Background(), "card", "k", nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Card declined", res.Error)
}

func TestCharge_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/payments/viva/charge":
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`upstream down`))
		default:
			w.Write([]byte(`{"success":true}`))
		}
	}))
	defer srv.Close()
	gw := clients.NewPaymentGateway(srv.URL, time.Second)

	_, err := gw.Charge(context.Background(), "card", "k", nil)
	assert.ErrorIs(t, err, clients.ErrUpstreamStatus)

	_, err = gw.Charge(context.Background(), "google_pay", "k", nil)
	assert.ErrorIs(t, err, clients.ErrUpstreamEnvelope, "success without transaction id")

	_, err = gw.Charge(context.Background(), "bitcoin", "k", nil)
	assert.Error(t, err)
}

func TestCharge_RespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"success":true,"transactionId":"late"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := clients.NewPaymentGateway(srv.URL, time.Second).Charge(ctx, "card", "k", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReviewsAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/reviews/products/p1":
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			assert.Equal(t, "5", r.URL.Query().Get("pageSize"))
			w.Write([]byte(`{"success":true,"data":[{"id":"r1","author":"Anna","rating":5,"body":"Lovely","verified":true}]}`))
		case "/api/reviews/products/p1/stats":
			w.Write([]byte(`{"success":true,"data":{"averageRating":4.5,"totalReviews":2,"ratingDistribution":{"4":1,"5":1}}}`))
		case "/api/reviews/shop":
			w.Write([]byte(`{"success":true,"data":[{"id":"r2","author":"Bo","rating":9}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	api := clients.NewReviewsAPI(srv.URL, time.Second)
	ctx := context.Background()

	reviews, err := api.ProductReviews(ctx, "p1", 2, 5)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "Anna", reviews[0].Author)

	stats, err := api.ProductStats(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, stats.AverageRating)
	assert.Equal(t, 1, stats.RatingDistribution[5])

	_, err = api.ShopReviews(ctx, 1, 10)
	assert.ErrorIs(t, err, clients.ErrUpstreamEnvelope, "rating out of range")

	_, err = api.ShopStats(ctx)
	assert.ErrorIs(t, err, clients.ErrUpstreamStatus)
}

func TestReviewsAPI_BreakerOpens(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	api := clients.NewReviewsAPI(srv.URL, time.Second)

	for i := 0; i < 5; i++ {
		_, err := api.ShopStats(context.Background())
		require.Error(t, err)
	}
	_, err := api.ShopStats(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestGeoLocator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-For") == "203.0.113.9" {
			w.Write([]byte(`{"success":true,"data":{"country_code":"se"}}`))
			return
		}
		w.Write([]byte(`{"success":true,"data":{"country_code":"unknown"}}`))
	}))
	defer srv.Close()
	geo := clients.NewGeoLocator(srv.URL, time.Second)

	cc, err := geo.Country(context.Background(), "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "SE", cc)

	_, err = geo.Country(context.Background(), "198.51.100.1")
	assert.ErrorIs(t, err, clients.ErrUpstreamEnvelope)
}
