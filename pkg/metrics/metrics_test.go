package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"storefront/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsRequests(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())

	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })
	app.Get("/metrics", m.FiberHandler())

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/ping", nil))
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Requests.WithLabelValues("/ping", "200")))

	m.CheckoutAttempts.WithLabelValues("card", "succeeded").Inc()

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "storefront_http_requests_total")
	assert.Contains(t, string(body), `storefront_checkout_attempts_total{method="card",outcome="succeeded"} 1`)
}
