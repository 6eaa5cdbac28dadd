package clients

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker/v2"
)

// GeoResponse is the data of GET /api/geolocation.
type GeoResponse struct {
	CountryCode string `json:"country_code" validate:"required,len=2,alpha"`
}

// GeoLocator resolves a visitor IP to an ISO 3166-1 alpha-2 country code.
type GeoLocator struct {
	url      string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
	validate *validator.Validate
}

func NewGeoLocator(url string, timeout time.Duration) *GeoLocator {
	return &GeoLocator{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		breaker:  newBreaker("geolocation", 30*time.Second),
		validate: validator.New(),
	}
}

// Country looks up clientIP. The IP is forwarded so an edge-backed endpoint
// can answer for the visitor rather than for this service.
func (g *GeoLocator) Country(ctx context.Context, clientIP string) (string, error) {
	headers := map[string]string{}
	if clientIP != "" {
		headers["X-Forwarded-For"] = clientIP
	}
	raw, err := g.breaker.Execute(func() ([]byte, error) {
		return fetch(ctx, g.client, http.MethodGet, g.url, headers, nil)
	})
	if err != nil {
		return "", fmt.Errorf("geolocation: %w", err)
	}

	resp, err := decodeEnvelope[GeoResponse](raw)
	if err != nil {
		return "", fmt.Errorf("geolocation: %w", err)
	}
	if err := g.validate.Struct(resp); err != nil {
		return "", fmt.Errorf("geolocation: %w: %v", ErrUpstreamEnvelope, err)
	}
	return strings.ToUpper(resp.CountryCode), nil
}
