// Package clients holds the outbound HTTP clients: payment gateway, reviews
// API and geolocation. Every call takes a context and parses one strict
// response envelope at the boundary.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

var (
	ErrUpstreamStatus   = errors.New("upstream returned non-success status")
	ErrUpstreamEnvelope = errors.New("upstream response does not match envelope")
	ErrUpstreamFailed   = errors.New("upstream reported failure")
)

const maxBodyBytes = 1 << 20

// Envelope is the response shape every storefront API returns.
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error,omitempty"`
}

// StatusError carries the upstream status and body excerpt.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUpstreamStatus }

// newBreaker trips after five consecutive failures and half-opens after timeout.
func newBreaker(name string, timeout time.Duration) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// fetch performs one request and returns the body of a 2xx response.
func fetch(ctx context.Context, client *http.Client, method, url string, headers map[string]string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := string(data)
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		return data, &StatusError{Status: resp.StatusCode, Body: excerpt}
	}
	return data, nil
}

// decodeEnvelope parses raw into an Envelope. Callers validate the data.
func decodeEnvelope[T any](raw []byte) (T, error) {
	var env Envelope[T]
	var zero T
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrUpstreamEnvelope, err)
	}
	if !env.Success {
		if env.Error == "" {
			env.Error = "unknown error"
		}
		return zero, fmt.Errorf("%w: %s", ErrUpstreamFailed, env.Error)
	}
	return env.Data, nil
}
