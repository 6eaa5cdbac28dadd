package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// RateSource fetches a fresh SEK-based rate table.
type RateSource interface {
	FetchRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Refresher periodically replaces the Resolver's rate table. A failed fetch
// keeps the previous table.
type Refresher struct {
	resolver *Resolver
	source   RateSource
	interval time.Duration
	timeout  time.Duration
}

func NewRefresher(resolver *Resolver, source RateSource, interval time.Duration) *Refresher {
	return &Refresher{
		resolver: resolver,
		source:   source,
		interval: interval,
		timeout:  10 * time.Second,
	}
}

// Run refreshes once immediately and then every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		log.Printf("currency rate refresh failed: %v", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				log.Printf("currency rate refresh failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Refresh performs a single fetch-and-apply cycle.
func (r *Refresher) Refresh(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rates, err := r.source.FetchRates(fetchCtx)
	if err != nil {
		return err
	}
	applied := r.resolver.UpdateRates(rates)
	log.Printf("currency rates refreshed (%d applied)", applied)
	return nil
}

// HTTPRateSource reads `{"base":"SEK","rates":{"EUR":"0.088",...}}` from a URL.
type HTTPRateSource struct {
	URL    string
	Client *http.Client
}

type rateFeed struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

func (s *HTTPRateSource) FetchRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build rate request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rate request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate feed returned status %d", resp.StatusCode)
	}

	var feed rateFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to decode rate feed: %w", err)
	}
	if feed.Base != "" && feed.Base != BaseCurrency {
		return nil, fmt.Errorf("rate feed base %s, expected %s", feed.Base, BaseCurrency)
	}
	return feed.Rates, nil
}
