package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/horaja/arbitrage-engine/internal/domain"
)

// discoveryRateLimitKey namespaces the shared RateLimiter for symbol
// discovery requests, separate from any other REST traffic sharing the same
// limiter.
const discoveryRateLimitKey = "feed:discovery"

// symbolsResponse is the expected shape of a symbol-universe discovery
// endpoint: a flat list of "BASE-QUOTE" symbols currently tradable.
type symbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// DiscoverSymbols polls restURL once for the currently tradable symbol
// universe, rate-limited via limiter so repeated discovery calls never
// exceed the exchange's REST budget. It returns the decoded symbol list.
func DiscoverSymbols(ctx context.Context, restURL string, limiter domain.RateLimiter, httpClient *http.Client) ([]string, error) {
	if err := limiter.Wait(ctx, discoveryRateLimitKey); err != nil {
		return nil, fmt.Errorf("feed: discovery rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, restURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build discovery request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: discovery request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: discovery request: unexpected status %d", resp.StatusCode)
	}

	var decoded symbolsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("feed: decode discovery response: %w", err)
	}
	return decoded.Symbols, nil
}

// PollSymbols calls DiscoverSymbols on a fixed interval, invoking onUpdate
// with each successful result, until ctx is cancelled. A failed poll is
// reported through onError and polling continues; a poll that fails because
// ctx is done is not reported. PollSymbols only returns when ctx is done.
func PollSymbols(ctx context.Context, restURL string, interval time.Duration, limiter domain.RateLimiter, httpClient *http.Client, onUpdate func([]string), onError func(error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			symbols, err := DiscoverSymbols(ctx, restURL, limiter, httpClient)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onUpdate != nil {
				onUpdate(symbols)
			}
		}
	}
}
