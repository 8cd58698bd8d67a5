// Playtrack - Game Server Presence Analytics
// Copyright 2026 Playtrack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/playtrack/playtrack

package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// Account is one registered account row from the roster API.
type Account struct {
	Name      string     `json:"name"`
	Score     int        `json:"score"`
	Level     int        `json:"level"`
	RegDate   *time.Time `json:"regdate"`
	LastLogin *time.Time `json:"lastlogin"`
}

type rosterResponse struct {
	Players []Account `json:"players"`
}

// RosterClient fetches the full account roster from the HTTP API, one
// page at a time. A 429 with Retry-After is honored in place: the fetch
// waits out the advertised delay and retries a bounded number of times,
// so the caller only ever sees the page or a hard failure.
type RosterClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewRosterClient creates a roster API client. requestsPerMinute bounds
// the request rate; values below 1 fall back to 20/min.
func NewRosterClient(baseURL string, timeout time.Duration, requestsPerMinute int) *RosterClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if requestsPerMinute < 1 {
		requestsPerMinute = 20
	}
	return &RosterClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
	}
}

// maxRetryAfter caps how long a single Retry-After header can stall a
// page fetch before it is treated as an outage.
const maxRetryAfter = 5 * time.Minute

// maxThrottleRetries bounds how many 429 rounds one page fetch absorbs.
// A server that throttles past this is treated as an outage so the
// roster run fails instead of stalling until shutdown.
const maxThrottleRetries = 5

// Page fetches one roster page (0-based). The last page is shorter than
// limit; an empty slice means the roster is exhausted.
func (c *RosterClient) Page(ctx context.Context, page, limit int) ([]Account, error) {
	for attempt := 1; ; attempt++ {
		accounts, retryAfter, err := c.fetchPage(ctx, page, limit)
		if err != nil {
			return nil, err
		}
		if retryAfter == 0 {
			return accounts, nil
		}
		if retryAfter > maxRetryAfter {
			return nil, fmt.Errorf("%w: roster API asked to retry after %s", ErrUnavailable, retryAfter)
		}
		if attempt >= maxThrottleRetries {
			return nil, fmt.Errorf("%w: roster page %d still throttled after %d attempts", ErrUnavailable, page, attempt)
		}

		timer := time.NewTimer(retryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-timer.C:
		}
	}
}

// fetchPage performs one request. A non-zero retryAfter means the server
// throttled us and the caller should wait and retry.
func (c *RosterClient) fetchPage(ctx context.Context, page, limit int) (_ []Account, retryAfter time.Duration, _ error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	url := fmt.Sprintf("%s/players?page=%d&limit=%d", c.baseURL, page, limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: fetch roster page %d: %v", ErrUnavailable, page, err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: roster API returned %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	var parsed rosterResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, fmt.Errorf("%w: decode roster response: %v", ErrProtocol, err)
	}
	return parsed.Players, 0, nil
}

// parseRetryAfter reads a Retry-After header in seconds form, falling
// back to a conservative default when absent or malformed.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 30 * time.Second
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 1 {
		return 30 * time.Second
	}
	return time.Duration(seconds) * time.Second
}
