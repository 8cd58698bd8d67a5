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
	"regexp"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// colorCodePattern matches the in-game {RRGGBB} color codes embedded in
// world names. Stripped so the same world is one entity regardless of
// how it was colored in a given snapshot.
var colorCodePattern = regexp.MustCompile(`\{[0-9a-fA-F]{6}\}`)

// World is one live world as reported by the worlds API.
type World struct {
	Name    string `json:"name"`
	Players int    `json:"players"`
	Static  bool   `json:"static"`
	SSMP    bool   `json:"ssmp"`
}

type worldsResponse struct {
	Worlds []World `json:"worlds"`
}

// WorldsClient fetches the live world list from the JSON HTTP API.
// Requests are authenticated with the X-Login/X-Token header pair and
// paced with a client-side rate limiter to stay inside the API's quota.
type WorldsClient struct {
	baseURL string
	login   string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWorldsClient creates a worlds API client. requestsPerMinute bounds
// the request rate; values below 1 fall back to 30/min.
func NewWorldsClient(baseURL, login, token string, timeout time.Duration, requestsPerMinute int) *WorldsClient {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if requestsPerMinute < 1 {
		requestsPerMinute = 30
	}
	return &WorldsClient{
		baseURL: baseURL,
		login:   login,
		token:   token,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 1),
	}
}

// Worlds fetches the current world list. Duplicate names collapse to the
// entry with the highest player count and color codes are stripped, so
// callers see one clean entry per world.
func (c *WorldsClient) Worlds(ctx context.Context) ([]World, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/worlds", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("X-Login", c.login)
	req.Header.Set("X-Token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch worlds: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body close

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: worlds API returned %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	var parsed worldsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode worlds response: %v", ErrProtocol, err)
	}

	return dedupeWorlds(parsed.Worlds), nil
}

// FetchSnapshot implements Source: the set of live world names at the
// time of the query.
func (c *WorldsClient) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	worlds, err := c.Worlds(ctx)
	if err != nil {
		return nil, err
	}

	entities := make([]string, 0, len(worlds))
	for _, w := range worlds {
		entities = append(entities, w.Name)
	}
	return &Snapshot{Time: time.Now().UTC(), Entities: entities}, nil
}

// dedupeWorlds strips color codes from names and collapses duplicates,
// keeping the entry with the highest player count. The API reports one
// row per shard of a world; the busiest shard is the representative one.
func dedupeWorlds(worlds []World) []World {
	index := make(map[string]int, len(worlds))
	out := make([]World, 0, len(worlds))

	for _, w := range worlds {
		w.Name = colorCodePattern.ReplaceAllString(w.Name, "")
		if w.Name == "" {
			continue
		}
		if i, seen := index[w.Name]; seen {
			if w.Players > out[i].Players {
				out[i] = w
			}
			continue
		}
		index[w.Name] = len(out)
		out = append(out, w)
	}
	return out
}
