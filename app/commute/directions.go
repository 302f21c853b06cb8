package commute

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/Fiszcz/OLX-flats-notificator/app/cache"
	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"

	failedDurationText = "Cannot check ☹️"
	defaultCacheTTL    = 24 * time.Hour
)

type Destination struct {
	Location   string
	MaxMinutes int
}

// ResultCache stores serialized lookups. Get returns "" on a miss.
type ResultCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Options struct {
	BaseURL      string
	APIKey       string
	Mode         string
	Language     string
	Destinations []Destination
	Departure    *DepartureTime
	HTTPClient   *http.Client
	Limiter      *rate.Limiter
	Cache        ResultCache
	CacheTTL     time.Duration
}

// Client asks a Directions-style HTTP API how long it takes to get from a
// listing to each configured destination.
type Client struct {
	baseURL      string
	apiKey       string
	mode         string
	language     string
	destinations []Destination
	departure    *DepartureTime
	httpClient   *http.Client
	limiter      *rate.Limiter
	cache        ResultCache
	cacheTTL     time.Duration
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:      opts.BaseURL,
		apiKey:       opts.APIKey,
		mode:         opts.Mode,
		language:     opts.Language,
		destinations: opts.Destinations,
		departure:    opts.Departure,
		httpClient:   opts.HTTPClient,
		limiter:      opts.Limiter,
		cache:        opts.Cache,
		cacheTTL:     opts.CacheTTL,
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.mode == "" {
		c.mode = "transit"
	}
	if c.language == "" {
		c.language = "pl"
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Every(200*time.Millisecond), 1)
	}
	if c.cacheTTL == 0 {
		c.cacheTTL = defaultCacheTTL
	}

	return c
}

type route struct {
	DurationText string   `json:"duration_text"`
	Seconds      float64  `json:"seconds"`
	Steps        []string `json:"steps"`
}

// Check returns one result per destination, in configuration order. A failed
// lookup yields the unknown sentinel instead of an error.
func (c *Client) Check(ctx context.Context, origin string) []listing.TransportResult {
	results := make([]listing.TransportResult, 0, len(c.destinations))

	for _, dest := range c.destinations {
		r, err := c.route(ctx, origin, dest.Location)
		if err != nil {
			slog.Warn("Cannot calculate transport", "origin", origin, "destination", dest.Location, "error", err)
			results = append(results, listing.TransportResult{
				Destination:     dest.Location,
				DurationText:    failedDurationText,
				DurationMinutes: math.NaN(),
				BudgetMinutes:   dest.MaxMinutes,
			})
			continue
		}

		minutes := math.Floor(r.Seconds / 60)
		within := float64(dest.MaxMinutes) >= minutes
		results = append(results, listing.TransportResult{
			Destination:     dest.Location,
			DurationText:    r.DurationText,
			DurationMinutes: minutes,
			BudgetMinutes:   dest.MaxMinutes,
			WithinBudget:    &within,
			Steps:           r.Steps,
		})
	}

	return results
}

func (c *Client) route(ctx context.Context, origin, destination string) (*route, error) {
	key := cache.GenerateCommuteKey(origin, destination, c.mode)

	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, key); err != nil {
			slog.Debug("Commute cache read failed", "error", err)
		} else if cached != "" {
			var r route
			if err := json.Unmarshal([]byte(cached), &r); err == nil {
				return &r, nil
			}
		}
	}

	r, err := c.fetch(ctx, origin, destination)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, r, c.cacheTTL); err != nil {
			slog.Debug("Commute cache write failed", "error", err)
		}
	}

	return r, nil
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		Legs []struct {
			Duration struct {
				Text  string  `json:"text"`
				Value float64 `json:"value"`
			} `json:"duration"`
			Steps []struct {
				HTMLInstructions string `json:"html_instructions"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

func (c *Client) fetch(ctx context.Context, origin, destination string) (*route, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("origin", origin)
	q.Set("destination", destination)
	q.Set("mode", c.mode)
	q.Set("language", c.language)
	if c.departure != nil {
		q.Set("departure_time", strconv.FormatInt(c.departure.Next().Unix(), 10))
	}
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch directions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var dr directionsResponse
	if err := json.Unmarshal(body, &dr); err != nil {
		return nil, fmt.Errorf("failed to parse directions: %w", err)
	}

	if dr.Status != "OK" {
		return nil, fmt.Errorf("directions status %s: %s", dr.Status, dr.ErrorMessage)
	}
	if len(dr.Routes) == 0 || len(dr.Routes[0].Legs) == 0 {
		return nil, fmt.Errorf("no route found")
	}

	leg := dr.Routes[0].Legs[0]
	r := &route{
		DurationText: leg.Duration.Text,
		Seconds:      leg.Duration.Value,
	}
	for _, step := range leg.Steps {
		r.Steps = append(r.Steps, step.HTMLInstructions)
	}

	return r, nil
}
