// Package stormglass fetches raw tidal extremes and hourly weather samples
// from the Stormglass v2 API for an inclusive local-day range.
//
// Ranges longer than the provider's maximum span are split into sequential
// blocks and the results concatenated in chronological order. Credentials are
// tried in a fixed priority order: any transport failure or non-200 response
// moves on to the next key, and exhaustion surfaces one aggregated error
// naming each credential's failure mode without leaking the key itself.
package stormglass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lapan-fishing/tide-journal-etl/internal/domain"
	"github.com/lapan-fishing/tide-journal-etl/internal/observability"
)

const (
	tidePath    = "/tide/extremes/point"
	weatherPath = "/weather/point"

	// maxErrBody caps how much of a provider error body is kept for diagnostics.
	maxErrBody = 200
)

// Config holds the fetcher's fixed parameters.
type Config struct {
	BaseURL   string
	Keys      []string // ordered credentials, highest priority first
	Lat, Lon  float64
	Source    string // designated per-field data source
	Location  *time.Location
	BlockDays int // provider maximum span per request, in days
	Timeout   time.Duration
}

// Client is the Stormglass range fetcher.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Stormglass client.
func NewClient(cfg Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// TideExtremes fetches all tidal extremum events between the start and end
// local days, inclusive.
func (c *Client) TideExtremes(ctx context.Context, start, end time.Time) ([]domain.TideObservation, error) {
	var out []domain.TideObservation
	err := c.eachBlock(start, end, func(blockStart, blockEnd time.Time) error {
		params := c.rangeParams(blockStart, blockEnd)

		var resp tideResponse
		if err := c.get(ctx, tidePath, params, &resp); err != nil {
			return err
		}
		for _, entry := range resp.Data {
			instant, err := domain.ParseInstant(entry.Time)
			if err != nil {
				c.logger.Warn("skipping tide event with unparseable time",
					"time", entry.Time, "error", err)
				continue
			}
			out = append(out, domain.TideObservation{
				Time:   instant,
				Height: entry.Height,
				Type:   entry.Type,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// WeatherHours fetches hourly weather samples for the requested fields between
// the start and end local days, inclusive.
func (c *Client) WeatherHours(ctx context.Context, start, end time.Time) ([]domain.WeatherSample, error) {
	var out []domain.WeatherSample
	err := c.eachBlock(start, end, func(blockStart, blockEnd time.Time) error {
		params := c.rangeParams(blockStart, blockEnd)
		params.Set("params", strings.Join(domain.WeatherFields, ","))
		params.Set("source", c.cfg.Source)

		var resp weatherResponse
		if err := c.get(ctx, weatherPath, params, &resp); err != nil {
			return err
		}
		for _, hour := range resp.Hours {
			sample, ok := c.decodeHour(hour)
			if !ok {
				continue
			}
			out = append(out, sample)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// eachBlock walks the inclusive day range in blocks of at most BlockDays days,
// calling fn for each sub-range in order.
func (c *Client) eachBlock(start, end time.Time, fn func(blockStart, blockEnd time.Time) error) error {
	for cur := start; !cur.After(end); {
		blockEnd := cur.AddDate(0, 0, c.cfg.BlockDays-1)
		if blockEnd.After(end) {
			blockEnd = end
		}
		if err := fn(cur, blockEnd); err != nil {
			return err
		}
		cur = blockEnd.AddDate(0, 0, 1)
	}
	return nil
}

// rangeParams converts inclusive local days to UTC epoch instant boundaries:
// start of the first day through the last second of the last day.
func (c *Client) rangeParams(startDay, endDay time.Time) url.Values {
	startInstant := domain.DayOf(startDay, c.cfg.Location)
	endInstant := domain.DayOf(endDay, c.cfg.Location).AddDate(0, 0, 1).Add(-time.Second)

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(c.cfg.Lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(c.cfg.Lon, 'f', -1, 64))
	params.Set("start", strconv.FormatInt(startInstant.Unix(), 10))
	params.Set("end", strconv.FormatInt(endInstant.Unix(), 10))
	return params
}

// get performs one provider request, trying each credential in priority order.
func (c *Client) get(ctx context.Context, path string, params url.Values, dst any) error {
	var failures []string

	for i, key := range c.cfg.Keys {
		if key == "" {
			continue
		}
		if len(failures) > 0 {
			c.metrics.CredentialFallbacks.Inc()
		}

		err := c.doRequest(ctx, path, params, key, dst)
		if err == nil {
			c.metrics.ProviderRequests.WithLabelValues(path, "success").Inc()
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("stormglass %s: %w", path, ctx.Err())
		}

		c.metrics.ProviderRequests.WithLabelValues(path, "error").Inc()
		c.logger.Warn("stormglass request failed, trying next credential",
			"path", path, "credential", i+1, "error", err)
		failures = append(failures, fmt.Sprintf("key#%d: %v", i+1, err))
	}

	if len(failures) == 0 {
		return fmt.Errorf("stormglass %s: no credentials configured", path)
	}
	return fmt.Errorf("stormglass %s: all credentials failed: %s", path, strings.Join(failures, "; "))
}

func (c *Client) doRequest(ctx context.Context, path string, params url.Values, key string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeHour converts one loose provider hour object into a WeatherSample.
func (c *Client) decodeHour(hour map[string]json.RawMessage) (domain.WeatherSample, bool) {
	rawTime, ok := hour["time"]
	if !ok {
		return domain.WeatherSample{}, false
	}
	var ts string
	if err := json.Unmarshal(rawTime, &ts); err != nil {
		return domain.WeatherSample{}, false
	}
	instant, err := domain.ParseInstant(ts)
	if err != nil {
		c.logger.Warn("skipping weather hour with unparseable time", "time", ts, "error", err)
		return domain.WeatherSample{}, false
	}

	fields := make(map[string]domain.FieldValue, len(domain.WeatherFields))
	for _, name := range domain.WeatherFields {
		raw, ok := hour[name]
		if !ok {
			continue
		}
		var fv domain.FieldValue
		// FieldValue tolerates any shape; an unusable value decodes to nil.
		_ = json.Unmarshal(raw, &fv)
		if fv != nil {
			fields[name] = fv
		}
	}
	return domain.WeatherSample{Time: instant, Fields: fields}, true
}
