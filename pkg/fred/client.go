// Package fred is a rate-limited client for the St. Louis Fed FRED API.
package fred

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/fred-refresh/internal/model"
)

const (
	defaultBaseURL     = "https://api.stlouisfed.org/fred"
	defaultMinInterval = 100 * time.Millisecond

	// MissingValue is FRED's sentinel for an observation without a value.
	MissingValue = "."
)

// Client fetches series data from FRED.
type Client interface {
	// FetchObservations returns the observations of seriesID dated on or
	// after start, oldest first. Failures are returned as *FetchError.
	FetchObservations(ctx context.Context, seriesID string, start time.Time) ([]model.Observation, error)

	// FetchMetadata returns the series' metadata flattened to strings. It
	// never fails: an unavailable lookup yields an empty map.
	FetchMetadata(ctx context.Context, seriesID string) map[string]string
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMinInterval sets the minimum spacing between outbound requests made
// through the client. Zero or negative disables throttling.
func WithMinInterval(d time.Duration) Option {
	return func(c *httpClient) {
		c.limiter = newLimiter(d)
	}
}

// WithMaxAttempts sets the total attempts per request for transient failures.
func WithMaxAttempts(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.retry.maxAttempts = n
		}
	}
}

// WithRetryBackoff sets the base delay before the first retry.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *httpClient) {
		if d >= 0 {
			c.retry.initialBackoff = d
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   retryPolicy
}

// NewClient creates a FRED client. Every request made through one client,
// retries included, waits on the same limiter, so calls are spaced by at
// least the configured minimum interval.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: newLimiter(defaultMinInterval),
		retry:   defaultRetryPolicy(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func newLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

type observationsResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

type seriesResponse struct {
	Seriess []map[string]any `json:"seriess"`
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_message"`
}

func (c *httpClient) FetchObservations(ctx context.Context, seriesID string, start time.Time) ([]model.Observation, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("observation_start", model.FormatDate(start))
	params.Set("sort_order", "asc")

	body, err := c.get(ctx, "/series/observations", params)
	if err != nil {
		return nil, &FetchError{SeriesID: seriesID, Err: err}
	}

	var resp observationsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{SeriesID: seriesID, Err: eris.Wrap(err, "fred: decode observations")}
	}

	out := make([]model.Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		obs, err := parseObservation(o.Date, o.Value)
		if err != nil {
			return nil, &FetchError{SeriesID: seriesID, Err: err}
		}
		out = append(out, obs)
	}

	zap.L().Info("fetched observations",
		zap.String("component", "fred"),
		zap.String("series", seriesID),
		zap.String("start", model.FormatDate(start)),
		zap.Int("count", len(out)),
	)
	return out, nil
}

func parseObservation(date, value string) (model.Observation, error) {
	d, err := model.ParseDate(date)
	if err != nil {
		return model.Observation{}, eris.Wrap(err, "fred: observation date")
	}
	if value == MissingValue {
		return model.Observation{Date: d}, nil
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return model.Observation{}, eris.Wrapf(err, "fred: observation value %q on %s", value, date)
	}
	return model.Observation{Date: d, Value: &v}, nil
}

func (c *httpClient) FetchMetadata(ctx context.Context, seriesID string) map[string]string {
	meta, err := c.fetchMetadata(ctx, seriesID)
	if err != nil {
		zap.L().Warn("series metadata unavailable",
			zap.String("component", "fred"),
			zap.String("series", seriesID),
			zap.Error(&MetadataError{SeriesID: seriesID, Err: err}),
		)
		return map[string]string{}
	}
	return meta
}

func (c *httpClient) fetchMetadata(ctx context.Context, seriesID string) (map[string]string, error) {
	params := url.Values{}
	params.Set("series_id", seriesID)

	body, err := c.get(ctx, "/series", params)
	if err != nil {
		return nil, err
	}

	var resp seriesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "fred: decode series")
	}
	if len(resp.Seriess) == 0 {
		return nil, eris.New("fred: no series in response")
	}

	meta := make(map[string]string, len(resp.Seriess[0]))
	for k, v := range resp.Seriess[0] {
		switch tv := v.(type) {
		case string:
			meta[k] = tv
		case float64:
			meta[k] = strconv.FormatFloat(tv, 'f', -1, 64)
		case bool:
			meta[k] = strconv.FormatBool(tv)
		}
	}
	return meta, nil
}

// get issues a GET against path with the API key and JSON file type added,
// retrying transient failures.
func (c *httpClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")
	endpoint := c.baseURL + path + "?" + params.Encode()

	return c.retry.do(ctx, path, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, endpoint)
	})
}

func (c *httpClient) do(ctx context.Context, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fred: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fred: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error carries the full URL, including the API key.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, eris.Wrap(err, "fred: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "fred: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fred: unexpected status %d: %s", resp.StatusCode, errorMessage(body))
		if isTransientStatus(resp.StatusCode) {
			return nil, &transientError{err: err, statusCode: resp.StatusCode}
		}
		return nil, err
	}
	return body, nil
}

// errorMessage extracts FRED's error_message from an error body, falling
// back to the raw body.
func errorMessage(body []byte) string {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err == nil && ae.Message != "" {
		return ae.Message
	}
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
