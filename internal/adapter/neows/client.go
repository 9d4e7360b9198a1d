package neows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/couchcryptid/neo-risk-service/internal/domain"
	"github.com/couchcryptid/neo-risk-service/internal/observability"
)

// DateLayout is the date format of feed query parameters and grouping keys.
const DateLayout = "2006-01-02"

// errMissingGrouping marks a decodable response without near_earth_objects.
var errMissingGrouping = errors.New("response missing near_earth_objects")

// Client fetches windows of near-Earth objects from the NASA NeoWs feed.
// It implements pipeline.FeedClient.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a NeoWs feed client. Each request is a single attempt
// bounded by timeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// FetchWindow returns the objects with close approaches between start and
// end (inclusive dates). Every failure wraps domain.ErrFeedUnavailable and no
// partial result is returned.
func (c *Client) FetchWindow(ctx context.Context, start, end time.Time) ([]domain.RawObject, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{
		"start_date": {start.Format(DateLayout)},
		"end_date":   {end.Format(DateLayout)},
		"api_key":    {c.apiKey},
	}

	began := time.Now()
	objects, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	c.metrics.FeedRequestDuration.Observe(time.Since(began).Seconds())
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues("error").Inc()
		c.logger.Warn("neo feed request failed",
			"start_date", params.Get("start_date"),
			"end_date", params.Get("end_date"),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrFeedUnavailable, err)
	}

	c.metrics.FeedRequests.WithLabelValues("success").Inc()
	c.logger.Debug("neo feed fetched",
		"start_date", params.Get("start_date"),
		"end_date", params.Get("end_date"),
		"objects", len(objects),
	)
	return objects, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.RawObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("neows API error: status %d: %s", resp.StatusCode, body)
	}

	return DecodeFeed(resp.Body)
}

// DecodeFeed parses a feed response body and flattens its date groups in
// ascending date order, keeping document order within each date.
func DecodeFeed(r io.Reader) ([]domain.RawObject, error) {
	var feed response
	if err := json.NewDecoder(r).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if feed.NearEarthObjects == nil {
		return nil, errMissingGrouping
	}

	dates := make([]string, 0, len(feed.NearEarthObjects))
	total := 0
	for date, group := range feed.NearEarthObjects {
		dates = append(dates, date)
		total += len(group)
	}
	sort.Strings(dates)

	objects := make([]domain.RawObject, 0, total)
	for _, date := range dates {
		objects = append(objects, feed.NearEarthObjects[date]...)
	}
	return objects, nil
}

// NeoWs feed response types.

type response struct {
	ElementCount     int                           `json:"element_count"`
	NearEarthObjects map[string][]domain.RawObject `json:"near_earth_objects"`
}
