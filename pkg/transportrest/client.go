package transportrest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"tramboard/internal/domain"
)

// Query selects the departures fetched for one stop.
type Query struct {
	StopID   string
	Duration time.Duration
	Line     string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: gzhttp.Transport(&http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			}),
		},
		logger: logger.With("component", "transportrest"),
	}
}

type apiResponse struct {
	Departures []apiDeparture `json:"departures"`
}

type apiDeparture struct {
	When        *time.Time `json:"when"`
	PlannedWhen *time.Time `json:"plannedWhen"`
	Direction   string     `json:"direction"`
	Line        struct {
		Name string `json:"name"`
		Mode string `json:"mode"`
	} `json:"line"`
}

func (c *Client) DeparturesURL(q Query) string {
	params := url.Values{}
	params.Set("duration", strconv.Itoa(int(q.Duration/time.Minute)))
	if q.Line != "" {
		params.Set("line", q.Line)
	}
	return fmt.Sprintf("%s/stops/%s/departures?%s", c.baseURL, url.PathEscape(q.StopID), params.Encode())
}

// Departures fetches the departures for q. A body without a departures field
// yields an empty, non-nil slice.
func (c *Client) Departures(ctx context.Context, q Query) ([]domain.Departure, error) {
	start := time.Now()
	reqURL := c.DeparturesURL(q)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tramboard/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	departures := toDomain(apiResp.Departures)

	c.logger.Debug("departures fetched",
		"stop_id", q.StopID,
		"received", len(apiResp.Departures),
		"kept", len(departures),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return departures, nil
}

func toDomain(apiDeps []apiDeparture) []domain.Departure {
	result := make([]domain.Departure, 0, len(apiDeps))

	for _, ad := range apiDeps {
		when := ad.When
		if when == nil {
			when = ad.PlannedWhen
		}
		if when == nil {
			continue
		}

		result = append(result, domain.Departure{
			When: *when,
			Line: domain.Line{
				Name: ad.Line.Name,
				Mode: ad.Line.Mode,
			},
			Direction: ad.Direction,
		})
	}

	return result
}
