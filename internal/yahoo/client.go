// Package yahoo fetches daily closing prices from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rewired-gh/macrocorr/internal/logger"
	"github.com/rewired-gh/macrocorr/internal/models"
)

const providerName = "yahoo"

// Client provides access to the Yahoo Finance v8 chart API
type Client struct {
	apiBaseURL string
	userAgent  string
	httpClient *http.Client
	now        func() time.Time
}

// ChartResponse is the envelope returned by /v8/finance/chart.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartError is the error object Yahoo embeds in the envelope.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ChartResult holds one symbol's bars. Close values are null on days without a print.
type ChartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Close []*float64 `json:"close"`
		} `json:"quote"`
	} `json:"indicators"`
}

// NewClient creates a new Yahoo Finance client
func NewClient(apiBaseURL string, timeout time.Duration, userAgent string) *Client {
	return &Client{
		apiBaseURL: apiBaseURL,
		userAgent:  userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

// FetchDailyCloses returns one closing price per trading day of ticker within r.
// Dates are the exchange-local calendar day. A symbol Yahoo does not know yields an
// empty series rather than an error.
func (c *Client) FetchDailyCloses(ctx context.Context, ticker string, r models.DateRange) (models.TimeSeries, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.apiBaseURL, url.PathEscape(ticker), c.query(r).Encode())

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return models.TimeSeries{}, &models.ProviderError{Provider: providerName, Op: "chart " + ticker, Err: err}
	}

	var response ChartResponse
	if err := json.Unmarshal(body, &response); err != nil {
		if status != http.StatusOK {
			return models.TimeSeries{}, &models.ProviderError{
				Provider: providerName, Op: "chart " + ticker, StatusCode: status,
				Err: fmt.Errorf("unexpected response: %s", truncate(body)),
			}
		}
		return models.TimeSeries{}, &models.ProviderError{Provider: providerName, Op: "chart " + ticker, Err: fmt.Errorf("failed to decode chart: %w", err)}
	}

	if e := response.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			logger.Warn("Yahoo has no data for %s: %s", ticker, e.Description)
			return models.NewTimeSeries(ticker, nil)
		}
		return models.TimeSeries{}, &models.ProviderError{
			Provider: providerName, Op: "chart " + ticker, StatusCode: status,
			Err: fmt.Errorf("%s: %s", e.Code, e.Description),
		}
	}
	if status != http.StatusOK {
		return models.TimeSeries{}, &models.ProviderError{
			Provider: providerName, Op: "chart " + ticker, StatusCode: status,
			Err: errors.New(http.StatusText(status)),
		}
	}
	if len(response.Chart.Result) == 0 {
		logger.Warn("Yahoo returned no result for %s", ticker)
		return models.NewTimeSeries(ticker, nil)
	}

	points, err := closes(response.Chart.Result[0], r)
	if err != nil {
		return models.TimeSeries{}, &models.ProviderError{Provider: providerName, Op: "chart " + ticker, Err: err}
	}

	logger.Debug("Fetched %d daily closes for %s over %s", len(points), ticker, r)
	return models.NewTimeSeries(ticker, points)
}

func (c *Client) query(r models.DateRange) url.Values {
	var period1, period2 int64
	if !r.From.IsZero() {
		period1 = r.From.Unix()
	}
	if r.To.IsZero() {
		period2 = c.now().Unix()
	} else {
		// period2 is exclusive; move past the last day so it is included.
		period2 = r.To.AddDate(0, 0, 1).Unix()
	}

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(period1, 10))
	q.Set("period2", strconv.FormatInt(period2, 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("includePrePost", "false")
	return q
}

// closes converts a chart result into observations, one per calendar day. When Yahoo
// returns two bars for the same day (a live bar next to the settled one) the later wins.
func closes(res ChartResult, r models.DateRange) ([]models.Observation, error) {
	var quotes []*float64
	if len(res.Indicators.Quote) > 0 {
		quotes = res.Indicators.Quote[0].Close
	}
	if len(quotes) != len(res.Timestamp) {
		return nil, fmt.Errorf("%d timestamps but %d closes", len(res.Timestamp), len(quotes))
	}

	var out []models.Observation
	for i, ts := range res.Timestamp {
		if quotes[i] == nil || !models.IsFinite(*quotes[i]) {
			continue
		}
		day := models.Day(time.Unix(ts+res.Meta.GMTOffset, 0).UTC())
		if !r.Contains(day) {
			continue
		}
		if n := len(out); n > 0 {
			switch {
			case out[n-1].Date.Equal(day):
				out[n-1].Value = *quotes[i]
				continue
			case day.Before(out[n-1].Date):
				return nil, fmt.Errorf("timestamps out of order at %s", day.Format(time.DateOnly))
			}
		}
		out = append(out, models.Observation{Date: day, Value: *quotes[i]})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
