// Package fred fetches macroeconomic index levels from the FRED observations API.
package fred

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

const providerName = "fred"

// missingValue is how FRED marks an observation with no data.
const missingValue = "."

// Client provides access to the FRED API
type Client struct {
	apiBaseURL string
	apiKey     string
	httpClient *http.Client
}

// ObservationsResponse is the body of /fred/series/observations.
type ObservationsResponse struct {
	Observations []Observation `json:"observations"`
	ErrorCode    int           `json:"error_code"`
	ErrorMessage string        `json:"error_message"`
}

// Observation is one raw FRED data point. Value is a decimal string or ".".
type Observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// NewClient creates a new FRED client
func NewClient(apiBaseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		apiBaseURL: apiBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchSeries returns the raw levels of seriesID within r, as published.
func (c *Client) FetchSeries(ctx context.Context, seriesID string, r models.DateRange) (models.TimeSeries, error) {
	q := url.Values{}
	q.Set("series_id", seriesID)
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	if !r.From.IsZero() {
		q.Set("observation_start", r.From.Format(time.DateOnly))
	}
	if !r.To.IsZero() {
		q.Set("observation_end", r.To.Format(time.DateOnly))
	}
	endpoint := fmt.Sprintf("%s/fred/series/observations?%s", c.apiBaseURL, q.Encode())
	op := "observations " + seriesID

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.TimeSeries{}, &models.ProviderError{Provider: providerName, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.TimeSeries{}, &models.ProviderError{Provider: providerName, Op: op, Err: redact(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.TimeSeries{}, &models.ProviderError{Provider: providerName, Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	var response ObservationsResponse
	decodeErr := json.Unmarshal(body, &response)

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && response.ErrorMessage != "" {
			msg = response.ErrorMessage
		}
		return models.TimeSeries{}, &models.ProviderError{Provider: providerName, Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	if decodeErr != nil {
		return models.TimeSeries{}, &models.ProviderError{Provider: providerName, Op: op, Err: fmt.Errorf("failed to decode observations: %w", decodeErr)}
	}

	points, err := levels(response.Observations, r)
	if err != nil {
		return models.TimeSeries{}, &models.ProviderError{Provider: providerName, Op: op, Err: err}
	}

	logger.Debug("Fetched %d observations for %s over %s", len(points), seriesID, r)
	return models.NewTimeSeries(seriesID, points)
}

func levels(raw []Observation, r models.DateRange) ([]models.Observation, error) {
	out := make([]models.Observation, 0, len(raw))
	for _, o := range raw {
		if o.Value == missingValue || o.Value == "" {
			continue
		}
		d, err := time.Parse(time.DateOnly, o.Date)
		if err != nil {
			return nil, fmt.Errorf("bad observation date %q: %w", o.Date, err)
		}
		if !r.Contains(d) {
			continue
		}
		v, err := strconv.ParseFloat(o.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("bad observation value %q on %s: %w", o.Value, o.Date, err)
		}
		out = append(out, models.Observation{Date: d, Value: v})
	}
	return out, nil
}

// redact drops the request URL, which carries the api key, from transport errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s request: %w", ue.Op, ue.Err)
	}
	return err
}
