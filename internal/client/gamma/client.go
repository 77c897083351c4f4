package gamma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"polyradar/internal/paper"
)

// Client is a thin typed client for the Gamma market-metadata API. It
// supplies reference prices and market titles; the engine treats prices as
// opaque numbers in (0,1).
type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = "https://gamma-api.polymarket.com"
	}
	host = strings.TrimRight(host, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{host: host, httpClient: httpClient}
}

func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	fullURL := c.host + path
	if len(query) > 0 {
		fullURL = fullURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Market is the subset of Gamma market fields the engine needs.
type Market struct {
	ConditionID   string `json:"conditionId"`
	Question      string `json:"question"`
	OutcomePrices string `json:"outcomePrices"`
	Outcomes      string `json:"outcomes"`
	Closed        bool   `json:"closed"`
}

// GetMarket looks a market up by condition id.
func (c *Client) GetMarket(ctx context.Context, marketID string) (*Market, error) {
	if marketID == "" {
		return nil, fmt.Errorf("market id is required")
	}
	query := url.Values{}
	query.Set("condition_ids", marketID)
	body, err := c.doRequest(ctx, "/markets", query)
	if err != nil {
		return nil, err
	}
	var markets []Market
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("failed to parse markets: %w", err)
	}
	if len(markets) == 0 {
		return nil, fmt.Errorf("market %s not found", marketID)
	}
	return &markets[0], nil
}

// CurrentPrice returns the current price of one outcome of a binary market.
// Gamma encodes prices and outcome labels as parallel JSON-in-string arrays.
func (c *Client) CurrentPrice(ctx context.Context, marketID string, outcome paper.Outcome) (decimal.Decimal, error) {
	market, err := c.GetMarket(ctx, marketID)
	if err != nil {
		return decimal.Zero, err
	}

	var labels []string
	var prices []string
	if err := json.Unmarshal([]byte(market.Outcomes), &labels); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse outcomes: %w", err)
	}
	if err := json.Unmarshal([]byte(market.OutcomePrices), &prices); err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse outcome prices: %w", err)
	}
	for i, label := range labels {
		if i >= len(prices) {
			break
		}
		if strings.EqualFold(label, string(outcome)) {
			return decimal.NewFromString(prices[i])
		}
	}
	return decimal.Zero, fmt.Errorf("outcome %s not found for market %s", outcome, marketID)
}
