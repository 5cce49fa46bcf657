package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"p2p_go/internal/infra"
)

const (
	// MainnetURL is the default SAPI base.
	MainnetURL = "https://api.binance.com"

	orderHistoryPath = "/sapi/v1/c2c/orderMatch/listUserOrderHistory"
)

// Client talks to the signed C2C order-history API. Calls are paced by a
// shared rate limiter and isolated behind a circuit breaker.
type Client struct {
	signer  *Signer
	baseURL string
	http    *http.Client
	limiter *infra.RateLimiter
	breaker *infra.CircuitBreaker
}

// NewClient creates a REST client for the given credentials.
func NewClient(apiKey, apiSecret, baseURL string) *Client {
	if baseURL == "" {
		baseURL = MainnetURL
	}
	return &Client{
		signer:  NewSigner(apiKey, apiSecret),
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: infra.GetSapiLimiter(),
		breaker: infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("binance-sapi")),
	}
}

// Close wipes the key material. The client must not be used afterwards.
func (c *Client) Close() {
	c.signer.Wipe()
}

// ListUserOrderHistory fetches one page of historical C2C orders. The
// response body is returned as a decoded document; the caller digs out
// data.data the same way the capture parsers do.
func (c *Client) ListUserOrderHistory(ctx context.Context, tradeType string, startTS, endTS int64, page, rows int) (map[string]any, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("binance circuit open, request rejected")
	}
	c.limiter.Wait()

	timestamp := time.Now().UnixMilli()
	query := fmt.Sprintf(
		"tradeType=%s&startTimestamp=%d&endTimestamp=%d&page=%d&rows=%d&timestamp=%d",
		tradeType, startTS, endTS, page, rows, timestamp,
	)
	url := fmt.Sprintf("%s%s?%s&signature=%s", c.baseURL, orderHistoryPath, query, c.signer.Sign(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.signer.APIKey())

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("order history request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("order history read failed: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("order history JSON parse error: %w (body=%s)", err, truncate(body, 256))
	}

	// SAPI wraps errors in a 200 with a non-success code string.
	if code, _ := doc["code"].(string); code != "000000" {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("order history API error: %s", truncate(body, 256))
	}

	c.breaker.RecordSuccess()
	return doc, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
