// Package report delivers final session results to the evaluation endpoint.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrDeliveryFailed marks a report the endpoint did not accept. The session
// stays pending and is retried on a later turn.
var ErrDeliveryFailed = errors.New("report delivery failed")

type Client struct {
	url    string
	apiKey string
	client *http.Client
	logger *slog.Logger
}

func NewClient(url, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Deliver posts p. Only HTTP 200 counts as delivered.
func (c *Client) Deliver(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, string(respBody))
	}

	c.logger.Info("report delivered",
		"session_id", p.SessionID,
		"scam_detected", p.ScamDetected,
		"messages", p.TotalMessagesExchanged,
	)
	return nil
}
