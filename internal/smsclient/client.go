package smsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Client calls the external SMS-sending function. One request per message,
// no retry; a failed send is reported back as a per-student outcome.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	// Skip short-circuits sends in dev environments without the function
	// deployed: messages are logged and reported as delivered.
	Skip bool
}

// New creates a client with a request timeout.
func New(baseURL, apiKey string, skip bool) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Skip:    skip,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one message to the function. The response is the only delivery
// signal; there is no confirmation beyond it.
func (c *Client) Send(ctx context.Context, to, message string) error {
	if c.Skip {
		logrus.Infof("sms skip: to=%s message=%q", to, message)
		return nil
	}
	if to == "" {
		return fmt.Errorf("destination phone required")
	}

	body, _ := json.Marshal(map[string]string{"to": to, "message": message})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("sms: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms: send failed (%d): %s", resp.StatusCode, string(raw))
	}
	return nil
}

// Health probes the function endpoint.
func (c *Client) Health(ctx context.Context) error {
	if c.Skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
