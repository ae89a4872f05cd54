package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Recipient is the gateway's per-number delivery verdict.
type Recipient struct {
	Number     string `json:"number"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	MessageID  string `json:"messageId"`
	Cost       string `json:"cost"`
}

// Accepted reports whether the gateway took the message (codes 100-102).
func (r Recipient) Accepted() bool {
	return r.StatusCode >= 100 && r.StatusCode <= 102
}

// SendResult contains the gateway response for one send.
type SendResult struct {
	Summary    string
	Recipients []Recipient
}

// Client calls the Africa's Talking messaging API.
type Client struct {
	BaseURL  string
	Username string
	APIKey   string
	SenderID string
	HTTP     *http.Client
	Skip     bool
}

// New creates a client with the given request timeout.
func New(baseURL, username, apiKey, senderID string, skip bool, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Username: username,
		APIKey:   apiKey,
		SenderID: senderID,
		Skip:     skip,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// Send delivers message to a single phone number.
func (c *Client) Send(ctx context.Context, to, message string) (*SendResult, error) {
	if to == "" {
		return nil, fmt.Errorf("sms: recipient required")
	}
	if c.Skip {
		return &SendResult{
			Summary:    "Sent to 1/1 (skipped)",
			Recipients: []Recipient{{Number: to, Status: "Success", StatusCode: 101, MessageID: "skipped"}},
		}, nil
	}

	form := url.Values{}
	form.Set("username", c.Username)
	form.Set("to", to)
	form.Set("message", message)
	if c.SenderID != "" {
		form.Set("from", c.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/version1/messaging", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("sms gateway error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		SMSMessageData struct {
			Message    string      `json:"Message"`
			Recipients []Recipient `json:"Recipients"`
		} `json:"SMSMessageData"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	res := &SendResult{Summary: out.SMSMessageData.Message, Recipients: out.SMSMessageData.Recipients}
	if len(res.Recipients) == 0 {
		return res, fmt.Errorf("sms gateway rejected message: %s", res.Summary)
	}
	for _, r := range res.Recipients {
		if !r.Accepted() {
			return res, fmt.Errorf("sms to %s not accepted: %s", r.Number, r.Status)
		}
	}
	return res, nil
}

// Health checks that the gateway answers at all.
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
		return fmt.Errorf("sms gateway unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("sms gateway unhealthy: %s", resp.Status)
	}
	return nil
}
