// Package balance wraps the HTTP API of the external fungible-balance service.
package balance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config defines the HTTP client settings for the balance service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client checks registrations, registers recipients and transfers balances.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// RegistrationStatus is the registration lookup payload.
type RegistrationStatus struct {
	Registered bool `json:"registered"`
}

type registerRequest struct {
	AccountID string `json:"accountId"`
	Deposit   string `json:"deposit"`
}

type transferRequest struct {
	ReceiverID string `json:"receiverId"`
	Amount     string `json:"amount"`
}

// NewClient constructs a client with sane defaults.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("balance: base url required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		apiKey:  strings.TrimSpace(cfg.APIKey),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// CheckRegistration reports whether the recipient can already receive the
// token.
func (c *Client) CheckRegistration(ctx context.Context, recipient string) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("balance: client not configured")
	}
	endpoint := fmt.Sprintf("%s/accounts/%s/registration", c.baseURL, url.PathEscape(recipient))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("balance: request: %w", err)
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("balance: call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("balance: unexpected status %d", resp.StatusCode)
	}
	var status RegistrationStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return false, fmt.Errorf("balance: decode: %w", err)
	}
	return status.Registered, nil
}

// Register registers the recipient, funding the registration with the
// deposit.
func (c *Client) Register(ctx context.Context, recipient string, deposit *big.Int) error {
	if c == nil {
		return fmt.Errorf("balance: client not configured")
	}
	amount := "0"
	if deposit != nil {
		amount = deposit.String()
	}
	return c.post(ctx, "/accounts/register", registerRequest{AccountID: recipient, Deposit: amount})
}

// Transfer moves the token amount to the recipient.
func (c *Client) Transfer(ctx context.Context, recipient string, amount *big.Int) error {
	if c == nil {
		return fmt.Errorf("balance: client not configured")
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("balance: positive amount required")
	}
	return c.post(ctx, "/transfers", transferRequest{ReceiverID: recipient, Amount: amount.String()})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("balance: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("balance: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("balance: call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("balance: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
