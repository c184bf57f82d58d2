// Package issuance wraps the HTTP API of the external collectible service.
package issuance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config defines the HTTP client settings for the collectible service.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client mints collectibles on behalf of reward recipients.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// MintRequest is the issuance payload. The deposit funds the mint and is
// forwarded as a decimal string of base units.
type MintRequest struct {
	ReceiverID string `json:"receiverId"`
	ChannelID  string `json:"channelId"`
	Deposit    string `json:"deposit,omitempty"`
}

// MintResponse carries the identifier of the minted item.
type MintResponse struct {
	ItemID string `json:"itemId"`
}

// NewClient constructs a client with sane defaults.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("issuance: base url required")
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

// Mint asks the service to issue one collectible on the channel for the
// recipient and returns the item identifier.
func (c *Client) Mint(ctx context.Context, recipient, channelID string, deposit *big.Int) (string, error) {
	if c == nil {
		return "", fmt.Errorf("issuance: client not configured")
	}
	payload := MintRequest{ReceiverID: recipient, ChannelID: channelID}
	if deposit != nil && deposit.Sign() > 0 {
		payload.Deposit = deposit.String()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("issuance: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mint", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("issuance: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("issuance: call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("issuance: unexpected status %d", resp.StatusCode)
	}
	var decoded MintResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("issuance: decode: %w", err)
	}
	if strings.TrimSpace(decoded.ItemID) == "" {
		return "", fmt.Errorf("issuance: empty item id")
	}
	return decoded.ItemID, nil
}
