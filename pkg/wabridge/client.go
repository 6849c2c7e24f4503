// Package wabridge is the HTTP client for the chat bridge: the separate
// process that holds the authenticated browser session and exposes message
// history as JSON. Session lifecycle (QR login, reconnects) lives entirely
// in the bridge; this client only retrieves, and retrieval failures
// propagate to the caller untouched.
package wabridge

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

	"github.com/illmade-knight/go-chatexport/pkg/ingest"
	"github.com/rs/zerolog"
)

// ClientConfig holds configuration for the bridge client.
type ClientConfig struct {
	// BaseURL is the bridge's root endpoint, e.g. "http://localhost:8090".
	BaseURL string
	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Client implements ingest.MessageSource over the bridge's JSON API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a bridge client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("bridge base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With().Str("component", "BridgeClient").Logger(),
	}, nil
}

// wireMessage is the bridge's message shape. Body is a pointer because the
// bridge sends null for media-only messages; it is defaulted to "" here so
// nothing downstream has to guess at field presence.
type wireMessage struct {
	Body      *string `json:"body"`
	Timestamp int64   `json:"timestamp"`
	HasMedia  bool    `json:"hasMedia"`
	SenderID  string  `json:"senderId"`
}

func (m wireMessage) toRaw() ingest.RawMessage {
	raw := ingest.RawMessage{
		Timestamp: m.Timestamp,
		HasMedia:  m.HasMedia,
		SenderID:  m.SenderID,
	}
	if m.Body != nil {
		raw.Body = *m.Body
	}
	return raw
}

// ListChannels enumerates the chats the bridge session can read.
func (c *Client) ListChannels(ctx context.Context) ([]ingest.Channel, error) {
	var channels []ingest.Channel
	if err := c.getJSON(ctx, "/channels", nil, &channels); err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}

// FetchRecent retrieves a bounded window of the most recent messages.
func (c *Client) FetchRecent(ctx context.Context, channelID string, limit int) ([]ingest.RawMessage, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	var wire []wireMessage
	if err := c.getJSON(ctx, "/channels/"+url.PathEscape(channelID)+"/messages", q, &wire); err != nil {
		return nil, fmt.Errorf("fetch recent messages for %s: %w", channelID, err)
	}
	messages := make([]ingest.RawMessage, len(wire))
	for i, m := range wire {
		messages[i] = m.toRaw()
	}
	return messages, nil
}

// historyPage is the bridge's paged history response.
type historyPage struct {
	Messages   []wireMessage `json:"messages"`
	NextCursor string        `json:"nextCursor"`
}

// FetchPage retrieves one page of history, newest first.
func (c *Client) FetchPage(ctx context.Context, channelID, cursor string, pageSize int) ([]ingest.RawMessage, string, error) {
	q := url.Values{"pageSize": {strconv.Itoa(pageSize)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page historyPage
	if err := c.getJSON(ctx, "/channels/"+url.PathEscape(channelID)+"/history", q, &page); err != nil {
		return nil, "", fmt.Errorf("fetch history page for %s: %w", channelID, err)
	}
	messages := make([]ingest.RawMessage, len(page.Messages))
	for i, m := range page.Messages {
		messages[i] = m.toRaw()
	}
	return messages, page.NextCursor, nil
}

// getJSON performs one GET against the bridge and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("endpoint", endpoint).Msg("Requesting from bridge.")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("bridge returned %d for %s: %s", resp.StatusCode, path, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode bridge response: %w", err)
	}
	return nil
}
