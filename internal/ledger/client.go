package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/websocket"
)

const (
	methodSubscribeEvent   = "suix_subscribeEvent"
	methodUnsubscribeEvent = "suix_unsubscribeEvent"
	methodQueryEvents      = "suix_queryEvents"

	subscribeHandshakeTimeout = 10 * time.Second
	defaultQueryPageSize      = 100
)

// Client talks JSON-RPC to a ledger node: a WebSocket endpoint for live event
// subscriptions and an HTTP endpoint for historical event queries (used to
// backfill the gap between a stored cursor and the live stream).
type Client struct {
	rpcURL     string
	wsURL      string
	httpClient *http.Client
	logf       func(format string, args ...any)
	nextID     atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for query calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogf overrides the client's log function.
func WithLogf(logf func(format string, args ...any)) Option {
	return func(c *Client) {
		if logf != nil {
			c.logf = logf
		}
	}
}

// NewClient creates a ledger client for the given HTTP RPC endpoint. The
// WebSocket endpoint defaults to the RPC URL with the scheme swapped to ws/wss
// and can be overridden when the node exposes subscriptions elsewhere.
func NewClient(rpcURL, wsURL string, opts ...Option) (*Client, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		return nil, fmt.Errorf("ledger rpc url is required")
	}
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		derived, err := deriveWSURL(rpcURL)
		if err != nil {
			return nil, err
		}
		wsURL = derived
	}

	client := &Client{
		rpcURL:     rpcURL,
		wsURL:      wsURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logf:       log.Printf,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

func deriveWSURL(rpcURL string) (string, error) {
	parsed, err := url.Parse(rpcURL)
	if err != nil {
		return "", fmt.Errorf("parse ledger rpc url: %w", err)
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported ledger rpc scheme: %s", parsed.Scheme)
	}
	return parsed.String(), nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *int64           `json:"id,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *rpcError        `json:"error,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  *rpcNotification `json:"params,omitempty"`
}

type rpcNotification struct {
	Subscription json.Number     `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

func packageFilter(packageID string) map[string]any {
	return map[string]any{"Package": packageID}
}

// SubscribeEvents opens a live event subscription scoped to packageID and
// invokes fn for every envelope, in delivery order, until the context is
// canceled (returns nil after unsubscribing) or the transport fails (returns
// the transport error so the caller can decide to reconnect). fn returning an
// error also ends the subscription with that error.
func (c *Client) SubscribeEvents(ctx context.Context, packageID string, fn func(Envelope) error) error {
	if strings.TrimSpace(packageID) == "" {
		return fmt.Errorf("ledger package id is required")
	}
	if fn == nil {
		return fmt.Errorf("event callback is required")
	}

	conn, err := websocket.Dial(c.wsURL, "", c.originURL())
	if err != nil {
		return fmt.Errorf("dial ledger websocket: %w", err)
	}
	defer conn.Close()

	subID, err := c.subscribe(conn, packageID)
	if err != nil {
		return err
	}

	// Receive blocks with no context support; closing the connection on
	// cancellation is the cooperative unblocking mechanism.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			c.unsubscribe(conn, subID)
			_ = conn.Close()
		case <-watchDone:
		}
	}()

	for {
		var msg rpcMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read ledger event stream: %w", err)
		}
		if msg.Method != methodSubscribeEvent || msg.Params == nil {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(msg.Params.Result, &env); err != nil {
			c.logf("ledger: skipping malformed event notification: %v", err)
			continue
		}
		if err := fn(env); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// subscribe performs the subscription handshake and returns the server-assigned
// subscription id.
func (c *Client) subscribe(conn *websocket.Conn, packageID string) (json.Number, error) {
	reqID := c.nextID.Add(1)
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  methodSubscribeEvent,
		Params:  []any{packageFilter(packageID)},
	}
	_ = conn.SetDeadline(time.Now().Add(subscribeHandshakeTimeout))
	defer conn.SetDeadline(time.Time{})

	if err := websocket.JSON.Send(conn, req); err != nil {
		return "", fmt.Errorf("send subscribe request: %w", err)
	}

	for {
		var msg rpcMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			return "", fmt.Errorf("read subscribe response: %w", err)
		}
		if msg.ID == nil || *msg.ID != reqID {
			continue
		}
		if msg.Error != nil {
			return "", fmt.Errorf("subscribe to ledger events: %w", msg.Error)
		}
		var subID json.Number
		if err := json.Unmarshal(msg.Result, &subID); err != nil {
			return "", fmt.Errorf("parse subscription id: %w", err)
		}
		return subID, nil
	}
}

// unsubscribe is best-effort: it stops intake before the connection closes so
// a draining shutdown does not race new deliveries.
func (c *Client) unsubscribe(conn *websocket.Conn, subID json.Number) {
	if subID == "" {
		return
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  methodUnsubscribeEvent,
		Params:  []any{subID},
	}
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	if err := websocket.JSON.Send(conn, req); err != nil {
		c.logf("ledger: unsubscribe: %v", err)
	}
}

func (c *Client) originURL() string {
	parsed, err := url.Parse(c.wsURL)
	if err != nil {
		return "http://localhost/"
	}
	scheme := "http"
	if parsed.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + parsed.Host + "/"
}

type queryEventsResult struct {
	Data        []Envelope `json:"data"`
	NextCursor  *Cursor    `json:"nextCursor"`
	HasNextPage bool       `json:"hasNextPage"`
}

// QueryEvents fetches one page of historical events for packageID after the
// given cursor, oldest first. A zero cursor starts from the beginning of the
// stream. Returns the page, the cursor to continue from, and whether more
// pages remain.
func (c *Client) QueryEvents(ctx context.Context, packageID string, after Cursor, limit int) ([]Envelope, Cursor, bool, error) {
	if strings.TrimSpace(packageID) == "" {
		return nil, Cursor{}, false, fmt.Errorf("ledger package id is required")
	}
	if limit <= 0 {
		limit = defaultQueryPageSize
	}

	var cursorParam any
	if !after.IsZero() {
		cursorParam = after
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  methodQueryEvents,
		Params:  []any{packageFilter(packageID), cursorParam, limit, false},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, Cursor{}, false, fmt.Errorf("marshal query request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, Cursor{}, false, fmt.Errorf("build query request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, Cursor{}, false, fmt.Errorf("query ledger events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, Cursor{}, false, fmt.Errorf("query ledger events: unexpected status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, Cursor{}, false, fmt.Errorf("read query response: %w", err)
	}

	var msg rpcMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, Cursor{}, false, fmt.Errorf("parse query response: %w", err)
	}
	if msg.Error != nil {
		return nil, Cursor{}, false, fmt.Errorf("query ledger events: %w", msg.Error)
	}

	var result queryEventsResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		return nil, Cursor{}, false, fmt.Errorf("parse query result: %w", err)
	}

	next := after
	if result.NextCursor != nil {
		next = *result.NextCursor
	}
	return result.Data, next, result.HasNextPage, nil
}
