// Package client provides an HTTP client for prodscout-server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/raphaelgruber/prodscout/internal/api"
	"github.com/raphaelgruber/prodscout/internal/models"
	"github.com/raphaelgruber/prodscout/internal/service"
)

// Client talks to a prodscout server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client.
// If baseURL is empty, uses PRODSCOUT_SERVER_URL or defaults to localhost:8585.
// Timeout can be configured via PRODSCOUT_CLIENT_TIMEOUT (default 10m, identify fans out to the model).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("PRODSCOUT_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8585"
	}

	timeout := 10 * time.Minute
	if t := os.Getenv("PRODSCOUT_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server error: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server error: %s", e.Message)
}

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// do sends one JSON request and decodes the response into result (may be nil).
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(api.RequestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, RequestID: resp.Header.Get(api.RequestIDHeader)}
		var er api.ErrorResponse
		if json.Unmarshal(data, &er) == nil {
			apiErr.Code, apiErr.Message = er.Code, er.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func batchPath(id int64, suffix string) string {
	return "/api/batches/" + strconv.FormatInt(id, 10) + suffix
}

// =============================================================================
// DISCOVERY
// =============================================================================

// Discover asks the server for candidate categories.
func (c *Client) Discover(ctx context.Context, query string) ([]string, error) {
	var resp api.DiscoverResponse
	if err := c.do(ctx, http.MethodPost, "/api/discover", api.DiscoverRequest{Query: query}, &resp); err != nil {
		return nil, err
	}
	return resp.Categories, nil
}

// Identify lists products for each category, annotated with completion info.
func (c *Client) Identify(ctx context.Context, categories []string) (api.IdentifyResponse, error) {
	var resp api.IdentifyResponse
	err := c.do(ctx, http.MethodPost, "/api/identify", api.IdentifyRequest{Categories: categories}, &resp)
	return resp, err
}

// =============================================================================
// BATCHES
// =============================================================================

// Launch creates and dispatches a batch.
func (c *Client) Launch(ctx context.Context, selections []service.Selection) (api.BatchView, error) {
	var b api.BatchView
	err := c.do(ctx, http.MethodPost, "/api/batches", api.LaunchRequest{Selections: selections}, &b)
	return b, err
}

// ListBatches returns every active batch.
func (c *Client) ListBatches(ctx context.Context) ([]api.BatchView, error) {
	var resp api.BatchList
	if err := c.do(ctx, http.MethodGet, "/api/batches", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Batches, nil
}

// GetBatch returns one active batch.
func (c *Client) GetBatch(ctx context.Context, id int64) (api.BatchView, error) {
	var b api.BatchView
	err := c.do(ctx, http.MethodGet, batchPath(id, ""), nil, &b)
	return b, err
}

// DismissBatch removes a batch; results still in flight are discarded.
func (c *Client) DismissBatch(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, batchPath(id, ""), nil, nil)
}

// Review returns the review state of a finished batch.
func (c *Client) Review(ctx context.Context, id int64) (service.ReviewState, error) {
	var state service.ReviewState
	err := c.do(ctx, http.MethodGet, batchPath(id, "/review"), nil, &state)
	return state, err
}

// Toggle flips the selection of one new result.
func (c *Client) Toggle(ctx context.Context, id int64, productID string) (service.ReviewState, error) {
	var state service.ReviewState
	err := c.do(ctx, http.MethodPost, batchPath(id, "/review/toggle"), api.ToggleRequest{ProductID: productID}, &state)
	return state, err
}

// Commit stores the batch's selection and optionally mirrors it.
// A mirror failure is reported in CommitResponse.ExportError, not as err.
func (c *Client) Commit(ctx context.Context, id int64, req api.CommitRequest) (api.CommitResponse, error) {
	var resp api.CommitResponse
	err := c.do(ctx, http.MethodPost, batchPath(id, "/commit"), req, &resp)
	return resp, err
}

// Export mirrors the batch's selection without committing it.
func (c *Client) Export(ctx context.Context, id int64, dest *models.Destination) (models.Destination, error) {
	var resp api.ExportResponse
	err := c.do(ctx, http.MethodPost, batchPath(id, "/export"), api.ExportRequest{Destination: dest}, &resp)
	return resp.Destination, err
}

// =============================================================================
// KNOWLEDGE
// =============================================================================

// Knowledge lists stored records, optionally limited to one category.
func (c *Client) Knowledge(ctx context.Context, category string) ([]models.ProductRecord, error) {
	path := "/api/knowledge"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	var resp api.KnowledgeResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Record returns one stored record by product id.
func (c *Client) Record(ctx context.Context, productID string) (models.ProductRecord, error) {
	var rec models.ProductRecord
	err := c.do(ctx, http.MethodGet, "/api/knowledge/"+url.PathEscape(productID), nil, &rec)
	return rec, err
}

// Tracker rebuilds the server's completion view from the knowledge store and
// active batches.
func (c *Client) Tracker(ctx context.Context) (service.Tracker, error) {
	records, err := c.Knowledge(ctx, "")
	if err != nil {
		return service.Tracker{}, err
	}
	batches, err := c.ListBatches(ctx)
	if err != nil {
		return service.Tracker{}, err
	}
	snaps := make([]models.Batch, len(batches))
	for i, b := range batches {
		snaps[i] = b.Batch
	}
	return service.NewTracker(records, snaps), nil
}

// Stats returns runtime statistics.
func (c *Client) Stats(ctx context.Context) (api.StatsResponse, error) {
	var s api.StatsResponse
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &s)
	return s, err
}

// =============================================================================
// EVENTS
// =============================================================================

// WatchEvents streams batch events until ctx is cancelled, the server closes
// the stream, or onEvent returns an error.
func (c *Client) WatchEvents(ctx context.Context, onEvent func(service.BatchEvent) error) error {
	wsURL := strings.Replace(c.baseURL, "http://", "ws://", 1)
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)

	u, err := url.Parse(wsURL + "/api/events")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	header.Set(api.RequestIDHeader, uuid.NewString())

	conn, _, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { conn.Close() }) }
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var ev service.BatchEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := onEvent(ev); err != nil {
			return err
		}
	}
}
