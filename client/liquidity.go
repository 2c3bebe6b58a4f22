// Package client is a typed HTTP client for the lpctl server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/brojonat/lpctl/service/solana"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// OperationList is the body of GET /api/v1/operations.
type OperationList struct {
	Operations []*liquidity.Operation `json:"operations"`
	Count      int                    `json:"count"`
	Limit      int                    `json:"limit"`
	Offset     int                    `json:"offset"`
}

// ListOptions filters ListOperations. Zero values use the server defaults.
type ListOptions struct {
	PoolID string
	Limit  int
	Offset int
}

// Client is the HTTP client for the lpctl liquidity service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new liquidity service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		// Submissions block until confirmation on the server side.
		httpClient = &http.Client{Timeout: 3 * time.Minute}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// AddLiquidity deposits into the pool.
func (c *Client) AddLiquidity(ctx context.Context, req liquidity.AddRequest) (*liquidity.Operation, error) {
	var op liquidity.Operation
	if err := c.post(ctx, "/api/v1/liquidity/add", req, &op); err != nil {
		return nil, err
	}
	c.logger.Debug("add liquidity", "operation_id", op.ID, "outcome", op.Outcome())
	return &op, nil
}

// RemoveLiquidity withdraws from the pool.
func (c *Client) RemoveLiquidity(ctx context.Context, req liquidity.RemoveRequest) (*liquidity.Operation, error) {
	var op liquidity.Operation
	if err := c.post(ctx, "/api/v1/liquidity/remove", req, &op); err != nil {
		return nil, err
	}
	c.logger.Debug("remove liquidity", "operation_id", op.ID, "outcome", op.Outcome())
	return &op, nil
}

// AddRemoveLiquidity deposits and withdraws in a single transaction.
func (c *Client) AddRemoveLiquidity(ctx context.Context, req liquidity.AddRemoveRequest) (*liquidity.Operation, error) {
	var op liquidity.Operation
	if err := c.post(ctx, "/api/v1/liquidity/add-remove", req, &op); err != nil {
		return nil, err
	}
	c.logger.Debug("add-remove liquidity", "operation_id", op.ID, "outcome", op.Outcome())
	return &op, nil
}

// GetPool reads live pool state.
func (c *Client) GetPool(ctx context.Context, poolID string) (*solana.PoolState, error) {
	var state solana.PoolState
	if err := c.get(ctx, "/api/v1/pools/"+url.PathEscape(poolID), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// ListOperations lists journaled operations, newest first.
func (c *Client) ListOperations(ctx context.Context, opts ListOptions) (*OperationList, error) {
	q := url.Values{}
	if opts.PoolID != "" {
		q.Set("pool_id", opts.PoolID)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	path := "/api/v1/operations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list OperationList
	if err := c.get(ctx, path, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetOperation fetches one journaled operation.
func (c *Client) GetOperation(ctx context.Context, id string) (*liquidity.Operation, error) {
	var op liquidity.Operation
	if err := c.get(ctx, "/api/v1/operations/"+url.PathEscape(id), &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// Health checks the server's health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
