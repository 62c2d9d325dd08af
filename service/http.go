package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tomyedwab/rdsdataapi/types"
)

var _ Service = (*HTTPClient)(nil)

// HTTPClient talks to a Data API endpoint over its JSON protocol.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	signingKey []byte
	now        func() time.Time
}

// HTTPClientOption represents a functional option for configuring the HTTPClient
type HTTPClientOption func(*HTTPClient)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient = client
	}
}

// WithTimeout sets the timeout of the default HTTP client
func WithTimeout(timeout time.Duration) HTTPClientOption {
	return func(c *HTTPClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithSigningKey makes the client attach a signed bearer token to every
// request.
func WithSigningKey(key []byte) HTTPClientOption {
	return func(c *HTTPClient) {
		c.signingKey = key
	}
}

// NewHTTPClient creates a client for the endpoint at baseURL.
func NewHTTPClient(baseURL string, options ...HTTPClientOption) *HTTPClient {
	client := &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// GetBaseURL returns the client's base URL
func (c *HTTPClient) GetBaseURL() string {
	return c.baseURL
}

func (c *HTTPClient) ExecuteStatement(ctx context.Context, req *types.ExecuteStatementRequest) (*types.ExecuteStatementResponse, error) {
	var resp types.ExecuteStatementResponse
	if err := c.call(ctx, PathExecute, req.SecretArn, req.ResourceArn, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) BatchExecuteStatement(ctx context.Context, req *types.BatchExecuteStatementRequest) (*types.BatchExecuteStatementResponse, error) {
	var resp types.BatchExecuteStatementResponse
	if err := c.call(ctx, PathBatchExecute, req.SecretArn, req.ResourceArn, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) BeginTransaction(ctx context.Context, req *types.BeginTransactionRequest) (*types.BeginTransactionResponse, error) {
	var resp types.BeginTransactionResponse
	if err := c.call(ctx, PathBeginTransaction, req.SecretArn, req.ResourceArn, req, &resp); err != nil {
		return nil, err
	}
	if resp.TransactionID == "" {
		return nil, NewError(ErrorTypeInternal, "service did not return a transaction ID")
	}
	return &resp, nil
}

func (c *HTTPClient) CommitTransaction(ctx context.Context, req *types.CommitTransactionRequest) (*types.CommitTransactionResponse, error) {
	var resp types.CommitTransactionResponse
	if err := c.call(ctx, PathCommitTransaction, req.SecretArn, req.ResourceArn, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) RollbackTransaction(ctx context.Context, req *types.RollbackTransactionRequest) (*types.RollbackTransactionResponse, error) {
	var resp types.RollbackTransactionResponse
	if err := c.call(ctx, PathRollbackTransaction, req.SecretArn, req.ResourceArn, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// call posts body as JSON to path and decodes a 2xx response into out.
func (c *HTTPClient) call(ctx context.Context, path, secretArn, resourceArn string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return NewErrorWithCause(ErrorTypeBadRequest, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return NewNetworkError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.signingKey != nil {
		token, err := SignRequestToken(c.signingKey, secretArn, resourceArn, c.now())
		if err != nil {
			return NewErrorWithCause(ErrorTypeForbidden, "failed to sign request", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewNetworkError("request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewNetworkError("failed to read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp types.ErrorResponse
		// A non-JSON error body still yields a typed error from the status.
		_ = json.Unmarshal(respBody, &errResp)
		return WrapHTTPError(resp.StatusCode, resp.Header.Get(ErrorTypeHeader), errResp.Message)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return NewErrorWithCause(ErrorTypeInternal, fmt.Sprintf("failed to unmarshal %s response", strings.TrimPrefix(path, "/")), err)
	}
	return nil
}
