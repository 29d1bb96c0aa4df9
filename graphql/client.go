/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/suparena/dataprovider/datastore"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/registry"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

// Params is the body of a GraphQL HTTP request.
type Params struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables"`
}

// Response is the body of a GraphQL HTTP response.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors gqlerror.List   `json:"errors,omitempty"`
}

// TokenSource supplies the bearer token sent with each request. An empty
// token sends no Authorization header.
type TokenSource func(ctx context.Context) (string, error)

// Client posts registered operations to a GraphQL endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	apiKey     string
	token      TokenSource
	headers    http.Header
	logger     *zap.Logger
}

var _ datastore.Executor = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithAPIKey sends key in the x-api-key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithToken fetches a bearer token before each request.
func WithToken(ts TokenSource) Option {
	return func(c *Client) {
		c.token = ts
	}
}

// WithStaticToken sends the same bearer token with every request.
func WithStaticToken(token string) Option {
	return WithToken(func(context.Context) (string, error) {
		return token, nil
	})
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    make(http.Header),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute posts op's document with vars and returns the response data.
func (c *Client) Execute(ctx context.Context, op *registry.Operation, vars map[string]any) (datastore.Data, error) {
	if op.Document == "" {
		return nil, errors.NewValidationError("document", fmt.Sprintf("operation %q has no document", op.Name))
	}
	resp, err := c.Do(ctx, op.Name, Params{Query: op.Document, Variables: declared(op, vars)})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		messages := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			messages[i] = e.Message
		}
		return nil, &errors.ResponseError{Operation: op.Name, Messages: messages}
	}

	trimmed := bytes.TrimSpace(resp.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &errors.ResponseError{Operation: op.Name}
	}
	var data datastore.Data
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return nil, &errors.ResponseError{Operation: op.Name, Messages: []string{err.Error()}}
	}
	return data, nil
}

// Do sends params and decodes the response envelope. Non-2xx answers fail
// with a TransportError carrying the status code; GraphQL errors in a 2xx
// answer are left to the caller.
func (c *Client) Do(ctx context.Context, opName string, params Params) (*Response, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", opName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewTransportError(opName, 0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch token for %s: %w", opName, err)
		}
		if token != "" {
			req.Header.Set("Authorization", token)
		}
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(opName, 0, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.NewTransportError(opName, res.StatusCode, err)
	}
	c.logger.Debug("graphql call",
		zap.String("operation", opName),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	var out Response
	decodeErr := json.Unmarshal(raw, &out)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var cause error = fmt.Errorf("%s", snippet(raw))
		if decodeErr == nil && len(out.Errors) > 0 {
			cause = out.Errors
		}
		return nil, errors.NewTransportError(opName, res.StatusCode, cause)
	}
	if decodeErr != nil {
		return nil, errors.NewTransportError(opName, res.StatusCode, fmt.Errorf("decode response: %w", decodeErr))
	}
	return &out, nil
}

func snippet(b []byte) string {
	const max = 256
	b = bytes.TrimSpace(b)
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// declared keeps only the variables op's document declares, so list
// documents without limit or nextToken still validate.
func declared(op *registry.Operation, vars map[string]any) map[string]any {
	out := make(map[string]any, len(op.Variables))
	for _, name := range op.Variables {
		if v, ok := vars[name]; ok {
			out[name] = v
		}
	}
	return out
}
