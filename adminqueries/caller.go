/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package adminqueries

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/suparena/dataprovider/errors"
	"go.uber.org/zap"
)

// Caller performs one admin call: GET path with query parameters. Failures
// carry the HTTP status as an errors.TransportError.
type Caller interface {
	Get(ctx context.Context, path string, params map[string]any) (json.RawMessage, error)
}

// TokenSource supplies the Authorization header of each call.
type TokenSource func(ctx context.Context) (string, error)

// HTTPCaller calls an admin REST endpoint.
type HTTPCaller struct {
	endpoint   string
	httpClient *http.Client
	token      TokenSource
	logger     *zap.Logger
}

// CallerOption configures an HTTPCaller.
type CallerOption func(*HTTPCaller)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(hc *http.Client) CallerOption {
	return func(c *HTTPCaller) {
		c.httpClient = hc
	}
}

// WithToken fetches the Authorization header before each call.
func WithToken(ts TokenSource) CallerOption {
	return func(c *HTTPCaller) {
		c.token = ts
	}
}

// WithCallerLogger sets the logger.
func WithCallerLogger(logger *zap.Logger) CallerOption {
	return func(c *HTTPCaller) {
		c.logger = logger
	}
}

// NewHTTPCaller creates a caller for endpoint, e.g.
// https://abc.execute-api.us-east-1.amazonaws.com/admin.
func NewHTTPCaller(endpoint string, opts ...CallerOption) *HTTPCaller {
	c := &HTTPCaller{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get calls path. Nil parameters are omitted from the query string.
func (c *HTTPCaller) Get(ctx context.Context, path string, params map[string]any) (json.RawMessage, error) {
	op := strings.TrimPrefix(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+path, nil)
	if err != nil {
		return nil, errors.NewTransportError(op, 0, err)
	}
	req.URL.RawQuery = encodeQuery(params)
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch token for %s: %w", op, err)
		}
		if token != "" {
			req.Header.Set("Authorization", token)
		}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewTransportError(op, 0, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.NewTransportError(op, res.StatusCode, err)
	}
	c.logger.Debug("admin call", zap.String("path", path), zap.Int("status", res.StatusCode))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, errors.NewTransportError(op, res.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(body))))
	}
	return body, nil
}

func encodeQuery(params map[string]any) string {
	q := url.Values{}
	for k, v := range params {
		if v == nil {
			continue
		}
		if s, ok := v.(*string); ok {
			if s == nil {
				continue
			}
			v = *s
		}
		q.Set(k, fmt.Sprint(v))
	}
	return q.Encode()
}
