/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package graphql

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/models"
	"github.com/suparena/dataprovider/registry"
)

const getPostDoc = `query GetPost($id: ID!) { getPost(id: $id) { id title } }`

func getPostOp(t *testing.T) *registry.Operation {
	t.Helper()
	ops, err := registry.FromDocuments(map[string]string{"getPost": getPostDoc}, nil)
	require.NoError(t, err)
	op, err := ops.Lookup("getPost")
	require.NoError(t, err)
	return op
}

func serve(t *testing.T, status int, body string, inspect func(r *http.Request, params Params)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var params Params
		require.NoError(t, json.Unmarshal(raw, &params))
		if inspect != nil {
			inspect(r, params)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	op := getPostOp(t)

	t.Run("success", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{"data": {"getPost": {"id": "p1", "title": "hello"}}}`,
			func(r *http.Request, params Params) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.Equal(t, "key-1", r.Header.Get("x-api-key"))
				assert.Equal(t, "jwt-1", r.Header.Get("Authorization"))
				assert.Equal(t, "v", r.Header.Get("X-Extra"))
				assert.Equal(t, getPostDoc, params.Query)
				assert.Equal(t, map[string]any{"id": "p1"}, params.Variables)
			})

		client := New(srv.URL, WithAPIKey("key-1"), WithStaticToken("jwt-1"), WithHeader("X-Extra", "v"))
		data, err := client.Execute(ctx, op, map[string]any{"id": "p1", "limit": 10, "nextToken": nil})
		require.NoError(t, err)

		var rec models.Record
		found, err := data.Decode(op, &rec)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "hello", rec["title"])
	})

	t.Run("nil variables are sent as an object", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{"data": {"getPost": null}}`, func(_ *http.Request, params Params) {
			assert.NotNil(t, params.Variables)
		})
		data, err := New(srv.URL).Execute(ctx, op, nil)
		require.NoError(t, err)
		found, err := data.Decode(op, &models.Record{})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("graphql errors", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{"data": null, "errors": [{"message": "boom"}, {"message": "bang"}]}`, nil)
		_, err := New(srv.URL).Execute(ctx, op, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrBackend)
		assert.Contains(t, err.Error(), "boom; bang")
	})

	t.Run("missing data", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{}`, nil)
		_, err := New(srv.URL).Execute(ctx, op, nil)
		assert.ErrorIs(t, err, errors.ErrBackend)
	})

	t.Run("http status", func(t *testing.T) {
		srv := serve(t, http.StatusUnauthorized, `{"errors": [{"message": "Unauthorized"}]}`, nil)
		_, err := New(srv.URL).Execute(ctx, op, nil)
		require.Error(t, err)
		assert.True(t, errors.IsTransport(err))
		assert.Equal(t, http.StatusUnauthorized, errors.StatusCode(err))
		assert.True(t, errors.IsAuthFailure(err))
		assert.Contains(t, err.Error(), "Unauthorized")
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{}`, nil)
		url := srv.URL
		srv.Close()
		_, err := New(url).Execute(ctx, op, nil)
		assert.True(t, errors.IsTransport(err))
		assert.Zero(t, errors.StatusCode(err))
	})

	t.Run("token failure", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{}`, nil)
		client := New(srv.URL, WithToken(func(context.Context) (string, error) {
			return "", errors.ErrInvalidInput
		}))
		_, err := client.Execute(ctx, op, nil)
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})

	t.Run("operation without document", func(t *testing.T) {
		_, err := New("http://unused").Execute(ctx, &registry.Operation{Name: "listPosts"}, nil)
		assert.True(t, errors.IsValidationError(err))
	})
}
