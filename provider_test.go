/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package dataprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/dataprovider/datastore/mock"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/filter"
	"github.com/suparena/dataprovider/logging"
	"github.com/suparena/dataprovider/metrics"
	"github.com/suparena/dataprovider/models"
	"github.com/suparena/dataprovider/registry"
)

func testOperations(t *testing.T) *registry.Operations {
	t.Helper()
	ops := registry.New()
	for _, name := range []string{"listPosts", "getPost", "postsByBlog", "listCommentsByPostId", "commentsByPost", "listComments"} {
		_, err := ops.Register(name, registry.Query, "")
		require.NoError(t, err)
	}
	for _, name := range []string{"createPost", "updatePost", "deletePost"} {
		_, err := ops.Register(name, registry.Mutation, "")
		require.NoError(t, err)
	}
	return ops
}

func posts() []models.Record {
	return []models.Record{
		{"id": "p1", "blogID": "b1", "title": "one"},
		{"id": "p2", "blogID": "b1", "title": "two"},
		{"id": "p3", "blogID": "b1", "title": "three"},
		{"id": "p4", "blogID": "b2", "title": "four"},
		{"id": "p5", "blogID": "b2", "title": "five"},
	}
}

func newTestProvider(t *testing.T, opts ...Option) (*Provider, *mock.Executor) {
	t.Helper()
	exec := mock.New().WithResource("posts", posts()...).WithIndex("posts", "postsByBlog")
	return New(testOperations(t), exec, opts...), exec
}

func listParams(page, perPage int, f filter.Filter) *models.ListParams {
	return &models.ListParams{
		Pagination: models.Pagination{Page: page, PerPage: perPage},
		Sort:       models.Sort{Field: "id", Order: models.SortAsc},
		Filter:     f,
	}
}

func byBlog(blogID string) filter.Filter {
	return filter.Filter{"postsByBlog": {{Name: "blogID", Value: blogID}}}
}

func ids(records []models.Record) []models.ID {
	out := make([]models.ID, len(records))
	for i, r := range records {
		out[i] = r.ID()
	}
	return out
}

func TestGetList(t *testing.T) {
	ctx := context.Background()

	t.Run("unfiltered list uses the resource list query", func(t *testing.T) {
		p, exec := newTestProvider(t)

		res, err := p.GetList(ctx, "posts", listParams(1, 2, nil))
		require.NoError(t, err)

		assert.Equal(t, []models.ID{"p1", "p2"}, ids(res.Data))
		assert.Equal(t, 3, res.Total)
		calls := exec.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "listPosts", calls[0].Operation)
		assert.Equal(t, map[string]any{"limit": 2, "nextToken": nil}, calls[0].Vars)
	})

	t.Run("resolved filter selects the index query", func(t *testing.T) {
		p, exec := newTestProvider(t)

		res, err := p.GetList(ctx, "posts", listParams(1, 10, byBlog("b2")))
		require.NoError(t, err)

		assert.Equal(t, []models.ID{"p4", "p5"}, ids(res.Data))
		assert.Equal(t, 2, res.Total)
		calls := exec.Calls()
		assert.Equal(t, "postsByBlog", calls[0].Operation)
		assert.Equal(t, map[string]any{"blogID": "b2", "limit": 10, "nextToken": nil}, calls[0].Vars)
	})

	t.Run("unresolvable arguments fall back to the list query", func(t *testing.T) {
		p, exec := newTestProvider(t)
		f := filter.Filter{"postsByBlog": {{Name: "blogID", Value: nil}}}

		_, err := p.GetList(ctx, "posts", listParams(1, 10, f))
		require.NoError(t, err)
		assert.Equal(t, 1, exec.CallCount("listPosts"))
	})

	t.Run("reserved keys are not arguments", func(t *testing.T) {
		p, exec := newTestProvider(t)
		f := filter.Filter{"postsByBlog": {{Name: "blogID", Value: "b1"}, {Name: "limit", Value: 99}}}

		_, err := p.GetList(ctx, "posts", listParams(1, 10, f))
		require.NoError(t, err)
		assert.Equal(t, 10, exec.Calls()[0].Vars["limit"])
	})

	t.Run("pages in order", func(t *testing.T) {
		p, exec := newTestProvider(t)

		first, err := p.GetList(ctx, "posts", listParams(1, 2, nil))
		require.NoError(t, err)
		assert.Equal(t, 3, first.Total)

		second, err := p.GetList(ctx, "posts", listParams(2, 2, nil))
		require.NoError(t, err)
		assert.Equal(t, []models.ID{"p3", "p4"}, ids(second.Data))
		assert.Equal(t, 5, second.Total)
		assert.Equal(t, "2", exec.Calls()[1].Vars["nextToken"])

		third, err := p.GetList(ctx, "posts", listParams(3, 2, nil))
		require.NoError(t, err)
		assert.Equal(t, []models.ID{"p5"}, ids(third.Data))
		assert.Equal(t, 5, third.Total)
	})

	t.Run("out of range page does not call the backend", func(t *testing.T) {
		p, exec := newTestProvider(t)

		res, err := p.GetList(ctx, "posts", listParams(3, 2, nil))
		require.NoError(t, err)
		assert.Equal(t, &models.ListResult{Data: []models.Record{}, Total: 0}, res)
		assert.Zero(t, exec.CallCount(""))
	})

	t.Run("page after the last page is fetched without a cursor", func(t *testing.T) {
		p, exec := newTestProvider(t)

		_, err := p.GetList(ctx, "posts", listParams(1, 10, nil))
		require.NoError(t, err)
		_, err = p.GetList(ctx, "posts", listParams(2, 10, nil))
		require.NoError(t, err)

		calls := exec.Calls()
		require.Len(t, calls, 2)
		assert.Nil(t, calls[1].Vars["nextToken"])
	})

	t.Run("cursors are per query identity", func(t *testing.T) {
		p, exec := newTestProvider(t)

		_, err := p.GetList(ctx, "posts", listParams(1, 2, nil))
		require.NoError(t, err)

		// same query, different page size
		res, err := p.GetList(ctx, "posts", listParams(2, 3, nil))
		require.NoError(t, err)
		assert.Empty(t, res.Data)

		// different arguments
		res, err = p.GetList(ctx, "posts", listParams(2, 2, byBlog("b1")))
		require.NoError(t, err)
		assert.Empty(t, res.Data)

		assert.Equal(t, 1, exec.CallCount(""))
	})

	t.Run("sort direction is sent when sorting by the query", func(t *testing.T) {
		p, exec := newTestProvider(t)
		params := listParams(1, 10, byBlog("b1"))
		params.Sort = models.Sort{Field: "postsByBlog", Order: models.SortDesc}

		res, err := p.GetList(ctx, "posts", params)
		require.NoError(t, err)
		assert.Equal(t, []models.ID{"p3", "p2", "p1"}, ids(res.Data))
		assert.Equal(t, models.SortDesc, exec.Calls()[0].Vars["sortDirection"])
	})

	t.Run("sort on another field is ignored", func(t *testing.T) {
		p, exec := newTestProvider(t)
		params := listParams(1, 10, byBlog("b1"))
		params.Sort = models.Sort{Field: "title", Order: models.SortDesc}

		_, err := p.GetList(ctx, "posts", params)
		require.NoError(t, err)
		assert.NotContains(t, exec.Calls()[0].Vars, "sortDirection")
	})

	t.Run("sort direction does not change the query identity", func(t *testing.T) {
		p, exec := newTestProvider(t)
		params := listParams(1, 2, byBlog("b1"))
		_, err := p.GetList(ctx, "posts", params)
		require.NoError(t, err)

		params = listParams(2, 2, byBlog("b1"))
		params.Sort = models.Sort{Field: "postsByBlog", Order: models.SortDesc}
		_, err = p.GetList(ctx, "posts", params)
		require.NoError(t, err)
		assert.Equal(t, 2, exec.CallCount("postsByBlog"))
	})

	t.Run("unknown query in filter is fatal", func(t *testing.T) {
		p, exec := newTestProvider(t)
		f := filter.Filter{"postsByAuthor": {{Name: "authorID", Value: "a1"}}}

		_, err := p.GetList(ctx, "posts", listParams(1, 10, f))
		require.Error(t, err)
		assert.True(t, errors.IsUnknownQuery(err))
		assert.Zero(t, exec.CallCount(""))
	})

	t.Run("missing list query", func(t *testing.T) {
		p, _ := newTestProvider(t)
		_, err := p.GetList(ctx, "blogs", listParams(1, 10, nil))
		assert.True(t, errors.IsUnknownQuery(err))
	})

	t.Run("invalid pagination", func(t *testing.T) {
		p, exec := newTestProvider(t)
		_, err := p.GetList(ctx, "posts", listParams(0, 10, nil))
		assert.True(t, errors.IsValidationError(err))
		assert.Zero(t, exec.CallCount(""))
	})

	t.Run("backend failure propagates without saving a cursor", func(t *testing.T) {
		p, exec := newTestProvider(t)
		boom := errors.NewTransportError("listPosts", http.StatusBadGateway, nil)
		exec.WithError("listPosts", boom)

		_, err := p.GetList(ctx, "posts", listParams(1, 2, nil))
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, p.Cursors().Len())
	})

	t.Run("empty next token ends the list", func(t *testing.T) {
		empty := ""
		exec := mock.New().WithHandler("listPosts", func(context.Context, map[string]any) (any, error) {
			return models.Connection{Items: []models.Record{{"id": "a"}}, NextToken: &empty}, nil
		})
		p := New(testOperations(t), exec)

		res, err := p.GetList(ctx, "posts", listParams(1, 1, nil))
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
	})

	t.Run("null payload", func(t *testing.T) {
		exec := mock.New().WithHandler("listPosts", func(context.Context, map[string]any) (any, error) {
			return nil, nil
		})
		p := New(testOperations(t), exec)

		_, err := p.GetList(ctx, "posts", listParams(1, 1, nil))
		assert.ErrorIs(t, err, errors.ErrBackend)
	})
}

func TestGetListKeepsLargeNumericKeysApart(t *testing.T) {
	ctx := context.Background()
	next := "t1"
	exec := mock.New().WithHandler("postsByBlog", func(context.Context, map[string]any) (any, error) {
		return models.Connection{Items: []models.Record{{"id": "a"}}, NextToken: &next}, nil
	})
	p := New(testOperations(t), exec)

	byNumber := func(n string) filter.Filter {
		return filter.Filter{"postsByBlog": {{Name: "blogID", Value: json.Number(n)}}}
	}

	_, err := p.GetList(ctx, "posts", listParams(1, 1, byNumber("9007199254740993")))
	require.NoError(t, err)

	res, err := p.GetList(ctx, "posts", listParams(2, 1, byNumber("9007199254740992")))
	require.NoError(t, err)
	assert.Empty(t, res.Data)
	assert.Equal(t, 0, res.Total)
	assert.Equal(t, 1, exec.CallCount("postsByBlog"))
	assert.Equal(t, 1, p.Cursors().Len())
}

func TestGetManyReference(t *testing.T) {
	ctx := context.Background()

	t.Run("query.field target", func(t *testing.T) {
		p, exec := newTestProvider(t)

		res, err := p.GetManyReference(ctx, "posts", &models.GetManyReferenceParams{
			Target:     "postsByBlog.blogID",
			ID:         "b1",
			Pagination: models.Pagination{Page: 1, PerPage: 10},
		})
		require.NoError(t, err)
		assert.Len(t, res.Data, 3)
		assert.Equal(t, "postsByBlog", exec.Calls()[0].Operation)
		assert.Equal(t, "b1", exec.Calls()[0].Vars["blogID"])
	})

	t.Run("bare target derives the query name", func(t *testing.T) {
		exec := mock.New().
			WithResource("comments", models.Record{"id": "c1", "postID": "p1"}, models.Record{"id": "c2", "postID": "p2"}).
			WithIndex("comments", "listCommentsByPostId")
		p := New(testOperations(t), exec)

		res, err := p.GetManyReference(ctx, "comments", &models.GetManyReferenceParams{
			Target:     "postID",
			ID:         "p1",
			Pagination: models.Pagination{Page: 1, PerPage: 10},
		})
		require.NoError(t, err)
		assert.Equal(t, []models.ID{"c1"}, ids(res.Data))
		assert.Equal(t, "listCommentsByPostId", exec.Calls()[0].Operation)
	})

	t.Run("caller filter is not modified", func(t *testing.T) {
		p, _ := newTestProvider(t)
		f := filter.Filter{"postsByBlog": {{Name: "blogID", Value: "b2"}}}

		_, err := p.GetManyReference(ctx, "posts", &models.GetManyReferenceParams{
			Target:     "postsByBlog.blogID",
			ID:         "b1",
			Pagination: models.Pagination{Page: 1, PerPage: 10},
			Filter:     f,
		})
		require.NoError(t, err)
		v, _ := f["postsByBlog"].Get("blogID")
		assert.Equal(t, "b2", v)
	})
}

func TestGetOne(t *testing.T) {
	ctx := context.Background()
	p, exec := newTestProvider(t)

	res, err := p.GetOne(ctx, "posts", &models.GetOneParams{ID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, "two", res.Data["title"])
	assert.Equal(t, map[string]any{"id": "p2"}, exec.Calls()[0].Vars)

	_, err = p.GetOne(ctx, "posts", &models.GetOneParams{ID: "missing"})
	assert.True(t, errors.IsNotFound(err))

	_, err = p.GetOne(ctx, "blogs", &models.GetOneParams{ID: "b1"})
	assert.True(t, errors.IsUnknownQuery(err))
}

func TestBatchesSkipFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.NewTransportError("backend", http.StatusInternalServerError, nil)

	t.Run("getMany", func(t *testing.T) {
		p, exec := newTestProvider(t)
		exec.WithFailure("getPost", "p1", boom)

		res, err := p.GetMany(ctx, "posts", &models.GetManyParams{IDs: []models.ID{"p1", "p2"}})
		require.NoError(t, err)
		assert.Equal(t, []models.ID{"p2"}, ids(res.Data))
		assert.Equal(t, models.ID("p1"), res.Failed[0].ID)
		assert.Equal(t, 2, exec.CallCount(""))
	})

	t.Run("updateMany", func(t *testing.T) {
		p, exec := newTestProvider(t)
		exec.WithFailure("updatePost", "p1", boom)

		res, err := p.UpdateMany(ctx, "posts", &models.UpdateManyParams{
			IDs:  []models.ID{"p1", "p2"},
			Data: models.Record{"title": "same", "updatedAt": "x"},
		})
		require.NoError(t, err)
		assert.Equal(t, []models.ID{"p2"}, res.Data)
		assert.Equal(t, []models.ID{"p1"}, res.FailedIDs())
		assert.Equal(t, 2, exec.CallCount(""))

		input := exec.Calls()[1].Vars["input"].(map[string]any)
		assert.Equal(t, map[string]any{"id": "p2", "title": "same"}, input)
		assert.Equal(t, "one", exec.Records("posts")["p1"]["title"])
	})

	t.Run("deleteMany", func(t *testing.T) {
		p, exec := newTestProvider(t)
		exec.WithFailure("deletePost", "p1", boom)

		res, err := p.DeleteMany(ctx, "posts", &models.DeleteManyParams{IDs: []models.ID{"p1", "p2"}})
		require.NoError(t, err)
		assert.Equal(t, []models.ID{"p2"}, res.Data)
		assert.Equal(t, 2, exec.CallCount(""))
		assert.Equal(t, map[string]any{"id": "p2"}, exec.Calls()[1].Vars["input"])
		assert.Contains(t, exec.Records("posts"), "p1")
		assert.NotContains(t, exec.Records("posts"), "p2")
	})

	t.Run("failures are logged and counted", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := logging.NewWithWriter(logging.Config{Level: "warn"}, &buf)
		require.NoError(t, err)
		m := metrics.New(nil)

		p, exec := newTestProvider(t, WithLogger(logger), WithMetrics(m))
		exec.WithFailure("deletePost", "p1", boom)

		_, err = p.DeleteMany(ctx, "posts", &models.DeleteManyParams{IDs: []models.ID{"p1", "p2"}})
		require.NoError(t, err)
		assert.Contains(t, buf.String(), `"id":"p1"`)
		assert.Contains(t, buf.String(), `"failed":["p1"]`)
		assert.Contains(t, buf.String(), `"succeeded":1`)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchFailures.WithLabelValues("deleteMany", "posts")))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendCalls.WithLabelValues("deletePost", "error")))
	})
}

func TestMutations(t *testing.T) {
	ctx := context.Background()

	t.Run("create", func(t *testing.T) {
		p, exec := newTestProvider(t)
		data := models.Record{"title": "new", "blogID": "b1"}

		res, err := p.Create(ctx, "posts", &models.CreateParams{Data: data})
		require.NoError(t, err)
		assert.NotEmpty(t, res.Data.ID())
		assert.Equal(t, map[string]any{"title": "new", "blogID": "b1"}, exec.Calls()[0].Vars["input"])
		assert.NotContains(t, data, "id")
	})

	t.Run("update strips server-managed fields", func(t *testing.T) {
		p, exec := newTestProvider(t)
		data := models.Record{
			"id": "p1", "title": "uno",
			"_deleted": nil, "_lastChangedAt": 1, "createdAt": "c", "updatedAt": "u",
		}

		res, err := p.Update(ctx, "posts", &models.UpdateParams{ID: "p1", Data: data})
		require.NoError(t, err)
		assert.Equal(t, "uno", res.Data["title"])
		assert.Equal(t, map[string]any{"id": "p1", "title": "uno"}, exec.Calls()[0].Vars["input"])
		assert.Contains(t, data, "createdAt")
	})

	t.Run("update takes the id from params", func(t *testing.T) {
		p, exec := newTestProvider(t)
		_, err := p.Update(ctx, "posts", &models.UpdateParams{ID: "p1", Data: models.Record{"title": "uno"}})
		require.NoError(t, err)
		assert.Equal(t, "p1", exec.Calls()[0].Vars["input"].(map[string]any)["id"])
	})

	t.Run("delete forwards the version", func(t *testing.T) {
		p, exec := newTestProvider(t)
		res, err := p.Delete(ctx, "posts", &models.DeleteParams{
			ID:           "p1",
			PreviousData: models.Record{"id": "p1", "_version": 3},
		})
		require.NoError(t, err)
		assert.Equal(t, models.ID("p1"), res.Data.ID())
		assert.Equal(t, map[string]any{"id": "p1", "_version": 3}, exec.Calls()[0].Vars["input"])
	})

	t.Run("delete without previous data", func(t *testing.T) {
		p, exec := newTestProvider(t)
		_, err := p.Delete(ctx, "posts", &models.DeleteParams{ID: "p1"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "p1"}, exec.Calls()[0].Vars["input"])
	})

	t.Run("mutation errors propagate", func(t *testing.T) {
		p, _ := newTestProvider(t)
		_, err := p.Delete(ctx, "posts", &models.DeleteParams{ID: "missing"})
		assert.True(t, errors.IsNotFound(err))
	})
}
