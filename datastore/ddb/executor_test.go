/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/models"
	"github.com/suparena/dataprovider/registry"
)

// fakeAPI records inputs and answers with canned outputs.
type fakeAPI struct {
	queries []*sdk.QueryInput
	scans   []*sdk.ScanInput
	gets    []*sdk.GetItemInput
	puts    []*sdk.PutItemInput
	updates []*sdk.UpdateItemInput
	deletes []*sdk.DeleteItemInput

	queryFn  func(*sdk.QueryInput) (*sdk.QueryOutput, error)
	scanFn   func(*sdk.ScanInput) (*sdk.ScanOutput, error)
	getFn    func(*sdk.GetItemInput) (*sdk.GetItemOutput, error)
	putFn    func(*sdk.PutItemInput) (*sdk.PutItemOutput, error)
	updateFn func(*sdk.UpdateItemInput) (*sdk.UpdateItemOutput, error)
	deleteFn func(*sdk.DeleteItemInput) (*sdk.DeleteItemOutput, error)
}

func (f *fakeAPI) Query(_ context.Context, in *sdk.QueryInput, _ ...func(*sdk.Options)) (*sdk.QueryOutput, error) {
	f.queries = append(f.queries, in)
	if f.queryFn == nil {
		return &sdk.QueryOutput{}, nil
	}
	return f.queryFn(in)
}

func (f *fakeAPI) Scan(_ context.Context, in *sdk.ScanInput, _ ...func(*sdk.Options)) (*sdk.ScanOutput, error) {
	f.scans = append(f.scans, in)
	if f.scanFn == nil {
		return &sdk.ScanOutput{}, nil
	}
	return f.scanFn(in)
}

func (f *fakeAPI) GetItem(_ context.Context, in *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.gets = append(f.gets, in)
	if f.getFn == nil {
		return &sdk.GetItemOutput{}, nil
	}
	return f.getFn(in)
}

func (f *fakeAPI) PutItem(_ context.Context, in *sdk.PutItemInput, _ ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	if f.putFn == nil {
		return &sdk.PutItemOutput{}, nil
	}
	return f.putFn(in)
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *sdk.UpdateItemInput, _ ...func(*sdk.Options)) (*sdk.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	if f.updateFn == nil {
		return &sdk.UpdateItemOutput{}, nil
	}
	return f.updateFn(in)
}

func (f *fakeAPI) DeleteItem(_ context.Context, in *sdk.DeleteItemInput, _ ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.deletes = append(f.deletes, in)
	if f.deleteFn == nil {
		return &sdk.DeleteItemOutput{}, nil
	}
	return f.deleteFn(in)
}

var postsTable = TableConfig{
	Resource: "posts",
	Table:    "blog-posts",
	Indexes: []IndexConfig{
		{Query: "postsByBlog", IndexName: "byBlog", PartitionKey: "blogID", SortKey: "createdAt"},
		{Query: "postsByStatus", IndexName: "byStatus", PartitionKey: "blogID", SortKey: "statusCreatedAt", SortKeyFields: []string{"status", "createdAt"}},
	},
}

func newTestExecutor(t *testing.T, api *fakeAPI, opts ...Option) (*Executor, *registry.Operations) {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { return "generated" }),
		WithRetry(2, time.Millisecond),
	}, opts...)
	e, err := New(api, []TableConfig{postsTable}, opts...)
	require.NoError(t, err)
	ops, err := e.Operations()
	require.NoError(t, err)
	return e, ops
}

func execute(t *testing.T, e *Executor, ops *registry.Operations, name string, vars map[string]any, v any) (bool, error) {
	t.Helper()
	op, err := ops.Lookup(name)
	require.NoError(t, err)
	data, err := e.Execute(context.Background(), op, vars)
	if err != nil {
		return false, err
	}
	return data.Decode(op, v)
}

func item(id, blogID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id":     &types.AttributeValueMemberS{Value: id},
		"blogID": &types.AttributeValueMemberS{Value: blogID},
		"votes":  &types.AttributeValueMemberN{Value: "7"},
	}
}

func TestExecutorOperations(t *testing.T) {
	_, ops := newTestExecutor(t, &fakeAPI{})

	assert.Equal(t, []string{"getPost", "listPosts", "postsByBlog", "postsByStatus"}, ops.Queries())
	assert.Equal(t, []string{"createPost", "deletePost", "updatePost"}, ops.Mutations())

	op, err := ops.Lookup("postsByBlog")
	require.NoError(t, err)
	assert.Equal(t, "postsByBlog", op.ResponseKey)
}

func TestNewRejectsDuplicateQueries(t *testing.T) {
	tables := []TableConfig{
		postsTable,
		{Resource: "comments", Table: "comments", Indexes: []IndexConfig{{Query: "postsByBlog", PartitionKey: "postID"}}},
	}
	_, err := New(&fakeAPI{}, tables)
	assert.True(t, errors.IsValidationError(err))

	_, err = New(&fakeAPI{}, []TableConfig{{Resource: "posts", Table: "p", Indexes: []IndexConfig{{Query: "listPosts", PartitionKey: "id"}}}})
	assert.True(t, errors.IsValidationError(err))
}

func TestExecutorQuery(t *testing.T) {
	api := &fakeAPI{
		queryFn: func(*sdk.QueryInput) (*sdk.QueryOutput, error) {
			return &sdk.QueryOutput{
				Items:            []map[string]types.AttributeValue{item("p1", "b1"), item("p2", "b1")},
				Count:            2,
				LastEvaluatedKey: map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: "p2"}, "blogID": &types.AttributeValueMemberS{Value: "b1"}},
			}, nil
		},
	}
	e, ops := newTestExecutor(t, api)

	var conn models.Connection
	found, err := execute(t, e, ops, "postsByBlog", map[string]any{
		"blogID":        "b1",
		"createdAt":     map[string]any{"ge": "2024-01-01"},
		"sortDirection": models.SortDesc,
		"limit":         2,
		"nextToken":     nil,
	}, &conn)
	require.NoError(t, err)
	require.True(t, found)

	require.Len(t, api.queries, 1)
	in := api.queries[0]
	assert.Equal(t, "blog-posts", aws.ToString(in.TableName))
	assert.Equal(t, "byBlog", aws.ToString(in.IndexName))
	assert.Equal(t, "#pk = :pk AND #sk >= :sk", aws.ToString(in.KeyConditionExpression))
	assert.Equal(t, map[string]string{"#pk": "blogID", "#sk": "createdAt"}, in.ExpressionAttributeNames)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "b1"}, in.ExpressionAttributeValues[":pk"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "2024-01-01"}, in.ExpressionAttributeValues[":sk"])
	assert.False(t, aws.ToBool(in.ScanIndexForward))
	assert.Equal(t, int32(2), aws.ToInt32(in.Limit))
	assert.Nil(t, in.ExclusiveStartKey)

	require.Len(t, conn.Items, 2)
	assert.Equal(t, models.ID("p1"), conn.Items[0].ID())
	assert.Equal(t, json.Number("7"), conn.Items[0]["votes"])
	require.NotNil(t, conn.NextToken)

	// the token resumes from LastEvaluatedKey
	_, err = execute(t, e, ops, "postsByBlog", map[string]any{"blogID": "b1", "nextToken": *conn.NextToken}, &conn)
	require.NoError(t, err)
	require.Len(t, api.queries, 2)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "p2"}, api.queries[1].ExclusiveStartKey["id"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "b1"}, api.queries[1].ExclusiveStartKey["blogID"])
	assert.Nil(t, api.queries[1].ScanIndexForward)
}

func TestExecutorQueryLastPage(t *testing.T) {
	api := &fakeAPI{
		queryFn: func(*sdk.QueryInput) (*sdk.QueryOutput, error) {
			return &sdk.QueryOutput{Items: []map[string]types.AttributeValue{item("p1", "b1")}, Count: 1}, nil
		},
	}
	e, ops := newTestExecutor(t, api)

	var conn models.Connection
	_, err := execute(t, e, ops, "postsByBlog", map[string]any{"blogID": "b1"}, &conn)
	require.NoError(t, err)
	assert.Len(t, conn.Items, 1)
	assert.Nil(t, conn.Next())
}

func TestExecutorQueryRejectsBadInput(t *testing.T) {
	e, ops := newTestExecutor(t, &fakeAPI{})
	var conn models.Connection

	_, err := execute(t, e, ops, "postsByBlog", map[string]any{"createdAt": map[string]any{"eq": "x"}}, &conn)
	assert.True(t, errors.IsValidationError(err))

	_, err = execute(t, e, ops, "postsByBlog", map[string]any{"blogID": "b1", "nextToken": "%%%"}, &conn)
	assert.True(t, errors.IsValidationError(err))
}

func TestBuildKeyCondition(t *testing.T) {
	byBlog, byStatus := postsTable.Indexes[0], postsTable.Indexes[1]

	tests := []struct {
		name    string
		index   IndexConfig
		vars    map[string]any
		expr    string
		sk      types.AttributeValue
		wantErr bool
	}{
		{
			name:  "partition only",
			index: byBlog,
			vars:  map[string]any{"blogID": "b1"},
			expr:  "#pk = :pk",
		},
		{
			name:  "begins with",
			index: byBlog,
			vars:  map[string]any{"blogID": "b1", "createdAt": map[string]any{"beginsWith": "2024-"}},
			expr:  "#pk = :pk AND begins_with(#sk, :sk)",
			sk:    &types.AttributeValueMemberS{Value: "2024-"},
		},
		{
			name:  "numeric operand",
			index: byBlog,
			vars:  map[string]any{"blogID": "b1", "createdAt": map[string]any{"lt": json.Number("1700000000")}},
			expr:  "#pk = :pk AND #sk < :sk",
			sk:    &types.AttributeValueMemberN{Value: "1700000000"},
		},
		{
			name:  "composite",
			index: byStatus,
			vars:  map[string]any{"blogID": "b1", "statusCreatedAt": map[string]any{"eq": map[string]any{"createdAt": "2024-01-01", "status": "draft"}}},
			expr:  "#pk = :pk AND #sk = :sk",
			sk:    &types.AttributeValueMemberS{Value: "draft#2024-01-01"},
		},
		{
			name:  "composite prefix",
			index: byStatus,
			vars:  map[string]any{"blogID": "b1", "statusCreatedAt": map[string]any{"beginsWith": map[string]any{"status": "draft"}}},
			expr:  "#pk = :pk AND begins_with(#sk, :sk)",
			sk:    &types.AttributeValueMemberS{Value: "draft"},
		},
		{
			name:    "missing partition key",
			index:   byBlog,
			vars:    map[string]any{"createdAt": map[string]any{"eq": "x"}},
			wantErr: true,
		},
		{
			name:    "unknown operator",
			index:   byBlog,
			vars:    map[string]any{"blogID": "b1", "createdAt": map[string]any{"between": "x"}},
			wantErr: true,
		},
		{
			name:    "composite on scalar sort key",
			index:   byBlog,
			vars:    map[string]any{"blogID": "b1", "createdAt": map[string]any{"eq": map[string]any{"status": "x"}}},
			wantErr: true,
		},
		{
			name:    "composite without leading field",
			index:   byStatus,
			vars:    map[string]any{"blogID": "b1", "statusCreatedAt": map[string]any{"eq": map[string]any{"createdAt": "2024"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kc, err := buildKeyCondition(tt.index, tt.vars)
			if tt.wantErr {
				assert.True(t, errors.IsValidationError(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expr, kc.Expression)
			assert.Equal(t, tt.sk, kc.Values[":sk"])
		})
	}
}

func TestExecutorScan(t *testing.T) {
	api := &fakeAPI{
		scanFn: func(*sdk.ScanInput) (*sdk.ScanOutput, error) {
			return &sdk.ScanOutput{Items: []map[string]types.AttributeValue{item("p1", "b1")}, Count: 1}, nil
		},
	}
	e, ops := newTestExecutor(t, api)

	var conn models.Connection
	_, err := execute(t, e, ops, "listPosts", map[string]any{"limit": json.Number("10")}, &conn)
	require.NoError(t, err)
	require.Len(t, api.scans, 1)
	assert.Equal(t, "blog-posts", aws.ToString(api.scans[0].TableName))
	assert.Equal(t, int32(10), aws.ToInt32(api.scans[0].Limit))
	assert.Len(t, conn.Items, 1)

	_, err = execute(t, e, ops, "listPosts", map[string]any{"limit": int64(math.MaxInt32) + 5}, &conn)
	require.NoError(t, err)
	require.Len(t, api.scans, 2)
	assert.Equal(t, int32(math.MaxInt32), aws.ToInt32(api.scans[1].Limit))
}

func TestExecutorGet(t *testing.T) {
	api := &fakeAPI{
		getFn: func(in *sdk.GetItemInput) (*sdk.GetItemOutput, error) {
			if in.Key["id"].(*types.AttributeValueMemberS).Value == "p1" {
				return &sdk.GetItemOutput{Item: item("p1", "b1")}, nil
			}
			return &sdk.GetItemOutput{}, nil
		},
	}
	e, ops := newTestExecutor(t, api)

	var rec models.Record
	found, err := execute(t, e, ops, "getPost", map[string]any{"id": "p1"}, &rec)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "b1", rec["blogID"])

	found, err = execute(t, e, ops, "getPost", map[string]any{"id": "missing"}, &rec)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = execute(t, e, ops, "getPost", map[string]any{}, &rec)
	assert.True(t, errors.IsValidationError(err))
}

func TestExecutorCreate(t *testing.T) {
	api := &fakeAPI{}
	e, ops := newTestExecutor(t, api)

	var rec models.Record
	_, err := execute(t, e, ops, "createPost", map[string]any{"input": map[string]any{"title": "hello", "votes": json.Number("3")}}, &rec)
	require.NoError(t, err)

	assert.Equal(t, models.ID("generated"), rec.ID())
	assert.Equal(t, "2025-03-01T12:00:00.000Z", rec["createdAt"])
	assert.Equal(t, "2025-03-01T12:00:00.000Z", rec["updatedAt"])

	require.Len(t, api.puts, 1)
	put := api.puts[0]
	assert.Equal(t, "attribute_not_exists(#k)", aws.ToString(put.ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, put.Item["votes"])
	assert.Equal(t, &types.AttributeValueMemberS{Value: "generated"}, put.Item["id"])
}

func TestExecutorCreateConflict(t *testing.T) {
	api := &fakeAPI{
		putFn: func(*sdk.PutItemInput) (*sdk.PutItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
		},
	}
	e, ops := newTestExecutor(t, api)

	var rec models.Record
	_, err := execute(t, e, ops, "createPost", map[string]any{"input": map[string]any{"id": "p1"}}, &rec)
	assert.True(t, errors.IsAlreadyExists(err))
}

func TestExecutorUpdate(t *testing.T) {
	api := &fakeAPI{
		updateFn: func(*sdk.UpdateItemInput) (*sdk.UpdateItemOutput, error) {
			return &sdk.UpdateItemOutput{Attributes: item("p1", "b2")}, nil
		},
	}
	e, ops := newTestExecutor(t, api)

	var rec models.Record
	_, err := execute(t, e, ops, "updatePost", map[string]any{"input": map[string]any{"id": "p1", "blogID": "b2", "draft": nil}}, &rec)
	require.NoError(t, err)
	assert.Equal(t, "b2", rec["blogID"])

	require.Len(t, api.updates, 1)
	in := api.updates[0]
	assert.Equal(t, &types.AttributeValueMemberS{Value: "p1"}, in.Key["id"])
	assert.Equal(t, "SET #f0 = :v0, #f2 = :v2 REMOVE #f1", aws.ToString(in.UpdateExpression))
	assert.Equal(t, "blogID", in.ExpressionAttributeNames["#f0"])
	assert.Equal(t, "draft", in.ExpressionAttributeNames["#f1"])
	assert.Equal(t, "updatedAt", in.ExpressionAttributeNames["#f2"])
	assert.Equal(t, "attribute_exists(#k)", aws.ToString(in.ConditionExpression))
	assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
}

func TestExecutorUpdateMissing(t *testing.T) {
	api := &fakeAPI{
		updateFn: func(*sdk.UpdateItemInput) (*sdk.UpdateItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{}
		},
	}
	e, ops := newTestExecutor(t, api)

	var rec models.Record
	_, err := execute(t, e, ops, "updatePost", map[string]any{"input": map[string]any{"id": "nope", "title": "x"}}, &rec)
	assert.True(t, errors.IsConditionFailed(err))
}

func TestExecutorDelete(t *testing.T) {
	api := &fakeAPI{
		deleteFn: func(in *sdk.DeleteItemInput) (*sdk.DeleteItemOutput, error) {
			if in.Key["id"].(*types.AttributeValueMemberS).Value == "p1" {
				return &sdk.DeleteItemOutput{Attributes: item("p1", "b1")}, nil
			}
			return nil, &types.ConditionalCheckFailedException{}
		},
	}
	e, ops := newTestExecutor(t, api)

	var rec models.Record
	_, err := execute(t, e, ops, "deletePost", map[string]any{"input": map[string]any{"id": "p1"}}, &rec)
	require.NoError(t, err)
	assert.Equal(t, models.ID("p1"), rec.ID())
	assert.Equal(t, types.ReturnValueAllOld, api.deletes[0].ReturnValues)

	_, err = execute(t, e, ops, "deletePost", map[string]any{"input": map[string]any{"id": "p9"}}, &rec)
	assert.True(t, errors.IsNotFound(err))
}

func TestExecutorRetries(t *testing.T) {
	calls := 0
	api := &fakeAPI{
		getFn: func(*sdk.GetItemInput) (*sdk.GetItemOutput, error) {
			calls++
			if calls < 3 {
				return nil, &types.ProvisionedThroughputExceededException{}
			}
			return &sdk.GetItemOutput{Item: item("p1", "b1")}, nil
		},
	}
	e, ops := newTestExecutor(t, api)

	var rec models.Record
	found, err := execute(t, e, ops, "getPost", map[string]any{"id": "p1"}, &rec)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 3, calls)

	calls = -10
	_, err = execute(t, e, ops, "getPost", map[string]any{"id": "p1"}, &rec)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBackend)
}

func TestExecutorUnknownOperation(t *testing.T) {
	e, _ := newTestExecutor(t, &fakeAPI{})
	_, err := e.Execute(context.Background(), &registry.Operation{Name: "listAuthors", ResponseKey: "listAuthors"}, nil)
	assert.True(t, errors.IsUnknownQuery(err))
}

func TestLoadTables(t *testing.T) {
	doc := `
- resource: posts
  table: blog-posts
  indexes:
    - query: postsByStatus
      index: byStatus
      partitionKey: blogID
      sortKey: statusCreatedAt
      sortKeyFields: [status, createdAt]
- resource: comments
  table: blog-comments
  key: commentID
`
	tables, err := LoadTables(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "id", tables[0].KeyName())
	assert.Equal(t, "commentID", tables[1].KeyName())
	assert.Equal(t, []string{"status", "createdAt"}, tables[0].Indexes[0].SortKeyFields)
	assert.NoError(t, Config{Tables: tables}.Validate())

	bad := Config{Tables: []TableConfig{{Resource: "posts", Table: "t", Indexes: []IndexConfig{{Query: "q", PartitionKey: "p", SortKeyFields: []string{"a"}}}}}}
	assert.True(t, errors.IsValidationError(bad.Validate()))
}

func TestToInt32Saturates(t *testing.T) {
	tests := []struct {
		in   any
		want int32
	}{
		{25, 25},
		{int64(math.MaxInt32) + 1, math.MaxInt32},
		{int64(math.MinInt32) - 1, math.MinInt32},
		{json.Number("4294967297"), math.MaxInt32},
		{json.Number("1e12"), math.MaxInt32},
		{json.Number("10"), 10},
		{1e12, math.MaxInt32},
		{"10", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toInt32(tt.in), "%v", tt.in)
	}
}
