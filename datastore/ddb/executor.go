/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/suparena/dataprovider/datastore"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/models"
	"github.com/suparena/dataprovider/registry"
	"go.uber.org/zap"
)

type action int

const (
	actionScan action = iota
	actionQuery
	actionGet
	actionCreate
	actionUpdate
	actionDelete
)

func (a action) kind() registry.Kind {
	switch a {
	case actionCreate, actionUpdate, actionDelete:
		return registry.Mutation
	}
	return registry.Query
}

type binding struct {
	action action
	table  TableConfig
	index  IndexConfig
}

// Executor runs resource operations directly against DynamoDB tables. Each
// mapped resource gets list (Scan), get, create, update and delete
// operations under their conventional names plus one Query per index.
type Executor struct {
	api      API
	bindings map[string]binding
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string

	maxRetries   int
	retryBackoff time.Duration
}

var _ datastore.Executor = (*Executor)(nil)

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithClock replaces time.Now for createdAt/updatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// WithIDGenerator replaces the uuid generator used for new records.
func WithIDGenerator(newID func() string) Option {
	return func(e *Executor) {
		e.newID = newID
	}
}

// WithRetry retries throttled and internal errors up to maxRetries times,
// waiting attempt*backoff between attempts (default 3, 200ms).
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(e *Executor) {
		e.maxRetries = maxRetries
		e.retryBackoff = backoff
	}
}

// New creates an executor for tables.
func New(api API, tables []TableConfig, opts ...Option) (*Executor, error) {
	if err := (Config{Tables: tables}).Validate(); err != nil {
		return nil, err
	}

	e := &Executor{
		api:          api,
		bindings:     make(map[string]binding),
		logger:       zap.NewNop(),
		now:          time.Now,
		newID:        uuid.NewString,
		maxRetries:   3,
		retryBackoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, t := range tables {
		verbs := map[registry.Verb]action{
			registry.VerbList:   actionScan,
			registry.VerbGet:    actionGet,
			registry.VerbCreate: actionCreate,
			registry.VerbUpdate: actionUpdate,
			registry.VerbDelete: actionDelete,
		}
		for verb, a := range verbs {
			if err := e.bind(registry.QueryName(verb, t.Resource), binding{action: a, table: t}); err != nil {
				return nil, err
			}
		}
		for _, idx := range t.Indexes {
			if err := e.bind(idx.Query, binding{action: actionQuery, table: t, index: idx}); err != nil {
				return nil, err
			}
		}
	}
	return e, nil
}

func (e *Executor) bind(name string, b binding) error {
	if _, dup := e.bindings[name]; dup {
		return errors.NewValidationError("tables", fmt.Sprintf("operation %q is mapped twice", name))
	}
	e.bindings[name] = b
	return nil
}

// Operations registers every mapped operation as a document-less handle.
func (e *Executor) Operations() (*registry.Operations, error) {
	names := make([]string, 0, len(e.bindings))
	for name := range e.bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	ops := registry.New()
	for _, name := range names {
		if _, err := ops.Register(name, e.bindings[name].action.kind(), ""); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

// Execute runs op and returns its payload under op.ResponseKey: a
// connection for list queries, a record (or null) otherwise.
func (e *Executor) Execute(ctx context.Context, op *registry.Operation, vars map[string]any) (datastore.Data, error) {
	b, ok := e.bindings[op.Name]
	if !ok {
		return nil, errors.NewUnknownQueryError(op.Name)
	}
	if vars == nil {
		vars = map[string]any{}
	}

	var (
		result any
		err    error
	)
	switch b.action {
	case actionScan:
		result, err = e.scan(ctx, b, vars)
	case actionQuery:
		result, err = e.query(ctx, b, vars)
	case actionGet:
		result, err = e.get(ctx, b, vars)
	case actionCreate:
		result, err = e.create(ctx, b, vars)
	case actionUpdate:
		result, err = e.update(ctx, b, vars)
	case actionDelete:
		result, err = e.delete(ctx, b, vars)
	}
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", op.Name, err)
	}
	return datastore.Data{op.ResponseKey: raw}, nil
}

func (e *Executor) scan(ctx context.Context, b binding, vars map[string]any) (*models.Connection, error) {
	input := &sdk.ScanInput{TableName: aws.String(b.table.Table)}
	if err := applyPaging(vars, &input.Limit, &input.ExclusiveStartKey); err != nil {
		return nil, err
	}

	out, err := withRetry(ctx, e, func() (*sdk.ScanOutput, error) {
		return e.api.Scan(ctx, input)
	})
	if err != nil {
		return nil, backendError("Scan", b.table.Table, err)
	}
	e.logger.Debug("scan",
		zap.String("table", b.table.Table),
		zap.Int32("count", out.Count))
	return connection(out.Items, out.LastEvaluatedKey)
}

func (e *Executor) query(ctx context.Context, b binding, vars map[string]any) (*models.Connection, error) {
	kc, err := buildKeyCondition(b.index, vars)
	if err != nil {
		return nil, err
	}

	input := &sdk.QueryInput{
		TableName:                 aws.String(b.table.Table),
		KeyConditionExpression:    aws.String(kc.Expression),
		ExpressionAttributeNames:  kc.Names,
		ExpressionAttributeValues: kc.Values,
	}
	if b.index.IndexName != "" {
		input.IndexName = aws.String(b.index.IndexName)
	}
	if dir, _ := vars["sortDirection"].(string); strings.EqualFold(dir, models.SortDesc) {
		input.ScanIndexForward = aws.Bool(false)
	}
	if err := applyPaging(vars, &input.Limit, &input.ExclusiveStartKey); err != nil {
		return nil, err
	}

	out, err := withRetry(ctx, e, func() (*sdk.QueryOutput, error) {
		return e.api.Query(ctx, input)
	})
	if err != nil {
		return nil, backendError("Query", b.table.Table, err)
	}
	e.logger.Debug("query",
		zap.String("table", b.table.Table),
		zap.String("index", b.index.IndexName),
		zap.String("condition", kc.Expression),
		zap.Int32("count", out.Count))
	return connection(out.Items, out.LastEvaluatedKey)
}

func (e *Executor) get(ctx context.Context, b binding, vars map[string]any) (models.Record, error) {
	key, _, err := e.itemKey(b, vars)
	if err != nil {
		return nil, err
	}

	out, err := withRetry(ctx, e, func() (*sdk.GetItemOutput, error) {
		return e.api.GetItem(ctx, &sdk.GetItemInput{
			TableName: aws.String(b.table.Table),
			Key:       key,
		})
	})
	if err != nil {
		return nil, backendError("GetItem", b.table.Table, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return unmarshalItem(out.Item)
}

func (e *Executor) create(ctx context.Context, b binding, vars map[string]any) (models.Record, error) {
	keyName := b.table.KeyName()
	rec := inputRecord(vars)
	if id, ok := rec[keyName]; !ok || id == nil || id == "" {
		rec[keyName] = e.newID()
	}
	now := strfmt.DateTime(e.now().UTC()).String()
	if _, ok := rec["createdAt"]; !ok {
		rec["createdAt"] = now
	}
	rec["updatedAt"] = now

	item, err := marshalItem(rec)
	if err != nil {
		return nil, err
	}

	_, err = withRetry(ctx, e, func() (*sdk.PutItemOutput, error) {
		return e.api.PutItem(ctx, &sdk.PutItemInput{
			TableName:                aws.String(b.table.Table),
			Item:                     item,
			ConditionExpression:      aws.String("attribute_not_exists(#k)"),
			ExpressionAttributeNames: map[string]string{"#k": keyName},
		})
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, errors.NewAlreadyExistsError(b.table.Resource, fmt.Sprint(rec[keyName]))
		}
		return nil, backendError("PutItem", b.table.Table, err)
	}
	return rec, nil
}

func (e *Executor) update(ctx context.Context, b binding, vars map[string]any) (models.Record, error) {
	key, id, err := e.itemKey(b, vars)
	if err != nil {
		return nil, err
	}
	rec := inputRecord(vars)
	delete(rec, b.table.KeyName())
	rec["updatedAt"] = strfmt.DateTime(e.now().UTC()).String()

	ue, err := buildUpdateExpression(rec)
	if err != nil {
		return nil, err
	}
	ue.Names["#k"] = b.table.KeyName()

	out, err := withRetry(ctx, e, func() (*sdk.UpdateItemOutput, error) {
		return e.api.UpdateItem(ctx, &sdk.UpdateItemInput{
			TableName:                 aws.String(b.table.Table),
			Key:                       key,
			UpdateExpression:          aws.String(ue.Expression),
			ExpressionAttributeNames:  ue.Names,
			ExpressionAttributeValues: ue.Values,
			ConditionExpression:       aws.String("attribute_exists(#k)"),
			ReturnValues:              types.ReturnValueAllNew,
		})
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, errors.NewConditionFailedError("update "+b.table.Resource+" "+id, "attribute_exists("+b.table.KeyName()+")")
		}
		return nil, backendError("UpdateItem", b.table.Table, err)
	}
	return unmarshalItem(out.Attributes)
}

func (e *Executor) delete(ctx context.Context, b binding, vars map[string]any) (models.Record, error) {
	key, id, err := e.itemKey(b, vars)
	if err != nil {
		return nil, err
	}

	out, err := withRetry(ctx, e, func() (*sdk.DeleteItemOutput, error) {
		return e.api.DeleteItem(ctx, &sdk.DeleteItemInput{
			TableName:                aws.String(b.table.Table),
			Key:                      key,
			ConditionExpression:      aws.String("attribute_exists(#k)"),
			ExpressionAttributeNames: map[string]string{"#k": b.table.KeyName()},
			ReturnValues:             types.ReturnValueAllOld,
		})
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, errors.NewNotFoundError(b.table.Resource, id)
		}
		return nil, backendError("DeleteItem", b.table.Table, err)
	}
	return unmarshalItem(out.Attributes)
}

// itemKey reads the record key from vars.id or vars.input.<key>.
func (e *Executor) itemKey(b binding, vars map[string]any) (map[string]types.AttributeValue, string, error) {
	keyName := b.table.KeyName()
	id, ok := vars["id"]
	if !ok || id == nil {
		id = inputRecord(vars)[keyName]
	}
	if id == nil || id == "" {
		return nil, "", errors.NewValidationError(keyName, "required")
	}
	av, err := marshalValue(id)
	if err != nil {
		return nil, "", err
	}
	return map[string]types.AttributeValue{keyName: av}, fmt.Sprint(id), nil
}

func applyPaging(vars map[string]any, limit **int32, startKey *map[string]types.AttributeValue) error {
	if n := toInt32(vars["limit"]); n > 0 {
		*limit = aws.Int32(n)
	}
	token, _ := vars["nextToken"].(string)
	key, err := decodeToken(token)
	if err != nil {
		return err
	}
	*startKey = key
	return nil
}

func connection(items []map[string]types.AttributeValue, lastKey map[string]types.AttributeValue) (*models.Connection, error) {
	conn := &models.Connection{Items: make([]models.Record, 0, len(items))}
	for _, item := range items {
		rec, err := unmarshalItem(item)
		if err != nil {
			return nil, err
		}
		conn.Items = append(conn.Items, rec)
	}
	next, err := encodeToken(lastKey)
	if err != nil {
		return nil, err
	}
	conn.NextToken = next
	return conn, nil
}

// updateExpression is a SET/REMOVE expression with its placeholders.
type updateExpression struct {
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue
}

// buildUpdateExpression turns field->value updates into
// "SET #f0 = :v0, #f1 = :v1 REMOVE #f2". Nil values remove the attribute.
// Fields are visited in sorted order.
func buildUpdateExpression(updates map[string]any) (*updateExpression, error) {
	if len(updates) == 0 {
		return nil, errors.NewValidationError("input", "no updates provided")
	}

	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	ue := &updateExpression{
		Names:  make(map[string]string, len(fields)),
		Values: make(map[string]types.AttributeValue, len(fields)),
	}
	var sets, removes []string
	for i, field := range fields {
		name := fmt.Sprintf("#f%d", i)
		ue.Names[name] = field

		val := updates[field]
		if val == nil {
			removes = append(removes, name)
			continue
		}
		av, err := marshalValue(val)
		if err != nil {
			return nil, fmt.Errorf("unhandled update value for field '%s': %w", field, err)
		}
		placeholder := fmt.Sprintf(":v%d", i)
		ue.Values[placeholder] = av
		sets = append(sets, name+" = "+placeholder)
	}

	var clauses []string
	if len(sets) > 0 {
		clauses = append(clauses, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(removes, ", "))
	}
	ue.Expression = strings.Join(clauses, " ")
	if len(ue.Values) == 0 {
		ue.Values = nil
	}
	return ue, nil
}

// withRetry retries transient failures with linear backoff.
func withRetry[T any](ctx context.Context, e *Executor, call func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return zero, err
		}

		if attempt < e.maxRetries {
			e.logger.Debug("retrying dynamodb call", zap.Int("attempt", attempt+1), zap.Error(err))
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * e.retryBackoff):
			}
		}
	}
	return zero, fmt.Errorf("failed after %d retries: %w", e.maxRetries, lastErr)
}

// isRetryableError reports throttling and internal server errors.
func isRetryableError(err error) bool {
	var (
		throughput *types.ProvisionedThroughputExceededException
		limit      *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	if stderrors.As(err, &throughput) || stderrors.As(err, &limit) || stderrors.As(err, &internal) {
		return true
	}
	var retryable interface{ RetryableError() bool }
	if stderrors.As(err, &retryable) {
		return retryable.RetryableError()
	}
	return false
}

func isConditionFailed(err error) bool {
	var cfe *types.ConditionalCheckFailedException
	return stderrors.As(err, &cfe)
}

func backendError(call, table string, err error) error {
	return fmt.Errorf("%w: %s on %s: %w", errors.ErrBackend, call, table, err)
}

func inputRecord(vars map[string]any) models.Record {
	switch in := vars["input"].(type) {
	case models.Record:
		return in.Clone()
	case map[string]any:
		return models.Record(in).Clone()
	}
	return models.Record{}
}

// toInt32 converts a numeric limit, saturating at the int32 bounds.
func toInt32(v any) int32 {
	var n int64
	switch t := v.(type) {
	case int:
		n = int64(t)
	case int32:
		return t
	case int64:
		n = t
	case float64:
		if t >= math.MaxInt32 {
			return math.MaxInt32
		}
		if t <= math.MinInt32 {
			return math.MinInt32
		}
		return int32(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			if f, ferr := t.Float64(); ferr == nil {
				return toInt32(f)
			}
			return 0
		}
		n = i
	default:
		return 0
	}
	switch {
	case n > math.MaxInt32:
		return math.MaxInt32
	case n < math.MinInt32:
		return math.MinInt32
	}
	return int32(n)
}
