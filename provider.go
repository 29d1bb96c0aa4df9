/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package dataprovider

import (
	"context"
	"time"

	"github.com/suparena/dataprovider/datastore"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/filter"
	"github.com/suparena/dataprovider/metrics"
	"github.com/suparena/dataprovider/models"
	"github.com/suparena/dataprovider/pagination"
	"github.com/suparena/dataprovider/registry"
	"go.uber.org/zap"
)

// Server-managed fields dropped from update inputs.
var readOnlyFields = []string{"_deleted", "_lastChangedAt", "createdAt", "updatedAt"}

// Provider serves resources from named backend operations. List requests
// are mapped onto one index query chosen from the filter and paged with
// continuation cursors; every other verb uses the conventional operation
// name of the resource (getPost, createPost, ...).
type Provider struct {
	ops      *registry.Operations
	executor datastore.Executor
	cursors  *pagination.Store
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

var _ Handler = (*Provider)(nil)

// New creates a provider calling executor for the operations in ops.
func New(ops *registry.Operations, executor datastore.Executor, opts ...Option) *Provider {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Provider{
		ops:      ops,
		executor: executor,
		cursors:  o.cursors,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// Cursors returns the provider's cursor store.
func (p *Provider) Cursors() *pagination.Store {
	return p.cursors
}

// GetList fetches one page.
//
// A filter naming one known query with a resolvable argument set selects
// that query; anything else lists the whole resource. A page whose
// predecessor was never fetched answers empty without calling the backend,
// which sends the UI back to page 1. Total is a lower bound: it counts one
// extra record when the backend reports a further page.
func (p *Provider) GetList(ctx context.Context, resource string, params *models.ListParams) (*models.ListResult, error) {
	if err := params.Pagination.Validate(); err != nil {
		return nil, err
	}

	res, err := filter.Resolve(p.ops, params.Filter)
	if err != nil {
		p.logger.Error("unknown query in filter", zap.String("resource", resource), zap.Error(err))
		return nil, err
	}
	query, args := res.Query, res.Args
	if !res.Resolved() {
		query, args = registry.QueryName(registry.VerbList, resource), filter.Args{}
	}

	op, err := p.lookup(resource, query)
	if err != nil {
		return nil, err
	}

	page, perPage := params.Pagination.Page, params.Pagination.PerPage
	identity := pagination.NewIdentity(query, args.Map(), perPage)
	cursor, ok := p.cursors.Cursor(identity, page)
	if !ok {
		p.logger.Debug("page out of range",
			zap.String("query", query),
			zap.Int("page", page),
			zap.String("identity", identity.Fingerprint()))
		p.metrics.IncOutOfRange(query)
		return models.EmptyList(), nil
	}

	if params.Sort.Field == query {
		args = args.Set("sortDirection", params.Sort.Order)
	}
	vars := args.Map()
	vars["limit"] = perPage
	vars["nextToken"] = nil
	if cursor != nil {
		vars["nextToken"] = *cursor
	}

	data, err := p.execute(ctx, op, vars)
	if err != nil {
		return nil, err
	}
	var conn models.Connection
	found, err := data.Decode(op, &conn)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &errors.ResponseError{Operation: op.Name, Messages: []string{"no list payload"}}
	}

	next := conn.Next()
	p.cursors.SaveCursor(next, identity, page)

	items := conn.Items
	if items == nil {
		items = []models.Record{}
	}
	total := (page-1)*perPage + len(items)
	if next != nil {
		total++
	}
	return &models.ListResult{Data: items, Total: total}, nil
}

// GetOne fetches one record by id.
func (p *Provider) GetOne(ctx context.Context, resource string, params *models.GetOneParams) (*models.RecordResult, error) {
	op, err := p.lookup(resource, registry.QueryName(registry.VerbGet, resource))
	if err != nil {
		return nil, err
	}
	rec, err := p.getOne(ctx, resource, op, params.ID)
	if err != nil {
		return nil, err
	}
	return &models.RecordResult{Data: rec}, nil
}

// GetMany fetches records one id at a time. Ids that fail are logged and
// left out of Data; they are reported in Failed.
func (p *Provider) GetMany(ctx context.Context, resource string, params *models.GetManyParams) (*models.ManyResult, error) {
	op, err := p.lookup(resource, registry.QueryName(registry.VerbGet, resource))
	if err != nil {
		return nil, err
	}

	out := &models.ManyResult{Data: make([]models.Record, 0, len(params.IDs))}
	for _, id := range params.IDs {
		rec, err := p.getOne(ctx, resource, op, id)
		if err != nil {
			p.batchFailure("getMany", resource, id, err)
			out.Failed = append(out.Failed, models.Failure{ID: id, Err: err})
			continue
		}
		out.Data = append(out.Data, rec)
	}
	return out, nil
}

// GetManyReference lists the records referencing params.ID through
// params.Target. A "query.field" target filters query on field; a bare field
// filters the conventional reference query, e.g. listCommentsByPostId for
// comments and postID.
func (p *Provider) GetManyReference(ctx context.Context, resource string, params *models.GetManyReferenceParams) (*models.ListResult, error) {
	query, field, ok := registry.SplitTarget(params.Target)
	if !ok {
		query, field = registry.ReferenceQueryName(resource, params.Target), params.Target
	}

	f := params.Filter.Clone()
	f[query] = f[query].Set(field, string(params.ID))

	return p.GetList(ctx, resource, &models.ListParams{
		Pagination: params.Pagination,
		Sort:       params.Sort,
		Filter:     f,
	})
}

// Create sends params.Data as the mutation input.
func (p *Provider) Create(ctx context.Context, resource string, params *models.CreateParams) (*models.RecordResult, error) {
	op, err := p.lookup(resource, registry.QueryName(registry.VerbCreate, resource))
	if err != nil {
		return nil, err
	}
	rec, err := p.mutate(ctx, op, params.Data.Clone())
	if err != nil {
		return nil, err
	}
	return &models.RecordResult{Data: rec}, nil
}

// Update sends params.Data without server-managed fields.
func (p *Provider) Update(ctx context.Context, resource string, params *models.UpdateParams) (*models.RecordResult, error) {
	op, err := p.lookup(resource, registry.QueryName(registry.VerbUpdate, resource))
	if err != nil {
		return nil, err
	}
	input := params.Data.Without(readOnlyFields...)
	if input.ID() == "" && params.ID != "" {
		input["id"] = string(params.ID)
	}
	rec, err := p.mutate(ctx, op, input)
	if err != nil {
		return nil, err
	}
	return &models.RecordResult{Data: rec}, nil
}

// UpdateMany applies params.Data to each id in turn. Nothing is rolled back:
// failed ids are logged and reported in Failed, the others are confirmed in
// Data.
func (p *Provider) UpdateMany(ctx context.Context, resource string, params *models.UpdateManyParams) (*models.BatchResult, error) {
	op, err := p.lookup(resource, registry.QueryName(registry.VerbUpdate, resource))
	if err != nil {
		return nil, err
	}
	data := params.Data.Without(readOnlyFields...)

	return p.batch("updateMany", resource, params.IDs, func(id models.ID) error {
		input := data.Clone()
		input["id"] = string(id)
		_, err := p.mutate(ctx, op, input)
		return err
	}), nil
}

// Delete removes one record, forwarding previousData._version for
// backends with optimistic locking.
func (p *Provider) Delete(ctx context.Context, resource string, params *models.DeleteParams) (*models.RecordResult, error) {
	op, err := p.lookup(resource, registry.QueryName(registry.VerbDelete, resource))
	if err != nil {
		return nil, err
	}
	input := models.Record{"id": string(params.ID)}
	if v, ok := params.PreviousData["_version"]; ok && v != nil {
		input["_version"] = v
	}
	rec, err := p.mutate(ctx, op, input)
	if err != nil {
		return nil, err
	}
	return &models.RecordResult{Data: rec}, nil
}

// DeleteMany removes each id in turn, like UpdateMany.
func (p *Provider) DeleteMany(ctx context.Context, resource string, params *models.DeleteManyParams) (*models.BatchResult, error) {
	op, err := p.lookup(resource, registry.QueryName(registry.VerbDelete, resource))
	if err != nil {
		return nil, err
	}
	return p.batch("deleteMany", resource, params.IDs, func(id models.ID) error {
		_, err := p.mutate(ctx, op, models.Record{"id": string(id)})
		return err
	}), nil
}

func (p *Provider) lookup(resource, name string) (*registry.Operation, error) {
	op, err := p.ops.Lookup(name)
	if err != nil {
		p.logger.Error("unknown query", zap.String("resource", resource), zap.String("query", name))
		return nil, err
	}
	return op, nil
}

func (p *Provider) execute(ctx context.Context, op *registry.Operation, vars map[string]any) (datastore.Data, error) {
	start := time.Now()
	data, err := p.executor.Execute(ctx, op, vars)
	p.metrics.ObserveCall(op.Name, start, err)
	if err != nil {
		p.logger.Debug("backend call failed", zap.String("operation", op.Name), zap.Error(err))
	}
	return data, err
}

func (p *Provider) getOne(ctx context.Context, resource string, op *registry.Operation, id models.ID) (models.Record, error) {
	data, err := p.execute(ctx, op, map[string]any{"id": string(id)})
	if err != nil {
		return nil, err
	}
	var rec models.Record
	found, err := data.Decode(op, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewNotFoundError(resource, string(id))
	}
	return rec, nil
}

func (p *Provider) mutate(ctx context.Context, op *registry.Operation, input models.Record) (models.Record, error) {
	data, err := p.execute(ctx, op, map[string]any{"input": map[string]any(input)})
	if err != nil {
		return nil, err
	}
	var rec models.Record
	found, err := data.Decode(op, &rec)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &errors.ResponseError{Operation: op.Name, Messages: []string{"no record in response"}}
	}
	return rec, nil
}

// batch runs fn for each id strictly in order, one call in flight at a time.
func (p *Provider) batch(verb, resource string, ids []models.ID, fn func(models.ID) error) *models.BatchResult {
	out := &models.BatchResult{Data: make([]models.ID, 0, len(ids))}
	for _, id := range ids {
		if err := fn(id); err != nil {
			p.batchFailure(verb, resource, id, err)
			out.Failed = append(out.Failed, models.Failure{ID: id, Err: err})
			continue
		}
		out.Data = append(out.Data, id)
	}
	if !out.OK() {
		p.logger.Warn("batch finished with failures",
			zap.String("verb", verb),
			zap.String("resource", resource),
			zap.Int("succeeded", len(out.Data)),
			zap.Any("failed", out.FailedIDs()))
	}
	return out
}

func (p *Provider) batchFailure(verb, resource string, id models.ID, err error) {
	p.logger.Warn("batch item failed",
		zap.String("verb", verb),
		zap.String("resource", resource),
		zap.String("id", string(id)),
		zap.Error(err))
	p.metrics.IncBatchFailure(verb, resource)
}
