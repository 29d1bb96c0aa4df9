/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package dataprovider

import (
	"context"
	"fmt"
	"sync"

	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/models"
)

// Handler serves the nine admin UI verbs for the resources routed to it.
type Handler interface {
	GetList(ctx context.Context, resource string, params *models.ListParams) (*models.ListResult, error)
	GetOne(ctx context.Context, resource string, params *models.GetOneParams) (*models.RecordResult, error)
	GetMany(ctx context.Context, resource string, params *models.GetManyParams) (*models.ManyResult, error)
	GetManyReference(ctx context.Context, resource string, params *models.GetManyReferenceParams) (*models.ListResult, error)
	Create(ctx context.Context, resource string, params *models.CreateParams) (*models.RecordResult, error)
	Update(ctx context.Context, resource string, params *models.UpdateParams) (*models.RecordResult, error)
	UpdateMany(ctx context.Context, resource string, params *models.UpdateManyParams) (*models.BatchResult, error)
	Delete(ctx context.Context, resource string, params *models.DeleteParams) (*models.RecordResult, error)
	DeleteMany(ctx context.Context, resource string, params *models.DeleteManyParams) (*models.BatchResult, error)
}

// Router dispatches each request to the handler registered for its
// resource, or to the fallback handler. It is safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

var _ Handler = (*Router)(nil)

// NewRouter creates a router. fallback may be nil, in which case
// unregistered resources fail with errors.ErrUnsupported.
func NewRouter(fallback Handler) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		fallback: fallback,
	}
}

// Register routes resource to h.
func (r *Router) Register(resource string, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[resource]; exists {
		return fmt.Errorf("handler for resource %q already registered", resource)
	}
	r.handlers[resource] = h
	return nil
}

// Handler returns the handler serving resource.
func (r *Router) Handler(resource string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, exists := r.handlers[resource]; exists {
		return h, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, errors.NewUnsupportedError("any verb", resource)
}

func (r *Router) GetList(ctx context.Context, resource string, params *models.ListParams) (*models.ListResult, error) {
	h, err := r.Handler(resource)
	if err != nil {
		return nil, err
	}
	return h.GetList(ctx, resource, params)
}

func (r *Router) GetOne(ctx context.Context, resource string, params *models.GetOneParams) (*models.RecordResult, error) {
	h, err := r.Handler(resource)
	if err != nil {
		return nil, err
	}
	return h.GetOne(ctx, resource, params)
}

func (r *Router) GetMany(ctx context.Context, resource string, params *models.GetManyParams) (*models.ManyResult, error) {
	h, err := r.Handler(resource)
	if err != nil {
		return nil, err
	}
	return h.GetMany(ctx, resource, params)
}

func (r *Router) GetManyReference(ctx context.Context, resource string, params *models.GetManyReferenceParams) (*models.ListResult, error) {
	h, err := r.Handler(resource)
	if err != nil {
		return nil, err
	}
	return h.GetManyReference(ctx, resource, params)
}

func (r *Router) Create(ctx context.Context, resource string, params *models.CreateParams) (*models.RecordResult, error) {
	h, err := r.Handler(resource)
	if err != nil {
		return nil, err
	}
	return h.Create(ctx, resource, params)
}

func (r *Router) Update(ctx context.Context, resource string, params *models.UpdateParams) (*models.RecordResult, error) {
	h, err := r.Handler(resource)
	if err != nil {
		return nil, err
	}
	return h.Update(ctx, resource, params)
}

func (r *Router) UpdateMany(ctx context.Context, resource string, params *models.UpdateManyParams) (*models.BatchResult, error) {
	h, err := r.Handler(resource)
	if err != nil {
		return nil, err
	}
	return h.UpdateMany(ctx, resource, params)
}

func (r *Router) Delete(ctx context.Context, resource string, params *models.DeleteParams) (*models.RecordResult, error) {
	h, err := r.Handler(resource)
	if err != nil {
		return nil, err
	}
	return h.Delete(ctx, resource, params)
}

func (r *Router) DeleteMany(ctx context.Context, resource string, params *models.DeleteManyParams) (*models.BatchResult, error) {
	h, err := r.Handler(resource)
	if err != nil {
		return nil, err
	}
	return h.DeleteMany(ctx, resource, params)
}
