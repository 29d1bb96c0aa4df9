/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package dataprovider

import (
	"context"

	"github.com/suparena/dataprovider/adminqueries"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/models"
)

// Resources served by admin queries.
const (
	ResourceCognitoUsers  = "cognitoUsers"
	ResourceCognitoGroups = "cognitoGroups"
)

// AdminHandler serves the read-only cognitoUsers and cognitoGroups
// resources.
type AdminHandler struct {
	client *adminqueries.Client
}

var _ Handler = (*AdminHandler)(nil)

// NewAdminHandler wraps client.
func NewAdminHandler(client *adminqueries.Client) *AdminHandler {
	return &AdminHandler{client: client}
}

// RegisterAdmin routes both admin resources to h.
func (r *Router) RegisterAdmin(h *AdminHandler) error {
	if err := r.Register(ResourceCognitoUsers, h); err != nil {
		return err
	}
	return r.Register(ResourceCognitoGroups, h)
}

func (h *AdminHandler) GetList(ctx context.Context, resource string, params *models.ListParams) (*models.ListResult, error) {
	switch resource {
	case ResourceCognitoUsers:
		return h.client.ListUsers(ctx, params)
	case ResourceCognitoGroups:
		return h.client.ListGroups(ctx, params)
	}
	return nil, errors.NewUnsupportedError("getList", resource)
}

func (h *AdminHandler) GetOne(ctx context.Context, resource string, params *models.GetOneParams) (*models.RecordResult, error) {
	if resource != ResourceCognitoUsers {
		return nil, errors.NewUnsupportedError("getOne", resource)
	}
	return h.client.GetUser(ctx, params)
}

func (h *AdminHandler) GetMany(ctx context.Context, resource string, params *models.GetManyParams) (*models.ManyResult, error) {
	if resource != ResourceCognitoUsers {
		return nil, errors.NewUnsupportedError("getMany", resource)
	}
	return h.client.GetManyUsers(ctx, params)
}

func (h *AdminHandler) GetManyReference(_ context.Context, resource string, _ *models.GetManyReferenceParams) (*models.ListResult, error) {
	return nil, errors.NewUnsupportedError("getManyReference", resource)
}

func (h *AdminHandler) Create(_ context.Context, resource string, _ *models.CreateParams) (*models.RecordResult, error) {
	return nil, errors.NewUnsupportedError("create", resource)
}

func (h *AdminHandler) Update(_ context.Context, resource string, _ *models.UpdateParams) (*models.RecordResult, error) {
	return nil, errors.NewUnsupportedError("update", resource)
}

func (h *AdminHandler) UpdateMany(_ context.Context, resource string, _ *models.UpdateManyParams) (*models.BatchResult, error) {
	return nil, errors.NewUnsupportedError("updateMany", resource)
}

func (h *AdminHandler) Delete(_ context.Context, resource string, _ *models.DeleteParams) (*models.RecordResult, error) {
	return nil, errors.NewUnsupportedError("delete", resource)
}

func (h *AdminHandler) DeleteMany(_ context.Context, resource string, _ *models.DeleteManyParams) (*models.BatchResult, error) {
	return nil, errors.NewUnsupportedError("deleteMany", resource)
}
