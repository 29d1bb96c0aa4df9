/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package adminqueries

import (
	"context"
	"encoding/json"
	"time"

	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/filter"
	"github.com/suparena/dataprovider/metrics"
	"github.com/suparena/dataprovider/models"
	"github.com/suparena/dataprovider/pagination"
	"go.uber.org/zap"
)

// Admin query names. They double as filter keys and as endpoint paths.
const (
	QueryListUsers         = "listUsers"
	QueryListUsersInGroup  = "listUsersInGroup"
	QueryGetUser           = "getUser"
	QueryListGroups        = "listGroups"
	QueryListGroupsForUser = "listGroupsForUser"
)

// Client lists identity-pool users and groups through admin calls, paging
// with the same cursor bookkeeping as resource lists.
type Client struct {
	caller  Caller
	cursors *pagination.Store
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithCursorStore shares a cursor store, e.g. with a resource provider.
func WithCursorStore(store *pagination.Store) Option {
	return func(c *Client) {
		c.cursors = store
	}
}

// WithMetrics records admin calls.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a client over caller.
func New(caller Caller, opts ...Option) *Client {
	c := &Client{
		caller:  caller,
		cursors: pagination.NewStore(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listPage struct {
	Users     []map[string]any `json:"Users"`
	Groups    []map[string]any `json:"Groups"`
	NextToken *string          `json:"NextToken"`
}

// ListUsers lists users. Filter getUser.username looks up one user, filter
// listUsersInGroup.groupname lists the members of a group; an unknown user
// or group yields an empty page.
func (c *Client) ListUsers(ctx context.Context, params *models.ListParams) (*models.ListResult, error) {
	if args, ok := params.Filter[QueryGetUser]; ok {
		username, _ := args.Get("username")
		raw, err := c.call(ctx, QueryGetUser, map[string]any{"username": username})
		if err != nil {
			if errors.IsBadRequest(err) {
				return models.EmptyList(), nil
			}
			return nil, err
		}
		user, err := decodeUser(raw)
		if err != nil {
			return nil, err
		}
		return &models.ListResult{Data: []models.Record{user}, Total: 1}, nil
	}

	query, vars := QueryListUsers, filter.Args{}
	args, targeted := params.Filter[QueryListUsersInGroup]
	if targeted {
		groupname, _ := args.Get("groupname")
		query, vars = QueryListUsersInGroup, vars.Set("groupname", groupname)
	}
	return c.list(ctx, query, vars, targeted, params.Pagination, func(p *listPage) []models.Record {
		return parseAll(p.Users, parseUser)
	})
}

// ListGroups lists groups. Filter listGroupsForUser.username lists the
// groups of one user; an unknown user yields an empty page.
func (c *Client) ListGroups(ctx context.Context, params *models.ListParams) (*models.ListResult, error) {
	query, vars := QueryListGroups, filter.Args{}
	args, targeted := params.Filter[QueryListGroupsForUser]
	if targeted {
		username, _ := args.Get("username")
		query, vars = QueryListGroupsForUser, vars.Set("username", username)
	}
	return c.list(ctx, query, vars, targeted, params.Pagination, func(p *listPage) []models.Record {
		return parseAll(p.Groups, parseGroup)
	})
}

// GetUser fetches one user by username.
func (c *Client) GetUser(ctx context.Context, params *models.GetOneParams) (*models.RecordResult, error) {
	raw, err := c.call(ctx, QueryGetUser, map[string]any{"username": string(params.ID)})
	if err != nil {
		return nil, err
	}
	user, err := decodeUser(raw)
	if err != nil {
		return nil, err
	}
	return &models.RecordResult{Data: user}, nil
}

// GetManyUsers fetches users one at a time. Users that cannot be fetched
// are logged and left out.
func (c *Client) GetManyUsers(ctx context.Context, params *models.GetManyParams) (*models.ManyResult, error) {
	out := &models.ManyResult{Data: make([]models.Record, 0, len(params.IDs))}
	for _, id := range params.IDs {
		res, err := c.GetUser(ctx, &models.GetOneParams{ID: id})
		if err != nil {
			c.logger.Warn("get user failed",
				zap.String("resource", "cognitoUsers"),
				zap.String("id", string(id)),
				zap.Error(err))
			c.metrics.IncBatchFailure("getMany", "cognitoUsers")
			out.Failed = append(out.Failed, models.Failure{ID: id, Err: err})
			continue
		}
		out.Data = append(out.Data, res.Data)
	}
	return out, nil
}

func (c *Client) list(ctx context.Context, query string, vars filter.Args, targeted bool, p models.Pagination, records func(*listPage) []models.Record) (*models.ListResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	identity := pagination.NewIdentity(query, vars.Map(), p.PerPage)
	token, ok := c.cursors.Cursor(identity, p.Page)
	if !ok {
		c.logger.Debug("page out of range",
			zap.String("query", query),
			zap.Int("page", p.Page),
			zap.String("identity", identity.Fingerprint()))
		c.metrics.IncOutOfRange(query)
		return models.EmptyList(), nil
	}

	callVars := vars.Map()
	callVars["limit"] = p.PerPage
	if token != nil {
		callVars["token"] = *token
	}

	var page listPage
	raw, err := c.call(ctx, query, callVars)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, &errors.ResponseError{Operation: query, Messages: []string{err.Error()}}
		}
	case targeted && errors.IsBadRequest(err):
		// unknown group or user: empty page
	default:
		return nil, err
	}

	next := page.NextToken
	if next != nil && *next == "" {
		next = nil
	}
	c.cursors.SaveCursor(next, identity, p.Page)

	data := records(&page)
	total := (p.Page-1)*p.PerPage + len(data)
	if next != nil {
		total++
	}
	return &models.ListResult{Data: data, Total: total}, nil
}

func (c *Client) call(ctx context.Context, query string, params map[string]any) (json.RawMessage, error) {
	start := time.Now()
	raw, err := c.caller.Get(ctx, "/"+query, params)
	c.metrics.ObserveCall(query, start, err)
	return raw, err
}

func decodeUser(raw json.RawMessage) (models.Record, error) {
	var user map[string]any
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, &errors.ResponseError{Operation: QueryGetUser, Messages: []string{err.Error()}}
	}
	return parseUser(user), nil
}

func parseAll(items []map[string]any, parse func(map[string]any) models.Record) []models.Record {
	out := make([]models.Record, len(items))
	for i, item := range items {
		out[i] = parse(item)
	}
	return out
}

// parseUser flattens a user: Username becomes id and the Name/Value pairs of
// Attributes (list calls) or UserAttributes (getUser) become fields.
func parseUser(user map[string]any) models.Record {
	out := make(models.Record, len(user))
	for k, v := range user {
		switch k {
		case "Username", "Attributes", "UserAttributes":
		default:
			out[k] = v
		}
	}

	attrs, ok := user["Attributes"].([]any)
	if !ok {
		attrs, _ = user["UserAttributes"].([]any)
	}
	for _, a := range attrs {
		attr, ok := a.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := attr["Name"].(string); ok {
			out[name] = attr["Value"]
		}
	}

	out["id"] = user["Username"]
	return out
}

// parseGroup renames GroupName to id.
func parseGroup(group map[string]any) models.Record {
	out := make(models.Record, len(group))
	for k, v := range group {
		if k != "GroupName" {
			out[k] = v
		}
	}
	out["id"] = group["GroupName"]
	return out
}

