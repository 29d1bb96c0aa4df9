/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mock provides an in-memory datastore.Executor for testing
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/suparena/dataprovider/datastore"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/models"
	"github.com/suparena/dataprovider/registry"
)

// Handler answers one operation. The returned value is JSON-encoded under the
// operation's response key.
type Handler func(ctx context.Context, vars map[string]any) (any, error)

// Call records one Execute invocation.
type Call struct {
	Operation string
	Vars      map[string]any
}

// Executor is a mock implementation of datastore.Executor for testing
type Executor struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	errs      map[string]error
	failures  map[string]map[string]error
	resources map[string]map[string]models.Record
	calls     []Call
}

var _ datastore.Executor = (*Executor)(nil)

// New creates a new mock Executor
func New() *Executor {
	return &Executor{
		handlers:  make(map[string]Handler),
		errs:      make(map[string]error),
		failures:  make(map[string]map[string]error),
		resources: make(map[string]map[string]models.Record),
	}
}

// WithHandler sets the handler for an operation name
func (m *Executor) WithHandler(op string, h Handler) *Executor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[op] = h
	return m
}

// WithError makes every call of op fail with err
func (m *Executor) WithError(op string, err error) *Executor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[op] = err
	return m
}

// WithFailure makes calls of op targeting id fail with err. The target id is
// read from vars["id"] or vars["input"]["id"].
func (m *Executor) WithFailure(op, id string, err error) *Executor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures[op] == nil {
		m.failures[op] = make(map[string]error)
	}
	m.failures[op][id] = err
	return m
}

// WithPages serves op as a paginated list. Page n is returned for the token
// "page-n"; the first page needs no token.
func (m *Executor) WithPages(op string, pages ...[]models.Record) *Executor {
	return m.WithHandler(op, func(_ context.Context, vars map[string]any) (any, error) {
		idx := 0
		if tok, ok := vars["nextToken"].(string); ok && tok != "" {
			n, err := strconv.Atoi(strings.TrimPrefix(tok, "page-"))
			if err != nil || n < 2 || n > len(pages) {
				return nil, errors.NewValidationError("nextToken", "unknown token "+tok)
			}
			idx = n - 1
		}
		conn := models.Connection{Items: []models.Record{}}
		if idx < len(pages) {
			conn.Items = pages[idx]
		}
		if idx+1 < len(pages) {
			next := fmt.Sprintf("page-%d", idx+2)
			conn.NextToken = &next
		}
		return conn, nil
	})
}

// WithResource backs the conventional list/get/create/update/delete
// operations of resource with an in-memory table.
func (m *Executor) WithResource(resource string, records ...models.Record) *Executor {
	m.mu.Lock()
	table := make(map[string]models.Record, len(records))
	for _, r := range records {
		table[string(r.ID())] = r.Clone()
	}
	m.resources[resource] = table
	m.mu.Unlock()

	m.WithIndex(resource, registry.QueryName(registry.VerbList, resource))
	m.WithHandler(registry.QueryName(registry.VerbGet, resource), func(_ context.Context, vars map[string]any) (any, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if r, ok := m.resources[resource][targetID(vars)]; ok {
			return r.Clone(), nil
		}
		return nil, nil
	})
	m.WithHandler(registry.QueryName(registry.VerbCreate, resource), func(_ context.Context, vars map[string]any) (any, error) {
		input := inputRecord(vars)
		if input.ID() == "" {
			input["id"] = uuid.NewString()
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		id := string(input.ID())
		if _, exists := m.resources[resource][id]; exists {
			return nil, errors.NewAlreadyExistsError(resource, id)
		}
		m.resources[resource][id] = input
		return input.Clone(), nil
	})
	m.WithHandler(registry.QueryName(registry.VerbUpdate, resource), func(_ context.Context, vars map[string]any) (any, error) {
		input := inputRecord(vars)
		m.mu.Lock()
		defer m.mu.Unlock()
		current, ok := m.resources[resource][string(input.ID())]
		if !ok {
			return nil, errors.NewNotFoundError(resource, string(input.ID()))
		}
		for k, v := range input {
			current[k] = v
		}
		return current.Clone(), nil
	})
	m.WithHandler(registry.QueryName(registry.VerbDelete, resource), func(_ context.Context, vars map[string]any) (any, error) {
		id := targetID(vars)
		m.mu.Lock()
		defer m.mu.Unlock()
		current, ok := m.resources[resource][id]
		if !ok {
			return nil, errors.NewNotFoundError(resource, id)
		}
		delete(m.resources[resource], id)
		return current, nil
	})
	return m
}

// WithIndex serves query as a paginated list over resource's table, keeping
// records whose fields match the scalar variables and satisfy any sort-key
// clause. The token is the offset of the next page.
func (m *Executor) WithIndex(resource, query string) *Executor {
	return m.WithHandler(query, func(_ context.Context, vars map[string]any) (any, error) {
		m.mu.Lock()
		matched := make([]models.Record, 0)
		for _, r := range m.resources[resource] {
			if matches(r, vars) {
				matched = append(matched, r.Clone())
			}
		}
		m.mu.Unlock()

		sort.Slice(matched, func(i, j int) bool { return matched[i].ID() < matched[j].ID() })
		if dir, _ := vars["sortDirection"].(string); dir == models.SortDesc {
			for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}

		offset := 0
		if tok, ok := vars["nextToken"].(string); ok && tok != "" {
			n, err := strconv.Atoi(tok)
			if err != nil || n < 0 {
				return nil, errors.NewValidationError("nextToken", "unknown token "+tok)
			}
			offset = n
		}
		if offset > len(matched) {
			offset = len(matched)
		}
		end := len(matched)
		if limit := toInt(vars["limit"]); limit > 0 && offset+limit < end {
			end = offset + limit
		}

		conn := models.Connection{Items: matched[offset:end]}
		if end < len(matched) {
			next := strconv.Itoa(end)
			conn.NextToken = &next
		}
		return conn, nil
	})
}

// Execute records the call and dispatches it to the operation's handler
func (m *Executor) Execute(ctx context.Context, op *registry.Operation, vars map[string]any) (datastore.Data, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Operation: op.Name, Vars: cloneVars(vars)})
	err := m.errs[op.Name]
	if err == nil {
		err = m.failures[op.Name][targetID(vars)]
	}
	h := m.handlers[op.Name]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("mock: no handler for operation %q", op.Name)
	}

	result, err := h(ctx, vars)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("mock: encode %q result: %w", op.Name, err)
	}
	return datastore.Data{op.ResponseKey: raw}, nil
}

// Calls returns a copy of the recorded calls
func (m *Executor) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount counts the calls of op, or of every operation when op is empty
func (m *Executor) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op == "" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.Operation == op {
			n++
		}
	}
	return n
}

// Records returns a copy of resource's table
func (m *Executor) Records(resource string) map[string]models.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.Record, len(m.resources[resource]))
	for k, v := range m.resources[resource] {
		out[k] = v.Clone()
	}
	return out
}

// Reset forgets recorded calls
func (m *Executor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var controlVars = map[string]bool{"limit": true, "nextToken": true, "sortDirection": true}

func matches(r models.Record, vars map[string]any) bool {
	for name, want := range vars {
		if controlVars[name] {
			continue
		}
		got, ok := r[name]
		if !ok {
			return false
		}
		switch clause := want.(type) {
		case map[string]any:
			for op, operand := range clause {
				if !compare(op, fmt.Sprint(got), operand) {
					return false
				}
			}
		default:
			if fmt.Sprint(got) != fmt.Sprint(want) {
				return false
			}
		}
	}
	return true
}

func compare(op, got string, operand any) bool {
	if _, composite := operand.(map[string]any); composite {
		return true
	}
	want := fmt.Sprint(operand)
	switch op {
	case "eq":
		return got == want
	case "le":
		return got <= want
	case "lt":
		return got < want
	case "ge":
		return got >= want
	case "gt":
		return got > want
	case "beginsWith":
		return strings.HasPrefix(got, want)
	}
	return false
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

func targetID(vars map[string]any) string {
	if id, ok := vars["id"]; ok && id != nil {
		return fmt.Sprint(id)
	}
	if id := inputRecord(vars).ID(); id != "" {
		return string(id)
	}
	return ""
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}

func cloneVars(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
