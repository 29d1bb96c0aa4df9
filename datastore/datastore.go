/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/registry"
)

// Data is the payload of one executed operation, keyed by response key.
type Data map[string]json.RawMessage

// Executor runs a named operation with variables against a backend.
type Executor interface {
	Execute(ctx context.Context, op *registry.Operation, vars map[string]any) (Data, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, op *registry.Operation, vars map[string]any) (Data, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, op *registry.Operation, vars map[string]any) (Data, error) {
	return f(ctx, op, vars)
}

// Decode unmarshals the payload stored under op's response key into v. It
// reports false without error when the payload is absent or null.
func (d Data) Decode(op *registry.Operation, v any) (bool, error) {
	raw, ok := d[op.ResponseKey]
	if !ok || len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return false, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return false, &errors.ResponseError{Operation: op.Name, Messages: []string{err.Error()}}
	}
	return true, nil
}
