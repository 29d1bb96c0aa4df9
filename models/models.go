/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/filter"
)

// Sort orders understood by index queries.
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// ID identifies a record. Admin UIs send ids as strings or numbers; both
// decode into an ID.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Record is one item as returned by the backend.
type Record map[string]any

// ID returns the record's "id" field, or "" when absent.
func (r Record) ID() ID {
	v, ok := r["id"]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return ID(s)
	}
	return ID(fmt.Sprint(v))
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Without returns a shallow copy minus the given fields.
func (r Record) Without(fields ...string) Record {
	out := r.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

// Pagination selects a page by number; both fields are 1-based and positive.
type Pagination struct {
	Page    int `json:"page"`
	PerPage int `json:"perPage"`
}

// Validate rejects non-positive values.
func (p Pagination) Validate() error {
	if p.Page < 1 {
		return errors.NewValidationError("page", "must be a positive integer")
	}
	if p.PerPage < 1 {
		return errors.NewValidationError("perPage", "must be a positive integer")
	}
	return nil
}

// Sort asks for ordering by Field. It is honored only when Field names the
// resolved index query.
type Sort struct {
	Field string `json:"field"`
	Order string `json:"order"`
}

// ListParams drives getList.
type ListParams struct {
	Pagination Pagination    `json:"pagination"`
	Sort       Sort          `json:"sort"`
	Filter     filter.Filter `json:"filter"`
}

// ListResult is a page of records and the total-count estimate.
type ListResult struct {
	Data  []Record `json:"data"`
	Total int      `json:"total"`
}

// EmptyList is the out-of-range answer.
func EmptyList() *ListResult {
	return &ListResult{Data: []Record{}, Total: 0}
}

// GetOneParams drives getOne.
type GetOneParams struct {
	ID ID `json:"id"`
}

// GetManyParams drives getMany.
type GetManyParams struct {
	IDs []ID `json:"ids"`
}

// GetManyReferenceParams drives getManyReference. Target is either
// "query.field" or a field name from which the query is derived.
type GetManyReferenceParams struct {
	Target     string        `json:"target"`
	ID         ID            `json:"id"`
	Pagination Pagination    `json:"pagination"`
	Sort       Sort          `json:"sort"`
	Filter     filter.Filter `json:"filter"`
}

// RecordResult wraps a single record.
type RecordResult struct {
	Data Record `json:"data"`
}

// ManyResult holds the records fetched by getMany. Failed lists the ids that
// could not be fetched; it is not part of the wire contract.
type ManyResult struct {
	Data   []Record  `json:"data"`
	Failed []Failure `json:"-"`
}

// CreateParams drives create.
type CreateParams struct {
	Data Record `json:"data"`
}

// UpdateParams drives update.
type UpdateParams struct {
	ID           ID     `json:"id"`
	Data         Record `json:"data"`
	PreviousData Record `json:"previousData,omitempty"`
}

// UpdateManyParams drives updateMany.
type UpdateManyParams struct {
	IDs  []ID   `json:"ids"`
	Data Record `json:"data"`
}

// DeleteParams drives delete.
type DeleteParams struct {
	ID           ID     `json:"id"`
	PreviousData Record `json:"previousData,omitempty"`
}

// DeleteManyParams drives deleteMany.
type DeleteManyParams struct {
	IDs []ID `json:"ids"`
}

// Failure records why one id of a batch failed.
type Failure struct {
	ID  ID
	Err error
}

// BatchResult lists the ids a batch mutation confirmed. Ids in Failed were
// attempted and rejected; nothing is rolled back.
type BatchResult struct {
	Data   []ID      `json:"data"`
	Failed []Failure `json:"-"`
}

// OK reports whether every id succeeded.
func (b *BatchResult) OK() bool {
	return len(b.Failed) == 0
}

// FailedIDs lists the rejected ids in attempt order.
func (b *BatchResult) FailedIDs() []ID {
	ids := make([]ID, len(b.Failed))
	for i, f := range b.Failed {
		ids[i] = f.ID
	}
	return ids
}

// Connection is the list payload of a cursor-paginated query.
type Connection struct {
	Items     []Record `json:"items"`
	NextToken *string  `json:"nextToken"`
}

// Next returns the successor cursor, treating an empty token as none.
func (c *Connection) Next() *string {
	if c.NextToken == nil || *c.NextToken == "" {
		return nil
	}
	return c.NextToken
}
