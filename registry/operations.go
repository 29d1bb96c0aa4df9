/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/suparena/dataprovider/errors"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Kind distinguishes read operations from writes.
type Kind string

const (
	Query    Kind = "query"
	Mutation Kind = "mutation"
)

// Operation is a registered backend operation. The core treats it as an
// opaque handle; executors read Document (GraphQL) or Name (direct
// backends).
type Operation struct {
	Name     string
	Kind     Kind
	Document string
	// ResponseKey is the key of the operation's payload in the response data:
	// the alias or name of the document's root field, or Name when there is
	// no document.
	ResponseKey string
	// Variables lists the variables the document declares.
	Variables []string
}

// Operations holds the queries and mutations known to a provider. It is
// filled once at construction and read-only afterwards, but registration is
// safe for concurrent use.
type Operations struct {
	mu        sync.RWMutex
	queries   map[string]*Operation
	mutations map[string]*Operation
}

// New returns an empty registry.
func New() *Operations {
	return &Operations{
		queries:   make(map[string]*Operation),
		mutations: make(map[string]*Operation),
	}
}

// FromDocuments registers every query and mutation document.
func FromDocuments(queries, mutations map[string]string) (*Operations, error) {
	ops := New()
	for _, name := range sortedKeys(queries) {
		if _, err := ops.Register(name, Query, queries[name]); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(mutations) {
		if _, err := ops.Register(name, Mutation, mutations[name]); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

// Register parses document and stores it under name. An empty document
// registers an opaque handle.
func (o *Operations) Register(name string, kind Kind, document string) (*Operation, error) {
	if name == "" {
		return nil, errors.NewValidationError("name", "operation name is required")
	}
	if kind != Query && kind != Mutation {
		return nil, errors.NewValidationError("kind", fmt.Sprintf("unsupported operation kind %q", kind))
	}

	op, err := parseOperation(name, kind, document)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.queries[name]; exists {
		return nil, fmt.Errorf("operation %q already registered", name)
	}
	if _, exists := o.mutations[name]; exists {
		return nil, fmt.Errorf("operation %q already registered", name)
	}
	if kind == Query {
		o.queries[name] = op
	} else {
		o.mutations[name] = op
	}
	return op, nil
}

// HasQuery reports whether name is a registered query. Mutations do not
// count: filters only ever name queries.
func (o *Operations) HasQuery(name string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.queries[name]
	return ok
}

// Lookup finds a query or, failing that, a mutation.
func (o *Operations) Lookup(name string) (*Operation, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if op, ok := o.queries[name]; ok {
		return op, nil
	}
	if op, ok := o.mutations[name]; ok {
		return op, nil
	}
	return nil, errors.NewUnknownQueryError(name)
}

// Queries lists the query names in lexical order.
func (o *Operations) Queries() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return sortedKeys(o.queries)
}

// Mutations lists the mutation names in lexical order.
func (o *Operations) Mutations() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return sortedKeys(o.mutations)
}

func parseOperation(name string, kind Kind, document string) (*Operation, error) {
	op := &Operation{Name: name, Kind: kind, Document: document, ResponseKey: name}
	if strings.TrimSpace(document) == "" {
		return op, nil
	}

	doc, err := parser.ParseQuery(&ast.Source{Name: name, Input: document})
	if err != nil {
		return nil, fmt.Errorf("parse operation %q: %w", name, err)
	}
	if len(doc.Operations) != 1 {
		return nil, fmt.Errorf("operation %q: expected one operation definition, found %d", name, len(doc.Operations))
	}

	def := doc.Operations[0]
	if string(def.Operation) != string(kind) {
		return nil, fmt.Errorf("operation %q: registered as %s but document is a %s", name, kind, def.Operation)
	}
	for _, v := range def.VariableDefinitions {
		op.Variables = append(op.Variables, v.Variable)
	}
	for _, sel := range def.SelectionSet {
		if field, ok := sel.(*ast.Field); ok {
			op.ResponseKey = field.Alias
			if op.ResponseKey == "" {
				op.ResponseKey = field.Name
			}
			break
		}
	}
	return op, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
