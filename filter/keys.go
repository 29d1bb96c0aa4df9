/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package filter

import "reflect"

// SortOperators are the comparison operators a sort key clause may use.
var SortOperators = []string{"eq", "le", "lt", "ge", "gt", "beginsWith"}

// ReservedKeys never count as query arguments; they carry paging and sort
// controls and are stripped before validation.
var ReservedKeys = []string{"sortDirection", "limit", "nextIndex", "nextToken", "token"}

// IsPartitionKeyValid reports whether v can address an index partition:
// a non-empty string or any number.
func IsPartitionKeyValid(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		// json.Number lands here too
		return rv.Len() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// IsSortKeyClauseValid reports whether v is {operator: operand} with exactly
// one operator from SortOperators. The operand is either a valid scalar or a
// non-empty flat object of valid scalars (a composite sort key).
func IsSortKeyClauseValid(v any) bool {
	clause, ok := asObject(v)
	if !ok || len(clause) != 1 {
		return false
	}

	for op, operand := range clause {
		if !contains(SortOperators, op) {
			return false
		}
		if IsPartitionKeyValid(operand) {
			return true
		}
		fields, ok := asObject(operand)
		if !ok || len(fields) == 0 {
			return false
		}
		for _, field := range fields {
			if !IsPartitionKeyValid(field) {
				return false
			}
		}
	}
	return true
}

// asObject views v as a string-keyed object.
func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return obj, true
	case Args:
		return obj.Map(), true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
