/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/filter"
)

// CompositeKeySeparator joins the parts of a composite sort key.
const CompositeKeySeparator = "#"

// sortKeyComparators maps sort clause operators onto key condition
// comparators. beginsWith is a function, not a comparator.
var sortKeyComparators = map[string]string{
	"eq": "=",
	"le": "<=",
	"lt": "<",
	"ge": ">=",
	"gt": ">",
}

// keyCondition is the KeyConditionExpression of an index query with its
// placeholders.
type keyCondition struct {
	Expression string
	Names      map[string]string
	Values     map[string]types.AttributeValue
}

// buildKeyCondition matches the partition key of idx against its variable
// and, when the sort key variable holds a clause, adds the sort key
// condition.
func buildKeyCondition(idx IndexConfig, vars map[string]any) (*keyCondition, error) {
	pk, ok := vars[idx.PartitionKey]
	if !ok || !filter.IsPartitionKeyValid(pk) {
		return nil, errors.NewValidationError(idx.PartitionKey, fmt.Sprintf("query %s requires a partition key", idx.Query))
	}
	pkValue, err := marshalValue(pk)
	if err != nil {
		return nil, err
	}

	kc := &keyCondition{
		Expression: "#pk = :pk",
		Names:      map[string]string{"#pk": idx.PartitionKey},
		Values:     map[string]types.AttributeValue{":pk": pkValue},
	}

	if idx.SortKey == "" {
		return kc, nil
	}
	clause, ok := vars[idx.SortKey]
	if !ok || clause == nil {
		return kc, nil
	}

	op, operand, err := splitClause(idx.SortKey, clause)
	if err != nil {
		return nil, err
	}
	if fields, composite := asFields(operand); composite {
		if operand, err = joinComposite(idx, fields); err != nil {
			return nil, err
		}
	}
	skValue, err := marshalValue(operand)
	if err != nil {
		return nil, err
	}

	kc.Names["#sk"] = idx.SortKey
	kc.Values[":sk"] = skValue
	if op == "beginsWith" {
		kc.Expression += " AND begins_with(#sk, :sk)"
		return kc, nil
	}
	kc.Expression += fmt.Sprintf(" AND #sk %s :sk", sortKeyComparators[op])
	return kc, nil
}

func splitClause(field string, clause any) (string, any, error) {
	fields, ok := asFields(clause)
	if !ok || len(fields) != 1 {
		return "", nil, errors.NewValidationError(field, "sort key clause must hold exactly one operator")
	}
	for op, operand := range fields {
		if _, known := sortKeyComparators[op]; !known && op != "beginsWith" {
			return "", nil, errors.NewValidationError(field, fmt.Sprintf("unknown sort key operator %q", op))
		}
		return op, operand, nil
	}
	return "", nil, nil
}

// joinComposite renders a composite operand in stored order. Parts after
// the first missing field are dropped, so a leading subset works as a
// prefix with beginsWith.
func joinComposite(idx IndexConfig, fields map[string]any) (string, error) {
	if len(idx.SortKeyFields) == 0 {
		return "", errors.NewValidationError(idx.SortKey, "sort key is not composite")
	}
	parts := make([]string, 0, len(idx.SortKeyFields))
	for _, name := range idx.SortKeyFields {
		v, ok := fields[name]
		if !ok || !filter.IsPartitionKeyValid(v) {
			break
		}
		parts = append(parts, fmt.Sprint(v))
	}
	if len(parts) == 0 {
		return "", errors.NewValidationError(idx.SortKey, fmt.Sprintf("composite key needs %s", idx.SortKeyFields[0]))
	}
	return strings.Join(parts, CompositeKeySeparator), nil
}

func asFields(v any) (map[string]any, bool) {
	switch tv := v.(type) {
	case map[string]any:
		return tv, true
	case filter.Args:
		return tv.Map(), true
	}
	return nil, false
}
