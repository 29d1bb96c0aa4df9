/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/filter"
	"github.com/suparena/dataprovider/models"
)

// marshalItem converts a record into an item. JSON numbers are stored as N.
func marshalItem(in map[string]any) (map[string]types.AttributeValue, error) {
	out, err := attributevalue.MarshalMap(toAttributeValues(in))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item: %w", err)
	}
	return out, nil
}

// marshalValue converts one scalar, e.g. a key or a sort key operand.
func marshalValue(v any) (types.AttributeValue, error) {
	av, err := attributevalue.Marshal(toAttributeValue(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return av, nil
}

// unmarshalItem converts an item into a record. N attributes come back as
// json.Number so large integers keep their precision.
func unmarshalItem(item map[string]types.AttributeValue) (models.Record, error) {
	var out map[string]any
	err := attributevalue.UnmarshalMapWithOptions(item, &out, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return models.Record(fromAttributeValue(out).(map[string]any)), nil
}

func toAttributeValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = toAttributeValue(v)
	}
	return out
}

func toAttributeValue(v any) any {
	switch tv := v.(type) {
	case json.Number:
		return attributevalue.Number(tv)
	case models.ID:
		return string(tv)
	case filter.Args:
		return toAttributeValues(tv.Map())
	case models.Record:
		return toAttributeValues(tv)
	case map[string]any:
		return toAttributeValues(tv)
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = toAttributeValue(e)
		}
		return out
	}
	return v
}

func fromAttributeValue(v any) any {
	switch tv := v.(type) {
	case attributevalue.Number:
		return json.Number(tv)
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, e := range tv {
			out[k] = fromAttributeValue(e)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, e := range tv {
			out[i] = fromAttributeValue(e)
		}
		return out
	}
	return v
}

// encodeToken renders a LastEvaluatedKey as an opaque cursor: base64url of
// the key's JSON form. An empty key means no further page.
func encodeToken(key map[string]types.AttributeValue) (*string, error) {
	if len(key) == 0 {
		return nil, nil
	}
	rec, err := unmarshalItem(key)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return &token, nil
}

// decodeToken reverses encodeToken. An empty token means the first page.
func decodeToken(token string) (map[string]types.AttributeValue, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, errors.NewValidationError("nextToken", "malformed token")
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var key map[string]any
	if err := dec.Decode(&key); err != nil || len(key) == 0 {
		return nil, errors.NewValidationError("nextToken", "malformed token")
	}
	return marshalItem(key)
}
