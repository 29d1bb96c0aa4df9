/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package pagination

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	farm "github.com/dgryski/go-farm"
)

// Identity names one logical paginated query: the query, its sanitized
// arguments and the page size. The page number is not part of it.
type Identity struct {
	Query   string
	Args    map[string]any
	PerPage int
}

// NewIdentity builds an identity. A nil args map is the same as an empty one.
func NewIdentity(query string, args map[string]any, perPage int) Identity {
	return Identity{Query: query, Args: args, PerPage: perPage}
}

type canonicalIdentity struct {
	Query   string `json:"query"`
	Args    any    `json:"args"`
	PerPage int    `json:"perPage"`
}

// Key is the canonical serialization of the identity. Structurally equal
// argument bags produce the same key whatever their insertion order, because
// every object is re-encoded from a map and encoding/json sorts map keys.
func (id Identity) Key() (string, error) {
	args, err := canonicalize(id.Args)
	if err != nil {
		return "", fmt.Errorf("canonicalize arguments of %q: %w", id.Query, err)
	}
	b, err := json.Marshal(canonicalIdentity{Query: id.Query, Args: args, PerPage: id.PerPage})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Fingerprint is a short stable hash of Key, for logs and metrics.
func (id Identity) Fingerprint() string {
	key, err := id.Key()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%016x", farm.Fingerprint64([]byte(key)))
}

// canonicalize round-trips v through JSON so ordered types (filter.Args)
// collapse into plain maps. Numbers are decoded exactly and rewritten in one
// canonical decimal form, so 5, 5.0 and json.Number("5") share a key while
// integers beyond float64 precision stay distinct.
func canonicalize(v map[string]any) (any, error) {
	if len(v) == 0 {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return normalizeNumbers(out)
}

func normalizeNumbers(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			n, err := normalizeNumbers(item)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
	case []any:
		for i, item := range t {
			n, err := normalizeNumbers(item)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
	case json.Number:
		return canonicalNumber(t)
	}
	return v, nil
}

// canonicalNumber renders n as an exact plain decimal without exponent or
// trailing zeros.
func canonicalNumber(n json.Number) (json.Number, error) {
	r, ok := new(big.Rat).SetString(n.String())
	if !ok {
		return "", fmt.Errorf("invalid number %q", n)
	}
	if r.IsInt() {
		return json.Number(r.Num().String()), nil
	}
	s := r.FloatString(decimalPlaces(r.Denom()))
	s = strings.TrimRight(s, "0")
	return json.Number(strings.TrimSuffix(s, ".")), nil
}

// decimalPlaces is the number of fraction digits needed to print 1/d
// exactly. d comes from a decimal literal, so it only has factors 2 and 5.
func decimalPlaces(d *big.Int) int {
	twos := int(d.TrailingZeroBits())
	q := new(big.Int).Rsh(d, uint(twos))
	five, rem := big.NewInt(5), new(big.Int)
	fives := 0
	for q.Cmp(big.NewInt(1)) > 0 {
		next, r := new(big.Int).QuoRem(q, five, rem)
		if r.Sign() != 0 {
			break
		}
		q = next
		fives++
	}
	return max(twos, fives)
}
