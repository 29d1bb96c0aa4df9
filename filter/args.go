/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package filter

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Arg is one named query argument.
type Arg struct {
	Name  string
	Value any
}

// Args is an argument bag that keeps insertion order. Order matters when two
// scalars compete for the partition key role.
type Args []Arg

// Get returns the value stored under name.
func (a Args) Get(name string) (any, bool) {
	for _, arg := range a {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return nil, false
}

// Set returns a copy of the bag with name bound to value. An existing entry
// keeps its position.
func (a Args) Set(name string, value any) Args {
	out := a.Clone()
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Arg{Name: name, Value: value})
}

// Without returns a copy of the bag minus the given names.
func (a Args) Without(names ...string) Args {
	out := make(Args, 0, len(a))
	for _, arg := range a {
		if !contains(names, arg.Name) {
			out = append(out, arg)
		}
	}
	return out
}

// Clone returns a shallow copy.
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	out := make(Args, len(a))
	copy(out, a)
	return out
}

// Map flattens the bag into a map. The result is never nil.
func (a Args) Map() map[string]any {
	m := make(map[string]any, len(a))
	for _, arg := range a {
		m[arg.Name] = arg.Value
	}
	return m
}

// MarshalJSON encodes the bag as an object in insertion order.
func (a Args) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, arg := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(arg.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(arg.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal argument %q: %w", arg.Name, err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keeping key order. Numbers decode as
// json.Number. Anything but an object yields an empty bag.
func (a *Args) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		*a = nil
		return nil
	}

	var out Args
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in argument object", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode argument %q: %w", name, err)
		}
		out = out.Set(name, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*a = out
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
