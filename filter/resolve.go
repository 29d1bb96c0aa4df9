/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package filter

import (
	"github.com/suparena/dataprovider/errors"
)

// Filter maps a query name to its argument bag. A filter is resolvable only
// when it holds exactly one query name.
type Filter map[string]Args

// Clone returns a copy whose bags can be changed without touching f.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for name, args := range f {
		out[name] = args.Clone()
	}
	return out
}

// Queries reports which query names are registered.
type Queries interface {
	HasQuery(name string) bool
}

// Kind tags the shape of a resolved argument bag.
type Kind int

const (
	// Unresolved means the filter cannot drive an index query.
	Unresolved Kind = iota
	// PartitionOnly carries a single partition key.
	PartitionOnly
	// PartitionAndSort carries a partition key and a sort key clause.
	PartitionAndSort
)

func (k Kind) String() string {
	switch k {
	case PartitionOnly:
		return "PartitionOnly"
	case PartitionAndSort:
		return "PartitionAndSort"
	default:
		return "Unresolved"
	}
}

// Decision is the sanitized argument bag together with the role of each key.
type Decision struct {
	Kind         Kind
	Args         Args
	PartitionKey string
	SortKey      string
}

// Resolved reports whether the decision can drive a query.
func (d Decision) Resolved() bool {
	return d.Kind != Unresolved
}

// Resolution is the query chosen for a filter plus its argument decision.
type Resolution struct {
	Query string
	Decision
}

// Resolved reports whether both the query name and its arguments resolved.
func (r Resolution) Resolved() bool {
	return r.Query != "" && r.Decision.Resolved()
}

// ResolveQueryName returns the single query named by f, or "" when f does not
// hold exactly one key. A name that is not registered is a configuration
// error.
func ResolveQueryName(queries Queries, f Filter) (string, error) {
	if len(f) != 1 {
		return "", nil
	}
	for name := range f {
		if !queries.HasQuery(name) {
			return "", errors.NewUnknownQueryError(name)
		}
		return name, nil
	}
	return "", nil
}

// ResolveArguments sanitizes the argument bag of a single-key filter.
//
// With one remaining argument it must be a partition key. With two, the first
// one (in order) that is a valid partition key takes that role and the other
// is kept only if it is a valid sort key clause. Everything else is
// Unresolved.
func ResolveArguments(f Filter) Decision {
	if len(f) != 1 {
		return Decision{}
	}
	var bag Args
	for _, args := range f {
		bag = args.Without(ReservedKeys...)
	}

	switch len(bag) {
	case 1:
		if IsPartitionKeyValid(bag[0].Value) {
			return partitionOnly(bag[0])
		}
	case 2:
		first, second := bag[0], bag[1]
		if IsPartitionKeyValid(first.Value) {
			if IsSortKeyClauseValid(second.Value) {
				return Decision{Kind: PartitionAndSort, Args: bag, PartitionKey: first.Name, SortKey: second.Name}
			}
			return partitionOnly(first)
		}
		if IsPartitionKeyValid(second.Value) {
			if IsSortKeyClauseValid(first.Value) {
				return Decision{Kind: PartitionAndSort, Args: bag, PartitionKey: second.Name, SortKey: first.Name}
			}
			return partitionOnly(second)
		}
	}
	return Decision{}
}

// Resolve runs both resolutions. Only the configuration error is returned;
// an unresolvable filter yields an unresolved Resolution.
func Resolve(queries Queries, f Filter) (Resolution, error) {
	name, err := ResolveQueryName(queries, f)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Query: name, Decision: ResolveArguments(f)}, nil
}

func partitionOnly(arg Arg) Decision {
	return Decision{Kind: PartitionOnly, Args: Args{arg}, PartitionKey: arg.Name}
}
