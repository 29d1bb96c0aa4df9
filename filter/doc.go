/*
Package filter decides which single index query a list filter maps to.

A filter names exactly one query and gives it an argument bag:

	{"postsByBlog": {"blogID": "b1", "createdAt": {"ge": "2024-01-01"}}}

The bag must hold a partition key (a non-empty string or a number) and may
hold one sort key clause, an {operator: operand} object whose operator is
one of eq, le, lt, ge, gt or beginsWith. The operand is a scalar or a flat
object of scalars for composite sort keys. Paging and sort controls
(sortDirection, limit, nextIndex, nextToken, token) are stripped first.

Resolution never fails on bad shapes; it degrades to fewer arguments or to
Unresolved, and callers fall back to the default listing. The one error is a
filter naming a query that is not registered.
*/
package filter
