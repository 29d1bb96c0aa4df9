/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Verb is the operation prefix of a conventional operation name.
type Verb string

const (
	VerbList   Verb = "list"
	VerbGet    Verb = "get"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// QueryName derives the operation name for verb on a plural resource name:
// list uses the plural ("posts" -> "listPosts"), every other verb the
// singular obtained by dropping the last character ("posts" -> "getPost").
func QueryName(verb Verb, resource string) string {
	if verb == VerbList {
		return string(verb) + capitalize(resource)
	}
	return string(verb) + capitalize(dropLast(resource, 1))
}

// ReferenceQueryName derives the list query that selects resource records
// referencing another record through target, which is expected to end in
// "Id" or "ID": ("comments", "postID") -> "listCommentsByPostId".
func ReferenceQueryName(resource, target string) string {
	return QueryName(VerbList, resource) + "By" + capitalize(dropLast(target, 2)) + "Id"
}

// SplitTarget splits a "query.field" reference target.
func SplitTarget(target string) (query, field string, ok bool) {
	parts := strings.Split(target, ".")
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func dropLast(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		if len(runes) == 0 {
			return ""
		}
		// short names keep their first character
		return string(runes[:1])
	}
	return string(runes[:len(runes)-n])
}
