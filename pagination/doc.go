/*
Package pagination tracks opaque continuation cursors for page-numbered
navigation over a cursor-paginated backend.

The backend only knows "give me the page after cursor c". A UI asks for page
N. The Store bridges the two: every successful fetch of page N of a query
records the cursor that page N+1 will need.

	id := pagination.NewIdentity("postsByBlog", map[string]any{"blogID": "b1"}, 10)

	cursor, ok := store.Cursor(id, page)
	if !ok {
	    // previous page never fetched: out of range, render empty
	}
	items, next := fetch(cursor)
	store.SaveCursor(next, id, page)

Identities are serialized canonically, so argument maps that are
structurally equal share pagination state. One Store is safe for concurrent
use; all access goes through a single mutex.
*/
package pagination
