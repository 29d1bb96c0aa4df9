/*
Package errors provides the error taxonomy of the data provider.

Every failure falls in one of these families, each with a sentinel that
errors.Is matches and a typed error carrying details:

	var (
	    ErrUnknownQuery    // configuration error, fatal, never retried
	    ErrTransport       // the backend call failed (network or HTTP status)
	    ErrBackend         // the backend answered with GraphQL errors or no data
	    ErrNotFound        // record absent
	    ErrAlreadyExists   // create on an existing key
	    ErrConditionFailed // conditional write rejected
	    ErrInvalidInput    // bad pagination, ids or payload
	    ErrUnsupported     // verb not served for that resource
	)

Usage:

	res, err := provider.GetList(ctx, "posts", params)
	if err != nil {
	    if errors.IsUnknownQuery(err) {
	        // filter names a query that was never registered
	    }
	    if errors.IsBadRequest(err) {
	        // admin endpoints answer 400 for missing users and groups
	    }
	    return err
	}

Partial failures of batch verbs are not errors; they are reported in the
batch result instead.
*/
package errors
