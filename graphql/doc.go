/*
Package graphql executes registered operations against a GraphQL HTTP
endpoint such as AWS AppSync.

	client := graphql.New(endpoint,
	    graphql.WithAPIKey(apiKey),
	    graphql.WithLogger(logger),
	)
	data, err := client.Execute(ctx, op, map[string]any{"id": "p1"})

Non-2xx answers fail with errors.TransportError carrying the status code, so
errors.IsAuthFailure can detect an expired session. A 2xx answer with
GraphQL errors, or with null data, fails with errors.ResponseError.
*/
package graphql
