/*
Package dataprovider adapts a GraphQL-style backend with cursor pagination
and single-index filtering to the list/get/create/update/delete contract of
admin UIs such as react-admin.

A list request names at most one index query in its filter:

	filter := filter.Filter{
	    "postsByBlog": {{Name: "blogID", Value: "b1"}, {Name: "createdAt", Value: map[string]any{"gt": "2024"}}},
	}

The provider resolves the filter to a query and a partition key (plus an
optional sort key clause), looks up the continuation cursor recorded for the
requested page and calls the backend. Pages can only be reached in order:
asking for a page whose predecessor was never fetched answers an empty list,
and the UI returns to page 1.

Basic Usage:

	ops, _ := registry.FromDocuments(queries, mutations)
	provider := dataprovider.New(ops, graphql.New(endpoint, graphql.WithAPIKey(key)),
	    dataprovider.WithLogger(logger),
	)

	router := dataprovider.NewRouter(provider)
	router.RegisterAdmin(dataprovider.NewAdminHandler(adminqueries.New(caller)))

	page, err := router.GetList(ctx, "posts", &models.ListParams{
	    Pagination: models.Pagination{Page: 1, PerPage: 25},
	    Filter:     filter,
	})

Backends: graphql (HTTP GraphQL endpoint), datastore/ddb (DynamoDB tables and
indexes) and datastore/mock (in memory).
*/
package dataprovider
