/*
Package ddb executes resource operations directly against DynamoDB.

Each resource maps onto one table. The executor derives the conventional
operations of the resource and one Query per configured index:

	listPosts     Scan
	getPost       GetItem
	createPost    PutItem, attribute_not_exists(id)
	updatePost    UpdateItem, attribute_exists(id), ALL_NEW
	deletePost    DeleteItem, attribute_exists(id), ALL_OLD
	postsByBlog   Query on the index bound to "postsByBlog"

A table mapping is plain YAML:

	- resource: posts
	  table: blog-posts
	  indexes:
	    - query: postsByBlog
	      index: byBlog
	      partitionKey: blogID
	      sortKey: createdAt
	    - query: postsByStatus
	      index: byStatus
	      partitionKey: blogID
	      sortKey: statusCreatedAt
	      sortKeyFields: [status, createdAt]

Index queries take the partition key as a scalar variable and an optional
sort key clause such as {"beginsWith": "2024-"}. Composite operands, e.g.
{"eq": {"status": "draft", "createdAt": "2024-01-01"}}, are joined with "#"
in sortKeyFields order. Continuation tokens are the base64url JSON form of
LastEvaluatedKey.
*/
package ddb
