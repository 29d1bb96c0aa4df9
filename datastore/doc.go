/*
Package datastore defines the seam between resource operations and the
backend that answers them.

An Executor receives a registered operation and its variables and returns
the response data keyed by the operation's response key:

	type Executor interface {
	    Execute(ctx context.Context, op *registry.Operation, vars map[string]any) (Data, error)
	}

Implementations:
  - graphql: posts the operation document to a GraphQL endpoint
  - ddb: answers the operation directly from DynamoDB tables and indexes
  - mock: in-memory executor for tests

List operations answer a connection object ({items, nextToken}); reads and
mutations answer a single record.
*/
package datastore
