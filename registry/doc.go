/*
Package registry keeps the named backend operations a provider may call and
the naming conventions that map resources to operation names.

Documents are parsed with gqlparser when registered, so a malformed query
fails at startup rather than on first use:

	ops, err := registry.FromDocuments(
	    map[string]string{"listPosts": listPostsDoc, "postsByBlog": postsByBlogDoc},
	    map[string]string{"createPost": createPostDoc},
	)

Conventional names derive from the plural resource name:

	registry.QueryName(registry.VerbList, "posts")        // listPosts
	registry.QueryName(registry.VerbGet, "posts")         // getPost
	registry.ReferenceQueryName("comments", "postID")     // listCommentsByPostId

Only queries participate in filter resolution; Lookup also finds mutations.
*/
package registry
