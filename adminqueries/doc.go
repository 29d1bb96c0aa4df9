/*
Package adminqueries serves the cognitoUsers and cognitoGroups resources from
an admin REST API in front of a user pool (listUsers, listUsersInGroup,
getUser, listGroups, listGroupsForUser).

Lists page with the same cursor store as resource lists; the cursor travels
as the "token" query parameter and comes back as NextToken. The API answers
400 for an unknown user or group, which targeted lookups turn into an empty
page.
*/
package adminqueries
