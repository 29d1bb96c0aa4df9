/*
Package server exposes a data provider over HTTP for an admin UI.

	GET    /api/:resource                 getList (page, perPage, sort, order, filter)
	GET    /api/:resource?target=&id=     getManyReference
	GET    /api/:resource/:id             getOne
	POST   /api/:resource/getMany         getMany {ids}
	POST   /api/:resource                 create <record>
	PUT    /api/:resource/:id             update {data, previousData}
	PUT    /api/:resource                 updateMany {ids, data}
	DELETE /api/:resource/:id             delete [{previousData}]
	DELETE /api/:resource?ids=a&ids=b     deleteMany

Errors are answered as {"error": message} with a status derived from the
error kind. Failed upstream calls answer 502 and carry the upstream status
in "upstreamStatus".
*/
package server
