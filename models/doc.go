/*
Package models holds the request and response contracts shared by every
resource handler: pagination, sort, filter, records, ids and the result
envelopes expected by admin UIs.

List reads answer {data, total}, single-record reads and writes answer
{data}, batch mutations answer {data: ids}. Batch results also carry the
ids that failed, outside the wire format.
*/
package models
