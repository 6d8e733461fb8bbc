// Package wire defines the event record format of the megaphone long-poll
// protocol.
//
// A channel read (GET {base_url}/{channel_address}) returns a chunked body.
// Each chunk carries zero or more newline-separated JSON event records:
//
//	{"eventId":"e-1","streamId":"orders","body":{"id":42}}
//	{"eventId":"e-2","streamId":"orders","body":{"id":43}}
//
// The parser works chunk by chunk and does not buffer across chunks, so a
// record must not span two network chunks. Empty fragments (blank lines,
// keep-alive newlines) are ignored. A fragment that fails to parse is
// reported to the caller and does not affect the rest of the chunk.
//
// # Field Names
//
// The service emits camelCase names (eventId, streamId). The snake_case
// aliases event_id and stream_id are accepted on input; output always uses
// camelCase.
package wire
