// Package transport implements the megaphone long-poll transport.
//
// A channel is read by issuing a streamed GET against
//
//	{base_url}/{channel_address}
//
// and consuming the chunked response body. The body carries newline
// separated JSON event records (see package wire); this package does not
// interpret them. It only opens the stream and hands out raw chunks, one
// chunk per Read of the underlying body.
//
// # Failures
//
// Every failure to open a stream or to read from it is reported wrapped in
// ErrTransport. A response with a non-2xx status is a failure as well; the
// body is drained and closed before returning. An address that cannot be
// joined with the base URL into an absolute http(s) URL yields
// ErrInvalidAddress, and no request is made.
//
// Poller is the seam between the reader loop and the network. HTTPPoller is
// the production implementation; tests use the generated mock in
// package mocks or a scripted httptest server.
package transport
