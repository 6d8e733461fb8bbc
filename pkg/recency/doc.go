// Package recency implements the bounded recency cache used to suppress
// duplicate event delivery.
//
// The cache remembers the most recently recorded event identifiers in
// insertion order. When a new identifier pushes the cache over its capacity,
// the oldest identifier is evicted. Recording an identifier that is already
// present does not refresh its position: the cache is a FIFO window, not an
// LRU.
//
// A Cache is not safe for concurrent use. The client guards it with the same
// lock that covers the fan-out of an event, so that "have I seen this id" and
// "remember this id" form a single atomic step across all readers.
//
// One cache serves every channel of a client. Two channels that reuse an
// event id will suppress each other's event while it is in the window.
package recency
