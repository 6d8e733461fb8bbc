// Package client multiplexes megaphone channel streams onto local
// subscriptions.
//
// A Client keeps at most one long-poll reader per channel address. Callers
// join a channel by registering an Initializer, which decides the channel
// and the streams to subscribe to given the channel the client is
// currently bound to:
//
//	c, err := client.New(client.Config{BaseURL: "https://megaphone.example.com/read"})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	stream, err := client.Subscribe[Update](ctx, c, client.Static("agent.chan", "updates"))
//	if err != nil {
//		return err
//	}
//	for update, err := range stream.All(ctx) {
//		...
//	}
//
// Every registration gets its own endpoint. Events read by a reader are
// checked against a recency cache shared by all readers of the client and
// fanned out to every open subscription of the reader's channel and the
// event's stream. When the initializer reports a channel other than the
// bound one, a new reader is started and the old one terminates at its next
// decision point, taking its subscriptions with it. A reader also
// terminates once no open subscription for its channel remains.
//
// The recency cache is not partitioned by channel: two channels emitting
// the same event id suppress each other's copy.
package client
