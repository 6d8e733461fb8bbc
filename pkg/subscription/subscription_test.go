package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/megaphone-protocol/megaphone-go/pkg/wire"
)

func testEvent(id, stream string) wire.Event {
	return wire.Event{EventID: id, StreamID: stream, Body: json.RawMessage(`{"id":"` + id + `"}`)}
}

func TestEndpointSendReceive(t *testing.T) {
	ep := NewEndpoint()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if !ep.Send(testEvent(id, "s")) {
			t.Fatalf("Send(%s) = false, want true", id)
		}
	}
	if ep.Len() != 3 {
		t.Errorf("Len() = %d, want 3", ep.Len())
	}

	for _, want := range []string{"1", "2", "3"} {
		got, err := ep.Receive(ctx)
		if err != nil {
			t.Fatalf("Receive() error = %v", err)
		}
		if got.EventID != want {
			t.Errorf("Receive() = %s, want %s", got.EventID, want)
		}
	}
}

func TestEndpointReceiveBlocksUntilSend(t *testing.T) {
	ep := NewEndpoint()

	done := make(chan wire.Event, 1)
	go func() {
		ev, err := ep.Receive(context.Background())
		if err == nil {
			done <- ev
		}
	}()

	select {
	case <-done:
		t.Fatal("Receive returned before any Send")
	case <-time.After(20 * time.Millisecond):
	}

	ep.Send(testEvent("late", "s"))

	select {
	case ev := <-done:
		if ev.EventID != "late" {
			t.Errorf("got %s, want late", ev.EventID)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not wake up after Send")
	}
}

func TestEndpointReceiveContextCancel(t *testing.T) {
	ep := NewEndpoint()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ep.Receive(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Receive() error = %v, want DeadlineExceeded", err)
	}
}

func TestEndpointClose(t *testing.T) {
	ep := NewEndpoint()
	ep.Send(testEvent("1", "s"))

	ep.Close()
	ep.Close() // idempotent

	if !ep.Closed() {
		t.Error("Closed() = false after Close")
	}
	if ep.Send(testEvent("2", "s")) {
		t.Error("Send() = true on closed endpoint")
	}
	if _, err := ep.Receive(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Receive() error = %v, want ErrClosed", err)
	}
}

func TestEndpointFinishDrainsQueue(t *testing.T) {
	ep := NewEndpoint()
	ep.Send(testEvent("1", "s"))
	ep.Release()

	if !ep.Finished() {
		t.Fatal("Finished() = false after last Release")
	}
	if ep.Send(testEvent("2", "s")) {
		t.Error("Send() = true on finished endpoint")
	}

	ev, err := ep.Receive(context.Background())
	if err != nil || ev.EventID != "1" {
		t.Fatalf("Receive() = %v, %v; want queued event", ev.EventID, err)
	}
	if _, err := ep.Receive(context.Background()); !errors.Is(err, ErrEndOfStream) {
		t.Errorf("Receive() error = %v, want ErrEndOfStream", err)
	}
}

func TestEndpointReferenceCounting(t *testing.T) {
	ep := NewEndpoint()
	ep.Acquire()
	ep.Acquire()

	ep.Release()
	ep.Release()
	if ep.Finished() {
		t.Fatal("finished with one reference outstanding")
	}
	ep.Release()
	if !ep.Finished() {
		t.Fatal("not finished after releasing every reference")
	}
	if ep.Acquire() {
		t.Error("Acquire() = true on finished endpoint")
	}
}

func TestEndpointFinishWakesReceiver(t *testing.T) {
	ep := NewEndpoint()

	errCh := make(chan error, 1)
	go func() {
		_, err := ep.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	ep.Release()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrEndOfStream) {
			t.Errorf("Receive() error = %v, want ErrEndOfStream", err)
		}
	case <-time.After(time.Second):
		t.Fatal("receiver not woken by Release")
	}
}

func TestRegistryFanOut(t *testing.T) {
	r := NewRegistry()
	a := NewEndpoint()
	b := NewEndpoint()
	other := NewEndpoint()

	r.Add(&Subscription{ChannelAddress: "ch1", StreamID: "s1", Endpoint: a})
	r.Add(&Subscription{ChannelAddress: "ch1", StreamID: "s1", Endpoint: b})
	r.Add(&Subscription{ChannelAddress: "ch1", StreamID: "s2", Endpoint: other})
	r.Add(&Subscription{ChannelAddress: "ch2", StreamID: "s1", Endpoint: other})

	n := r.FanOut("ch1", "s1", testEvent("e", "s1"))
	if n != 2 {
		t.Errorf("FanOut() = %d, want 2", n)
	}
	if a.Len() != 1 || b.Len() != 1 {
		t.Errorf("a.Len()=%d b.Len()=%d, want 1 each", a.Len(), b.Len())
	}
	if other.Len() != 0 {
		t.Errorf("other.Len() = %d, want 0", other.Len())
	}
}

func TestRegistryFanOutSkipsClosed(t *testing.T) {
	r := NewRegistry()
	open := NewEndpoint()
	closed := NewEndpoint()
	closed.Close()

	r.Add(&Subscription{ChannelAddress: "ch", StreamID: "s", Endpoint: open})
	r.Add(&Subscription{ChannelAddress: "ch", StreamID: "s", Endpoint: closed})

	if n := r.FanOut("ch", "s", testEvent("e", "s")); n != 1 {
		t.Errorf("FanOut() = %d, want 1", n)
	}
}

func TestRegistryFanOutCopiesBody(t *testing.T) {
	r := NewRegistry()
	a := NewEndpoint()
	b := NewEndpoint()
	r.Add(&Subscription{ChannelAddress: "ch", StreamID: "s", Endpoint: a})
	r.Add(&Subscription{ChannelAddress: "ch", StreamID: "s", Endpoint: b})

	r.FanOut("ch", "s", testEvent("e", "s"))

	ctx := context.Background()
	evA, _ := a.Receive(ctx)
	evB, _ := b.Receive(ctx)
	evA.Body[0] = 'X'
	if evB.Body[0] == 'X' {
		t.Error("subscriptions share the same body buffer")
	}
}

func TestRegistryHasOpen(t *testing.T) {
	r := NewRegistry()
	ep := NewEndpoint()
	r.Add(&Subscription{ChannelAddress: "ch", StreamID: "s", Endpoint: ep})

	if !r.HasOpen("ch") {
		t.Error("HasOpen(ch) = false with an open subscription")
	}
	if r.HasOpen("other") {
		t.Error("HasOpen(other) = true with no subscriptions")
	}

	ep.Close()
	if r.HasOpen("ch") {
		t.Error("HasOpen(ch) = true after the only consumer closed")
	}
}

func TestRegistryPruneReleasesEndpoints(t *testing.T) {
	r := NewRegistry()
	shared := NewEndpoint()
	keep := NewEndpoint()
	closedOther := NewEndpoint()

	r.Add(&Subscription{ChannelAddress: "ch1", StreamID: "s1", Endpoint: shared})
	r.Add(&Subscription{ChannelAddress: "ch1", StreamID: "s2", Endpoint: shared})
	r.Add(&Subscription{ChannelAddress: "ch2", StreamID: "s1", Endpoint: keep})
	r.Add(&Subscription{ChannelAddress: "ch2", StreamID: "s2", Endpoint: closedOther})
	shared.Release()
	keep.Release()
	closedOther.Release()
	closedOther.Close()

	removed := r.Prune(ClosedOrBoundTo("ch1"))
	if removed != 3 {
		t.Errorf("Prune() = %d, want 3", removed)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if !shared.Finished() {
		t.Error("shared endpoint not finished after all its subscriptions were pruned")
	}
	if keep.Finished() {
		t.Error("endpoint of a surviving subscription was finished")
	}

	counts := r.Channels()
	if counts["ch2"] != 1 || len(counts) != 1 {
		t.Errorf("Channels() = %v, want map[ch2:1]", counts)
	}
}

func TestRegistryConcurrentFanOut(t *testing.T) {
	r := NewRegistry()
	var mu sync.RWMutex
	ep := NewEndpoint()
	r.Add(&Subscription{ChannelAddress: "ch", StreamID: "s", Endpoint: ep})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				mu.RLock()
				r.FanOut("ch", "s", testEvent("e", "s"))
				mu.RUnlock()
			}
		}()
	}
	wg.Wait()

	if ep.Len() != 400 {
		t.Errorf("Len() = %d, want 400", ep.Len())
	}
}
