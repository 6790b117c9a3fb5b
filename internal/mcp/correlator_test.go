package mcp

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestCorrelator_MonotonicIDs(t *testing.T) {
	c := newCorrelator(time.Second)

	prev := int64(0)
	for i := 0; i < 5; i++ {
		id, _ := c.track("test")
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestCorrelator_OutOfOrderResolution(t *testing.T) {
	c := newCorrelator(time.Second)

	id1, ch1 := c.track("first")
	id2, ch2 := c.track("second")

	// Resolve in reverse send order; each caller must still receive its
	// own payload.
	if !c.resolve(id2, json.RawMessage(`"two"`), nil) {
		t.Fatal("resolve id2 found no pending request")
	}
	if !c.resolve(id1, json.RawMessage(`"one"`), nil) {
		t.Fatal("resolve id1 found no pending request")
	}

	r1 := <-ch1
	if string(r1.payload) != `"one"` {
		t.Errorf("caller 1 got payload %s, want \"one\"", r1.payload)
	}
	r2 := <-ch2
	if string(r2.payload) != `"two"` {
		t.Errorf("caller 2 got payload %s, want \"two\"", r2.payload)
	}

	if c.pendingCount() != 0 {
		t.Errorf("pendingCount = %d after full resolution, want 0", c.pendingCount())
	}
}

func TestCorrelator_Timeout(t *testing.T) {
	c := newCorrelator(20 * time.Millisecond)

	id, ch := c.track("slow")

	select {
	case res := <-ch:
		if !errors.Is(res.err, ErrRequestTimeout) {
			t.Fatalf("got error %v, want ErrRequestTimeout", res.err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed-out request never completed")
	}

	// A late reply for a timed-out id must be discarded, not delivered.
	if c.resolve(id, json.RawMessage(`"late"`), nil) {
		t.Error("late reply was delivered to a timed-out request")
	}
}

func TestCorrelator_ResolveUnknownID(t *testing.T) {
	c := newCorrelator(time.Second)

	if c.resolve(999, json.RawMessage(`{}`), nil) {
		t.Error("resolve reported delivery for an unknown id")
	}
}

func TestCorrelator_FailAll(t *testing.T) {
	c := newCorrelator(time.Second)

	chans := make([]<-chan result, 0, 3)
	for i := 0; i < 3; i++ {
		_, ch := c.track("inflight")
		chans = append(chans, ch)
	}

	if failed := c.failAll(ErrStreamClosed); failed != 3 {
		t.Fatalf("failAll failed %d requests, want 3", failed)
	}

	for i, ch := range chans {
		select {
		case res := <-ch:
			if !errors.Is(res.err, ErrStreamClosed) {
				t.Errorf("caller %d got error %v, want ErrStreamClosed", i, res.err)
			}
		case <-time.After(time.Second):
			t.Fatalf("caller %d never received the disconnect failure", i)
		}
	}

	if c.pendingCount() != 0 {
		t.Errorf("pendingCount = %d after failAll, want 0", c.pendingCount())
	}
}

func TestCorrelator_TrackDuringDisconnect(t *testing.T) {
	c := newCorrelator(50 * time.Millisecond)

	// Disconnect failures race against callers still registering requests;
	// every tracked request must still complete exactly once.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			c.failAll(ErrStreamClosed)
		}
	}()

	channels := make([]<-chan result, 0, 200)
	for i := 0; i < 200; i++ {
		_, ch := c.track("tools/call")
		channels = append(channels, ch)
	}
	<-done

	// Sweep whatever the concurrent failAll calls did not catch.
	c.failAll(ErrStreamClosed)

	for i, ch := range channels {
		select {
		case res := <-ch:
			if res.err == nil {
				t.Errorf("request %d completed without error", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("request %d never completed", i)
		}
	}

	if got := c.pendingCount(); got != 0 {
		t.Errorf("pendingCount = %d, want 0", got)
	}
}
