package event

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	var got []Event
	done := make(chan struct{})

	bus.Subscribe(SongImported, func(e Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		close(done)
	})

	bus.Publish(Event{Type: SongImported, Data: map[string]any{"isrc": "GBUM71029604"}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("got %d events", len(got))
	}
	if got[0].Data["isrc"] != "GBUM71029604" {
		t.Errorf("data = %v", got[0].Data)
	}
	if got[0].Timestamp.IsZero() {
		t.Error("timestamp was not stamped")
	}
}

func TestSubscribersAreTypeScoped(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()
	defer bus.Stop()

	roundEvents := make(chan Event, 1)
	bus.Subscribe(RoundCreated, func(e Event) { roundEvents <- e })

	bus.Publish(Event{Type: ImportCompleted})
	bus.Publish(Event{Type: RoundCreated})

	select {
	case e := <-roundEvents:
		if e.Type != RoundCreated {
			t.Errorf("type = %q", e.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("round handler was not invoked")
	}

	select {
	case e := <-roundEvents:
		t.Errorf("unexpected extra event: %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPanickingHandlerDoesNotStopDispatch(t *testing.T) {
	bus := NewBus(testLogger(), 16)
	go bus.Start()
	defer bus.Stop()

	done := make(chan struct{})
	bus.Subscribe(RoundDeleted, func(Event) { panic("boom") })
	bus.Subscribe(RoundDeleted, func(Event) { close(done) })

	bus.Publish(Event{Type: RoundDeleted})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler was not invoked after panic in first")
	}
}
