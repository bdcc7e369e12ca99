package importer

import (
	"container/heap"
	"context"
	"testing"
	"time"

	"github.com/quizzicalbeats/quizzicalbeats/internal/aggregate"
	"github.com/quizzicalbeats/quizzicalbeats/internal/corpus"
	"github.com/quizzicalbeats/quizzicalbeats/internal/reconcile"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

func TestJobHeapOrdering(t *testing.T) {
	h := &jobHeap{}
	push := func(priority int, seq uint64, key string) {
		heap.Push(h, &Job{Priority: priority, seq: seq, Key: key})
	}
	push(5, 0, "low-first")
	push(1, 1, "urgent-a")
	push(1, 2, "urgent-b")
	push(3, 3, "mid")

	want := []string{"urgent-a", "urgent-b", "low-first"}
	got := []string{
		heap.Pop(h).(*Job).Key,
		heap.Pop(h).(*Job).Key,
	}
	_ = heap.Pop(h) // mid
	got = append(got, heap.Pop(h).(*Job).Key)

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pop %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWorkerDrainsByPriority(t *testing.T) {
	catalog := &fakeCatalog{
		name:   source.NameSpotify,
		byISRC: map[string]*source.PartialRecord{},
		playlist: map[string][]source.TrackRef{
			"first":  {{ISRC: "USAAA0000001"}},
			"second": {{ISRC: "USAAA0000002"}},
		},
	}
	catalog.byISRC["USAAA0000001"] = partial("A", "X", "1999")
	catalog.byISRC["USAAA0000002"] = partial("B", "Y", "2005")

	imp, store := setupImporter(t, catalog)
	worker := NewWorker(imp, testLogger())

	worker.Enqueue(JobPlaylist, source.NameSpotify, "second", 5)
	worker.Enqueue(JobPlaylist, source.NameSpotify, "first", 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	deadline := time.After(5 * time.Second)
	for {
		count, err := store.Count(context.Background())
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker did not finish, corpus holds %d songs", count)
		case <-time.After(20 * time.Millisecond):
		}
	}

	if pending := worker.Pending(); pending != 0 {
		t.Errorf("Pending = %d after drain", pending)
	}
}

func TestWorkerCancelQueuedJob(t *testing.T) {
	imp, _ := setupImporter(t, &fakeCatalog{name: source.NameSpotify})
	worker := NewWorker(imp, testLogger())

	id := worker.Enqueue(JobPlaylist, source.NameSpotify, "pl1", 1)
	if !worker.Cancel(id) {
		t.Fatal("Cancel returned false for a queued job")
	}
	if worker.Pending() != 0 {
		t.Errorf("Pending = %d after cancel", worker.Pending())
	}
	if worker.Cancel(id) {
		t.Error("Cancel returned true for an unknown job")
	}
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	registry := source.NewRegistry()
	agg := aggregate.New(registry, reconcile.New(reconcile.DefaultTable()), testLogger(), time.Second)
	store := corpus.NewStore(setupTestDB(t), testLogger())
	worker := NewWorker(New(registry, agg, store, nil, testLogger()), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}
