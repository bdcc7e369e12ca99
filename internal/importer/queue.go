package importer

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

// JobKind selects which import path a queued job runs.
type JobKind string

// Job kinds.
const (
	JobTrack    JobKind = "track"
	JobAlbum    JobKind = "album"
	JobPlaylist JobKind = "playlist"
)

// Job is one queued import. Lower Priority runs first; equal priorities
// run in enqueue order.
type Job struct {
	ID       string
	Kind     JobKind
	Service  source.Name
	Key      string
	Priority int

	seq    uint64
	cancel context.CancelFunc
}

// jobHeap orders by (priority, insertion sequence).
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].seq < h[j].seq
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

// Worker drains the import queue one job at a time. Canceling a job that
// is already running is best-effort: the in-flight adapter call finishes
// or times out before the cancellation takes hold.
type Worker struct {
	importer *Importer
	logger   *slog.Logger

	mu      sync.Mutex
	queue   jobHeap
	seq     uint64
	running *Job
	wake    chan struct{}
}

// NewWorker creates an import worker over the given importer.
func NewWorker(importer *Importer, logger *slog.Logger) *Worker {
	return &Worker{
		importer: importer,
		logger:   logger.With(slog.String("component", "import-worker")),
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue adds a job to the queue and returns its assigned ID.
func (w *Worker) Enqueue(kind JobKind, service source.Name, key string, priority int) string {
	w.mu.Lock()
	job := &Job{
		ID:       uuid.NewString(),
		Kind:     kind,
		Service:  service,
		Key:      key,
		Priority: priority,
		seq:      w.seq,
	}
	w.seq++
	heap.Push(&w.queue, job)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return job.ID
}

// Cancel removes a queued job, or signals cancellation to the running one.
// It reports whether the job was found.
func (w *Worker) Cancel(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running != nil && w.running.ID == id {
		w.running.cancel()
		return true
	}
	for i, job := range w.queue {
		if job.ID == id {
			heap.Remove(&w.queue, i)
			return true
		}
	}
	return false
}

// Pending returns the number of queued jobs, not counting a running one.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Run processes jobs until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	for {
		job := w.next()
		if job == nil {
			select {
			case <-ctx.Done():
				return
			case <-w.wake:
				continue
			}
		}

		jobCtx, cancel := context.WithCancel(ctx)
		w.mu.Lock()
		job.cancel = cancel
		w.running = job
		w.mu.Unlock()

		w.run(jobCtx, job)

		cancel()
		w.mu.Lock()
		w.running = nil
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
	}
}

func (w *Worker) next() *Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return nil
	}
	return heap.Pop(&w.queue).(*Job)
}

func (w *Worker) run(ctx context.Context, job *Job) {
	logger := w.logger.With(
		slog.String("job_id", job.ID),
		slog.String("kind", string(job.Kind)),
		slog.String("service", string(job.Service)),
		slog.String("key", job.Key))
	logger.Info("import job started")

	var err error
	switch job.Kind {
	case JobTrack:
		_, err = w.importer.ImportTrack(ctx, job.Service, job.Key)
	case JobAlbum:
		_, err = w.importer.ImportAlbum(ctx, job.Service, job.Key)
	case JobPlaylist:
		_, err = w.importer.ImportPlaylist(ctx, job.Service, job.Key)
	default:
		logger.Error("unknown job kind")
		return
	}

	if err != nil {
		logger.Error("import job failed", "error", err)
		return
	}
	logger.Info("import job finished")
}
