package service

import (
	"context"
	"sync"
	"time"
)

// defaultEmbedDelay is how long a note must stay unchanged before it is
// re-embedded. Editors save on every keystroke; embedding each save would
// flood the provider.
const defaultEmbedDelay = 2 * time.Second

// embedTimeout bounds a single background embedding.
const embedTimeout = time.Minute

// embedJob is one armed timer. done is closed once its callback has finished
// or when it is stopped before firing.
type embedJob struct {
	timer *time.Timer
	done  chan struct{}
}

// embedQueue debounces background embedding per note id.
type embedQueue struct {
	run   func(ctx context.Context, id string)
	delay time.Duration

	mu      sync.Mutex
	pending map[string]*embedJob
	running map[*embedJob]struct{}
	closed  bool
}

func newEmbedQueue(run func(ctx context.Context, id string), delay time.Duration) *embedQueue {
	return &embedQueue{
		run:     run,
		delay:   delay,
		pending: make(map[string]*embedJob),
		running: make(map[*embedJob]struct{}),
	}
}

// schedule (re)starts the quiet period for id.
func (q *embedQueue) schedule(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if j, ok := q.pending[id]; ok && j.timer.Stop() {
		close(j.done)
	}
	j := &embedJob{done: make(chan struct{})}
	// The callback takes q.mu, so it cannot observe j.timer before it is set.
	j.timer = time.AfterFunc(q.delay, func() {
		q.mu.Lock()
		if q.pending[id] == j {
			delete(q.pending, id)
		}
		q.running[j] = struct{}{}
		q.mu.Unlock()

		q.exec(id)

		q.mu.Lock()
		delete(q.running, j)
		q.mu.Unlock()
		close(j.done)
	})
	q.pending[id] = j
}

// cancel drops a pending embed for id.
func (q *embedQueue) cancel(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.pending[id]; ok {
		if j.timer.Stop() {
			close(j.done)
		}
		delete(q.pending, id)
	}
}

// drain empties the pending set. It returns the ids whose timers were stopped
// before firing and the jobs whose callbacks are already underway.
func (q *embedQueue) drain() (stopped []string, underway []*embedJob) {
	for id, j := range q.pending {
		if j.timer.Stop() {
			close(j.done)
			stopped = append(stopped, id)
		} else {
			underway = append(underway, j)
		}
		delete(q.pending, id)
	}
	for j := range q.running {
		underway = append(underway, j)
	}
	return stopped, underway
}

// flush runs every pending embed immediately and waits for the ones already
// running. Embeds scheduled while flush runs are left to their timers.
func (q *embedQueue) flush() {
	q.mu.Lock()
	ids, underway := q.drain()
	q.mu.Unlock()

	for _, id := range ids {
		q.exec(id)
	}
	for _, j := range underway {
		<-j.done
	}
}

// close discards pending embeds and waits for running ones.
func (q *embedQueue) close() {
	q.mu.Lock()
	q.closed = true
	_, underway := q.drain()
	q.mu.Unlock()

	for _, j := range underway {
		<-j.done
	}
}

func (q *embedQueue) exec(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), embedTimeout)
	defer cancel()
	q.run(ctx, id)
}
