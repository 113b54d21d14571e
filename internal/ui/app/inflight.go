package app

import (
	"context"
	"sync"
	"time"

	"github.com/go-ports/notevault/internal/models"
)

// quitTimeout bounds how long quitting waits for writes still in flight.
const quitTimeout = 5 * time.Second

// trackedStore counts mutations that have not returned yet so the app can
// let them finish before the service is closed under them.
type trackedStore struct {
	Store

	mu   sync.Mutex
	n    int
	idle chan struct{} // closed while n == 0
}

func newTrackedStore(s Store) *trackedStore {
	idle := make(chan struct{})
	close(idle)
	return &trackedStore{Store: s, idle: idle}
}

func (t *trackedStore) begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		t.idle = make(chan struct{})
	}
	t.n++
}

func (t *trackedStore) end() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n--
	if t.n == 0 {
		close(t.idle)
	}
}

// wait blocks until no mutation is in flight or timeout passes. It reports
// whether the store went idle.
func (t *trackedStore) wait(timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		t.mu.Lock()
		idle, n := t.idle, t.n
		t.mu.Unlock()
		if n == 0 {
			return true
		}
		select {
		case <-idle:
		case <-timer.C:
			return false
		}
	}
}

func (t *trackedStore) Create(ctx context.Context, f models.NoteFields) (*models.Note, error) {
	t.begin()
	defer t.end()
	return t.Store.Create(ctx, f)
}

func (t *trackedStore) Update(ctx context.Context, in models.UpdateInput) (*models.UpdateResult, error) {
	t.begin()
	defer t.end()
	return t.Store.Update(ctx, in)
}

func (t *trackedStore) Delete(ctx context.Context, id string) error {
	t.begin()
	defer t.end()
	return t.Store.Delete(ctx, id)
}
