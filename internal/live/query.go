package live

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-ports/notevault/internal/models"
)

// FetchFunc runs a one-shot search for query.
type FetchFunc func(ctx context.Context, query string) ([]models.Note, error)

// Snapshot is one result set of a live query.
type Snapshot struct {
	Query string
	Notes []models.Note // nil when Err is set
	Err   error
	Seq   uint64 // strictly increasing per Query
}

// Query is a registered observer of a search. It emits a Snapshot right after
// creation, after every SetQuery and after every store change published on the
// hub. Only the newest undelivered snapshot is kept.
type Query struct {
	fetch FetchFunc
	out   chan Snapshot
	kick  chan struct{}
	done  chan struct{}

	mu   sync.Mutex
	text string

	unsubscribe func()
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

// NewQuery starts observing text. The query stops when ctx is cancelled or
// Close is called; in both cases Updates is closed.
func NewQuery(ctx context.Context, hub *Hub, fetch FetchFunc, text string) *Query {
	events, unsubscribe := hub.Subscribe()
	q := &Query{
		fetch:       fetch,
		out:         make(chan Snapshot, 1),
		kick:        make(chan struct{}, 1),
		done:        make(chan struct{}),
		text:        text,
		unsubscribe: unsubscribe,
	}
	q.kick <- struct{}{}

	q.wg.Add(1)
	go q.run(ctx, events)
	return q
}

// Updates returns the snapshot channel.
func (q *Query) Updates() <-chan Snapshot { return q.out }

// Text returns the current query text.
func (q *Query) Text() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.text
}

// SetQuery replaces the query text and schedules a refresh.
func (q *Query) SetQuery(text string) {
	q.mu.Lock()
	q.text = text
	q.mu.Unlock()
	select {
	case q.kick <- struct{}{}:
	default:
	}
}

// Close unsubscribes from the hub, waits for the worker to stop and closes
// Updates. Calling Close more than once is a no-op.
func (q *Query) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
		q.unsubscribe()
		q.wg.Wait()
		close(q.out)
	})
	return nil
}

func (q *Query) run(ctx context.Context, events <-chan Event) {
	defer q.wg.Done()

	var seq uint64
	for {
		select {
		case <-q.done:
			return
		case <-ctx.Done():
			go func() { _ = q.Close() }()
			return
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
		case <-q.kick:
		}

		text := q.Text()
		notes, err := q.fetch(ctx, text)
		if err != nil {
			slog.Debug("live query fetch failed", "query", text, "err", err)
			notes = nil
		}
		seq++
		q.emit(Snapshot{Query: text, Notes: notes, Err: err, Seq: seq})
	}
}

// emit replaces any undelivered snapshot with s.
func (q *Query) emit(s Snapshot) {
	for {
		select {
		case q.out <- s:
			return
		default:
		}
		select {
		case <-q.out:
		default:
		}
	}
}
