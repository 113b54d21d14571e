// Package service implements the note Service that wires together
// configuration, the SQLite store, live queries, redaction, markdown export,
// embeddings and related-note search.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-ports/notevault/internal/config"
	"github.com/go-ports/notevault/internal/db"
	"github.com/go-ports/notevault/internal/embeddings"
	"github.com/go-ports/notevault/internal/live"
	"github.com/go-ports/notevault/internal/markdown"
	"github.com/go-ports/notevault/internal/models"
	"github.com/go-ports/notevault/internal/redaction"
	"github.com/go-ports/notevault/internal/search"
)

// defaultRetryDelay is the pause before the single retry of a failed update
// or delete.
const defaultRetryDelay = 50 * time.Millisecond

// noteStore is the persistence surface the Service depends on. *db.DB
// implements it.
type noteStore interface {
	InsertNote(ctx context.Context, n *models.Note) (int64, error)
	GetNote(ctx context.Context, id string) (*models.Note, bool, error)
	ResolveID(ctx context.Context, prefix string) (string, bool, error)
	UpdateNote(ctx context.Context, in models.UpdateInput, at time.Time) (applied, found bool, err error)
	DeleteNote(ctx context.Context, id string) (bool, error)
	SearchNotes(ctx context.Context, query string, limit int) ([]models.Note, error)
	VectorSearch(ctx context.Context, queryEmbedding []float32, limit int) ([]db.VectorHit, error)
	InsertVector(ctx context.Context, id string, embedding []float32) error
	CountNotes(ctx context.Context) (int, error)
	ListAll(ctx context.Context) ([]models.Note, error)
	HasVecTable() (bool, error)
	EnsureVecTable(dim int) error
	DropVecTable() error
	SetEmbeddingDim(dim int) error
	CreateVecTable(dim int) error
	Path() string
	Close() error
}

// Service orchestrates all note operations.
type Service struct {
	Home   string
	Config *config.NotesConfig

	store      noteStore
	hub        *live.Hub
	embeds     *embedQueue
	retryDelay time.Duration

	mu          sync.Mutex
	embProvider embeddings.Provider
	providerErr error
	providerSet bool
	redactor    *redaction.Redactor
	vectorsOK   *bool
}

// New initialises a Service rooted at home.
// If home is empty it is resolved via config.GetNotesHome.
func New(home string) (*Service, error) {
	if home == "" {
		home = config.GetNotesHome()
	}
	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, fmt.Errorf("service.New: create home: %w", err)
	}

	cfg, err := config.Load(config.FilePath(home))
	if err != nil {
		return nil, fmt.Errorf("service.New: load config: %w", err)
	}

	database, err := db.Open(config.DBPath(home))
	if err != nil {
		return nil, fmt.Errorf("service.New: open db: %w", err)
	}

	return newService(home, cfg, database), nil
}

func newService(home string, cfg *config.NotesConfig, store noteStore) *Service {
	s := &Service{
		Home:       home,
		Config:     cfg,
		store:      store,
		hub:        live.NewHub(),
		retryDelay: defaultRetryDelay,
	}
	s.embeds = newEmbedQueue(s.embedNow, defaultEmbedDelay)
	return s
}

// Close stops pending background work, closes live queries and releases the
// database.
func (s *Service) Close() error {
	s.embeds.close()
	s.hub.Close()
	return s.store.Close()
}

// Hub returns the change broadcaster live queries subscribe to.
func (s *Service) Hub() *live.Hub { return s.hub }

// DBPath returns the database file backing the service.
func (s *Service) DBPath() string { return s.store.Path() }

// ---------------------------------------------------------------------------
// Lazy helpers
// ---------------------------------------------------------------------------

// embeddingProvider returns the configured Provider, or nil when embeddings
// are disabled. The result is computed once.
func (s *Service) embeddingProvider() (embeddings.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.providerSet {
		s.embProvider, s.providerErr = embeddings.NewProvider(s.Config.Embedding)
		s.providerSet = true
	}
	return s.embProvider, s.providerErr
}

// Redactor returns the secret masker, lazily loaded from .notesignore.
func (s *Service) Redactor() *redaction.Redactor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redactor != nil {
		return s.redactor
	}
	r, err := redaction.Load(s.Home)
	if err != nil {
		slog.Warn("failed to load "+redaction.IgnoreFile, "err", err)
		r = redaction.New()
	}
	s.redactor = r
	return r
}

// vectorsAvailable checks whether the vec table exists, caching the result.
func (s *Service) vectorsAvailable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vectorsOK != nil {
		return *s.vectorsOK
	}
	ok, err := s.store.HasVecTable()
	if err != nil {
		ok = false
	}
	s.vectorsOK = &ok
	return ok
}

func (s *Service) setVectorsOK(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectorsOK = &ok
}

// retry runs op and, if it fails with anything but a not-found error, runs it
// once more after retryDelay.
func (s *Service) retry(ctx context.Context, name string, op func() error) error {
	err := op()
	if err == nil || errors.Is(err, models.ErrNotFound) {
		return err
	}
	slog.Warn(name+" failed, retrying once", "err", err)
	select {
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	case <-time.After(s.retryDelay):
	}
	return op()
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Search runs a one-shot search. limit <= 0 returns every match.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]models.Note, error) {
	notes, err := s.store.SearchNotes(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("Search: %w: %w", models.ErrQueryFailed, err)
	}
	return notes, nil
}

// Watch registers a live query for query. The caller owns the returned Query
// and must Close it (or cancel ctx) to unsubscribe.
func (s *Service) Watch(ctx context.Context, query string) *live.Query {
	return live.NewQuery(ctx, s.hub, func(ctx context.Context, q string) ([]models.Note, error) {
		return s.Search(ctx, q, 0)
	}, query)
}

// WatchDatabase publishes changes made to the database by other processes on
// the hub until the returned closer is closed.
func (s *Service) WatchDatabase() (io.Closer, error) {
	return live.NewWatcher(s.store.Path(), s.hub, live.DefaultDebounce)
}

// Get fetches a note by exact id.
func (s *Service) Get(ctx context.Context, id string) (*models.Note, error) {
	n, ok, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w: %w", models.ErrQueryFailed, err)
	}
	if !ok {
		return nil, fmt.Errorf("Get: %w: %q", models.ErrNotFound, id)
	}
	return n, nil
}

// Resolve expands an id prefix (as printed by the CLI) to a full note id.
func (s *Service) Resolve(ctx context.Context, prefix string) (string, error) {
	id, ok, err := s.store.ResolveID(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("Resolve: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("Resolve: %w: %q", models.ErrNotFound, prefix)
	}
	return id, nil
}

// Count returns the total number of notes.
func (s *Service) Count(ctx context.Context) (int, error) {
	n, err := s.store.CountNotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("Count: %w: %w", models.ErrQueryFailed, err)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// Create stores a new note built from f and returns it.
func (s *Service) Create(ctx context.Context, f models.NoteFields) (*models.Note, error) {
	if err := models.ValidateColor(f.Color); err != nil {
		return nil, fmt.Errorf("Create: %w: %w", models.ErrCreateFailed, err)
	}
	n := models.NewNote(f)
	if _, err := s.store.InsertNote(ctx, n); err != nil {
		return nil, fmt.Errorf("Create: %w: %w", models.ErrCreateFailed, err)
	}
	s.hub.Publish(live.Event{Type: live.EventCreate, ID: n.ID})
	if embeddings.NoteText(n) != "" {
		s.scheduleEmbed(n.ID)
	}
	return n, nil
}

// Update overwrites title, content and color of the note in.ID.
//
// A positive in.Revision makes the write conditional: it only lands when it
// is newer than the stored revision, otherwise the result has Applied false
// and carries the stored note. Failures are retried once.
func (s *Service) Update(ctx context.Context, in models.UpdateInput) (*models.UpdateResult, error) {
	if err := models.ValidateColor(in.Color); err != nil {
		return nil, fmt.Errorf("Update: %w: %w", models.ErrUpdateFailed, err)
	}
	in.Color = models.NormalizeColor(in.Color)

	at := time.Now().UTC()
	var applied bool
	err := s.retry(ctx, "update", func() error {
		ok, found, err := s.store.UpdateNote(ctx, in, at)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %q", models.ErrNotFound, in.ID)
		}
		applied = ok
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("Update: %w: %w", models.ErrUpdateFailed, err)
	}

	n, ok, err := s.store.GetNote(ctx, in.ID)
	if err != nil {
		return nil, fmt.Errorf("Update: %w: %w", models.ErrUpdateFailed, err)
	}
	if !ok {
		// Deleted between the write and the read-back.
		return nil, fmt.Errorf("Update: %w: %w: %q", models.ErrUpdateFailed, models.ErrNotFound, in.ID)
	}

	if applied {
		s.hub.Publish(live.Event{Type: live.EventUpdate, ID: in.ID})
		s.scheduleEmbed(in.ID)
	}
	return &models.UpdateResult{Note: n, Applied: applied, SavedAt: at}, nil
}

// Delete removes the note with the given id. Failures are retried once.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.retry(ctx, "delete", func() error {
		found, err := s.store.DeleteNote(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %q", models.ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("Delete: %w: %w", models.ErrDeleteFailed, err)
	}
	s.embeds.cancel(id)
	s.hub.Publish(live.Event{Type: live.EventDelete, ID: id})
	return nil
}

// ---------------------------------------------------------------------------
// Related notes, export, import
// ---------------------------------------------------------------------------

// Similar returns up to limit notes related to the note id.
func (s *Service) Similar(ctx context.Context, id string, limit int) ([]search.Result, error) {
	target, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	var ep embeddings.Provider
	if s.vectorsAvailable() {
		p, err := s.embeddingProvider()
		if err != nil {
			slog.Warn("similar: embedding provider unavailable", "err", err)
		}
		ep = p
	}
	results, err := search.Similar(ctx, s.store, ep, target, limit)
	if err != nil {
		return nil, fmt.Errorf("Similar: %w: %w", models.ErrQueryFailed, err)
	}
	return results, nil
}

// Export writes every note as markdown into dir. When redact is set, titles
// and content pass through the Redactor first.
func (s *Service) Export(ctx context.Context, dir string, redact bool) ([]string, error) {
	notes, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("Export: %w: %w", models.ErrQueryFailed, err)
	}
	if redact {
		r := s.Redactor()
		for i := range notes {
			notes[i] = r.Note(notes[i])
		}
	}
	paths, err := markdown.Export(dir, notes)
	if err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}
	return paths, nil
}

// ImportResult summarises an Import call.
type ImportResult struct {
	Created int
	Updated int
}

// Import reads markdown files. A file whose front-matter id names an existing
// note updates it; every other file creates a new note.
func (s *Service) Import(ctx context.Context, paths []string) (*ImportResult, error) {
	res := &ImportResult{}
	for _, p := range paths {
		parsed, err := markdown.ParseFile(p)
		if err != nil {
			return res, fmt.Errorf("Import %s: %w", p, err)
		}
		if parsed.ID != "" {
			if _, ok, err := s.store.GetNote(ctx, parsed.ID); err == nil && ok {
				_, err := s.Update(ctx, models.UpdateInput{
					ID:      parsed.ID,
					Title:   parsed.Fields.Title,
					Content: parsed.Fields.Content,
					Color:   parsed.Fields.Color,
				})
				if err != nil {
					return res, fmt.Errorf("Import %s: %w", p, err)
				}
				res.Updated++
				continue
			}
		}
		if _, err := s.Create(ctx, parsed.Fields); err != nil {
			return res, fmt.Errorf("Import %s: %w", p, err)
		}
		res.Created++
	}
	return res, nil
}

// ---------------------------------------------------------------------------
// Embeddings
// ---------------------------------------------------------------------------

// ensureVectors sets up the vec table for the given embedding dimension.
// Returns false when there is a dimension mismatch.
func (s *Service) ensureVectors(embedding []float32) bool {
	if err := s.store.EnsureVecTable(len(embedding)); err != nil {
		if errors.Is(err, db.ErrDimensionMismatch) {
			s.setVectorsOK(false)
		}
		slog.Warn("ensureVectors", "err", err)
		return false
	}
	s.setVectorsOK(true)
	return true
}

// scheduleEmbed queues a background re-embed of id when a provider is
// configured.
func (s *Service) scheduleEmbed(id string) {
	if s.Config.Embedding.Enabled() {
		s.embeds.schedule(id)
	}
}

// embedNow generates and stores the embedding for note id. All errors are
// logged and do not reach the caller.
func (s *Service) embedNow(ctx context.Context, id string) {
	ep, err := s.embeddingProvider()
	if err != nil || ep == nil {
		return
	}
	n, ok, err := s.store.GetNote(ctx, id)
	if err != nil || !ok {
		return
	}
	text := embeddings.NoteText(n)
	if text == "" {
		return
	}
	vec, err := ep.Embed(ctx, text)
	if err != nil {
		slog.Warn("embed note failed", "id", id, "provider", ep.Name(), "err", err)
		return
	}
	if !s.ensureVectors(vec) {
		return
	}
	if err := s.store.InsertVector(ctx, id, vec); err != nil {
		slog.Warn("embed note: insert vector", "id", id, "err", err)
	}
}

// FlushEmbeddings runs every pending background embedding now.
func (s *Service) FlushEmbeddings() { s.embeds.flush() }

// Reindex rebuilds the vector table using the current embedding provider.
// progress is called with (current, total) after each note is embedded; may be nil.
func (s *Service) Reindex(ctx context.Context, progress func(current, total int)) (*models.ReindexResult, error) {
	ep, err := s.embeddingProvider()
	if err != nil {
		return nil, fmt.Errorf("Reindex: embedding provider: %w", err)
	}
	if ep == nil {
		return nil, errors.New("Reindex: no embedding provider configured")
	}

	probe, err := ep.Embed(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("Reindex: probe embed: %w", err)
	}
	dim := len(probe)

	if err := s.store.DropVecTable(); err != nil {
		return nil, fmt.Errorf("Reindex: drop vec table: %w", err)
	}
	if err := s.store.SetEmbeddingDim(dim); err != nil {
		return nil, fmt.Errorf("Reindex: set embedding dim: %w", err)
	}
	if err := s.store.CreateVecTable(dim); err != nil {
		return nil, fmt.Errorf("Reindex: create vec table: %w", err)
	}

	notes, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("Reindex: list notes: %w", err)
	}
	total := len(notes)

	for i := range notes {
		n := &notes[i]
		if text := embeddings.NoteText(n); text != "" {
			vec, err := ep.Embed(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("Reindex: embed note %s: %w", models.ShortID(n.ID), err)
			}
			if err := s.store.InsertVector(ctx, n.ID, vec); err != nil {
				return nil, fmt.Errorf("Reindex: insert vector: %w", err)
			}
		}
		if progress != nil {
			progress(i+1, total)
		}
	}

	s.setVectorsOK(true)
	return &models.ReindexResult{
		Count: total,
		Dim:   dim,
		Model: ep.Name(),
	}, nil
}
