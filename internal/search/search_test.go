package search_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/notevault/internal/db"
	"github.com/go-ports/notevault/internal/models"
	"github.com/go-ports/notevault/internal/search"
)

// fakeProvider maps note text to fixed vectors.
type fakeProvider struct {
	vecs map[string][]float32
	err  error
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vecs[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeProvider) Name() string { return "fake/test" }

func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "notes.db"))
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func addNote(c *qt.C, d *db.DB, id, title, content string) *models.Note {
	c.Helper()
	now := time.Now().UTC()
	n := &models.Note{ID: id, Title: title, Content: content, CreatedAt: now, UpdatedAt: now}
	_, err := d.InsertNote(context.Background(), n)
	c.Assert(err, qt.IsNil)
	return n
}

func resultIDs(rs []search.Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Note.ID
	}
	return out
}

// ---------------------------------------------------------------------------
// MergeHits
// ---------------------------------------------------------------------------

func TestMergeHits(t *testing.T) {
	c := qt.New(t)

	c.Run("empty inputs return empty result", func(c *qt.C) {
		c.Assert(search.MergeHits(nil, nil, 0.3, 0.7, 10), qt.HasLen, 0)
	})

	c.Run("keyword-only hits are weighted", func(c *qt.C) {
		got := search.MergeHits([]search.Hit{{ID: "a", Score: 4}}, nil, 0.5, 0.5, 10)
		c.Assert(got, qt.DeepEquals, []search.Merged{{ID: "a", Score: 0.5, Source: search.SourceKeyword}})
	})

	c.Run("vector-only hits are weighted", func(c *qt.C) {
		got := search.MergeHits(nil, []search.Hit{{ID: "b", Score: 0.2}}, 0.3, 0.7, 10)
		c.Assert(got, qt.DeepEquals, []search.Merged{{ID: "b", Score: 0.7, Source: search.SourceVector}})
	})

	c.Run("overlapping IDs accumulate", func(c *qt.C) {
		got := search.MergeHits(
			[]search.Hit{{ID: "s", Score: 1}},
			[]search.Hit{{ID: "s", Score: 1}},
			0.3, 0.7, 10)
		c.Assert(got, qt.HasLen, 1)
		c.Assert(got[0].Score, qt.Equals, 1.0)
		c.Assert(got[0].Source, qt.Equals, search.SourceBoth)
	})

	c.Run("sorted by score then id, limit applied", func(c *qt.C) {
		kw := []search.Hit{{ID: "lo", Score: 1}, {ID: "hi", Score: 2}, {ID: "b", Score: 1}}
		got := search.MergeHits(kw, nil, 1, 0, 2)
		c.Assert(got, qt.HasLen, 2)
		c.Assert(got[0].ID, qt.Equals, "hi")
		c.Assert(got[1].ID, qt.Equals, "b")
	})
}

// ---------------------------------------------------------------------------
// Similar
// ---------------------------------------------------------------------------

func TestSimilar_KeywordOnly(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	target := addNote(c, d, "t", "Budget planning meeting", "")
	addNote(c, d, "both", "Meeting about budget", "")
	addNote(c, d, "one", "Lunch", "planning the menu")
	addNote(c, d, "none", "Unrelated", "nothing here")

	got, err := search.Similar(ctx, d, nil, target, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(resultIDs(got), qt.DeepEquals, []string{"both", "one"})
	c.Assert(got[0].Source, qt.Equals, search.SourceKeyword)
	c.Assert(got[0].Score > got[1].Score, qt.IsTrue)
}

func TestSimilar_Vector(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)
	c.Assert(d.EnsureVecTable(3), qt.IsNil)

	target := addNote(c, d, "t", "Cats", "")
	addNote(c, d, "near", "Kittens", "")
	addNote(c, d, "far", "Tax forms", "")
	c.Assert(d.InsertVector(ctx, "t", []float32{1, 0, 0}), qt.IsNil)
	c.Assert(d.InsertVector(ctx, "near", []float32{0.9, 0.1, 0}), qt.IsNil)
	c.Assert(d.InsertVector(ctx, "far", []float32{0, 1, 0}), qt.IsNil)

	ep := &fakeProvider{vecs: map[string][]float32{"Cats": {1, 0, 0}}}
	got, err := search.Similar(ctx, d, ep, target, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(resultIDs(got), qt.DeepEquals, []string{"near"})
	c.Assert(got[0].Source, qt.Equals, search.SourceVector)
}

func TestSimilar_EmbeddingFailureFallsBack(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	d := openTestDB(t)

	target := addNote(c, d, "t", "Garden plans", "")
	addNote(c, d, "g", "garden", "")

	got, err := search.Similar(ctx, d, &fakeProvider{err: errors.New("offline")}, target, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(resultIDs(got), qt.DeepEquals, []string{"g"})
}
