// Package search finds notes related to a given note, combining vector
// similarity with keyword overlap on the title.
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-ports/notevault/internal/db"
	"github.com/go-ports/notevault/internal/embeddings"
	"github.com/go-ports/notevault/internal/models"
)

// Source values for Result.
const (
	SourceVector  = "vector"
	SourceKeyword = "keyword"
	SourceBoth    = "both"
)

// Default weights used by Similar when both signals are available.
const (
	keywordWeight = 0.3
	vectorWeight  = 0.7
)

// Store is the subset of the note store Similar reads from.
type Store interface {
	SearchNotes(ctx context.Context, query string, limit int) ([]models.Note, error)
	VectorSearch(ctx context.Context, queryEmbedding []float32, limit int) ([]db.VectorHit, error)
	GetNote(ctx context.Context, id string) (*models.Note, bool, error)
}

// Hit is an unranked candidate from one signal.
type Hit struct {
	ID    string
	Score float64
}

// Result is a single related note with a combined relevance score in [0, 1].
type Result struct {
	Note   models.Note
	Score  float64
	Source string
}

// Similar returns up to limit notes related to target, best first. The target
// itself is never included. Vector search is used when ep is non-nil and the
// store has vectors; keyword overlap on the title always contributes, so the
// call still works with no provider configured.
func Similar(ctx context.Context, database Store, ep embeddings.Provider, target *models.Note, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 5
	}

	kw, err := keywordHits(ctx, database, target)
	if err != nil {
		return nil, err
	}
	vec := vectorHits(ctx, database, ep, target, limit*2)

	merged := MergeHits(kw, vec, keywordWeight, vectorWeight, 0)
	out := make([]Result, 0, limit)
	for _, m := range merged {
		if len(out) == limit {
			break
		}
		if m.ID == target.ID {
			continue
		}
		n, ok, err := database.GetNote(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, Result{Note: *n, Score: m.Score, Source: m.Source})
	}
	return out, nil
}

// keywordHits scores every note by the share of the target's title terms it
// contains.
func keywordHits(ctx context.Context, database Store, target *models.Note) ([]Hit, error) {
	terms := titleTerms(target.Title)
	if len(terms) == 0 {
		return nil, nil
	}
	counts := make(map[string]int)
	for _, t := range terms {
		notes, err := database.SearchNotes(ctx, t, 0)
		if err != nil {
			return nil, err
		}
		for _, n := range notes {
			counts[n.ID]++
		}
	}
	hits := make([]Hit, 0, len(counts))
	for id, n := range counts {
		hits = append(hits, Hit{ID: id, Score: float64(n) / float64(len(terms))})
	}
	return hits, nil
}

// vectorHits embeds the target and asks sqlite-vec for neighbours. Failures
// are logged and yield no hits.
func vectorHits(ctx context.Context, database Store, ep embeddings.Provider, target *models.Note, k int) []Hit {
	if ep == nil {
		return nil
	}
	text := embeddings.NoteText(target)
	if text == "" {
		return nil
	}
	vec, err := ep.Embed(ctx, text)
	if err != nil {
		slog.Warn("similar: embedding failed, using keywords only", "provider", ep.Name(), "err", err)
		return nil
	}
	rows, err := database.VectorSearch(ctx, vec, k)
	if err != nil {
		slog.Warn("similar: vector search failed, using keywords only", "err", err)
		return nil
	}
	hits := make([]Hit, len(rows))
	for i, r := range rows {
		hits[i] = Hit{ID: r.ID, Score: 1 / (1 + r.Distance)}
	}
	return hits
}

// titleTerms returns the distinct lowercase words of title that are long
// enough to be meaningful.
func titleTerms(title string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, f := range strings.FieldsFunc(strings.ToLower(title), isSeparator) {
		if utf8.RuneCountInString(f) < 3 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', ',', '.', ':', ';', '!', '?', '(', ')', '[', ']', '"', '\'', '/', '-':
		return true
	}
	return false
}

// Merged is a hit after combining signals.
type Merged struct {
	ID     string
	Score  float64
	Source string
}

// MergeHits combines keyword and vector hits with weighted scoring. Each input
// is normalised to [0, 1] by its maximum first. Ties are broken by ID.
// limit <= 0 returns every hit.
func MergeHits(keyword, vector []Hit, kwWeight, vecWeight float64, limit int) []Merged {
	keyword = normalize(keyword)
	vector = normalize(vector)

	combined := make(map[string]*Merged, len(keyword)+len(vector))
	for _, h := range keyword {
		combined[h.ID] = &Merged{ID: h.ID, Score: kwWeight * h.Score, Source: SourceKeyword}
	}
	for _, h := range vector {
		if existing, ok := combined[h.ID]; ok {
			existing.Score += vecWeight * h.Score
			existing.Source = SourceBoth
			continue
		}
		combined[h.ID] = &Merged{ID: h.ID, Score: vecWeight * h.Score, Source: SourceVector}
	}

	results := make([]Merged, 0, len(combined))
	for _, m := range combined {
		results = append(results, *m)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}

// normalize returns a copy of hits with each score divided by the maximum.
func normalize(hits []Hit) []Hit {
	if len(hits) == 0 {
		return nil
	}
	var maxScore float64
	for _, h := range hits {
		if h.Score > maxScore {
			maxScore = h.Score
		}
	}
	if maxScore <= 0 {
		maxScore = 1.0
	}
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = Hit{ID: h.ID, Score: h.Score / maxScore}
	}
	return out
}
