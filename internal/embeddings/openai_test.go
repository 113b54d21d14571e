package embeddings_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/notevault/internal/embeddings"
)

func TestOpenAIEmbed_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Run("single text returns embedding vector", func(c *qt.C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
		}))
		defer srv.Close()

		o := embeddings.NewOpenAI("openai", "text-embedding-3-small", "sk-test", srv.URL)
		got, err := o.Embed(context.Background(), "hello")
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.DeepEquals, []float32{0.1, 0.2, 0.3})
	})

	c.Run("headers are forwarded to the server", func(c *qt.C) {
		var auth, agent string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			agent = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1.0]}]}`))
		}))
		defer srv.Close()

		o := embeddings.NewOpenAI("openai", "model", "my-secret-key", srv.URL)
		_, err := o.Embed(context.Background(), "test")
		c.Assert(err, qt.IsNil)
		c.Assert(auth, qt.Equals, "Bearer my-secret-key")
		c.Assert(agent, qt.Matches, "notevault/.*")
	})

	c.Run("no key sends no authorization header", func(c *qt.C) {
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1.0]}]}`))
		}))
		defer srv.Close()

		_, err := embeddings.NewOpenAI("openai", "model", "", srv.URL).Embed(context.Background(), "x")
		c.Assert(err, qt.IsNil)
		c.Assert(auth, qt.Equals, "")
	})
}

func TestOpenAIEmbedBatch_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Run("results are ordered by index regardless of response order", func(c *qt.C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0.2]},{"index":0,"embedding":[0.1]}]}`))
		}))
		defer srv.Close()

		o := embeddings.NewOpenAI("openai", "m", "sk-test", srv.URL)
		got, err := o.EmbedBatch(context.Background(), []string{"first", "second"})
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.DeepEquals, [][]float32{{0.1}, {0.2}})
	})

	c.Run("large inputs are split into several requests", func(c *qt.C) {
		var requests atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			var req struct {
				Input []string `json:"input"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			type item struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}
			data := make([]item, len(req.Input))
			for i := range data {
				data[i] = item{Index: i, Embedding: []float32{float32(len(req.Input))}}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
		}))
		defer srv.Close()

		texts := make([]string, 100)
		got, err := embeddings.NewOpenAI("openai", "m", "", srv.URL).EmbedBatch(context.Background(), texts)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.HasLen, 100)
		c.Assert(requests.Load(), qt.Equals, int32(2))
		c.Assert(got[0], qt.DeepEquals, []float32{64})
		c.Assert(got[99], qt.DeepEquals, []float32{36})
	})
}

func TestOpenAIEmbedBatch_FailurePath(t *testing.T) {
	c := qt.New(t)

	c.Run("non-2xx response returns error", func(c *qt.C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		got, err := embeddings.NewOpenAI("openai", "m", "k", srv.URL).EmbedBatch(context.Background(), []string{"a", "b"})
		c.Assert(err, qt.ErrorMatches, "openai embed: .*HTTP 429.*")
		c.Assert(got, qt.IsNil)
	})

	c.Run("short data array returns error", func(c *qt.C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		}))
		defer srv.Close()

		got, err := embeddings.NewOpenAI("openrouter", "m", "k", srv.URL).EmbedBatch(context.Background(), []string{"a"})
		c.Assert(err, qt.ErrorMatches, "openrouter embed: expected 1 results, got 0")
		c.Assert(got, qt.IsNil)
	})

	c.Run("duplicate index leaves a gap", func(c *qt.C) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]},{"index":0,"embedding":[2]}]}`))
		}))
		defer srv.Close()

		_, err := embeddings.NewOpenAI("openai", "m", "k", srv.URL).EmbedBatch(context.Background(), []string{"a", "b"})
		c.Assert(err, qt.ErrorMatches, ".*missing embedding for input 1")
	})
}
