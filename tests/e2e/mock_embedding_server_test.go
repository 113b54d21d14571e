// Shared mock HTTP server helpers for embedding provider tests.
// These helpers let e2e tests exercise the full create→embed→vector-index pipeline
// without calling real external APIs.

package e2e_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	internalmcp "github.com/go-ports/notevault/internal/mcp"
	"github.com/go-ports/notevault/internal/service"
)

// fixedEmbeddingVec is the deterministic vector returned by every mock embedding
// server. Four dimensions keeps tests fast; production models use 384–3072.
var fixedEmbeddingVec = []float32{0.1, 0.2, 0.3, 0.4}

// embeddingCase describes one provider variant for table-driven embedding tests.
type embeddingCase struct {
	provider string
	startSrv func(tb testing.TB) *httptest.Server
}

// embeddingCases is the table of provider variants shared across all CLI and
// MCP embedding tests.
var embeddingCases = []embeddingCase{
	{
		provider: "ollama",
		startSrv: func(tb testing.TB) *httptest.Server { return newOllamaMockServer(tb) },
	},
	{
		provider: "openai",
		startSrv: func(tb testing.TB) *httptest.Server { return newOpenAIMockServer(tb) },
	},
	{
		provider: "openrouter",
		startSrv: func(tb testing.TB) *httptest.Server { return newOpenAIMockServer(tb) },
	},
}

// embedRequest is the request body shape shared by Ollama /api/embed and the
// OpenAI-compatible /embeddings endpoint.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// newOllamaMockServer starts a test HTTP server that mimics the Ollama batch
// embedding API (POST /api/embed), returning fixedEmbeddingVec per input.
//
// Cleanup is registered on tb automatically.
func newOllamaMockServer(tb testing.TB) *httptest.Server {
	tb.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		vecs := make([][]float32, len(req.Input))
		for i := range req.Input {
			vecs[i] = fixedEmbeddingVec
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vecs})
	})

	srv := httptest.NewServer(mux)
	tb.Cleanup(srv.Close)
	return srv
}

// newOpenAIMockServer starts a test HTTP server that mimics the OpenAI embeddings
// API (POST /embeddings). It builds a correctly-indexed data entry for every input
// text in the request body, returning fixedEmbeddingVec for each.
// The same server covers openrouter, which uses the identical wire format.
//
// Cleanup is registered on tb automatically.
func newOpenAIMockServer(tb testing.TB) *httptest.Server {
	tb.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			http.Error(w, "missing api key", http.StatusUnauthorized)
			return
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		data := make([]map[string]any, len(req.Input))
		for i := range req.Input {
			data[i] = map[string]any{"index": i, "embedding": fixedEmbeddingVec}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
	}))
	tb.Cleanup(srv.Close)
	return srv
}

// writeEmbeddingCfg writes a config.yaml into home that configures the named
// embedding provider to use baseURL.
func writeEmbeddingCfg(tb testing.TB, home, provider, baseURL string) {
	tb.Helper()

	content := fmt.Sprintf(
		"embedding:\n  provider: %s\n  model: test-model\n  base_url: %s\n  api_key: test-key\n",
		provider, baseURL,
	)
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(content), 0o600); err != nil {
		tb.Fatalf("writeEmbeddingCfg: %v", err)
	}
}

// newMCPClientWithEmbedding creates an in-process MCP client backed by a fresh
// service whose embedding provider is configured to use baseURL. It mirrors
// newMCPClient but writes a provider config.yaml before opening the service.
// The service is returned so tests can flush pending embeddings.
func newMCPClientWithEmbedding(c *qt.C, provider, baseURL string) (*mcpclient.Client, *service.Service) {
	c.TB.Helper()

	home := c.TB.TempDir()
	writeEmbeddingCfg(c.TB, home, provider, baseURL)

	svc, err := service.New(home)
	c.Assert(err, qt.IsNil)
	c.TB.Cleanup(func() { _ = svc.Close() })

	cl, err := mcpclient.NewInProcessClient(internalmcp.NewServer(svc))
	c.Assert(err, qt.IsNil)
	c.TB.Cleanup(func() { _ = cl.Close() })

	c.Assert(cl.Start(context.Background()), qt.IsNil)

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "e2e-test", Version: "0.0.1"}
	_, err = cl.Initialize(context.Background(), initReq)
	c.Assert(err, qt.IsNil)

	return cl, svc
}
