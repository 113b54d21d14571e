package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const defaultOllamaBase = "http://localhost:11434"

// Ollama calls a local Ollama server for embeddings.
type Ollama struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllama returns an Ollama provider. baseURL defaults to localhost:11434.
func NewOllama(model, baseURL string) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaBase
	}
	return &Ollama{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
	}
}

// Name implements Provider.
func (o *Ollama) Name() string { return "ollama/" + o.Model }

// Embed embeds a single text.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch calls POST /api/embed with every text in one request.
func (o *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"model": o.Model,
		"input": texts,
	}
	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/api/embed", nil, reqBody, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	for _, v := range resp.Embeddings {
		if len(v) == 0 {
			return nil, errors.New("ollama embed: empty embedding returned")
		}
	}
	return resp.Embeddings, nil
}
