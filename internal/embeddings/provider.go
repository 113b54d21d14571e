// Package embeddings turns note text into vectors for the Similar feature.
package embeddings

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ports/notevault/internal/config"
	"github.com/go-ports/notevault/internal/models"
)

// Provider is the interface for embedding models.
type Provider interface {
	// Embed returns a float32 vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the provider and model, e.g. "ollama/nomic-embed-text".
	Name() string
}

// Default model per provider, used when embedding.model is blank.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
	openRouterBase     = "https://openrouter.ai/api/v1"
)

// NewProvider constructs a Provider from the embedding section of the config.
// Returns (nil, nil) when the provider is "" or "none".
func NewProvider(cfg config.EmbeddingConfig) (Provider, error) {
	model := cfg.Model
	switch cfg.Provider {
	case "ollama":
		if model == "" {
			model = defaultOllamaModel
		}
		return NewOllama(model, cfg.BaseURL), nil

	case "openai":
		if model == "" {
			model = defaultOpenAIModel
		}
		return NewOpenAI("openai", model, cfg.APIKey, cfg.BaseURL), nil

	case "openrouter":
		if model == "" {
			return nil, fmt.Errorf("embedding provider openrouter: model is required")
		}
		base := cfg.BaseURL
		if base == "" {
			base = openRouterBase
		}
		return NewOpenAI("openrouter", model, cfg.APIKey, base), nil

	case "", "none":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}

// NoteText is the text embedded for a note.
func NoteText(n *models.Note) string {
	return strings.TrimSpace(n.Title + "\n\n" + n.Content)
}
