package embeddings

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultOpenAIBase = "https://api.openai.com/v1"
	openAIBatchSize   = 64
)

// OpenAI calls the OpenAI embeddings API or a compatible one (OpenRouter).
type OpenAI struct {
	Label   string // provider name reported by Name
	Model   string
	APIKey  string // #nosec G117 -- APIKey is an intentional field name for the OpenAI authentication token
	BaseURL string
	client  *http.Client
}

// NewOpenAI returns an OpenAI-compatible provider. baseURL defaults to the
// OpenAI endpoint.
func NewOpenAI(label, model, apiKey, baseURL string) *OpenAI {
	if baseURL == "" {
		baseURL = defaultOpenAIBase
	}
	return &OpenAI{
		Label:   label,
		Model:   model,
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
	}
}

// Name implements Provider.
func (o *OpenAI) Name() string { return o.Label + "/" + o.Model }

// Embed embeds a single text string.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	results, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// EmbedBatch embeds texts in chunks of openAIBatchSize.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += openAIBatchSize {
		end := min(start+openAIBatchSize, len(texts))
		chunk, err := o.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, chunk...)
	}
	return results, nil
}

func (o *OpenAI) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]any{
		"model": o.Model,
		"input": texts,
	}
	headers := map[string]string{}
	if o.APIKey != "" {
		headers["Authorization"] = "Bearer " + o.APIKey
	}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := postJSON(ctx, o.client, o.BaseURL+"/embeddings", headers, reqBody, &resp); err != nil {
		return nil, fmt.Errorf("%s embed: %w", o.Label, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%s embed: expected %d results, got %d", o.Label, len(texts), len(resp.Data))
	}

	// Fill by index: responses may arrive out of order.
	results := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("%s embed: result index %d out of range [0, %d)", o.Label, d.Index, len(texts))
		}
		results[d.Index] = d.Embedding
	}
	for i, r := range results {
		if len(r) == 0 {
			return nil, fmt.Errorf("%s embed: missing embedding for input %d", o.Label, i)
		}
	}
	return results, nil
}
