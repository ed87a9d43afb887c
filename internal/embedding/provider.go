// Package embedding produces the L2-normalized vectors used for semantic
// filtering and duplicate detection. Vectors are normalized at the source so
// that inner product and cosine similarity are interchangeable downstream.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sync"
	"unicode/utf8"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"sift/internal/config"
)

// maxInputBytes caps the text sent to the embedding model. Small sentence
// models only attend to a short prefix anyway, and the head of an article is
// enough for similarity scoring.
const maxInputBytes = 512

// Provider produces embedding vectors. The backend client is created lazily
// on the first call, so constructing a Provider never touches the network.
// An initialization failure is remembered and returned on every call.
type Provider struct {
	llmCfg config.LLMConfig
	model  string
	dim    int

	once     sync.Once
	embedder embeddings.Embedder
	initErr  error
}

// New creates a provider from configuration. No connection is made until the
// first Embed or EmbedBatch call.
func New(llmCfg config.LLMConfig, embCfg config.EmbeddingConfig) *Provider {
	return &Provider{
		llmCfg: llmCfg,
		model:  embCfg.Model,
		dim:    embCfg.Dimension,
	}
}

// Dimension returns the expected vector dimension.
func (p *Provider) Dimension() int {
	return p.dim
}

// Model returns the embedding model name.
func (p *Provider) Model() string {
	return p.model
}

func (p *Provider) init() {
	var client embeddings.EmbedderClient

	switch p.llmCfg.Provider {
	case "openai":
		llm, err := openai.New(
			openai.WithToken(p.llmCfg.APIKey),
			openai.WithEmbeddingModel(p.model),
		)
		if err != nil {
			p.initErr = fmt.Errorf("creating openai embedding client: %w", err)
			return
		}
		client = llm

	default:
		// Ollama serves embeddings for both the ollama and anthropic text
		// providers; anthropic has no embeddings endpoint.
		llm, err := ollama.New(
			ollama.WithModel(p.model),
			ollama.WithServerURL(p.llmCfg.BaseURL),
		)
		if err != nil {
			p.initErr = fmt.Errorf("creating ollama embedding client: %w", err)
			return
		}
		client = llm
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		p.initErr = fmt.Errorf("creating embedder: %w", err)
		return
	}
	p.embedder = embedder
}

// Embed returns the normalized embedding for a single text.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns normalized embeddings for the given texts, in order.
// Each input is truncated before the call; every output is checked against
// the configured dimension and normalized in place.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	p.once.Do(p.init)
	if p.initErr != nil {
		return nil, p.initErr
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = truncate(t)
	}

	vecs, err := p.embedder.EmbedDocuments(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), len(texts))
	}

	for _, v := range vecs {
		if len(v) != p.dim {
			return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(v), p.dim)
		}
		Normalize(v)
	}
	return vecs, nil
}

// truncate caps s at maxInputBytes without splitting a UTF-8 sequence.
func truncate(s string) string {
	if len(s) <= maxInputBytes {
		return s
	}
	cut := maxInputBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Normalize scales v to unit length in place. Zero vectors are left as-is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// Dot returns the inner product of a and b. For normalized vectors this is
// the cosine similarity. Mismatched lengths score zero.
func Dot(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
