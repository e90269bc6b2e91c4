package service

import (
	"context"
	"fmt"
	"log"

	"github.com/sashabaranov/go-openai"
	"github.com/tieubaoca/kb-pipeline/config"
	"github.com/tieubaoca/kb-pipeline/types"
)

// EmbeddingService embeds chunk text through an OpenAI-compatible endpoint.
// Vectors must come back at the configured dimensionality; the search index
// rejects anything else, so a mismatch is caught here.
type EmbeddingService struct {
	client     *openai.Client
	model      string
	dimensions int
}

func NewEmbeddingService(cfg config.EmbeddingConfig) *EmbeddingService {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.AIEndpoint != "" {
		clientConfig.BaseURL = cfg.AIEndpoint
	}
	return &EmbeddingService{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

func (s *EmbeddingService) Dimensions() int { return s.dimensions }

// EmbedText embeds a single string.
func (s *EmbeddingService) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedChunks embeds all chunks in one batched request, returning vectors in
// chunk order.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, chunks []types.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := s.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	log.Printf("Embedded %d chunks (model=%s)", len(vectors), s.model)
	return vectors, nil
}

func (s *EmbeddingService) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(s.model),
	})
	if err != nil {
		return nil, &ServiceError{Op: "embedding", Retryable: true, Err: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) != s.dimensions {
			return nil, fmt.Errorf("embedding dimension %d, expected %d", len(d.Embedding), s.dimensions)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
