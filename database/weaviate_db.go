package database

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tieubaoca/kb-pipeline/config"
	"github.com/tieubaoca/kb-pipeline/types"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate/entities/models"
)

const BATCH_SIZE = 200

var (
	CHUNK_CLASS        = "KbChunk"
	CHUNK_CLASS_OBJECT = &models.Class{
		Class: CHUNK_CLASS,
		Properties: []*models.Property{
			{Name: "chunkId", DataType: []string{"text"}},
			{Name: "articleId", DataType: []string{"text"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "sectionHeader", DataType: []string{"text"}},
			{Name: "parentHeaders", DataType: []string{"text[]"}},
			{Name: "imageUrls", DataType: []string{"text[]"}},
			{Name: "keyTopics", DataType: []string{"text[]"}}, // reserved, not yet populated
		},
		// Vectors are computed by the pipeline, not by a weaviate module.
		Vectorizer:      "none",
		VectorIndexType: "hnsw",
	}

	// chunkIDNamespace makes object UUIDs a pure function of the chunk id,
	// so re-indexing an unchanged article overwrites instead of duplicating.
	chunkIDNamespace = uuid.MustParse("8f3a1c62-90d4-4f4e-bb1a-6d0f5f6c2a7e")
)

// ChunkStore is the search index: the only shared mutable resource in the
// pipeline. All writes are idempotent upserts keyed by chunk id.
type ChunkStore struct {
	client *weaviate.Client
}

func NewChunkStore(config config.WeaviateStoreConfig) (*ChunkStore, error) {
	var scheme string
	if strings.Contains(config.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(config.Host, scheme+"://")
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if config.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{
			Value: config.APIKey,
		}
		cfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     config.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %v", err)
	}

	schema, err := client.Schema().Getter().Do(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %v", err)
	}

	hasChunkClass := false
	for _, class := range schema.Classes {
		if class.Class == CHUNK_CLASS {
			hasChunkClass = true
			break
		}
	}
	if !hasChunkClass {
		err = client.Schema().ClassCreator().WithClass(CHUNK_CLASS_OBJECT).Do(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to create KbChunk class: %v", err)
		}
	}
	return &ChunkStore{
		client: client,
	}, nil
}

// ReInit drops and recreates the chunk class.
func (s *ChunkStore) ReInit() error {
	err := s.client.Schema().ClassDeleter().WithClassName(CHUNK_CLASS).Do(context.Background())
	if err != nil {
		return fmt.Errorf("failed to delete KbChunk class: %v", err)
	}

	err = s.client.Schema().ClassCreator().WithClass(CHUNK_CLASS_OBJECT).Do(context.Background())
	if err != nil {
		return fmt.Errorf("failed to create KbChunk class: %v", err)
	}
	return nil
}

// ChunkObjectID derives the deterministic object UUID for a chunk id.
func ChunkObjectID(chunkID string) string {
	return uuid.NewSHA1(chunkIDNamespace, []byte(chunkID)).String()
}

// UpsertChunks writes chunks with their vectors in batches. Object IDs are
// derived from chunk ids, so batch PUTs act as merge-or-upload: re-running
// the indexer for an unchanged article produces no duplicates. Shrinking the
// chunk count leaves orphans from the previous larger chunking; callers who
// care run DeleteArticleChunks first.
func (s *ChunkStore) UpsertChunks(ctx context.Context, chunks []types.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	total := len(chunks)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			chunk := chunks[j]
			properties := map[string]interface{}{
				"chunkId":       chunk.ID(),
				"articleId":     chunk.ArticleID,
				"chunkIndex":    chunk.ChunkIndex,
				"content":       chunk.Content,
				"title":         chunk.Title,
				"sectionHeader": chunk.SectionHeader,
				"parentHeaders": chunk.ParentHeaders,
				"imageUrls":     chunk.ImageURLs,
				"keyTopics":     []string{},
			}
			batcher = batcher.WithObjects(&models.Object{
				ID:         strfmt.UUID(ChunkObjectID(chunk.ID())),
				Class:      CHUNK_CLASS,
				Properties: properties,
				Vector:     vectors[j],
			})
		}

		resp, err := batcher.Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert batch %d-%d: %v", i, end, err)
		}
		for _, obj := range resp {
			if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
				return fmt.Errorf("failed to upsert chunk object %s: %s", obj.ID, obj.Result.Errors.Error[0].Message)
			}
		}

		log.Printf("Upserted batch %d-%d of %d chunks", i, end, total)
	}

	return nil
}

// DeleteArticleChunks removes every indexed chunk of one article. Running it
// before UpsertChunks gives delete-then-upsert semantics and clears orphans
// left by a shrinking chunk count.
func (s *ChunkStore) DeleteArticleChunks(ctx context.Context, articleID string) error {
	where := filters.Where().
		WithPath([]string{"articleId"}).
		WithOperator(filters.Equal).
		WithValueText(articleID)

	resp, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(CHUNK_CLASS).
		WithWhere(where).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for article %s: %v", articleID, err)
	}
	if resp.Results != nil {
		log.Printf("Deleted %d chunks for article %s", resp.Results.Successful, articleID)
	}
	return nil
}
