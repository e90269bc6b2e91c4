package types

import "fmt"

// Chunk is one heading-delimited span of a canonical document, the unit of
// retrieval in the search index.
type Chunk struct {
	ArticleID     string
	ChunkIndex    int
	Content       string
	Title         string // denormalized article title (first H1)
	SectionHeader string // this chunk's own heading (empty for preamble)
	ParentHeaders []string
	ImageURLs     []string // "images/<stem>.png", source order, duplicates kept
}

// ID returns the deterministic chunk id "{articleId}_{chunkIndex}".
func (c Chunk) ID() string {
	return fmt.Sprintf("%s_%d", c.ArticleID, c.ChunkIndex)
}
