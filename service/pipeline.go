package service

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/tieubaoca/kb-pipeline/config"
	"github.com/tieubaoca/kb-pipeline/database"
	"github.com/tieubaoca/kb-pipeline/types"
	"github.com/tieubaoca/kb-pipeline/utils"
	"golang.org/x/sync/errgroup"
)

// Pipeline wires the stages together: structure extraction and one text
// backend feed the merge stage, whose canonical document feeds chunking,
// embedding and indexing. One article is one unit of work; articles are
// independent and run in parallel across a batch.
type Pipeline struct {
	cfg      *config.Config
	backend  TextExtractionBackend
	describe *DescribeService
	embedder *EmbeddingService
	store    *database.ChunkStore
}

func NewPipeline(cfg *config.Config, backend TextExtractionBackend, describe *DescribeService, embedder *EmbeddingService, store *database.ChunkStore) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		backend:  backend,
		describe: describe,
		embedder: embedder,
		store:    store,
	}
}

// LoadArticle builds a SourceArticle from a staged folder.
func LoadArticle(articleDir string) (*types.SourceArticle, error) {
	htmlPath, err := utils.FindArticleHTML(articleDir)
	if err != nil {
		return nil, err
	}
	images, err := utils.ListImageFiles(articleDir)
	if err != nil {
		return nil, err
	}
	return &types.SourceArticle{
		ID:         filepath.Base(articleDir),
		Dir:        articleDir,
		HTMLPath:   htmlPath,
		ImageFiles: images,
	}, nil
}

// ConvertArticle runs extraction, description and merge for one article and
// writes the canonical document into outputDir.
func (p *Pipeline) ConvertArticle(ctx context.Context, article *types.SourceArticle, outputDir string) (*types.ArticleReport, error) {
	report := &types.ArticleReport{ArticleID: article.ID, Backend: p.backend.Name()}

	htmlDoc, err := os.ReadFile(article.HTMLPath)
	if err != nil {
		return report, fmt.Errorf("failed to read HTML file: %w", err)
	}
	htmlPositions, links, err := ExtractStructure(htmlDoc)
	if err != nil {
		return report, fmt.Errorf("structure extraction failed for %s: %w", article.ID, err)
	}

	var result *ExtractionResult
	err = utils.Retry(ctx, p.cfg.Retry.MaxAttempts, p.cfg.Retry.InitialDelay(), IsRetryable, func() error {
		var extractErr error
		result, extractErr = p.backend.Extract(ctx, article)
		return extractErr
	})
	if err != nil {
		return report, fmt.Errorf("text extraction failed for %s: %w", article.ID, err)
	}
	report.Summary = result.Summary

	strategy, positions := CorrelationFor(result, htmlPositions)
	log.Printf("Article %s: backend=%s correlation=%s positions=%d links=%d",
		article.ID, p.backend.Name(), strategy.Name(), len(positions), len(links))

	// Describe everything the merge could reference: positioned images plus
	// any staged image the extractor missed.
	var filenames []string
	for _, e := range positions {
		filenames = append(filenames, e.Filename)
	}
	filenames = append(filenames, article.ImageFiles...)

	// The cache lives in the output directory, which may not exist yet on a
	// first conversion.
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return report, fmt.Errorf("failed to create output directory: %w", err)
	}
	cachePath := filepath.Join(outputDir, descriptionCacheFile)
	cache := LoadDescriptionCache(cachePath)
	descriptions, describeWarnings, err := p.describe.DescribeAll(ctx, article.Dir, filenames, cache)
	if err != nil {
		return report, err
	}
	report.Warnings = append(report.Warnings, describeWarnings...)
	report.Images = len(descriptions)
	if err := SaveDescriptionCache(cachePath, descriptions); err != nil {
		log.Printf("Failed to write description cache for %s: %v", article.ID, err)
	}

	merged := Merge(MergeInput{
		ArticleID:    article.ID,
		Markdown:     result.Markdown,
		Strategy:     strategy,
		Positions:    positions,
		Links:        links,
		Descriptions: descriptions,
		SourceImages: article.ImageFiles,
	})
	report.Warnings = append(report.Warnings, merged.Warnings...)

	if err := WriteArticle(merged, article.Dir, outputDir); err != nil {
		return report, err
	}
	return report, nil
}

// IndexArticle chunks, embeds and upserts one converted article from its
// serving directory. With purge set, the article's existing chunks are
// deleted first (clears orphans left by a shrinking chunk count).
func (p *Pipeline) IndexArticle(ctx context.Context, articleID, servingDir string, purge bool) (int, error) {
	articlePath := filepath.Join(servingDir, "article.md")
	markdown, err := os.ReadFile(articlePath)
	if err != nil {
		return 0, fmt.Errorf("article.md not found in %s: %w", servingDir, err)
	}

	chunks := ChunkMarkdown(articleID, string(markdown))
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no chunks produced for article %s", articleID)
	}
	log.Printf("Chunked %s into %d sections", articleID, len(chunks))

	var vectors [][]float32
	err = utils.Retry(ctx, p.cfg.Retry.MaxAttempts, p.cfg.Retry.InitialDelay(), IsRetryable, func() error {
		var embedErr error
		vectors, embedErr = p.embedder.EmbedChunks(ctx, chunks)
		return embedErr
	})
	if err != nil {
		return 0, err
	}

	if purge {
		if err := p.store.DeleteArticleChunks(ctx, articleID); err != nil {
			return 0, err
		}
	}
	if err := p.store.UpsertChunks(ctx, chunks, vectors); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// ProcessArticle runs the full per-article unit of work:
// extract → describe → merge → chunk → embed → index.
func (p *Pipeline) ProcessArticle(ctx context.Context, articleDir, outputDir string, purge bool) *types.ArticleReport {
	article, err := LoadArticle(articleDir)
	if err != nil {
		return &types.ArticleReport{ArticleID: filepath.Base(articleDir), Err: err}
	}

	report, err := p.ConvertArticle(ctx, article, outputDir)
	if err != nil {
		report.Err = err
		return report
	}

	chunks, err := p.IndexArticle(ctx, article.ID, outputDir, purge)
	if err != nil {
		report.Err = err
		return report
	}
	report.Chunks = chunks
	return report
}

// ProcessBatch processes every article folder under stagingDir, bounded by
// the configured article worker count. A failed article is reported and the
// batch continues; cancellation stops scheduling remaining articles.
func (p *Pipeline) ProcessBatch(ctx context.Context, stagingDir, servingDir string, purge bool) (*types.BatchReport, error) {
	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging directory: %w", err)
	}

	batch := &types.BatchReport{}
	reports := make([]*types.ArticleReport, 0, len(entries))

	var eg errgroup.Group
	eg.SetLimit(p.cfg.Workers.Articles)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		articleDir := filepath.Join(stagingDir, entry.Name())
		outputDir := filepath.Join(servingDir, entry.Name())

		report := &types.ArticleReport{ArticleID: entry.Name()}
		reports = append(reports, report)
		eg.Go(func() error {
			*report = *p.ProcessArticle(ctx, articleDir, outputDir, purge)
			if report.Err != nil {
				log.Printf("Article %s failed: %v", report.ArticleID, report.Err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, r := range reports {
		batch.Reports = append(batch.Reports, *r)
	}
	return batch, nil
}
