package service

import (
	"context"

	"github.com/tieubaoca/kb-pipeline/types"
)

// ExtractionResult is the output of a text-extraction backend.
//
// Positions is populated only by backends that recover image positions
// themselves (the OCR backend via markers). When nil, the pipeline falls
// back to the HTML-derived image map with snippet correlation.
type ExtractionResult struct {
	Markdown  string
	Summary   string
	Positions []types.ImagePositionEntry
}

// TextExtractionBackend converts a source article's HTML into Markdown.
// Two interchangeable implementations exist: DirectTextBackend (managed
// document-analysis service) and OCRBackend (render to PDF, then OCR).
type TextExtractionBackend interface {
	Name() string
	Extract(ctx context.Context, article *types.SourceArticle) (*ExtractionResult, error)
}

// CorrelationFor returns the position-correlation strategy matching the
// backend's extraction result.
func CorrelationFor(result *ExtractionResult, htmlPositions []types.ImagePositionEntry) (PositionCorrelationStrategy, []types.ImagePositionEntry) {
	if result.Positions != nil {
		return MarkerScanStrategy{}, result.Positions
	}
	return SnippetMatchStrategy{}, htmlPositions
}
