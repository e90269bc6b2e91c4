package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tieubaoca/kb-pipeline/config"
	"github.com/tieubaoca/kb-pipeline/types"
)

// OCRBackend converts article HTML to Markdown by replacing image tags with
// visible [[IMG:...]] markers, rendering the page to PDF, and sending the
// PDF to the document-AI OCR service. Marker occurrences in the OCR output
// identify image positions by filename, so the same image appearing twice
// maps twice — positional correlation against per-image OCR metadata was
// tried and dropped because it fails silently on duplicates.
type OCRBackend struct {
	ocrURL     string
	apiKey     string
	deployment string
	renderer   pdfRenderer
	client     *http.Client
}

// pdfRenderer is the HTML→PDF step of the OCR backend, satisfied by
// PDFRenderer.
type pdfRenderer interface {
	Render(ctx context.Context, htmlPath, pdfPath string) error
}

func NewOCRBackend(cfg config.ExtractionConfig) *OCRBackend {
	return &OCRBackend{
		ocrURL:     ocrEndpoint(cfg.AIServicesEndpoint),
		apiKey:     cfg.AIServicesAPIKey,
		deployment: cfg.OCRDeployment,
		renderer:   NewPDFRenderer(cfg.ChromiumPath),
		client:     &http.Client{Timeout: cfg.Timeout()},
	}
}

func (b *OCRBackend) Name() string { return "ocr" }

func (b *OCRBackend) Extract(ctx context.Context, article *types.SourceArticle) (*ExtractionResult, error) {
	htmlDoc, err := os.ReadFile(article.HTMLPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read HTML file: %w", err)
	}

	marked, err := InjectMarkers(htmlDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to inject image markers: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "ocr-convert-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmpDir)

	// The marked-up copy lives next to nothing — image srcs are gone, only
	// marker paragraphs remain, so the render needs no assets.
	markedHTML := filepath.Join(tmpDir, "article.html")
	if err := os.WriteFile(markedHTML, marked, 0644); err != nil {
		return nil, err
	}
	pdfPath := filepath.Join(tmpDir, "article.pdf")
	if err := b.renderer.Render(ctx, markedHTML, pdfPath); err != nil {
		return nil, err
	}

	pages, err := b.ocrPDF(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, &ServiceError{
			Op:  "ocr extraction",
			Err: fmt.Errorf("OCR returned no pages for %s", article.ID),
		}
	}

	markdown, positions := ScanMarkers(pages)
	if positions == nil {
		positions = []types.ImagePositionEntry{}
	}
	log.Printf("OCR: %d pages, %d image markers for %s", len(pages), len(positions), article.ID)

	return &ExtractionResult{Markdown: markdown, Positions: positions}, nil
}

type ocrPage struct {
	Markdown string `json:"markdown"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

// ocrPDF submits the rendered PDF to the OCR endpoint and returns per-page
// Markdown.
func (b *OCRBackend) ocrPDF(ctx context.Context, pdfPath string) ([]string, error) {
	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, err
	}
	pdfB64 := base64.StdEncoding.EncodeToString(pdfBytes)

	body := map[string]interface{}{
		"model": b.deployment,
		"document": map[string]string{
			"type":         "document_url",
			"document_url": "data:application/pdf;base64," + pdfB64,
		},
		"include_image_base64": false,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.ocrURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	log.Printf("Calling OCR: %s (model=%s, pdf=%d bytes)", b.ocrURL, b.deployment, len(pdfBytes))
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &ServiceError{Op: "ocr extraction", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Op: "ocr extraction", Retryable: true, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{
			Op:        "ocr extraction",
			Retryable: retryableStatus(resp.StatusCode),
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 500)),
		}
	}

	var parsed ocrResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}

	pages := make([]string, 0, len(parsed.Pages))
	for _, p := range parsed.Pages {
		pages = append(pages, p.Markdown)
	}
	return pages, nil
}

// ocrEndpoint resolves the OCR provider route from the configured endpoint.
// Cognitive-services hosts are rewritten to the foundry services host the
// route lives on; any other endpoint is used as-is.
func ocrEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if u, err := url.Parse(endpoint); err == nil && strings.HasSuffix(u.Host, ".cognitiveservices.azure.com") {
		name := strings.Split(u.Host, ".")[0]
		endpoint = fmt.Sprintf("https://%s.services.ai.azure.com", name)
	}
	return endpoint + "/providers/mistral/azure/ocr"
}
