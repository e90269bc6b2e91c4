package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/tieubaoca/kb-pipeline/config"
	"github.com/tieubaoca/kb-pipeline/types"
)

// DirectTextBackend sends article HTML to the managed document-analysis
// service and returns the extracted Markdown plus an AI-generated summary.
//
// The service silently drops image tags, so this backend returns no image
// positions; correlation happens downstream against the HTML image map.
//
// Known failure mode: when the analyzer's model dependencies are not
// provisioned, the service answers 200 with zero contents. That is an error
// (ErrEmptyExtraction), never an empty document.
type DirectTextBackend struct {
	endpoint   string
	apiKey     string
	analyzerID string
	client     *http.Client
}

func NewDirectTextBackend(cfg config.ExtractionConfig) *DirectTextBackend {
	return &DirectTextBackend{
		endpoint:   strings.TrimRight(cfg.AIServicesEndpoint, "/"),
		apiKey:     cfg.AIServicesAPIKey,
		analyzerID: cfg.AnalyzerID,
		client:     &http.Client{Timeout: cfg.Timeout()},
	}
}

func (b *DirectTextBackend) Name() string { return "direct" }

type analyzeField struct {
	ValueString string `json:"valueString"`
}

type analyzeContent struct {
	Markdown string                  `json:"markdown"`
	Fields   map[string]analyzeField `json:"fields"`
}

type analyzeResponse struct {
	Contents []analyzeContent `json:"contents"`
}

func (b *DirectTextBackend) Extract(ctx context.Context, article *types.SourceArticle) (*ExtractionResult, error) {
	htmlDoc, err := os.ReadFile(article.HTMLPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read HTML file: %w", err)
	}

	url := fmt.Sprintf("%s/analyzers/%s:analyze", b.endpoint, b.analyzerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(htmlDoc))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/html")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	log.Printf("Sending %s to analyzer %s", article.ID, b.analyzerID)
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &ServiceError{Op: "direct text extraction", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Op: "direct text extraction", Retryable: true, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{
			Op:        "direct text extraction",
			Retryable: retryableStatus(resp.StatusCode),
			Err:       fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 500)),
		}
	}

	var parsed analyzeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode analyzer response: %w", err)
	}

	var parts []string
	summary := ""
	for _, content := range parsed.Contents {
		if content.Markdown != "" {
			parts = append(parts, content.Markdown)
		}
		if f, ok := content.Fields["Summary"]; ok && f.ValueString != "" {
			summary = f.ValueString
		}
	}
	markdown := strings.Join(parts, "\n\n")

	// Zero contents or zero-length markdown with a 200 status means a
	// required model dependency is missing on the remote service.
	if strings.TrimSpace(markdown) == "" {
		return nil, ErrEmptyExtraction
	}

	log.Printf("Extracted %d chars of Markdown, summary %d chars from %s",
		len(markdown), len(summary), article.ID)

	return &ExtractionResult{Markdown: markdown, Summary: summary}, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
