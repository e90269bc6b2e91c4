package service

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tieubaoca/kb-pipeline/types"
	"github.com/tieubaoca/kb-pipeline/utils"
)

// MergeInput carries everything the merge stage combines into the canonical
// document: backend Markdown, the image position entries with the strategy
// that knows how to place them, recovered links, and per-image descriptions
// keyed by source filename.
type MergeInput struct {
	ArticleID    string
	Markdown     string
	Strategy     PositionCorrelationStrategy
	Positions    []types.ImagePositionEntry
	Links        []types.LinkEntry
	Descriptions map[string]types.ImageDescription
	SourceImages []string // all image filenames staged with the article
}

// MergeResult is the canonical document plus the images to copy into the
// serving layout and the recoverable issues encountered.
type MergeResult struct {
	Document   types.CanonicalDocument
	ImageFiles []string // source filenames referenced by the document
	Warnings   []string
}

// Merge combines extracted text, recovered hyperlinks and image description
// blocks into one canonical Markdown document.
//
// Link recovery runs first so image blocks never disturb link positions.
// Image insertion then places one block per position entry via the
// backend's correlation strategy; any staged image that never produced a
// position entry still gets a block at the document end — images are never
// silently dropped.
func Merge(in MergeInput) *MergeResult {
	result := &MergeResult{}

	markdown, linkWarnings := RecoverLinks(in.Markdown, in.Links)
	result.Warnings = append(result.Warnings, linkWarnings...)

	entries := withCoverage(in.Positions, in.SourceImages)

	blockFor := func(filename string) string {
		desc, ok := in.Descriptions[filename]
		if !ok {
			desc = PlaceholderDescription(filename)
		}
		return FormatImageBlock(filename, desc)
	}
	markdown, posWarnings := in.Strategy.Insert(markdown, entries, blockFor)
	result.Warnings = append(result.Warnings, posWarnings...)

	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.Filename] {
			seen[e.Filename] = true
			result.ImageFiles = append(result.ImageFiles, e.Filename)
		}
	}

	result.Document = types.CanonicalDocument{ArticleID: in.ArticleID, Markdown: markdown}
	return result
}

// withCoverage extends position entries so every staged source image is
// represented exactly once per occurrence; images the extractor missed get a
// positionless entry that the strategy fallback-appends.
func withCoverage(entries []types.ImagePositionEntry, sourceImages []string) []types.ImagePositionEntry {
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		present[e.Filename] = true
	}
	out := make([]types.ImagePositionEntry, len(entries))
	copy(out, entries)
	for _, filename := range sourceImages {
		if !present[filename] {
			out = append(out, types.ImagePositionEntry{Filename: filename, Ordinal: len(out)})
		}
	}
	return out
}

// RecoverLinks re-injects hyperlinks stripped by text extraction. For each
// link entry the first occurrence of its exact text not already inside a
// Markdown link is rewritten as [text](url); repeated phrases only get
// their first occurrence linked. Unmatched entries are dropped with a
// warning.
func RecoverLinks(markdown string, links []types.LinkEntry) (string, []string) {
	var warnings []string
	for _, link := range links {
		if link.Text == "" || link.URL == "" {
			continue
		}
		rewritten, ok := recoverLink(markdown, link)
		if !ok {
			log.Printf("Link text not found in markdown: %s", truncate(link.Text, 40))
			warnings = append(warnings, "unmatched link: "+truncate(link.Text, 40))
			continue
		}
		markdown = rewritten
	}
	return markdown, warnings
}

func recoverLink(markdown string, link types.LinkEntry) (string, bool) {
	// Word-boundary anchors only where the text starts/ends with a word
	// character, so "Foundry Tool" never matches inside "Foundry Tools".
	prefix, suffix := "", ""
	if isWordChar(rune(link.Text[0])) {
		prefix = `\b`
	}
	if isWordChar(rune(link.Text[len(link.Text)-1])) {
		suffix = `\b`
	}
	pattern, err := regexp.Compile(prefix + regexp.QuoteMeta(link.Text) + suffix)
	if err != nil {
		return "", false
	}

	for _, loc := range pattern.FindAllStringIndex(markdown, -1) {
		if insideMarkdownLink(markdown, loc[0], loc[1]) {
			continue
		}
		replacement := fmt.Sprintf("[%s](%s)", link.Text, link.URL)
		return markdown[:loc[0]] + replacement + markdown[loc[1]:], true
	}
	return "", false
}

// insideMarkdownLink reports whether the occurrence at [start,end) already
// sits inside a [...](...) construct.
func insideMarkdownLink(s string, start, end int) bool {
	if start > 0 && s[start-1] == '[' {
		return true
	}
	if end+1 < len(s) && s[end] == ']' && s[end+1] == '(' {
		return true
	}
	return false
}

func isWordChar(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// FormatImageBlock renders the canonical image block:
//
//	> **[Image: <stem>](images/<stem>.png)**
//	> <description>
//
// UI elements and navigation path lines are included only when present.
func FormatImageBlock(filename string, desc types.ImageDescription) string {
	stem := utils.Stem(filename)
	lines := []string{fmt.Sprintf("> **[Image: %s](images/%s.png)**", stem, stem)}

	if desc.Description != "" {
		for _, line := range strings.Split(desc.Description, "\n") {
			lines = append(lines, "> "+line)
		}
	}
	if len(desc.UIElements) > 0 {
		lines = append(lines, "> **UI Elements**: "+strings.Join(desc.UIElements, ", "))
	}
	if desc.NavigationPath != "" {
		lines = append(lines, "> **Navigation Path**: "+desc.NavigationPath)
	}
	return strings.Join(lines, "\n")
}

// WriteArticle writes the canonical document and copies its images into the
// serving layout: <outputDir>/article.md plus images/<stem>.png.
func WriteArticle(result *MergeResult, stagingDir, outputDir string) error {
	if err := os.MkdirAll(filepath.Join(outputDir, "images"), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, filename := range result.ImageFiles {
		source, ok := utils.FindImageFile(stagingDir, filename)
		if !ok {
			log.Printf("Source image not found: %s", filename)
			result.Warnings = append(result.Warnings, "source image not found: "+filename)
			continue
		}
		dest := filepath.Join(outputDir, "images", utils.Stem(filename)+".png")
		if err := utils.CopyFile(source, dest); err != nil {
			return err
		}
	}

	articlePath := filepath.Join(outputDir, "article.md")
	if err := os.WriteFile(articlePath, []byte(result.Document.Markdown), 0644); err != nil {
		return fmt.Errorf("failed to write article: %w", err)
	}
	log.Printf("Article written: %s (%d chars)", articlePath, len(result.Document.Markdown))
	return nil
}
