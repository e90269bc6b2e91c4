package service

import (
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/tieubaoca/kb-pipeline/types"
)

// PositionCorrelationStrategy maps extracted images back to their locations
// in backend-generated Markdown. Correlation is best-effort string matching,
// so the ambiguity policy lives here, in one testable place: first match
// wins, unmatched entries are appended at document end and reported, never
// silently dropped.
type PositionCorrelationStrategy interface {
	Name() string
	// Insert places one image block per entry into markdown. blockFor maps a
	// source filename to its formatted block. Returns the updated markdown
	// and a warning per entry that needed the fallback position.
	Insert(markdown string, entries []types.ImagePositionEntry, blockFor func(filename string) string) (string, []string)
}

// SnippetMatchStrategy locates each image by the text snippet that preceded
// it in the source HTML, assuming the extraction service reproduces that
// text near-verbatim. Used with the direct backend, which has no image
// awareness of its own.
type SnippetMatchStrategy struct{}

func (SnippetMatchStrategy) Name() string { return "snippet-match" }

func (SnippetMatchStrategy) Insert(markdown string, entries []types.ImagePositionEntry, blockFor func(string) string) (string, []string) {
	var warnings []string
	var unmatched []types.ImagePositionEntry

	// Insert in reverse ordinal order so earlier match positions stay valid.
	ordered := make([]types.ImagePositionEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Ordinal > ordered[j].Ordinal })

	for _, entry := range ordered {
		block := blockFor(entry.Filename)
		inserted, ok := insertAfterSnippet(markdown, entry.PrecedingText, block)
		if !ok {
			unmatched = append(unmatched, entry)
			continue
		}
		markdown = inserted
	}

	// Fallback-append unmatched entries in original ordinal order at the
	// document end.
	sort.SliceStable(unmatched, func(i, j int) bool { return unmatched[i].Ordinal < unmatched[j].Ordinal })
	for _, entry := range unmatched {
		log.Printf("No snippet match for image %s, appending at document end", entry.Filename)
		warnings = append(warnings, "unmatched image position: "+entry.Filename)
		markdown = markdown + "\n\n" + blockFor(entry.Filename)
	}
	return markdown, warnings
}

// matchWindowWords bounds the match to the snippet's tail; long snippets may
// have been reformatted by the extraction service near their start.
const matchWindowWords = 15

// insertAfterSnippet inserts block after the end of the line containing the
// first fuzzy match of snippet. Matching is case-insensitive with flexible
// whitespace, ignoring bold/italic markers.
func insertAfterSnippet(markdown, snippet, block string) (string, bool) {
	norm := normalizeForMatch(snippet)
	if len(norm) < 5 {
		return "", false
	}

	words := strings.Fields(norm)
	if len(words) > matchWindowWords {
		words = words[len(words)-matchWindowWords:]
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	pattern, err := regexp.Compile(`(?i)` + strings.Join(quoted, `[\s\x{00a0}]+`))
	if err != nil {
		return "", false
	}

	loc := pattern.FindStringIndex(markdown)
	if loc == nil {
		return "", false
	}

	insertPos := strings.IndexByte(markdown[loc[1]:], '\n')
	if insertPos == -1 {
		insertPos = len(markdown)
	} else {
		insertPos += loc[1]
	}
	return markdown[:insertPos] + "\n\n" + block + markdown[insertPos:], true
}

// normalizeForMatch lowercases, collapses whitespace (including NBSP) and
// strips Markdown emphasis characters.
func normalizeForMatch(text string) string {
	text = strings.ToLower(normalizeText(text))
	return strings.NewReplacer("*", "", "_", "", "`", "").Replace(text)
}

// MarkerScanStrategy replaces the [[IMG:<filename>]] markers that survived
// rendering and OCR. Every marker occurrence self-identifies its image, so
// duplicate images map independently. Used with the OCR backend.
type MarkerScanStrategy struct{}

func (MarkerScanStrategy) Name() string { return "marker-scan" }

func (MarkerScanStrategy) Insert(markdown string, entries []types.ImagePositionEntry, blockFor func(string) string) (string, []string) {
	var warnings []string
	replaced := make(map[string]bool)

	for _, entry := range entries {
		if replaced[entry.Filename] {
			continue
		}
		replaced[entry.Filename] = true

		marker := "[[IMG:" + entry.Filename + "]]"
		block := blockFor(entry.Filename)
		if strings.Contains(markdown, marker) {
			markdown = strings.ReplaceAll(markdown, marker, block)
			continue
		}
		// The marker never surfaced in OCR output (typically rendered too
		// small to recognize). Fall back to the document end.
		log.Printf("Marker not found in OCR output for %s, appending at document end", entry.Filename)
		warnings = append(warnings, "marker not found in OCR output: "+entry.Filename)
		markdown = markdown + "\n\n" + block
	}
	return markdown, warnings
}
