package service

import (
	"regexp"
	"strings"

	"github.com/tieubaoca/kb-pipeline/types"
)

// headerRe matches Markdown heading lines, levels 1-3, at line start.
var headerRe = regexp.MustCompile(`(?m)^(#{1,3})\s+(.+)$`)

// imageRefRe matches the canonical image-block reference:
// [Image: <name>](images/<name>.png)
var imageRefRe = regexp.MustCompile(`\[Image:\s*([^\]]+)\]\(images/([^)]+\.png)\)`)

// ChunkMarkdown splits a canonical document by heading boundaries. Each span
// from one heading through the text before the next heading becomes one
// chunk; the preamble before the first heading is its own chunk when
// non-empty, and a document without headings is exactly one chunk. Each
// chunk carries its own heading, its ancestor headings for context, and the
// image references found in its text.
func ChunkMarkdown(articleID, markdown string) []types.Chunk {
	if strings.TrimSpace(markdown) == "" {
		return []types.Chunk{}
	}

	type header struct {
		start int
		level int
		text  string
	}
	var headers []header
	for _, m := range headerRe.FindAllStringSubmatchIndex(markdown, -1) {
		headers = append(headers, header{
			start: m[0],
			level: m[3] - m[2],
			text:  strings.TrimSpace(markdown[m[4]:m[5]]),
		})
	}

	title := ""
	for _, h := range headers {
		if h.level == 1 {
			title = h.text
			break
		}
	}

	var chunks []types.Chunk
	add := func(content, sectionHeader string, parents []string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		chunks = append(chunks, types.Chunk{
			ArticleID:     articleID,
			ChunkIndex:    len(chunks),
			Content:       content,
			Title:         title,
			SectionHeader: sectionHeader,
			ParentHeaders: append([]string{}, parents...),
			ImageURLs:     extractImageRefs(content),
		})
	}

	if len(headers) == 0 {
		add(markdown, "", nil)
		return chunks
	}

	// Preamble before the first heading.
	add(markdown[:headers[0].start], "", nil)

	// ancestors[l] holds the most recent heading text at level l+1.
	var ancestors [3]string
	for i, h := range headers {
		end := len(markdown)
		if i+1 < len(headers) {
			end = headers[i+1].start
		}

		var parents []string
		for l := 0; l < h.level-1; l++ {
			if ancestors[l] != "" {
				parents = append(parents, ancestors[l])
			}
		}
		add(markdown[h.start:end], h.text, parents)

		ancestors[h.level-1] = h.text
		for l := h.level; l < len(ancestors); l++ {
			ancestors[l] = ""
		}
	}
	return chunks
}

// extractImageRefs collects image URLs referenced by a chunk, in source
// order, duplicates preserved. Never nil: a chunk with no images has an
// empty list.
func extractImageRefs(content string) []string {
	refs := []string{}
	for _, m := range imageRefRe.FindAllStringSubmatch(content, -1) {
		refs = append(refs, "images/"+m[2])
	}
	return refs
}
