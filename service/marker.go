package service

import (
	"bytes"
	"path"
	"regexp"
	"strings"

	"github.com/tieubaoca/kb-pipeline/types"
	"golang.org/x/net/html"
)

// MarkerRe matches the visible image markers injected before rendering:
// [[IMG:<filename>]]. The filename keeps its extension so marker recovery
// can map back to the staged source file without guessing.
var MarkerRe = regexp.MustCompile(`\[\[IMG:([^\]]+)\]\]`)

// Markers must survive OCR. Tiny decorative text gets silently dropped by
// the OCR service, so markers are emitted at normal body-text size.
const markerParagraphStyle = "font-size:14px"

// printCSS keeps paragraphs from being orphaned across page breaks when the
// browser paginates the document.
const printCSS = `
p { orphans: 3; widows: 3; }
img { max-width: 100%; }
`

// InjectMarkers rewrites article HTML for the render-and-OCR backend:
// every <img> with a src (including one wrapped in an enlargement <a>) is
// replaced by a visible [[IMG:<filename>]] paragraph, and print CSS is
// injected into <head>. Img tags without a src are left untouched.
func InjectMarkers(htmlDoc []byte) ([]byte, error) {
	root, err := html.Parse(bytes.NewReader(htmlDoc))
	if err != nil {
		return nil, err
	}

	for _, img := range findAllTags(root, "img") {
		src := attr(img, "src")
		if src == "" {
			continue
		}
		marker := markerParagraph(path.Base(src))

		// Replace the anchor wrapper when the image is the link's content,
		// otherwise the image itself.
		target := img
		if p := img.Parent; p != nil && p.Type == html.ElementNode && p.Data == "a" {
			target = p
		}
		target.Parent.InsertBefore(marker, target)
		target.Parent.RemoveChild(target)
	}

	if head := findAllTagsAny(root, "head"); head != nil {
		style := &html.Node{Type: html.ElementNode, Data: "style"}
		style.AppendChild(&html.Node{Type: html.TextNode, Data: printCSS})
		head.AppendChild(style)
	}

	var out bytes.Buffer
	if err := html.Render(&out, root); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func markerParagraph(filename string) *html.Node {
	p := &html.Node{
		Type: html.ElementNode,
		Data: "p",
		Attr: []html.Attribute{{Key: "style", Val: markerParagraphStyle}},
	}
	p.AppendChild(&html.Node{Type: html.TextNode, Data: "[[IMG:" + filename + "]]"})
	return p
}

func findAllTagsAny(root *html.Node, tag string) *html.Node {
	nodes := findAllTags(root, tag)
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// ScanMarkers joins per-page OCR Markdown and collects marker occurrences in
// document order. Duplicate filenames stay duplicated: each occurrence
// self-identifies its source image, so the same image appearing twice yields
// two independently mappable entries.
func ScanMarkers(pages []string) (string, []types.ImagePositionEntry) {
	markdown := strings.Join(pages, "\n\n")

	var entries []types.ImagePositionEntry
	for _, m := range MarkerRe.FindAllStringSubmatch(markdown, -1) {
		entries = append(entries, types.ImagePositionEntry{
			Filename: strings.TrimSpace(m[1]),
			Ordinal:  len(entries),
		})
	}
	return markdown, entries
}
