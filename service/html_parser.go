package service

import (
	"bytes"
	"log"
	"path"
	"regexp"
	"strings"

	"github.com/tieubaoca/kb-pipeline/types"
	"golang.org/x/net/html"
)

// snippet length and thresholds for position matching
const (
	maxSnippetLen     = 200
	minMeaningfulText = 10
)

var whitespaceRe = regexp.MustCompile(`[\s\x{00a0}]+`)

// ExtractStructure walks the HTML tree once in document order and returns the
// ordered image position map and the link map.
//
// The preceding-text snippet for each image is the tail of the nearest
// preceding element with meaningful text; it is matched later against the
// extracted Markdown, which preserves this text near-verbatim. Anchors that
// wrap images, point at "#" fragments or javascript:, or have empty text are
// skipped — those exist for navigation or image enlargement, not content.
//
// Returns ErrNoStructure only when the document contains no img and no
// anchor tags at all.
func ExtractStructure(htmlDoc []byte) ([]types.ImagePositionEntry, []types.LinkEntry, error) {
	root, err := html.Parse(bytes.NewReader(htmlDoc))
	if err != nil {
		return nil, nil, err
	}

	var images []types.ImagePositionEntry
	var links []types.LinkEntry
	sawTag := false

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img":
				sawTag = true
				src := attr(n, "src")
				if src == "" {
					log.Println("Skipping img tag without src")
					break
				}
				filename := path.Base(src)
				snippet := findPrecedingText(n)
				if snippet == "" {
					log.Printf("No preceding text found for image %s", filename)
				}
				images = append(images, types.ImagePositionEntry{
					PrecedingText: snippet,
					Filename:      filename,
					Ordinal:       len(images),
				})
			case "a":
				sawTag = true
				href := attr(n, "href")
				if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
					break
				}
				if containsTag(n, "img") {
					break
				}
				text := normalizeText(nodeText(n))
				if text != "" {
					links = append(links, types.LinkEntry{Text: text, URL: href})
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	if !sawTag {
		return nil, nil, ErrNoStructure
	}
	return images, links, nil
}

// findPrecedingText locates a text snippet that appears just before img in
// the document, for position matching in the extracted Markdown.
//
// Strategy 1: DITA step structure — an image inside a li.step uses the step
// command text (span.cmd), which is unique per step in generated docs.
//
// Strategy 2: walk up the tree and, at each level, scan previous siblings
// nearest-first for an element with meaningful text.
func findPrecedingText(img *html.Node) string {
	if li := findAncestor(img, "li", "step"); li != nil {
		if cmd := findDescendant(li, "span", "cmd"); cmd != nil {
			return normalizeText(nodeText(cmd))
		}
	}

	for ancestor := img; ancestor != nil; ancestor = ancestor.Parent {
		if ancestor.Type == html.ElementNode && (ancestor.Data == "body" || ancestor.Data == "html") {
			break
		}
		for sib := ancestor.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if sib.Type != html.ElementNode {
				continue
			}
			if isImageOnly(sib) {
				continue
			}
			text := normalizeText(nodeText(sib))
			if len(text) > minMeaningfulText {
				return tailSnippet(text)
			}
		}
	}
	return ""
}

// tailSnippet keeps the last maxSnippetLen bytes so long paragraphs still
// yield a compact, unique match target.
func tailSnippet(text string) string {
	if len(text) <= maxSnippetLen {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxSnippetLen {
		return text
	}
	return string(runes[len(runes)-maxSnippetLen:])
}

// isImageOnly reports whether n contains only image content — its text,
// minus img alt texts, is negligible.
func isImageOnly(n *html.Node) bool {
	text := normalizeText(nodeText(n))
	for _, img := range findAllTags(n, "img") {
		if alt := strings.TrimSpace(attr(img, "alt")); alt != "" {
			text = strings.TrimSpace(strings.Replace(text, alt, "", 1))
		}
	}
	return len(text) < 5
}

func normalizeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, substr string) bool {
	return strings.Contains(attr(n, "class"), substr)
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func containsTag(n *html.Node, tag string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return true
		}
		if containsTag(c, tag) {
			return true
		}
	}
	return false
}

func findAllTags(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findAncestor(n *html.Node, tag, classSubstr string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag && hasClass(p, classSubstr) {
			return p
		}
	}
	return nil
}

func findDescendant(n *html.Node, tag, classSubstr string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag && hasClass(n, classSubstr) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findDescendant(c, tag, classSubstr); found != nil {
			return found
		}
	}
	return nil
}
