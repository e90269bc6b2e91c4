package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/tieubaoca/kb-pipeline/types"
	"github.com/tieubaoca/kb-pipeline/utils"
)

// ImagePrompt is the fixed prompt used for every image, regardless of the
// text-extraction backend, so description quality stays comparable across
// backends.
const ImagePrompt = `Analyze this image from a knowledge base article. The image may be an architecture diagram, flowchart, network topology, conceptual illustration, chart, photograph, or a software UI screenshot. Do NOT assume it is a screenshot unless it clearly shows a software user interface.

Produce a structured description with:

1. **Description**: A concise paragraph describing what the image shows, suitable for embedding in a search index to help users find this content via natural language queries. Focus on the key concepts, components, relationships, and data flows depicted.

2. **UIElements**: ONLY if the image is a software UI screenshot, list the UI elements visible (buttons, menus, tabs, form fields, navigation items). If the image is not a UI screenshot (e.g., it is a diagram, chart, or illustration), say "None".

3. **NavigationPath**: ONLY if the image is a software UI screenshot, describe the navigation path to reach this screen (e.g., "Settings > Account > Security"). If the image is not a UI screenshot, say "N/A".

Respond in plain text, not JSON.`

// ImageDescriber produces a structured description for one source image.
type ImageDescriber interface {
	Describe(ctx context.Context, filename string, image []byte) (types.ImageDescription, error)
}

// sectionRe matches the section headers of a structured model response,
// numbered or plain, bold or not: "1. **Description**:", "Description:", ...
var sectionRe = regexp.MustCompile(`(?im)(?:^|\n)\s*(?:\d+\.\s*)?\*{0,2}(Description|UIElements|NavigationPath)\*{0,2}\s*:[ \t]*`)

// ParseDescription turns the model's plain-text response into a structured
// ImageDescription. Responses without recognizable sections keep the raw
// text as the description.
func ParseDescription(filename, raw string) types.ImageDescription {
	desc := types.ImageDescription{Filename: filename}

	matches := sectionRe.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		desc.Description = strings.TrimSpace(raw)
		return desc
	}

	sections := make(map[string]string)
	for i, m := range matches {
		header := strings.ToLower(raw[m[2]:m[3]])
		bodyEnd := len(raw)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		sections[header] = strings.TrimSpace(raw[m[1]:bodyEnd])
	}

	desc.Description = sections["description"]
	if desc.Description == "" {
		desc.Description = strings.TrimSpace(raw)
		return desc
	}
	if ui := sections["uielements"]; !emptySection(ui) {
		desc.UIElements = splitUIElements(ui)
	}
	if nav := sections["navigationpath"]; !emptySection(nav) {
		desc.NavigationPath = nav
	}
	return desc
}

func emptySection(s string) bool {
	switch strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ".")) {
	case "", "none", "n/a":
		return true
	}
	return false
}

// splitUIElements breaks a UIElements section into individual labels. The
// model answers either a comma-separated line or a bulleted list.
func splitUIElements(s string) []string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*• \t"))
		if line == "" {
			continue
		}
		for _, p := range strings.Split(line, ",") {
			if p = strings.TrimSpace(p); p != "" && !emptySection(p) {
				parts = append(parts, p)
			}
		}
	}
	return parts
}

// PlaceholderDescription is substituted when description generation fails
// after retries, so one bad image never aborts the article.
func PlaceholderDescription(filename string) types.ImageDescription {
	return types.ImageDescription{
		Filename:    filename,
		Description: "Image: " + utils.Stem(filename),
	}
}
