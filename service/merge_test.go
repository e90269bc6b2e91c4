package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/kb-pipeline/types"
)

func TestRecoverLinksFirstOccurrence(t *testing.T) {
	markdown := "See the user guide for details. The user guide also covers upgrades."
	links := []types.LinkEntry{{Text: "user guide", URL: "https://docs.example.com/guide"}}

	out, warnings := RecoverLinks(markdown, links)

	assert.Empty(t, warnings)
	assert.Equal(t,
		"See the [user guide](https://docs.example.com/guide) for details. The user guide also covers upgrades.",
		out)
}

func TestRecoverLinksWordBoundary(t *testing.T) {
	markdown := "Install Foundry Tools first, then run Foundry Tool from the shell."
	links := []types.LinkEntry{{Text: "Foundry Tool", URL: "https://example.com/tool"}}

	out, warnings := RecoverLinks(markdown, links)

	assert.Empty(t, warnings)
	assert.Contains(t, out, "Install Foundry Tools first")
	assert.Contains(t, out, "run [Foundry Tool](https://example.com/tool) from the shell")
}

func TestRecoverLinksSkipsExistingLinks(t *testing.T) {
	markdown := "[Portal](https://old.example.com) and Portal again."
	links := []types.LinkEntry{{Text: "Portal", URL: "https://new.example.com"}}

	out, warnings := RecoverLinks(markdown, links)

	assert.Empty(t, warnings)
	assert.Equal(t, "[Portal](https://old.example.com) and [Portal](https://new.example.com) again.", out)
}

func TestRecoverLinksUnmatched(t *testing.T) {
	markdown := "Nothing relevant here."
	links := []types.LinkEntry{{Text: "missing phrase", URL: "https://example.com"}}

	out, warnings := RecoverLinks(markdown, links)

	assert.Equal(t, markdown, out)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "missing phrase")
}

func TestFormatImageBlockFull(t *testing.T) {
	desc := types.ImageDescription{
		Filename:       "settings.png",
		Description:    "The account settings page with the security tab selected.",
		UIElements:     []string{"Save button", "Cancel button", "Security tab"},
		NavigationPath: "Settings > Account > Security",
	}

	block := FormatImageBlock("settings.png", desc)

	expected := "> **[Image: settings](images/settings.png)**\n" +
		"> The account settings page with the security tab selected.\n" +
		"> **UI Elements**: Save button, Cancel button, Security tab\n" +
		"> **Navigation Path**: Settings > Account > Security"
	assert.Equal(t, expected, block)
}

func TestFormatImageBlockMinimal(t *testing.T) {
	desc := types.ImageDescription{
		Filename:    "diagram.jpeg",
		Description: "A network topology diagram.\nThree zones are shown.",
	}

	block := FormatImageBlock("diagram.jpeg", desc)

	expected := "> **[Image: diagram](images/diagram.png)**\n" +
		"> A network topology diagram.\n" +
		"> Three zones are shown."
	assert.Equal(t, expected, block)
}

func TestMergeRoundTripCoverage(t *testing.T) {
	// Every staged image must appear exactly once in the document, whether or
	// not the extractor produced a position for it.
	in := MergeInput{
		ArticleID: "kb-001",
		Markdown:  "# Setup\n\nOpen the configuration panel now.\n\nThat is all.",
		Strategy:  SnippetMatchStrategy{},
		Positions: []types.ImagePositionEntry{
			{PrecedingText: "Open the configuration panel now.", Filename: "panel.png", Ordinal: 0},
		},
		Descriptions: map[string]types.ImageDescription{
			"panel.png": {Filename: "panel.png", Description: "The configuration panel."},
		},
		SourceImages: []string{"panel.png", "orphan.png"},
	}

	result := Merge(in)

	markdown := result.Document.Markdown
	assert.Equal(t, 1, strings.Count(markdown, "[Image: panel](images/panel.png)"))
	assert.Equal(t, 1, strings.Count(markdown, "[Image: orphan](images/orphan.png)"))
	// The positioned image lands after its snippet, the orphan at the end.
	assert.Less(t, strings.Index(markdown, "[Image: panel]"), strings.Index(markdown, "That is all."))
	assert.Less(t, strings.Index(markdown, "That is all."), strings.Index(markdown, "[Image: orphan]"))
	// Orphan got the placeholder description and a warning.
	assert.Contains(t, markdown, "> Image: orphan")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "orphan.png")
	assert.Equal(t, []string{"panel.png", "orphan.png"}, result.ImageFiles)
}

func TestMergeLinksBeforeImages(t *testing.T) {
	// Image blocks reuse link syntax; links are recovered first so block
	// insertion never corrupts them.
	in := MergeInput{
		ArticleID: "kb-002",
		Markdown:  "Read the install notes before you continue here.",
		Strategy:  SnippetMatchStrategy{},
		Positions: []types.ImagePositionEntry{
			{PrecedingText: "before you continue here.", Filename: "notes.png", Ordinal: 0},
		},
		Links: []types.LinkEntry{{Text: "install notes", URL: "https://example.com/notes"}},
		Descriptions: map[string]types.ImageDescription{
			"notes.png": {Filename: "notes.png", Description: "The install notes page."},
		},
		SourceImages: []string{"notes.png"},
	}

	result := Merge(in)

	assert.Empty(t, result.Warnings)
	assert.Contains(t, result.Document.Markdown, "[install notes](https://example.com/notes)")
	assert.Contains(t, result.Document.Markdown, "[Image: notes](images/notes.png)")
}

func TestMergeAndChunkScenario(t *testing.T) {
	// Full conversion scenario: three images, two links, two H2 sections.
	markdown := "## Install\n\n" +
		"See the release notes before starting.\n\n" +
		"Download the installer package now.\n\n" +
		"Run the setup wizard until it completes.\n\n" +
		"## Configure\n\n" +
		"Consult the admin guide for details.\n\n" +
		"Open the settings dialog from the menu.\n"

	in := MergeInput{
		ArticleID: "kb-010",
		Markdown:  markdown,
		Strategy:  SnippetMatchStrategy{},
		Positions: []types.ImagePositionEntry{
			{PrecedingText: "Download the installer package now.", Filename: "download.png", Ordinal: 0},
			{PrecedingText: "Run the setup wizard until it completes.", Filename: "wizard.png", Ordinal: 1},
			{PrecedingText: "Open the settings dialog from the menu.", Filename: "settings.png", Ordinal: 2},
		},
		Links: []types.LinkEntry{
			{Text: "release notes", URL: "https://example.com/notes"},
			{Text: "admin guide", URL: "https://example.com/admin"},
		},
		Descriptions: map[string]types.ImageDescription{
			"download.png": {Filename: "download.png", Description: "The download page."},
			"wizard.png":   {Filename: "wizard.png", Description: "The setup wizard."},
			"settings.png": {Filename: "settings.png", Description: "The settings dialog."},
		},
		SourceImages: []string{"download.png", "settings.png", "wizard.png"},
	}

	result := Merge(in)
	require.Empty(t, result.Warnings)

	out := result.Document.Markdown
	assert.Contains(t, out, "[release notes](https://example.com/notes)")
	assert.Contains(t, out, "[admin guide](https://example.com/admin)")
	for _, stem := range []string{"download", "wizard", "settings"} {
		assert.Equal(t, 1, strings.Count(out, "[Image: "+stem+"]"), stem)
	}
	// Blocks keep source order.
	assert.Less(t, strings.Index(out, "[Image: download]"), strings.Index(out, "[Image: wizard]"))
	assert.Less(t, strings.Index(out, "[Image: wizard]"), strings.Index(out, "[Image: settings]"))

	chunks := ChunkMarkdown("kb-010", out)
	require.Len(t, chunks, 2)
	assert.Equal(t, "Install", chunks[0].SectionHeader)
	assert.Equal(t, []string{"images/download.png", "images/wizard.png"}, chunks[0].ImageURLs)
	assert.Equal(t, "Configure", chunks[1].SectionHeader)
	assert.Equal(t, []string{"images/settings.png"}, chunks[1].ImageURLs)
}

func TestWriteArticle(t *testing.T) {
	staging := t.TempDir()
	output := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(staging, "images"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "images", "shot1.png"), []byte("png-bytes"), 0644))

	result := &MergeResult{
		Document:   types.CanonicalDocument{ArticleID: "kb-003", Markdown: "# Doc\n\nBody."},
		ImageFiles: []string{"shot1.png", "missing.png"},
	}

	require.NoError(t, WriteArticle(result, staging, output))

	written, err := os.ReadFile(filepath.Join(output, "article.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Doc\n\nBody.", string(written))

	copied, err := os.ReadFile(filepath.Join(output, "images", "shot1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(copied))

	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "missing.png")
}
