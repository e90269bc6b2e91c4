package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tieubaoca/kb-pipeline/types"
)

func testBlockFor(filename string) string {
	return "<<block:" + filename + ">>"
}

func TestSnippetMatchInsertsAfterLine(t *testing.T) {
	markdown := "# Title\n\nClick the Save button to apply your changes.\n\nNext section follows."
	entries := []types.ImagePositionEntry{
		{PrecedingText: "Click the Save button to apply your changes.", Filename: "save.png", Ordinal: 0},
	}

	out, warnings := SnippetMatchStrategy{}.Insert(markdown, entries, testBlockFor)

	assert.Empty(t, warnings)
	assert.Contains(t, out, "your changes.\n\n<<block:save.png>>\n")
	assert.Less(t, strings.Index(out, "<<block:save.png>>"), strings.Index(out, "Next section"))
}

func TestSnippetMatchIsFuzzy(t *testing.T) {
	// Case differences, NBSP and emphasis in the source snippet must not
	// prevent a match against plain extracted text.
	markdown := "Select the workspace from the dropdown list.\n\nTail."
	entries := []types.ImagePositionEntry{
		{PrecedingText: "Select THE **workspace** from the dropdown list.", Filename: "ws.png", Ordinal: 0},
	}

	out, warnings := SnippetMatchStrategy{}.Insert(markdown, entries, testBlockFor)

	assert.Empty(t, warnings)
	assert.Contains(t, out, "dropdown list.\n\n<<block:ws.png>>")
}

func TestSnippetMatchUsesSnippetTail(t *testing.T) {
	// Only the last words of a long snippet need to match; the extraction
	// service may reformat the start of a long paragraph.
	tail := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen"
	snippet := strings.Repeat("reworded ", 30) + tail
	markdown := "Intro.\n\nA different opening but " + tail + "\n\nOutro."
	entries := []types.ImagePositionEntry{
		{PrecedingText: snippet, Filename: "tail.png", Ordinal: 0},
	}

	out, warnings := SnippetMatchStrategy{}.Insert(markdown, entries, testBlockFor)

	assert.Empty(t, warnings)
	assert.Contains(t, out, tail+"\n\n<<block:tail.png>>")
}

func TestSnippetMatchFallbackAppends(t *testing.T) {
	markdown := "Some document text."
	entries := []types.ImagePositionEntry{
		{PrecedingText: "this snippet appears nowhere in the document", Filename: "lost.png", Ordinal: 0},
		{PrecedingText: "", Filename: "empty.png", Ordinal: 1},
	}

	out, warnings := SnippetMatchStrategy{}.Insert(markdown, entries, testBlockFor)

	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "lost.png")
	assert.Contains(t, warnings[1], "empty.png")
	// Fallback keeps ordinal order at the document end.
	assert.True(t, strings.HasSuffix(out, "<<block:lost.png>>\n\n<<block:empty.png>>"))
}

func TestSnippetMatchMultipleEntries(t *testing.T) {
	markdown := "First step is to open the menu.\n\nSecond step is to press enter.\n\nDone."
	entries := []types.ImagePositionEntry{
		{PrecedingText: "First step is to open the menu.", Filename: "one.png", Ordinal: 0},
		{PrecedingText: "Second step is to press enter.", Filename: "two.png", Ordinal: 1},
	}

	out, warnings := SnippetMatchStrategy{}.Insert(markdown, entries, testBlockFor)

	assert.Empty(t, warnings)
	one := strings.Index(out, "<<block:one.png>>")
	two := strings.Index(out, "<<block:two.png>>")
	require.True(t, one >= 0 && two >= 0)
	assert.Less(t, one, two)
	assert.Less(t, strings.Index(out, "open the menu."), one)
	assert.Less(t, strings.Index(out, "press enter."), two)
}

func TestMarkerScanReplacesMarkers(t *testing.T) {
	markdown := "Intro\n\n[[IMG:a.png]]\n\nMiddle\n\n[[IMG:a.png]]\n\n[[IMG:b.png]]"
	entries := []types.ImagePositionEntry{
		{Filename: "a.png", Ordinal: 0},
		{Filename: "a.png", Ordinal: 1},
		{Filename: "b.png", Ordinal: 2},
	}

	out, warnings := MarkerScanStrategy{}.Insert(markdown, entries, testBlockFor)

	assert.Empty(t, warnings)
	assert.NotContains(t, out, "[[IMG:")
	// Duplicate markers each get their own block.
	assert.Equal(t, 2, strings.Count(out, "<<block:a.png>>"))
	assert.Equal(t, 1, strings.Count(out, "<<block:b.png>>"))
}

func TestMarkerScanMissingMarkerAppends(t *testing.T) {
	markdown := "OCR dropped the marker entirely."
	entries := []types.ImagePositionEntry{
		{Filename: "gone.png", Ordinal: 0},
	}

	out, warnings := MarkerScanStrategy{}.Insert(markdown, entries, testBlockFor)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "gone.png")
	assert.True(t, strings.HasSuffix(out, "<<block:gone.png>>"))
}
