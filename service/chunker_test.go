package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chunkerDoc = `Intro paragraph before any heading.

# Installation Guide

General notes about installing.

## Prerequisites

You need a license key.

> **[Image: license](images/license.png)**
> The license entry screen.

### Operating Systems

Linux and Windows are supported.

## Running the Installer

Run setup from the command line.
`

func TestChunkMarkdownSections(t *testing.T) {
	chunks := ChunkMarkdown("kb-100", chunkerDoc)
	require.Len(t, chunks, 5)

	for i, c := range chunks {
		assert.Equal(t, "kb-100", c.ArticleID)
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "Installation Guide", c.Title)
		assert.NotNil(t, c.ImageURLs)
	}

	// Preamble before the first heading.
	assert.Equal(t, "", chunks[0].SectionHeader)
	assert.Equal(t, "Intro paragraph before any heading.", chunks[0].Content)
	assert.Empty(t, chunks[0].ParentHeaders)

	assert.Equal(t, "Installation Guide", chunks[1].SectionHeader)
	assert.Contains(t, chunks[1].Content, "General notes about installing.")
	assert.NotContains(t, chunks[1].Content, "Prerequisites")
	assert.Empty(t, chunks[1].ParentHeaders)

	assert.Equal(t, "Prerequisites", chunks[2].SectionHeader)
	assert.Equal(t, []string{"Installation Guide"}, chunks[2].ParentHeaders)
	assert.Equal(t, []string{"images/license.png"}, chunks[2].ImageURLs)

	assert.Equal(t, "Operating Systems", chunks[3].SectionHeader)
	assert.Equal(t, []string{"Installation Guide", "Prerequisites"}, chunks[3].ParentHeaders)

	// A later h2 resets the h2/h3 ancestry.
	assert.Equal(t, "Running the Installer", chunks[4].SectionHeader)
	assert.Equal(t, []string{"Installation Guide"}, chunks[4].ParentHeaders)
	assert.Empty(t, chunks[4].ImageURLs)
}

func TestChunkMarkdownNoHeadings(t *testing.T) {
	chunks := ChunkMarkdown("kb-101", "Just a paragraph.\n\nAnd another one.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Just a paragraph.\n\nAnd another one.", chunks[0].Content)
	assert.Equal(t, "", chunks[0].SectionHeader)
	assert.Equal(t, "", chunks[0].Title)
	assert.Equal(t, []string{}, chunks[0].ImageURLs)
}

func TestChunkMarkdownEmpty(t *testing.T) {
	assert.Empty(t, ChunkMarkdown("kb-102", "   \n\n  "))
}

func TestChunkMarkdownNoPreamble(t *testing.T) {
	chunks := ChunkMarkdown("kb-103", "# Only Heading\n\nBody text.")
	require.Len(t, chunks, 1)
	assert.Equal(t, "Only Heading", chunks[0].SectionHeader)
}

func TestChunkMarkdownDuplicateImageRefs(t *testing.T) {
	doc := "# Doc\n\n" +
		"> **[Image: shot](images/shot.png)**\n> First occurrence.\n\n" +
		"text between\n\n" +
		"> **[Image: shot](images/shot.png)**\n> Second occurrence.\n"
	chunks := ChunkMarkdown("kb-104", doc)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"images/shot.png", "images/shot.png"}, chunks[0].ImageURLs)
}
