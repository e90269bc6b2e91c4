package types

// SourceArticle represents one staged knowledge base article: a folder
// containing a single HTML document and its image files.
type SourceArticle struct {
	ID         string   // article folder name
	Dir        string   // absolute path to the staged folder
	HTMLPath   string   // path to the primary HTML file
	ImageFiles []string // image filenames found next to the HTML
}

// ImagePositionEntry records where an image belongs in the extracted text.
// PrecedingText is a snippet of document text that appears just before the
// image; Ordinal is the image's position in document order.
type ImagePositionEntry struct {
	PrecedingText string
	Filename      string // source filename, extension included
	Ordinal       int
}

// LinkEntry is a hyperlink extracted from the source HTML, used to recover
// links that text extraction strips.
type LinkEntry struct {
	Text string
	URL  string
}

// ImageDescription is the structured output of the vision model for one
// source image.
type ImageDescription struct {
	Filename       string   `json:"filename"`
	Description    string   `json:"description"`
	UIElements     []string `json:"ui_elements,omitempty"`
	NavigationPath string   `json:"navigation_path,omitempty"`
}

// CanonicalDocument is the merged Markdown output of the conversion stage.
// It is the read-only contract between conversion and indexing.
type CanonicalDocument struct {
	ArticleID string
	Markdown  string
}
