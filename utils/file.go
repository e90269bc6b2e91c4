package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var imageExtensions = map[string]bool{
	".png":   true,
	".jpg":   true,
	".jpeg":  true,
	".gif":   true,
	".webp":  true,
	".image": true,
}

// FindArticleHTML locates the primary HTML file in an article directory.
// index.html wins; otherwise the first *.html file sorted by name, skipping
// base64 variants and Windows security-zone artifacts.
func FindArticleHTML(articleDir string) (string, error) {
	index := filepath.Join(articleDir, "index.html")
	if _, err := os.Stat(index); err == nil {
		return index, nil
	}

	entries, err := os.ReadDir(articleDir)
	if err != nil {
		return "", fmt.Errorf("failed to read article directory: %w", err)
	}
	var candidates []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".html") {
			continue
		}
		if strings.Contains(name, "base64") || strings.Contains(name, ":") {
			continue
		}
		candidates = append(candidates, name)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no HTML file found in %s", articleDir)
	}
	sort.Strings(candidates)
	return filepath.Join(articleDir, candidates[0]), nil
}

// ListImageFiles returns the image filenames in an article directory,
// checking both the directory itself and an images/ subdirectory.
func ListImageFiles(articleDir string) ([]string, error) {
	var images []string
	for _, dir := range []string{articleDir, filepath.Join(articleDir, "images")} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				images = append(images, e.Name())
			}
		}
	}
	sort.Strings(images)
	return images, nil
}

// FindImageFile resolves an image filename inside an article directory,
// checking images/ first, then the directory root.
func FindImageFile(articleDir, filename string) (string, bool) {
	inImages := filepath.Join(articleDir, "images", filename)
	if _, err := os.Stat(inImages); err == nil {
		return inImages, true
	}
	direct := filepath.Join(articleDir, filename)
	if _, err := os.Stat(direct); err == nil {
		return direct, true
	}
	return "", false
}

// Stem returns the filename without its extension.
func Stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CopyFile copies a file, creating the destination directory if needed.
func CopyFile(sourcePath, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %v", err)
	}

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open source file: %v", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %v", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file: %v", err)
	}
	return nil
}

// DetectImageContentType sniffs an image MIME type from magic bytes.
func DetectImageContentType(data []byte) string {
	if len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n" {
		return "image/png"
	}
	if len(data) >= 3 && data[0] == 0xff && data[1] == 0xd8 && data[2] == 0xff {
		return "image/jpeg"
	}
	if len(data) >= 4 && string(data[:4]) == "GIF8" {
		return "image/gif"
	}
	if len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP" {
		return "image/webp"
	}
	return "image/png"
}
