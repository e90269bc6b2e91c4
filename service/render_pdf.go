package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// PDFRenderer turns an HTML file into a paginated PDF with a headless
// browser, letting the engine handle layout flow across pages.
type PDFRenderer struct {
	chromiumPath string
}

func NewPDFRenderer(chromiumPath string) *PDFRenderer {
	return &PDFRenderer{chromiumPath: chromiumPath}
}

// Render prints htmlPath to pdfPath.
func (r *PDFRenderer) Render(ctx context.Context, htmlPath, pdfPath string) error {
	absHTML, err := filepath.Abs(htmlPath)
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, r.chromiumPath,
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--no-pdf-header-footer",
		fmt.Sprintf("--print-to-pdf=%s", pdfPath),
		"file://"+absHTML,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	log.Println("Rendering HTML to PDF:", filepath.Base(htmlPath))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to render PDF: %v: %s", err, truncate(stderr.String(), 500))
	}

	info, err := os.Stat(pdfPath)
	if err != nil || info.Size() == 0 {
		return fmt.Errorf("renderer produced no PDF output at %s", pdfPath)
	}
	return nil
}
