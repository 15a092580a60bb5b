// Package labpdf renders the laboratory's outbound PDF documents: diagnostic
// report summaries and work orders. Documents are written into a spool
// directory so the notification pipeline can attach them by path.
package labpdf

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the PDF generator settings.
type Config struct {
	SpoolDir string `env:"PDF_SPOOL_DIR" envDefault:"./tmp/documents"`
}

// Generator renders and spools laboratory documents.
type Generator struct {
	dir string
}

// NewGenerator creates a generator writing into dir. The directory is
// created on first write if it does not exist.
func NewGenerator(dir string) *Generator {
	return &Generator{dir: dir}
}

func (g *Generator) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create spool directory: %w", err)
	}

	path := filepath.Join(g.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write document %q: %w", name, err)
	}
	return path, nil
}
