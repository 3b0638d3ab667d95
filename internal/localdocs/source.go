// Package localdocs loads text, markdown and PDF files from a directory as
// documents for the pipeline.
package localdocs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/issuepilot/issuepilot/internal/core"
	"github.com/issuepilot/issuepilot/internal/logger"
)

// Source loads documents from a local directory tree.
type Source struct {
	dir string
}

// NewSource creates a source rooted at dir.
func NewSource(dir string) *Source {
	return &Source{dir: dir}
}

// Fetch walks the directory and returns one document per supported file
// (.txt, .md, .pdf). Unsupported files are skipped; unreadable supported
// files fail the whole fetch.
func (s *Source) Fetch(ctx context.Context) ([]core.Document, error) {
	var docs []core.Document

	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var text string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".md":
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				return fmt.Errorf("read %s: %w", path, readErr)
			}
			text = string(data)
		case ".pdf":
			var pdfErr error
			text, pdfErr = extractPDFText(path)
			if pdfErr != nil {
				return fmt.Errorf("extract pdf text from %s: %w", path, pdfErr)
			}
		default:
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil {
			return fmt.Errorf("stat %s: %w", path, infoErr)
		}

		rel, relErr := filepath.Rel(s.dir, path)
		if relErr != nil {
			rel = path
		}

		docs = append(docs, core.Document{
			ID:        rel,
			Title:     filepath.Base(path),
			Source:    "local",
			URI:       "file://" + path,
			Text:      text,
			CreatedAt: info.ModTime().Unix(),
			UpdatedAt: info.ModTime().Unix(),
			Metadata: map[string]interface{}{
				"type": "file",
				"path": rel,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded %d documents from %s", len(docs), s.dir)
	return docs, nil
}

// extractPDFText pulls the plain text out of a PDF file.
func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
