// Package extract pulls plain text out of PDF sources.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"bilingual-rag/internal/fsutil"
)

// ErrNoExtractableText is returned for PDFs without a text layer.
var ErrNoExtractableText = errors.New("no extractable text found in PDF")

// readPDF is swapped in tests.
var readPDF = plainText

func plainText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return buf.String(), nil
}

// Text returns the sanitised text of the PDF at path.
func Text(path string) (string, error) {
	raw, err := readPDF(path)
	if err != nil {
		return "", err
	}
	text := SanitizeText(raw)
	if text == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNoExtractableText)
	}
	return text, nil
}

// TextFileName maps "book.pdf" to "book.txt".
func TextFileName(pdfPath string) string {
	base := filepath.Base(pdfPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".txt"
}

// ExtractFile writes the text of pdfPath to outDir and returns the new path.
func ExtractFile(ctx context.Context, pdfPath, outDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := Text(pdfPath)
	if err != nil {
		return "", err
	}
	out := filepath.Join(outDir, TextFileName(pdfPath))
	if err := fsutil.WriteTextAtomic(out, text); err != nil {
		return "", err
	}
	return out, nil
}

// ListPDFs returns the PDFs directly inside dir in name order.
func ListPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".pdf") {
			paths = append(paths, filepath.Join(dir, name))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// ExtractDir extracts every PDF in inDir. A failing file does not stop the
// others; all failures are returned joined.
func ExtractDir(ctx context.Context, inDir, outDir string, logger *zap.Logger) ([]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	paths, err := ListPDFs(inDir)
	if err != nil {
		return nil, err
	}
	var written []string
	var errs []error
	for _, p := range paths {
		out, err := ExtractFile(ctx, p, outDir)
		if err != nil {
			if ctx.Err() != nil {
				return written, ctx.Err()
			}
			logger.Warn("pdf extraction failed", zap.String("file", p), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(p), err))
			continue
		}
		logger.Info("extracted pdf", zap.String("file", p), zap.String("out", out))
		written = append(written, out)
	}
	return written, errors.Join(errs...)
}

// SanitizeText drops NUL and other non-printing control characters except
// common whitespace, and trims the result.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\r' || ch == '\t' {
			r = append(r, ch)
			continue
		}
		if ch < 0x20 || ch == 0x7f || ch == '�' {
			continue
		}
		r = append(r, ch)
	}
	return strings.TrimSpace(string(r))
}
