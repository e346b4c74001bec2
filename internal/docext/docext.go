// Package docext extracts plain text from applicant documents. It supports a
// fixed set of container formats; anything else is a caller-visible error so
// the CLI can reject the attachment before a pipeline run starts.
package docext

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/spf13/afero"
)

const defaultMaxFileBytes = 10 << 20

// ErrUnsupportedFormat marks a file extension outside the supported set.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrFileTooLarge marks a document over the configured size limit.
var ErrFileTooLarge = errors.New("document exceeds size limit")

// Extractor reads documents through an abstract filesystem so tests can use
// an in-memory one. PDF extraction is injectable for the same reason: the
// pdf reader works on real files only.
type Extractor struct {
	FS           afero.Fs
	MaxFileBytes int64
	pdfText      func(path string) (string, error)
}

// NewExtractor builds an extractor over the operating system filesystem.
func NewExtractor() Extractor {
	return NewExtractorWithFS(afero.NewOsFs())
}

// NewExtractorWithFS builds an extractor over the provided filesystem.
func NewExtractorWithFS(fs afero.Fs) Extractor {
	return Extractor{
		FS:           fs,
		MaxFileBytes: defaultMaxFileBytes,
		pdfText:      pdfFileText,
	}
}

// SupportedExtensions lists the container formats Extract accepts.
func SupportedExtensions() []string {
	return []string{".txt", ".md", ".pdf"}
}

// Extract returns the document's plain text.
func (e Extractor) Extract(path string) (string, error) {
	extension := strings.ToLower(filepath.Ext(path))
	switch extension {
	case ".txt", ".md":
		return e.readText(path)
	case ".pdf":
		if err := e.checkSize(path); err != nil {
			return "", err
		}
		text, err := e.pdfText(path)
		if err != nil {
			return "", fmt.Errorf("extract pdf %s: %w", path, err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%s: %w", extension, ErrUnsupportedFormat)
	}
}

func (e Extractor) readText(path string) (string, error) {
	if err := e.checkSize(path); err != nil {
		return "", err
	}
	content, err := afero.ReadFile(e.FS, filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", path, err)
	}
	return string(content), nil
}

func (e Extractor) checkSize(path string) error {
	limit := e.MaxFileBytes
	if limit <= 0 {
		limit = defaultMaxFileBytes
	}
	info, err := e.FS.Stat(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("stat document %s: %w", path, err)
	}
	if info.Size() > limit {
		return fmt.Errorf("%s (%d bytes): %w", path, info.Size(), ErrFileTooLarge)
	}
	return nil
}

func pdfFileText(path string) (string, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buffer bytes.Buffer
	if _, err := buffer.ReadFrom(textReader); err != nil {
		return "", err
	}
	return buffer.String(), nil
}
