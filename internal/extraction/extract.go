// Package extraction turns uploaded candidate documents into plain text.
package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"code.sajari.com/docconv"
)

// Common declared document kinds accepted from uploads.
const (
	MIMEPDF  = "application/pdf"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText = "text/plain"
)

// FailedError wraps any failure to convert a document to text. Candidates
// whose documents cannot be extracted are skipped and never charged.
type FailedError struct {
	Name  string
	Cause error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.Name, e.Cause)
}

func (e *FailedError) Unwrap() error {
	return e.Cause
}

// Extractor converts raw file bytes with a declared MIME type into plain text.
type Extractor interface {
	ExtractText(ctx context.Context, name string, data []byte, mimeType string) (string, error)
}

// DocExtractor extracts text with docconv for binary formats and reads plain
// text directly.
type DocExtractor struct{}

// NewDocExtractor returns the default document extractor.
func NewDocExtractor() *DocExtractor {
	return &DocExtractor{}
}

// ExtractText converts one document to plain text.
func (e *DocExtractor) ExtractText(ctx context.Context, name string, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &FailedError{Name: name, Cause: err}
	}

	mt := normalizeMIME(mimeType)
	switch mt {
	case MIMEText:
		return string(data), nil
	case MIMEPDF, MIMEDocx:
		res, err := docconv.Convert(bytes.NewReader(data), mt, true)
		if err != nil {
			return "", &FailedError{Name: name, Cause: err}
		}
		return res.Body, nil
	default:
		return "", &FailedError{Name: name, Cause: fmt.Errorf("unsupported document type %q", mimeType)}
	}
}

// normalizeMIME tolerates bare extensions and parameters like "; charset=".
func normalizeMIME(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	switch mt {
	case "pdf", ".pdf":
		return MIMEPDF
	case "docx", ".docx":
		return MIMEDocx
	case "txt", ".txt", "text":
		return MIMEText
	}
	return mt
}

// MIMEForExtension maps a file extension to the declared MIME type uploads
// carry, or empty when the extension is not supported.
func MIMEForExtension(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return MIMEPDF
	case "docx":
		return MIMEDocx
	case "txt":
		return MIMEText
	}
	return ""
}
