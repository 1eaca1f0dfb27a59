// Package export renders a session transcript as a downloadable document.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/starford/bookbot/internal/apperr"
	"github.com/starford/bookbot/internal/session"
)

// Title heads every exported document.
const Title = "Q&A History"

// Exporter renders a transcript.
type Exporter interface {
	// Export writes the whole document to w, or nothing if rendering fails.
	Export(w io.Writer, t session.Transcript) error
	ContentType() string
	FileName() string
}

// Formats.
const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// For returns the exporter for format; the empty string selects PDF.
func For(format string) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatPDF, "":
		return PDF{}, nil
	case FormatXLSX:
		return XLSX{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnsupportedFormat, format)
	}
}

type renderFunc func(buf *bytes.Buffer, pairs []session.QAPair) error

// write renders into a buffer and copies it to w only on success, so a
// failed render never produces a truncated download.
func write(w io.Writer, t session.Transcript, render renderFunc) error {
	pairs := t.Pairs()
	if len(pairs) == 0 {
		return apperr.ErrEmptyTranscript
	}
	var buf bytes.Buffer
	if err := render(&buf, pairs); err != nil {
		return err
	}
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return nil
}
