// Package pdftext validates uploaded PDFs and extracts their plain text.
package pdftext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"

	"github.com/starford/bookbot/internal/apperr"
)

// MIMEType is the only accepted upload type.
const MIMEType = "application/pdf"

// Detect returns ErrNotPDF unless data sniffs as a PDF.
func Detect(data []byte) error {
	mt := mimetype.Detect(data)
	if !mt.Is(MIMEType) {
		return fmt.Errorf("pdftext: detected %s: %w", mt.String(), apperr.ErrNotPDF)
	}
	return nil
}

// Extract joins the plain text of every page with single spaces.
// Pages without text are skipped.
func Extract(data []byte) (text string, err error) {
	if err := Detect(data); err != nil {
		return "", err
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdftext: parse panic: %v: %w", r, apperr.ErrUnreadableDocument)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdftext: open: %w: %w", apperr.ErrUnreadableDocument, err)
	}

	var pages []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("pdftext: page %d: %w: %w", i, apperr.ErrUnreadableDocument, err)
		}
		if strings.TrimSpace(content) != "" {
			pages = append(pages, content)
		}
	}
	if len(pages) == 0 {
		return "", apperr.ErrEmptyDocument
	}
	return strings.Join(pages, " "), nil
}
