package pdftext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/bookbot/internal/apperr"
	"github.com/starford/bookbot/internal/testutil"
)

func TestDetect(t *testing.T) {
	assert.NoError(t, Detect(testutil.BookPDF(t, "hello")))
	assert.ErrorIs(t, Detect([]byte("just some text")), apperr.ErrNotPDF)
	assert.ErrorIs(t, Detect(nil), apperr.ErrNotPDF)
}

func TestExtract(t *testing.T) {
	data := testutil.BookPDF(t, "The lighthouse keeper", "", "Chapter two harbour")
	text, err := Extract(data)
	require.NoError(t, err)
	assert.Contains(t, text, "lighthouse")
	assert.Contains(t, text, "harbour")
}

func TestExtractBlankDocument(t *testing.T) {
	_, err := Extract(testutil.BookPDF(t, ""))
	assert.ErrorIs(t, err, apperr.ErrEmptyDocument)
}

func TestExtractCorrupt(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4\n garbage without xref"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrUnreadableDocument)
}

func TestExtractNotPDF(t *testing.T) {
	_, err := Extract([]byte("<html></html>"))
	assert.ErrorIs(t, err, apperr.ErrNotPDF)
}
