// Package apperr holds the sentinel errors shared across bookbot layers.
package apperr

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrNoBook             = errors.New("no book loaded")
	ErrUnreadableDocument = errors.New("document is unreadable")
	ErrNotPDF             = errors.New("document is not a PDF")
	ErrEmptyDocument      = errors.New("document has no extractable text")
	ErrEmptyQuestion      = errors.New("question is empty")
	ErrEmptyTranscript    = errors.New("transcript is empty")
	ErrInvalidAnswerLimit = errors.New("answer limit out of range")
	ErrMissingCredential  = errors.New("credential is required")
	ErrUnsupportedFormat  = errors.New("unsupported export format")
	ErrInvalidMode        = errors.New("unknown answer mode")
)
