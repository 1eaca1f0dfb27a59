package api

import (
	"github.com/starford/bookbot/internal/catalog"
	"github.com/starford/bookbot/internal/rag"
	"github.com/starford/bookbot/internal/session"
)

// AskRequest is the request body for asking a question.
type AskRequest struct {
	Question string `json:"question" example:"What is the main theme?" validate:"required"`
	Mode     string `json:"mode,omitempty" example:"auto" enums:"auto,question,quiz,summary"`
}

// AskResponse carries the outcome of a question.
type AskResponse struct {
	Kind    rag.Kind     `json:"kind" example:"answered"`
	Answer  string       `json:"answer"`
	Sources []rag.Source `json:"sources,omitempty"`
	Number  int          `json:"number" example:"3"`
}

// SettingsRequest changes the answer length bound.
type SettingsRequest struct {
	MaxTokens int `json:"max_tokens" example:"300" validate:"required"`
}

// BookResponse is returned after a successful upload.
type BookResponse struct {
	Book    *session.Book `json:"book"`
	Session session.Info  `json:"session"`
}

// TranscriptResponse is the numbered Q&A history.
type TranscriptResponse struct {
	Pairs []TranscriptItem `json:"pairs"`
}

// TranscriptItem is one numbered pair.
type TranscriptItem struct {
	Number int `json:"number"`
	session.QAPair
}

// BookListResponse wraps paginated catalog listings.
type BookListResponse struct {
	Books []catalog.BookRow `json:"books" validate:"required"`
	Total int               `json:"total" example:"3" validate:"required"`
}
