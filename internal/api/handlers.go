package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/bookbot/internal/apperr"
	"github.com/starford/bookbot/internal/bookservice"
	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/rag"
	"github.com/starford/bookbot/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	svc       *bookservice.Service
	broker    *sse.Broker
	maxUpload int64
}

// NewHandler creates a new Handler.
func NewHandler(svc *bookservice.Service, broker *sse.Broker, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 50 << 20
	}
	return &Handler{svc: svc, broker: broker, maxUpload: maxUpload}
}

// UploadBook handles POST /api/book (multipart/form-data: file, api_key, max_tokens).
//
//	@Summary		Upload a PDF book and build or reuse its index
//	@Tags			book
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"PDF file"
//	@Param			api_key		formData	string	false	"Model provider API key"
//	@Param			max_tokens	formData	int		false	"Answer length bound (100-500)"
//	@Success		200			{object}	BookResponse
//	@Failure		400			{object}	errResponse
//	@Failure		415			{object}	errResponse
//	@Failure		422			{object}	errResponse
//	@Router			/book [post]
func (h *Handler) UploadBook(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, "read upload", fmt.Errorf("%w: %w", apperr.ErrUnreadableDocument, err))
		return
	}

	maxTokens := 0
	if raw := strings.TrimSpace(r.FormValue("max_tokens")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("max_tokens must be an integer"))
			return
		}
		if err := rag.ValidateMaxTokens(n); err != nil {
			writeError(w, "set answer limit", err)
			return
		}
		maxTokens = n
	}

	book, err := h.svc.LoadBook(r.Context(), sess, header.Filename, data, r.FormValue("api_key"))
	if err != nil {
		writeError(w, "load book", err)
		return
	}
	// The bound only changes once the book is in place.
	if maxTokens != 0 {
		if err := h.svc.SetAnswerLimit(sess, maxTokens); err != nil {
			writeError(w, "set answer limit", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, BookResponse{Book: book, Session: sess.Info()})
}

// UpdateSettings handles PUT /api/settings.
//
//	@Summary		Change the answer length bound
//	@Tags			session
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SettingsRequest	true	"Settings"
//	@Success		200		{object}	session.Info
//	@Failure		400		{object}	errResponse
//	@Router			/settings [put]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.SetAnswerLimit(sess, req.MaxTokens); err != nil {
		writeError(w, "set answer limit", err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

// Ask handles POST /api/ask.
//
//	@Summary		Ask a question, request a quiz, or a summary
//	@Tags			qa
//	@Accept			json
//	@Produce		json
//	@Param			body	body		AskRequest	true	"Question"
//	@Success		200		{object}	AskResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/ask [post]
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	mode, err := rag.ParseMode(req.Mode)
	if err != nil {
		writeError(w, "ask", err)
		return
	}
	out, err := h.svc.Ask(r.Context(), sess, req.Question, mode)
	if err != nil {
		writeError(w, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, AskResponse{
		Kind:    out.Kind,
		Answer:  out.Text,
		Sources: out.Sources,
		Number:  sess.Transcript().Len(),
	})
}

// Transcript handles GET /api/transcript.
//
//	@Summary		Get the numbered Q&A history
//	@Tags			qa
//	@Produce		json
//	@Success		200	{object}	TranscriptResponse
//	@Router			/transcript [get]
func (h *Handler) Transcript(w http.ResponseWriter, r *http.Request) {
	pairs := sessionFrom(r).Transcript().Pairs()
	items := make([]TranscriptItem, len(pairs))
	for i, p := range pairs {
		items[i] = TranscriptItem{Number: i + 1, QAPair: p}
	}
	writeJSON(w, http.StatusOK, TranscriptResponse{Pairs: items})
}

// ExportTranscript handles GET /api/transcript/export?format=pdf|xlsx.
//
//	@Summary		Download the Q&A history
//	@Tags			qa
//	@Produce		application/pdf
//	@Param			format	query	string	false	"pdf (default) or xlsx"
//	@Success		200
//	@Failure		400	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Router			/transcript/export [get]
func (h *Handler) ExportTranscript(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Export(sessionFrom(r), r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, "export transcript", err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, doc.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Data); err != nil {
		slog.Warn("export write failed", slog.String("error", err.Error()))
	}
}

// Reset handles POST /api/reset.
//
//	@Summary		Clear the session: key, book, and history
//	@Tags			session
//	@Success		200	{object}	session.Info
//	@Router			/reset [post]
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	h.svc.Reset(sess)
	writeJSON(w, http.StatusOK, sess.Info())
}

// Session handles GET /api/session.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Info())
}

// ListBooks handles GET /api/books.
//
//	@Summary		List cached books
//	@Tags			book
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			q		query		string	false	"File name filter"
//	@Success		200		{object}	BookListResponse
//	@Router			/books [get]
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	rows, total, err := h.svc.ListBooks(r.Context(), limit, offset, q.Get("q"))
	if err != nil {
		writeError(w, "list books", err)
		return
	}
	writeJSON(w, http.StatusOK, BookListResponse{Books: rows, Total: total})
}

// GetBook handles GET /api/books/{fingerprint}.
//
//	@Summary		Show one cached book
//	@Tags			book
//	@Produce		json
//	@Param			fingerprint	path		string	true	"Content fingerprint"
//	@Success		200			{object}	catalog.BookRow
//	@Failure		404			{object}	errResponse
//	@Router			/books/{fingerprint} [get]
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	row, err := h.svc.GetBook(r.Context(), fingerprint.Fingerprint(chi.URLParam(r, "fingerprint")))
	if err != nil {
		writeError(w, "get book", err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// EvictBook handles DELETE /api/books/{fingerprint}.
//
//	@Summary		Drop a book's cached index
//	@Tags			book
//	@Produce		json
//	@Param			fingerprint	path		string	true	"Content fingerprint"
//	@Success		200			{object}	catalog.BookRow
//	@Failure		404			{object}	errResponse
//	@Router			/books/{fingerprint} [delete]
func (h *Handler) EvictBook(w http.ResponseWriter, r *http.Request) {
	row, err := h.svc.EvictBook(r.Context(), fingerprint.Fingerprint(chi.URLParam(r, "fingerprint")))
	if err != nil {
		writeError(w, "evict book", err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// Events handles GET /api/events for the caller's session.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	h.broker.Serve(w, r, sessionFrom(r).ID)
}
