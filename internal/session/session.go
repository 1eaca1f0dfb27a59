// Package session holds the per-user interaction state: the API credential,
// the active book and its answering pipeline, the answer bound, and the
// Q&A transcript.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/bookbot/internal/fingerprint"
	"github.com/starford/bookbot/internal/rag"
	"github.com/starford/bookbot/internal/vectorindex"
)

// Book identifies the loaded document.
type Book struct {
	Name        string                  `json:"name"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Chunks      int                     `json:"chunks"`
	FromCache   bool                    `json:"from_cache"`
}

// State is the mutable part of a session. It is only reachable through
// Session.Do, which serialises access.
type State struct {
	// Credential is the model API key. It lives only in memory.
	Credential string
	Book       *Book
	Index      *vectorindex.Index
	Pipeline   *rag.Pipeline
	MaxTokens  int
	Transcript Transcript
}

// HasBook reports whether a book is loaded and ready for questions.
func (st *State) HasBook() bool { return st.Pipeline != nil }

// Session is one user's context. Interactions within a session run one at
// a time; different sessions are independent.
type Session struct {
	ID string

	defaultMaxTokens int
	created          time.Time
	lastSeen         atomic.Int64

	mu    sync.Mutex
	state State
}

// New returns an empty session.
func New(id string, defaultMaxTokens int) *Session {
	now := time.Now()
	s := &Session{ID: id, defaultMaxTokens: defaultMaxTokens, created: now}
	s.state = State{MaxTokens: defaultMaxTokens}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// Do runs fn with exclusive access to the session state.
func (s *Session) Do(fn func(st *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return fn(&s.state)
}

// Reset discards the credential, the book, the pipeline and the transcript,
// and restores the default answer bound. The ID is kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	s.state = State{MaxTokens: s.defaultMaxTokens}
}

// Transcript returns a copy of the Q&A history.
func (s *Session) Transcript() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Transcript.Clone()
}

// Info is a read-only summary of a session.
type Info struct {
	ID            string    `json:"id"`
	Book          *Book     `json:"book,omitempty"`
	MaxTokens     int       `json:"max_tokens"`
	HasCredential bool      `json:"has_credential"`
	Questions     int       `json:"questions"`
	CreatedAt     time.Time `json:"created_at"`
}

// Info summarises the session without exposing the credential.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:            s.ID,
		MaxTokens:     s.state.MaxTokens,
		HasCredential: s.state.Credential != "",
		Questions:     s.state.Transcript.Len(),
		CreatedAt:     s.created,
	}
	if s.state.Book != nil {
		b := *s.state.Book
		info.Book = &b
	}
	return info
}

// LastSeen returns the time of the most recent interaction.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}
