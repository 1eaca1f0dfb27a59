package session

import (
	"encoding/json"
	"time"

	"github.com/starford/bookbot/internal/rag"
)

// QAPair is one question and the answer shown for it.
type QAPair struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Kind     rag.Kind  `json:"kind"`
	AskedAt  time.Time `json:"asked_at"`
}

// Transcript is the ordered Q&A history of a session. Pairs are only ever
// appended: repeated questions are kept and existing pairs never change.
type Transcript struct {
	pairs []QAPair
}

// NewTranscript returns a transcript holding pairs in order.
func NewTranscript(pairs ...QAPair) Transcript {
	return Transcript{pairs: append([]QAPair(nil), pairs...)}
}

// Append adds p at the end.
func (t *Transcript) Append(p QAPair) {
	t.pairs = append(t.pairs, p)
}

// Pairs returns a copy of the pairs in order.
func (t Transcript) Pairs() []QAPair {
	return append([]QAPair(nil), t.pairs...)
}

// Len returns the number of pairs.
func (t Transcript) Len() int { return len(t.pairs) }

// Clone returns an independent copy.
func (t Transcript) Clone() Transcript { return NewTranscript(t.pairs...) }

// MarshalJSON encodes the transcript as an array of pairs.
func (t Transcript) MarshalJSON() ([]byte, error) {
	if t.pairs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.pairs)
}
