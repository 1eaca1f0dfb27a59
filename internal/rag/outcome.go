package rag

import (
	"fmt"
	"strings"

	"github.com/starford/bookbot/internal/apperr"
)

// Kind tags an Outcome.
type Kind int

const (
	// OutcomeAnswered carries model output shown to the user as is.
	OutcomeAnswered Kind = iota
	// OutcomeNotRelevant means the model produced nothing or refused.
	OutcomeNotRelevant
	// OutcomeFailed means retrieval or generation failed.
	OutcomeFailed
)

func (k Kind) String() string {
	switch k {
	case OutcomeAnswered:
		return "answered"
	case OutcomeNotRelevant:
		return "not_relevant"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText encodes the kind by name in JSON responses.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{OutcomeAnswered, OutcomeNotRelevant, OutcomeFailed} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome kind %q", b)
}

// Fixed user-facing replies.
const (
	ApologyText     = "Sorry, an error occurred while answering your question."
	NotRelevantText = "Sorry, this request is not related to the book's topic."
)

// Outcome is the result of Ask. Text is always safe to show to the user.
type Outcome struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
	// Sources are the chunks the answer was grounded on; empty when failed.
	Sources []Source `json:"sources,omitempty"`
}

// Source is a retrieved chunk reference.
type Source struct {
	Position int     `json:"position"`
	Score    float64 `json:"score"`
}

// Mode steers the instruction template.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeQuestion Mode = "question"
	ModeQuiz     Mode = "quiz"
	ModeSummary  Mode = "summary"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeAuto, ModeQuestion, ModeQuiz, ModeSummary}

// ParseMode accepts a mode name; the empty string means ModeAuto.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return ModeAuto, nil
	}
	for _, known := range Modes {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", apperr.ErrInvalidMode, s)
}

// Describe returns a one-line explanation of the mode.
func (m Mode) Describe() string {
	switch m {
	case ModeQuestion:
		return "Answer the question from the book's text."
	case ModeQuiz:
		return "Write a quiz or test questions based on the book."
	case ModeSummary:
		return "Summarize the relevant part of the book."
	default:
		return "Let the model decide between answering, quizzing, summarizing, or declining."
	}
}
