package rag

import (
	"fmt"
	"strings"

	"github.com/starford/bookbot/internal/vectorindex"
)

const instructions = `The following context is taken from a book. Respond to the user's request accordingly:

1. If the user asks a question, answer it using the context.
2. If the user asks for a test or quiz questions, write them from the information in the context.
3. If the user asks for a summary, give a short summary.
4. If the request is unrelated to the book, reply with a sentence starting with "Sorry," that says so.
`

var modeHints = map[Mode]string{
	ModeQuestion: "The user is asking a question: follow rule 1.",
	ModeQuiz:     "The user wants a quiz: follow rule 2 and number the questions.",
	ModeSummary:  "The user wants a summary: follow rule 3.",
}

// BuildPrompt assembles the instruction template, the retrieved chunks in
// rank order, and the query.
func BuildPrompt(query string, mode Mode, hits []vectorindex.Hit) string {
	var sb strings.Builder
	sb.WriteString(instructions)
	if hint, ok := modeHints[mode]; ok {
		sb.WriteString("\n")
		sb.WriteString(hint)
		sb.WriteString("\n")
	}

	sb.WriteString("\nContext:\n")
	for i, h := range hits {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(h.Text)
	}
	sb.WriteString(fmt.Sprintf("\n\nUser request: %s\n\nAnswer:", strings.TrimSpace(query)))
	return sb.String()
}
