package mcpserver

import (
	"fmt"
	"strings"

	"github.com/starford/bookbot/internal/rag"
)

// ModesURI is the resource describing the answer modes accepted by ask_book.
const ModesURI = "bookbot://modes"

// ModesGuide renders the answer modes as Markdown.
func ModesGuide() string {
	var b strings.Builder
	b.WriteString("# Bookbot answer modes\n\n")
	b.WriteString("Pass one of these as the `mode` argument of `ask_book`. ")
	b.WriteString("Omitting it means `auto`.\n\n")
	for _, m := range rag.Modes {
		fmt.Fprintf(&b, "- `%s`: %s\n", m, m.Describe())
	}
	b.WriteString("\n## Outcomes\n\n")
	fmt.Fprintf(&b, "- `%s`: the model's answer, shown as is.\n", rag.OutcomeAnswered)
	fmt.Fprintf(&b, "- `%s`: the request is unrelated to the book (%q).\n", rag.OutcomeNotRelevant, rag.NotRelevantText)
	fmt.Fprintf(&b, "- `%s`: something went wrong (%q).\n", rag.OutcomeFailed, rag.ApologyText)
	return b.String()
}
