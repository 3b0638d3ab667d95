package llm

import (
	"fmt"
	"strings"

	"github.com/issuepilot/issuepilot/internal/core"
)

// SystemPrompt is the fixed instruction sent with every generation request.
const SystemPrompt = "You answer questions about a software project. " +
	"When excerpts from the project's issue tracker are provided, ground your answer in them " +
	"and cite them by their number, like [1]. " +
	"If the excerpts do not contain the answer, say so before answering from general knowledge."

// BuildUserPrompt renders the fixed prompt template embedding the retrieved
// segments and the question. With no segments the template degrades to the
// bare question, so the model answers from its own knowledge.
func BuildUserPrompt(question string, segments []core.Segment) string {
	if len(segments) == 0 {
		return question
	}

	var builder strings.Builder
	builder.WriteString("Excerpts:\n\n")

	for i, seg := range segments {
		builder.WriteString(fmt.Sprintf("[%d]", i+1))
		if seg.Title != "" {
			builder.WriteString(" " + seg.Title)
		}
		if seg.URI != "" {
			builder.WriteString(" (" + seg.URI + ")")
		}
		builder.WriteString("\n")
		builder.WriteString(seg.Text)
		builder.WriteString("\n\n")
	}

	builder.WriteString("Question: ")
	builder.WriteString(question)

	return builder.String()
}
