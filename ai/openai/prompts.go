package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/hybridrag/core"
)

const answerSystemPrompt = `You are a knowledge assistant. Answer the question using the reference sections provided by the retrieval system and, when present, the additional context supplied by the caller.

Rules:
- Prefer the reference sections over prior knowledge.
- Say which statements come from the reference sections and which come from the additional context.
- If neither source answers the question, say so plainly instead of guessing.`

// buildReferenceContext renders hits as numbered reference sections.
func buildReferenceContext(hits []core.Hit) string {
	sections := make([]string, len(hits))
	for i, hit := range hits {
		sections[i] = fmt.Sprintf("[Reference Section %d]\n%s", i+1, hit.Document.Content)
	}
	return strings.Join(sections, "\n\n")
}

// buildUserPrompt assembles the question, the reference sections and the
// optional external context into one user message.
func buildUserPrompt(query string, hits []core.Hit, externalContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	fmt.Fprintf(&b, "REFERENCE KNOWLEDGE:\n%s\n\n", buildReferenceContext(hits))
	if externalContext != "" {
		fmt.Fprintf(&b, "ADDITIONAL CONTEXT:\n%s\n\n", externalContext)
	}
	b.WriteString("Please provide a unified explanation.")
	return b.String()
}
