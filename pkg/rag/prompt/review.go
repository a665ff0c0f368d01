package prompt

import (
	"fmt"
	"strings"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/pkg/llm"
	"ai-plugin-engine/pkg/rag/decision"
)

// AnnotationFormat is the JSON shape review generations must return.
const AnnotationFormat = `{"annotations":[{"severity":"info|warning|error","category":"short label","issue":"what is wrong","suggestedFix":"how to fix it","citations":[1]}]}`

// ReviewBuilder builds the messages for reviewing one document segment.
type ReviewBuilder struct {
	plugin       *entity.Plugin
	title        string
	segment      string
	lineStart    int
	lineEnd      int
	chunks       []*entity.RetrievedChunk
	outcome      *decision.Outcome
	instructions []string
}

func NewReviewBuilder(plugin *entity.Plugin, title, segment string, lineStart, lineEnd int, chunks []*entity.RetrievedChunk, outcome *decision.Outcome) *ReviewBuilder {
	return &ReviewBuilder{
		plugin:    plugin,
		title:     title,
		segment:   segment,
		lineStart: lineStart,
		lineEnd:   lineEnd,
		chunks:    chunks,
		outcome:   outcome,
	}
}

func (b *ReviewBuilder) WithInstructions(instructions ...string) *ReviewBuilder {
	for _, in := range instructions {
		if strings.TrimSpace(in) != "" {
			b.instructions = append(b.instructions, in)
		}
	}
	return b
}

func (b *ReviewBuilder) Messages() []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: b.system()},
		{Role: llm.RoleUser, Content: b.user()},
	}
}

func (b *ReviewBuilder) system() string {
	var prompt strings.Builder
	if b.plugin.SystemPrompt != "" {
		prompt.WriteString(b.plugin.SystemPrompt)
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("<task>\n")
	fmt.Fprintf(&prompt, "You are %s reviewing a document segment", b.plugin.Name)
	if b.plugin.Domain != "" {
		fmt.Fprintf(&prompt, " for compliance with %s practice", b.plugin.Domain)
	}
	prompt.WriteString(".\nReport each problem as an annotation. Use severity error for violations, warning for risks and info for suggestions.\n")
	prompt.WriteString("Respond with JSON only, no prose, in exactly this shape:\n")
	prompt.WriteString(AnnotationFormat)
	prompt.WriteString("\nReturn {\"annotations\":[]} when the segment has no problems.\n")
	prompt.WriteString("</task>\n\n")
	writeCitationPolicy(&prompt, b.plugin.CitationMode)
	prompt.WriteString("Put excerpt numbers in the citations array rather than in the text.\n")
	return prompt.String()
}

func (b *ReviewBuilder) user() string {
	var prompt strings.Builder
	writeReferenceMaterial(&prompt, b.chunks)
	writeDecisionPath(&prompt, b.outcome)

	fmt.Fprintf(&prompt, "<document title=%q lines=\"%d-%d\">\n", b.title, b.lineStart, b.lineEnd)
	prompt.WriteString(b.segment)
	prompt.WriteString("\n</document>\n")

	for _, in := range b.instructions {
		prompt.WriteString("\n<instructions>\n")
		prompt.WriteString(in)
		prompt.WriteString("\n</instructions>\n")
	}
	return prompt.String()
}
