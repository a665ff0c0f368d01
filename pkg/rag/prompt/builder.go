package prompt

import (
	"fmt"
	"strings"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/pkg/llm"
	"ai-plugin-engine/pkg/rag/decision"
)

// ContextualBuilder builds the message list for one plugin invocation.
// Reference material is numbered [1]..[n] in retrieval order.
type ContextualBuilder struct {
	plugin       *entity.Plugin
	query        string
	chunks       []*entity.RetrievedChunk
	outcome      *decision.Outcome
	history      []llm.Message
	instructions []string
}

func NewContextualBuilder(plugin *entity.Plugin, query string, chunks []*entity.RetrievedChunk, outcome *decision.Outcome, history []llm.Message) *ContextualBuilder {
	return &ContextualBuilder{
		plugin:  plugin,
		query:   query,
		chunks:  chunks,
		outcome: outcome,
		history: history,
	}
}

// WithInstructions appends extra blocks (peer positions, corrections) after the question.
func (b *ContextualBuilder) WithInstructions(instructions ...string) *ContextualBuilder {
	for _, in := range instructions {
		if strings.TrimSpace(in) != "" {
			b.instructions = append(b.instructions, in)
		}
	}
	return b
}

// Messages returns system policy, prior history, then the user turn.
func (b *ContextualBuilder) Messages() []llm.Message {
	messages := make([]llm.Message, 0, len(b.history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: b.system()})
	messages = append(messages, b.history...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: b.user()})
	return messages
}

func (b *ContextualBuilder) system() string {
	var prompt strings.Builder
	if b.plugin.SystemPrompt != "" {
		prompt.WriteString(b.plugin.SystemPrompt)
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("<task>\n")
	fmt.Fprintf(&prompt, "You are %s, an expert assistant", b.plugin.Name)
	if b.plugin.Domain != "" {
		fmt.Fprintf(&prompt, " for %s", b.plugin.Domain)
	}
	prompt.WriteString(". Answer using the reference material supplied with each question.\n")
	prompt.WriteString("If the material does not cover the question, say so plainly instead of guessing.\n")
	prompt.WriteString("</task>\n\n")

	writeCitationPolicy(&prompt, b.plugin.CitationMode)
	return prompt.String()
}

func writeCitationPolicy(prompt *strings.Builder, mode entity.CitationMode) {
	prompt.WriteString("<citation_policy>\n")
	switch mode {
	case entity.CitationModeMandatory:
		prompt.WriteString("Every factual claim MUST cite the excerpt it comes from with its number, e.g. [1] or [2, 3].\n")
		prompt.WriteString("Only cite numbers that appear in the reference material. Uncited claims are not allowed.\n")
	case entity.CitationModeOptional:
		prompt.WriteString("Cite excerpts by number, e.g. [1], where it helps the reader verify a claim.\n")
	default:
		prompt.WriteString("Do not add citation markers.\n")
	}
	prompt.WriteString("</citation_policy>\n")
}

func (b *ContextualBuilder) user() string {
	var prompt strings.Builder
	writeReferenceMaterial(&prompt, b.chunks)
	writeDecisionPath(&prompt, b.outcome)

	prompt.WriteString("<question>\n")
	prompt.WriteString(b.query)
	prompt.WriteString("\n</question>\n")

	for _, in := range b.instructions {
		prompt.WriteString("\n<instructions>\n")
		prompt.WriteString(in)
		prompt.WriteString("\n</instructions>\n")
	}
	return prompt.String()
}

func writeReferenceMaterial(prompt *strings.Builder, chunks []*entity.RetrievedChunk) {
	prompt.WriteString("<reference_material>\n")
	if len(chunks) == 0 {
		prompt.WriteString("(no relevant excerpts were found in the knowledge base)\n")
	}
	for i, c := range chunks {
		fmt.Fprintf(prompt, "[%d] %s", i+1, c.DocumentName)
		if c.Chunk.SectionTitle != nil {
			fmt.Fprintf(prompt, " / %s", *c.Chunk.SectionTitle)
		}
		if c.Chunk.PageNumber != nil {
			fmt.Fprintf(prompt, " (page %d)", *c.Chunk.PageNumber)
		}
		prompt.WriteString("\n")
		prompt.WriteString(strings.TrimSpace(c.Chunk.Content))
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("</reference_material>\n\n")
}

func writeDecisionPath(prompt *strings.Builder, outcome *decision.Outcome) {
	if outcome == nil || len(outcome.Path) == 0 {
		return
	}
	prompt.WriteString("<decision_path>\n")
	for _, step := range outcome.Path {
		fmt.Fprintf(prompt, "%d. %s", step.Step, step.Label)
		if step.Value != "" {
			fmt.Fprintf(prompt, " = %s", step.Value)
		}
		if step.Result != "" {
			fmt.Fprintf(prompt, " -> %s", step.Result)
		}
		if step.Note != "" {
			fmt.Fprintf(prompt, " (%s)", step.Note)
		}
		prompt.WriteString("\n")
	}
	if outcome.Terminal && outcome.Action != nil {
		fmt.Fprintf(prompt, "Recommendation (%s): %s\n", outcome.Action.Severity, outcome.Action.Recommendation)
		if outcome.Action.SourceHint != "" {
			fmt.Fprintf(prompt, "Look first at: %s\n", outcome.Action.SourceHint)
		}
		prompt.WriteString("Follow this recommendation unless the reference material contradicts it.\n")
	}
	prompt.WriteString("</decision_path>\n\n")
}
