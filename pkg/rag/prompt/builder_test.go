package prompt

import (
	"strings"
	"testing"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/pkg/llm"
	"ai-plugin-engine/pkg/rag/decision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextualBuilder_Messages(t *testing.T) {
	section := "Termination"
	page := 3
	plugin := &entity.Plugin{Name: "LegalBot", Domain: "employment law", SystemPrompt: "Be precise.", CitationMode: entity.CitationModeMandatory}
	chunks := []*entity.RetrievedChunk{
		{Chunk: entity.Chunk{Content: "Notice period is 30 days.", SectionTitle: &section, PageNumber: &page}, DocumentName: "handbook.pdf"},
		{Chunk: entity.Chunk{Content: "Severance is two weeks per year."}, DocumentName: "policy.md"},
	}
	outcome := &decision.Outcome{
		Terminal: true,
		Path: []entity.DecisionStep{
			{Step: 1, Label: "Contract type?", Value: "employment", Result: "Employment"},
			{Step: 2, Label: "salary gt 100000", Result: "false", Note: "salary not found, numeric comparison taken as false"},
		},
		Action:   &entity.DecisionNode{Recommendation: "Apply statutory minimums", Severity: entity.SeverityWarning},
	}
	history := []llm.Message{{Role: llm.RoleUser, Content: "earlier"}, {Role: llm.RoleAssistant, Content: "reply"}}

	msgs := NewContextualBuilder(plugin, "What is the notice period?", chunks, outcome, history).
		WithInstructions("Consider peer positions.", "  ").
		Messages()

	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "Be precise.")
	assert.Contains(t, msgs[0].Content, "MUST cite")
	assert.Equal(t, history, msgs[1:3])

	user := msgs[3].Content
	assert.Contains(t, user, "[1] handbook.pdf / Termination (page 3)")
	assert.Contains(t, user, "[2] policy.md")
	assert.Contains(t, user, "2. salary gt 100000 -> false (salary not found, numeric comparison taken as false)")
	assert.Contains(t, user, "Recommendation (warning): Apply statutory minimums")
	assert.Contains(t, user, "What is the notice period?")
	assert.Equal(t, 1, strings.Count(user, "<instructions>"))
}

func TestContextualBuilder_NoChunks(t *testing.T) {
	plugin := &entity.Plugin{Name: "Bot", CitationMode: entity.CitationModeNone}
	msgs := NewContextualBuilder(plugin, "q", nil, nil, nil).Messages()

	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "Do not add citation markers")
	assert.Contains(t, msgs[1].Content, "no relevant excerpts")
	assert.NotContains(t, msgs[1].Content, "<decision_path>")
}

func TestReviewBuilder_Messages(t *testing.T) {
	plugin := &entity.Plugin{Name: "Reviewer", CitationMode: entity.CitationModeOptional}
	msgs := NewReviewBuilder(plugin, "Offer Letter", "Salary: 10", 4, 6, nil, nil).Messages()

	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, AnnotationFormat)
	assert.Contains(t, msgs[1].Content, `<document title="Offer Letter" lines="4-6">`)
}
