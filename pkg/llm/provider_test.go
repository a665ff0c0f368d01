package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSystem(t *testing.T) {
	history := []Message{
		{Role: RoleSystem, Content: "policy"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleSystem, Content: "context"},
		{Role: RoleAssistant, Content: "hello"},
	}

	system, turns := SplitSystem(history)
	assert.Equal(t, "policy\n\ncontext", system)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "hi"}, {Role: RoleAssistant, Content: "hello"}}, turns)
}

func TestApplyOptions(t *testing.T) {
	o := ApplyOptions(WithTemperature(0.9), WithMaxTokens(10), WithModel("m"))
	assert.Equal(t, 0.9, o.Temperature)
	assert.Equal(t, 10, o.MaxTokens)
	assert.Equal(t, "m", o.Model)

	d := ApplyOptions()
	assert.Equal(t, 0.2, d.Temperature)
	assert.Equal(t, 2048, d.MaxTokens)
}
