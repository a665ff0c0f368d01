package stance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{name: "stance line", answer: "Long reasoning [1].\n\nSTANCE: The clause is enforceable.", want: "The clause is enforceable."},
		{name: "bold stance line", answer: "Reasoning.\n**Stance:** not enforceable", want: "not enforceable"},
		{name: "last stance wins", answer: "STANCE: yes\nmore text\nSTANCE: no", want: "no"},
		{name: "fallback strips markers", answer: "Water boils at 100 C [1, 2].", want: "Water boils at 100 C ."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.answer))
		})
	}
}

func TestParseRevision(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  Revision
	}{
		{
			name:  "revised",
			reply: "REVISION: adopted the stricter reading\nThe clause is void.",
			want:  Revision{Declared: true, Revised: true, Note: "adopted the stricter reading", Answer: "The clause is void."},
		},
		{
			name:  "unchanged",
			reply: "NO REVISION\nThe clause is valid.",
			want:  Revision{Declared: true, Answer: "The clause is valid."},
		},
		{
			name:  "undeclared",
			reply: "The clause is valid.",
			want:  Revision{Answer: "The clause is valid."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRevision(tt.reply))
		})
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("Water boils at 100 degrees Celsius", "water BOILS at 100 degrees celsius."))
	assert.Equal(t, 1.0, Similarity("", "the a of"))
	assert.Equal(t, 0.0, Similarity("cats purr", "dogs bark"))
	assert.True(t, Compatible("The contract is valid and enforceable", "The contract is enforceable and valid"))
	assert.False(t, Compatible("The contract is valid", "The contract is void under local law"))
}

func TestCluster(t *testing.T) {
	stances := []string{
		"the clause is enforceable",
		"the clause is void",
		"clause is enforceable",
		"the clause is void entirely",
	}
	assert.Equal(t, [][]int{{0, 2}, {1, 3}}, Cluster(stances))
	assert.Empty(t, Cluster(nil))
}
