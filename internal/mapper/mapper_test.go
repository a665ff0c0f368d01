package mapper

import (
	"testing"

	"ai-plugin-engine/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestToEntity_MalformedColumns(t *testing.T) {
	broken := datatypes.JSON(`{"truncated":`)

	tests := []struct {
		name   string
		column string
		decode func() error
	}{
		{
			name:   "decision tree nodes",
			column: "decision_trees.nodes",
			decode: func() error {
				_, err := NewDecisionTreeMapper().ToEntity(&model.DecisionTree{Id: uuid.New(), Nodes: broken})
				return err
			},
		},
		{
			name:   "chunk metadata",
			column: "document_chunks.metadata",
			decode: func() error {
				_, err := NewChunkMapper().ToEntity(&model.DocumentChunk{Id: uuid.New(), Metadata: broken})
				return err
			},
		},
		{
			name:   "collaboration rounds",
			column: "collaboration_sessions.rounds",
			decode: func() error {
				_, err := NewCollaborationMapper().ToEntity(&model.CollaborationSession{Id: uuid.New(), Rounds: broken})
				return err
			},
		},
		{
			name:   "collaboration consensus",
			column: "collaboration_sessions.consensus",
			decode: func() error {
				_, err := NewCollaborationMapper().ToEntity(&model.CollaborationSession{Id: uuid.New(), Consensus: broken})
				return err
			},
		},
		{
			name:   "query log citations",
			column: "query_logs.citations",
			decode: func() error {
				_, err := NewAuditMapper().QueryLogToEntity(&model.QueryLog{Id: uuid.New(), Citations: broken})
				return err
			},
		},
		{
			name:   "review log summary",
			column: "review_logs.summary",
			decode: func() error {
				_, err := NewAuditMapper().ReviewLogToEntity(&model.ReviewLog{Id: uuid.New(), Summary: broken})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.column)
		})
	}
}

func TestDecisionTreeMapper_ToEntity(t *testing.T) {
	m := NewDecisionTreeMapper()

	t.Run("node ids filled from keys", func(t *testing.T) {
		tree, err := m.ToEntity(&model.DecisionTree{
			Id:         uuid.New(),
			RootNodeId: "root",
			Nodes:      datatypes.JSON(`{"root":{"type":"action","text":"done"}}`),
		})
		require.NoError(t, err)
		require.Contains(t, tree.Nodes, "root")
		assert.Equal(t, "root", tree.Nodes["root"].Id)
	})

	t.Run("empty column yields no nodes", func(t *testing.T) {
		tree, err := m.ToEntity(&model.DecisionTree{Id: uuid.New()})
		require.NoError(t, err)
		assert.Empty(t, tree.Nodes)
	})

	t.Run("nil model", func(t *testing.T) {
		tree, err := m.ToEntity(nil)
		assert.NoError(t, err)
		assert.Nil(t, tree)
	})
}
