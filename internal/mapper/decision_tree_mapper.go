package mapper

import (
	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/model"
)

type DecisionTreeMapper struct{}

func NewDecisionTreeMapper() *DecisionTreeMapper {
	return &DecisionTreeMapper{}
}

// ToEntity keys nodes by the map key; a node's own id field is filled from it
// when missing.
func (m *DecisionTreeMapper) ToEntity(t *model.DecisionTree) (*entity.DecisionTree, error) {
	if t == nil {
		return nil, nil
	}
	out := &entity.DecisionTree{
		Id:         t.Id,
		PluginId:   t.PluginId,
		RootNodeId: t.RootNodeId,
		Nodes:      map[string]entity.DecisionNode{},
		IsActive:   t.IsActive,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  timePtr(t.UpdatedAt),
	}
	if err := fromJSON("decision_trees.nodes", t.Nodes, &out.Nodes); err != nil {
		return nil, err
	}
	for id, node := range out.Nodes {
		if node.Id == "" {
			node.Id = id
			out.Nodes[id] = node
		}
	}
	return out, nil
}

func (m *DecisionTreeMapper) ToModel(t *entity.DecisionTree) *model.DecisionTree {
	if t == nil {
		return nil
	}
	out := &model.DecisionTree{
		Id:         t.Id,
		PluginId:   t.PluginId,
		RootNodeId: t.RootNodeId,
		Nodes:      toJSON(t.Nodes, "{}"),
		IsActive:   t.IsActive,
		CreatedAt:  t.CreatedAt,
	}
	if t.UpdatedAt != nil {
		out.UpdatedAt = *t.UpdatedAt
	}
	return out
}
