package decision

import (
	"fmt"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/pkg/rag/engineerr"
)

const validateOp = "decision.ValidateTree"

func invalid(format string, args ...interface{}) error {
	return engineerr.New(engineerr.KindTreeEvaluation, validateOp, fmt.Sprintf(format, args...))
}

// ValidateTree checks the structural rules a tree must satisfy before evaluation:
// the root exists, every referenced child exists, and answer keys are unique
// once trimmed and lower-cased.
func ValidateTree(tree *entity.DecisionTree) error {
	if tree == nil || len(tree.Nodes) == 0 {
		return invalid("tree has no nodes")
	}
	if _, ok := tree.Nodes[tree.RootNodeId]; !ok {
		return invalid("root node %q does not exist", tree.RootNodeId)
	}

	exists := func(id string) bool {
		_, ok := tree.Nodes[id]
		return ok
	}

	for key, node := range tree.Nodes {
		if node.Id != "" && node.Id != key {
			return invalid("node keyed %q declares id %q", key, node.Id)
		}
		switch node.Type {
		case entity.NodeTypeQuestion:
			seen := make(map[string]bool, len(node.ChildrenByAnswer))
			for answer, child := range node.ChildrenByAnswer {
				k := normalize(answer)
				if k == "" {
					return invalid("question %q has an empty answer key", key)
				}
				if seen[k] {
					return invalid("question %q has duplicate answer key %q", key, k)
				}
				seen[k] = true
				if !exists(child) {
					return invalid("question %q answer %q points to missing node %q", key, answer, child)
				}
			}
			if node.DefaultChildId != "" && !exists(node.DefaultChildId) {
				return invalid("question %q default points to missing node %q", key, node.DefaultChildId)
			}
		case entity.NodeTypeCondition:
			switch node.Operator {
			case entity.OperatorEq, entity.OperatorGt, entity.OperatorLt, entity.OperatorContains, entity.OperatorIn:
			default:
				return invalid("condition %q has unknown operator %q", key, node.Operator)
			}
			for _, child := range []string{node.TrueChildId, node.FalseChildId} {
				if child != "" && !exists(child) {
					return invalid("condition %q points to missing node %q", key, child)
				}
			}
		case entity.NodeTypeAction:
			switch node.Severity {
			case "", entity.SeverityInfo, entity.SeverityWarning, entity.SeverityCritical:
			default:
				return invalid("action %q has unknown severity %q", key, node.Severity)
			}
		default:
			return invalid("node %q has unknown type %q", key, node.Type)
		}
	}
	return nil
}
