// Package decision walks a plugin's decision tree over a query or document segment.
package decision

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/pkg/rag/engineerr"
)

const op = "decision.Evaluate"

// Input is what the tree is evaluated against. Fields carries explicit
// caller-supplied values and takes precedence over extraction from Text.
type Input struct {
	Text   string
	Fields map[string]string
}

// Outcome is the visited path. Terminal is set when an action node was reached;
// otherwise evaluation halted at a question with no matching answer.
type Outcome struct {
	Path     []entity.DecisionStep
	Terminal bool
	Action   *entity.DecisionNode
	HaltedAt string
}

type Evaluator struct {
	mode MatchMode
}

func NewEvaluator(mode MatchMode) *Evaluator {
	if mode == "" {
		mode = MatchSubstring
	}
	return &Evaluator{mode: mode}
}

// Evaluate starts at the root and follows exactly one edge per node until an
// action node or an unmatched question. A walk longer than the node count is
// reported as a cycle. The path recorded so far is returned with any error.
func (e *Evaluator) Evaluate(tree *entity.DecisionTree, in Input) (*Outcome, error) {
	out := &Outcome{}
	if tree == nil {
		return out, nil
	}
	if err := ValidateTree(tree); err != nil {
		return out, err
	}

	current := tree.RootNodeId
	for step := 1; ; step++ {
		if step > len(tree.Nodes) {
			return out, engineerr.New(engineerr.KindTreeEvaluation, op,
				fmt.Sprintf("walk exceeded %d nodes at %q, tree has a cycle", len(tree.Nodes), current))
		}
		node, ok := tree.Nodes[current]
		if !ok {
			return out, engineerr.New(engineerr.KindTreeEvaluation, op, fmt.Sprintf("node %q does not exist", current))
		}

		switch node.Type {
		case entity.NodeTypeQuestion:
			value, answer, matched := e.answer(node, in)
			rec := entity.DecisionStep{Step: step, NodeId: node.Id, NodeType: node.Type, Label: node.Text, Value: value}

			next := ""
			if matched {
				next = childFor(node, answer)
				rec.Result = answer
			}
			if next == "" && node.DefaultChildId != "" {
				next = node.DefaultChildId
				rec.Result = "default"
			}
			if next == "" {
				rec.Result = "no match"
				out.Path = append(out.Path, rec)
				out.HaltedAt = node.Id
				return out, nil
			}
			out.Path = append(out.Path, rec)
			current = next

		case entity.NodeTypeCondition:
			actual := e.fieldValue(node.Field, in)
			rec := entity.DecisionStep{
				Step:     step,
				NodeId:   node.Id,
				NodeType: node.Type,
				Label:    fmt.Sprintf("%s %s %s", node.Field, node.Operator, node.Value),
				Value:    actual,
			}
			result, err := compare(node.Operator, actual, node.Value)
			if err != nil {
				rec.Result = "error"
				out.Path = append(out.Path, rec)
				return out, engineerr.Wrapf(engineerr.KindTreeEvaluation, op, err, "condition %q", node.Id)
			}
			rec.Result = strconv.FormatBool(result)
			if actual == "" && (node.Operator == entity.OperatorGt || node.Operator == entity.OperatorLt) {
				rec.Note = fmt.Sprintf("%s not found, numeric comparison taken as false", node.Field)
			}
			out.Path = append(out.Path, rec)

			next := node.FalseChildId
			if result {
				next = node.TrueChildId
			}
			if next == "" {
				return out, engineerr.New(engineerr.KindTreeEvaluation, op,
					fmt.Sprintf("condition %q has no %t branch", node.Id, result))
			}
			current = next

		case entity.NodeTypeAction:
			severity := node.Severity
			if severity == "" {
				severity = entity.SeverityInfo
			}
			out.Path = append(out.Path, entity.DecisionStep{
				Step:     step,
				NodeId:   node.Id,
				NodeType: node.Type,
				Label:    node.Recommendation,
				Result:   string(severity),
			})
			action := node
			action.Severity = severity
			out.Action = &action
			out.Terminal = true
			return out, nil

		default:
			return out, engineerr.New(engineerr.KindTreeEvaluation, op, fmt.Sprintf("node %q has unknown type %q", node.Id, node.Type))
		}
	}
}

// answer resolves a question node. The candidate value comes from Fields, then
// from a "key: value" pattern in the text; failing both, options are searched in
// the text following the extractFrom keyword (or the whole text).
func (e *Evaluator) answer(node entity.DecisionNode, in Input) (value, option string, ok bool) {
	if node.ExtractFrom != "" {
		if v, found := lookupField(in.Fields, node.ExtractFrom); found {
			value = v
		} else if v, found := extractLabeled(in.Text, node.ExtractFrom); found {
			value = v
		}
	}

	if value != "" {
		for _, o := range node.Options {
			if normalize(o) == normalize(value) {
				return value, o, true
			}
		}
		for _, o := range node.Options {
			if e.mode.contains(value, o) {
				return value, o, true
			}
		}
	}

	scope := in.Text
	if node.ExtractFrom != "" {
		if i := strings.Index(strings.ToLower(scope), strings.ToLower(node.ExtractFrom)); i >= 0 {
			scope = scope[i+len(node.ExtractFrom):]
		}
	}
	for _, o := range node.Options {
		if e.mode.contains(scope, o) {
			if value == "" {
				value = o
			}
			return value, o, true
		}
	}
	return value, "", false
}

var wholeTextFields = map[string]bool{"text": true, "query": true, "document": true, "input": true}

func (e *Evaluator) fieldValue(field string, in Input) string {
	if wholeTextFields[normalize(field)] {
		return in.Text
	}
	if v, ok := lookupField(in.Fields, field); ok {
		return v
	}
	if v, ok := extractLabeled(in.Text, field); ok {
		return v
	}
	return ""
}

func lookupField(fields map[string]string, key string) (string, bool) {
	if v, ok := fields[key]; ok {
		return v, true
	}
	for k, v := range fields {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// extractLabeled finds "key: value" or "key = value" in text. The value ends at a
// newline, a semicolon or a comma followed by space, so "1,200" stays whole.
func extractLabeled(text, key string) (string, bool) {
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(strings.TrimSpace(key)) + `\s*[:=]\s*((?:[^\n,;]|,\S)+)`)
	if err != nil {
		return "", false
	}
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	return v, v != ""
}

// compare evaluates a condition. String operators are case-insensitive; gt and lt
// need numeric operands. A missing value is false rather than an error; Evaluate
// notes it on the step.
func compare(operator entity.ConditionOperator, actual, expected string) (bool, error) {
	actual = strings.TrimSpace(actual)
	switch operator {
	case entity.OperatorEq:
		return strings.EqualFold(actual, strings.TrimSpace(expected)), nil
	case entity.OperatorContains:
		return actual != "" && strings.Contains(strings.ToLower(actual), strings.ToLower(strings.TrimSpace(expected))), nil
	case entity.OperatorIn:
		for _, item := range strings.Split(expected, ",") {
			if strings.EqualFold(actual, strings.TrimSpace(item)) {
				return true, nil
			}
		}
		return false, nil
	case entity.OperatorGt, entity.OperatorLt:
		if actual == "" {
			return false, nil
		}
		a, err := parseNumber(actual)
		if err != nil {
			return false, fmt.Errorf("value %q is not numeric", actual)
		}
		b, err := parseNumber(expected)
		if err != nil {
			return false, fmt.Errorf("operand %q is not numeric", expected)
		}
		if operator == entity.OperatorGt {
			return a > b, nil
		}
		return a < b, nil
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return strconv.ParseFloat(s, 64)
}

func childFor(node entity.DecisionNode, answer string) string {
	if child, ok := node.ChildrenByAnswer[answer]; ok {
		return child
	}
	key := normalize(answer)
	for k, child := range node.ChildrenByAnswer {
		if normalize(k) == key {
			return child
		}
	}
	return ""
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
