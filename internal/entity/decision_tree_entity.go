package entity

import (
	"time"

	"github.com/google/uuid"
)

type NodeType string

const (
	NodeTypeQuestion  NodeType = "question"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
)

type ConditionOperator string

const (
	OperatorEq       ConditionOperator = "eq"
	OperatorGt       ConditionOperator = "gt"
	OperatorLt       ConditionOperator = "lt"
	OperatorContains ConditionOperator = "contains"
	OperatorIn       ConditionOperator = "in"
)

type ActionSeverity string

const (
	SeverityInfo     ActionSeverity = "info"
	SeverityWarning  ActionSeverity = "warning"
	SeverityCritical ActionSeverity = "critical"
)

type DecisionTree struct {
	Id         uuid.UUID
	PluginId   uuid.UUID
	RootNodeId string
	Nodes      map[string]DecisionNode
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  *time.Time
}

// DecisionNode is a tagged variant. Only the fields of the node's Type are meaningful.
type DecisionNode struct {
	Id   string   `json:"id"`
	Type NodeType `json:"type"`

	// question
	Text             string            `json:"text,omitempty"`
	Options          []string          `json:"options,omitempty"`
	ExtractFrom      string            `json:"extractFrom,omitempty"`
	ChildrenByAnswer map[string]string `json:"childrenByAnswer,omitempty"`
	DefaultChildId   string            `json:"defaultChildId,omitempty"`

	// condition
	Field        string            `json:"field,omitempty"`
	Operator     ConditionOperator `json:"operator,omitempty"`
	Value        string            `json:"value,omitempty"`
	TrueChildId  string            `json:"trueChildId,omitempty"`
	FalseChildId string            `json:"falseChildId,omitempty"`

	// action
	Recommendation string         `json:"recommendation,omitempty"`
	SourceHint     string         `json:"sourceHint,omitempty"`
	Severity       ActionSeverity `json:"severity,omitempty"`
}

// DecisionStep records one visited node.
type DecisionStep struct {
	Step     int      `json:"step"`
	NodeId   string   `json:"nodeId"`
	NodeType NodeType `json:"nodeType"`
	Label    string   `json:"label"`
	Value    string   `json:"value,omitempty"`
	Result   string   `json:"result,omitempty"`
	Note     string   `json:"note,omitempty"`
}
