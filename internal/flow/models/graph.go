package models

// NodeType determines a node's execution semantics. Decision and switch are
// the two branching kinds; every other type is "plain" (fixed success/error
// edges). Unknown types compile as plain nodes so additive node-type
// extensions never break older engines.
type NodeType string

const (
	NodeTypeDecision NodeType = "decision"
	NodeTypeSwitch   NodeType = "switch"
)

// IsBranching reports whether nodes of this type pick their successor from
// branch/case configuration instead of fixed edges.
func (t NodeType) IsBranching() bool {
	return t == NodeTypeDecision || t == NodeTypeSwitch
}

// EdgeType classifies an edge's role out of its source node.
type EdgeType string

const (
	EdgeTypeSuccess     EdgeType = "success"
	EdgeTypeError       EdgeType = "error"
	EdgeTypeConditional EdgeType = "conditional"
)

// NodeData carries the authored payload of a node. Config is the open
// configuration blob; for decision/switch nodes the compiler parses it into
// the closed DecisionConfig/SwitchConfig variants and validates it eagerly.
type NodeData struct {
	Label        string         `json:"label,omitempty"`
	Intent       string         `json:"intent,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
}

// Node is one step of an authored flow graph.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Data NodeData `json:"data"`
}

// Edge connects two nodes. SourceHandle names the branch/case on the source
// node this edge belongs to; Priority orders sibling transitions (lower
// first). Both are optional for plain edges.
type Edge struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Target       string   `json:"target"`
	Type         EdgeType `json:"type"`
	SourceHandle string   `json:"sourceHandle,omitempty"`
	Priority     *int     `json:"priority,omitempty"`
}

// GraphDefinition is the authoring-time flow: the node/edge graph a tenant
// administrator publishes. The engine never mutates it; FlowVersion passes
// through to the compiled plan unexamined.
type GraphDefinition struct {
	ID          string `json:"id"`
	FlowVersion string `json:"flowVersion,omitempty"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
}

// Branch is one prioritized arm of a decision node. Branch order is given by
// ascending Priority.
type Branch struct {
	ID        string    `json:"id"`
	Label     string    `json:"label,omitempty"`
	Condition Condition `json:"condition"`
	Priority  int       `json:"priority"`
}

// DecisionConfig is the validated configuration of a decision node.
type DecisionConfig struct {
	Branches      []Branch `json:"branches"`
	DefaultBranch string   `json:"defaultBranch,omitempty"`
}

// SwitchCase is one arm of a switch node; Values lists the scalars that
// select it.
type SwitchCase struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Values []any  `json:"values"`
}

// SwitchConfig is the validated configuration of a switch node. SwitchKey is
// a dotted path resolved against the Context with the same reserved-key-safe
// traversal as predicate keys.
type SwitchConfig struct {
	SwitchKey   string       `json:"switchKey"`
	Cases       []SwitchCase `json:"cases"`
	DefaultCase string       `json:"defaultCase,omitempty"`
}
