package models

// Transition is one compiled outgoing edge of a node. Transitions for a
// source node are ordered by ascending Priority (ties by original edge
// order) with un-prioritized transitions after prioritized ones.
type Transition struct {
	TargetNodeID string   `json:"targetNodeId"`
	Type         EdgeType `json:"type"`
	SourceHandle string   `json:"sourceHandle,omitempty"`
	Priority     *int     `json:"priority,omitempty"`
}

// CompiledNode is the executable form of a node. Exactly one of Decision or
// Switch is set for branching nodes; both are nil for plain nodes.
type CompiledNode struct {
	ID            string          `json:"id"`
	Type          NodeType        `json:"type"`
	Intent        string          `json:"intent,omitempty"`
	Capabilities  []string        `json:"capabilities,omitempty"`
	NextOnSuccess string          `json:"nextOnSuccess,omitempty"`
	NextOnError   string          `json:"nextOnError,omitempty"`
	Decision      *DecisionConfig `json:"decision,omitempty"`
	Switch        *SwitchConfig   `json:"switch,omitempty"`
}

// CompiledPlan is the immutable, indexed, validated form of a flow. A plan
// is safe to cache and to share read-only across arbitrarily many concurrent
// evaluations: no field is ever mutated after Compile returns.
type CompiledPlan struct {
	ID          string                  `json:"id"`
	FlowVersion string                  `json:"flowVersion,omitempty"`
	Nodes       map[string]CompiledNode `json:"nodes"`
	Transitions map[string][]Transition `json:"transitions"`
	EntryNodeID string                  `json:"entryNodeId"`

	// Warnings records non-fatal issues found at compile time, such as a
	// branch whose sourceHandle has no matching transition. Callers are
	// expected to log them; at runtime the affected branch behaves as a
	// non-match.
	Warnings []string `json:"warnings,omitempty"`
}

// Node returns the compiled node by id.
func (p *CompiledPlan) Node(id string) (CompiledNode, bool) {
	n, ok := p.Nodes[id]
	return n, ok
}

// TransitionsFor returns the ordered outgoing transitions of a node. The
// returned slice must be treated as read-only.
func (p *CompiledPlan) TransitionsFor(nodeID string) []Transition {
	return p.Transitions[nodeID]
}
