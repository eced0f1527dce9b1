// Package compiler turns an authored flow graph into an executable plan.
//
// Compilation is a one-shot pure transform: it validates structure and size
// limits, parses branching-node configuration into closed typed variants,
// and indexes nodes and ordered transitions for O(1) lookup at runtime. It
// never evaluates conditions. A failed compilation reports a single coded
// error and produces nothing; there is no partial plan.
package compiler

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	dErrors "github.com/fossabot/authrim-sub007/pkg/domain-errors"
	pstrings "github.com/fossabot/authrim-sub007/pkg/platform/strings"
)

// Structural size limits. They bound both compile time and the worst-case
// per-request branch evaluation cost, so a malicious or buggy flow author
// cannot publish a plan that is expensive to execute on every request.
const (
	MaxCapabilitiesPerNode = 20
	MaxDecisionBranches    = 50
	MaxSwitchCases         = 100
	MaxValuesPerCase       = 100
)

func invalid(format string, args ...any) error {
	return dErrors.Newf(dErrors.CodeInvalidFlowConfiguration, format, args...)
}

// Compile validates the definition and produces an immutable plan. The
// returned plan is safe to cache and to share across concurrent executions.
func Compile(def models.GraphDefinition) (*models.CompiledPlan, error) {
	if len(def.Nodes) == 0 {
		return nil, invalid("flow %q has no nodes", def.ID)
	}

	plan := &models.CompiledPlan{
		ID:          def.ID,
		FlowVersion: def.FlowVersion,
		Nodes:       make(map[string]models.CompiledNode, len(def.Nodes)),
		Transitions: make(map[string][]models.Transition),
	}

	for _, node := range def.Nodes {
		if node.ID == "" {
			return nil, invalid("flow %q contains a node without an id", def.ID)
		}
		if _, dup := plan.Nodes[node.ID]; dup {
			return nil, invalid("flow %q contains duplicate node id %q", def.ID, node.ID)
		}
		compiled, err := compileNode(node)
		if err != nil {
			return nil, err
		}
		plan.Nodes[node.ID] = compiled
	}

	for _, edge := range def.Edges {
		if _, ok := plan.Nodes[edge.Source]; !ok {
			return nil, invalid("edge %q references unknown source node %q", edge.ID, edge.Source)
		}
		if _, ok := plan.Nodes[edge.Target]; !ok {
			return nil, invalid("edge %q references unknown target node %q", edge.ID, edge.Target)
		}
		plan.Transitions[edge.Source] = append(plan.Transitions[edge.Source], models.Transition{
			TargetNodeID: edge.Target,
			Type:         edge.Type,
			SourceHandle: edge.SourceHandle,
			Priority:     edge.Priority,
		})
	}

	for source := range plan.Transitions {
		orderTransitions(plan.Transitions[source])
	}

	wireFixedEdges(plan)
	plan.EntryNodeID = entryNode(def)
	plan.Warnings = danglingHandleWarnings(plan)

	return plan, nil
}

// compileNode builds the executable form of one node. Decision and switch
// nodes get their config parsed and validated; every other type - including
// types this engine does not know - compiles as a plain node so additive
// node-type extensions stay forward compatible.
func compileNode(node models.Node) (models.CompiledNode, error) {
	if len(node.Data.Capabilities) > MaxCapabilitiesPerNode {
		return models.CompiledNode{ID: node.ID}, invalid("node %q requests %d capabilities (max %d)",
			node.ID, len(node.Data.Capabilities), MaxCapabilitiesPerNode)
	}

	compiled := models.CompiledNode{
		ID:           node.ID,
		Type:         node.Type,
		Intent:       node.Data.Intent,
		Capabilities: pstrings.DedupeAndTrim(node.Data.Capabilities),
	}

	switch node.Type {
	case models.NodeTypeDecision:
		cfg, err := decodeConfig[models.DecisionConfig](node)
		if err != nil {
			return compiled, err
		}
		if len(cfg.Branches) > MaxDecisionBranches {
			return compiled, invalid("decision node %q has %d branches (max %d)",
				node.ID, len(cfg.Branches), MaxDecisionBranches)
		}
		// Branch order is ascending priority; stable so authoring order
		// breaks ties.
		sort.SliceStable(cfg.Branches, func(i, j int) bool {
			return cfg.Branches[i].Priority < cfg.Branches[j].Priority
		})
		compiled.Decision = cfg

	case models.NodeTypeSwitch:
		cfg, err := decodeConfig[models.SwitchConfig](node)
		if err != nil {
			return compiled, err
		}
		if len(cfg.Cases) > MaxSwitchCases {
			return compiled, invalid("switch node %q has %d cases (max %d)",
				node.ID, len(cfg.Cases), MaxSwitchCases)
		}
		for _, c := range cfg.Cases {
			if len(c.Values) > MaxValuesPerCase {
				return compiled, invalid("switch node %q case %q has %d values (max %d)",
					node.ID, c.ID, len(c.Values), MaxValuesPerCase)
			}
		}
		compiled.Switch = cfg
	}

	return compiled, nil
}

// decodeConfig parses a node's open config blob into a closed typed variant.
// The JSON round trip reuses the condition tree's own decoding, so the
// predicate/group distinction is settled here, once, at compile time.
func decodeConfig[T any](node models.Node) (*T, error) {
	raw, err := json.Marshal(node.Data.Config)
	if err != nil {
		return nil, invalid("node %q has unserializable config: %v", node.ID, err)
	}
	var cfg T
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, invalid("node %q has malformed %s config: %v", node.ID, node.Type, err)
	}
	return &cfg, nil
}

// orderTransitions sorts sibling transitions by ascending priority, ties
// broken by original edge order; transitions without a priority keep their
// relative order after all prioritized ones.
func orderTransitions(ts []models.Transition) {
	sort.SliceStable(ts, func(i, j int) bool {
		pi, pj := ts[i].Priority, ts[j].Priority
		switch {
		case pi != nil && pj != nil:
			return *pi < *pj
		case pi != nil:
			return true
		default:
			return false
		}
	})
}

// wireFixedEdges fills NextOnSuccess/NextOnError on plain nodes from their
// first success and error transitions.
func wireFixedEdges(plan *models.CompiledPlan) {
	for id, node := range plan.Nodes {
		for _, t := range plan.Transitions[id] {
			switch t.Type {
			case models.EdgeTypeSuccess:
				if node.NextOnSuccess == "" {
					node.NextOnSuccess = t.TargetNodeID
				}
			case models.EdgeTypeError:
				if node.NextOnError == "" {
					node.NextOnError = t.TargetNodeID
				}
			}
		}
		plan.Nodes[id] = node
	}
}

// entryNode picks the node with no incoming edges, falling back to the first
// node in declaration order when every node has an inbound edge.
func entryNode(def models.GraphDefinition) string {
	inbound := make(map[string]bool, len(def.Nodes))
	for _, edge := range def.Edges {
		inbound[edge.Target] = true
	}
	for _, node := range def.Nodes {
		if !inbound[node.ID] {
			return node.ID
		}
	}
	return def.Nodes[0].ID
}

// danglingHandleWarnings flags branches, cases, and defaults whose source
// handle has no matching transition. This is deliberately a warning, not an
// error: at runtime the affected arm behaves as a non-match, and editors
// routinely save intermediate graphs where an arm is not wired up yet.
func danglingHandleWarnings(plan *models.CompiledPlan) []string {
	var warnings []string

	handleWired := func(nodeID, handle string) bool {
		for _, t := range plan.Transitions[nodeID] {
			if t.SourceHandle == handle {
				return true
			}
		}
		return false
	}

	// Deterministic order for logging and tests.
	ids := make([]string, 0, len(plan.Nodes))
	for id := range plan.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		node := plan.Nodes[id]
		switch {
		case node.Decision != nil:
			for _, b := range node.Decision.Branches {
				if !handleWired(id, b.ID) {
					warnings = append(warnings, fmt.Sprintf(
						"decision node %q branch %q has no transition and will never match", id, b.ID))
				}
			}
			if d := node.Decision.DefaultBranch; d != "" && !handleWired(id, d) {
				warnings = append(warnings, fmt.Sprintf(
					"decision node %q default branch %q has no transition", id, d))
			}
		case node.Switch != nil:
			for _, c := range node.Switch.Cases {
				if !handleWired(id, c.ID) {
					warnings = append(warnings, fmt.Sprintf(
						"switch node %q case %q has no transition and will never match", id, c.ID))
				}
			}
			if d := node.Switch.DefaultCase; d != "" && !handleWired(id, d) {
				warnings = append(warnings, fmt.Sprintf(
					"switch node %q default case %q has no transition", id, d))
			}
		}
	}
	return warnings
}
