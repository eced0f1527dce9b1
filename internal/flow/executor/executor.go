// Package executor walks compiled flow plans: it decides, for the node an
// authentication attempt is currently on, which node runs next.
//
// The executor performs no I/O and holds no per-attempt state; every call is
// independent and reentrant. An empty next-node result is a normal outcome
// meaning "no eligible transition" - the surrounding service decides whether
// that is a configuration bug or an intentional terminal state. The executor
// never guesses a destination.
package executor

import (
	"log/slog"

	"github.com/fossabot/authrim-sub007/internal/flow/condition"
	"github.com/fossabot/authrim-sub007/internal/flow/models"
)

// SecurityEvents receives notifications about rejected dangerous input.
// A dangerous switch key is a policy author or upstream system feeding the
// engine a traversal attack; it must be surfaced, not silently ignored.
type SecurityEvents interface {
	DangerousKeyRejected(nodeID, key, segment string)
}

// Executor resolves the next node for decision and switch nodes using the
// condition evaluator, and follows fixed edges for plain nodes.
type Executor struct {
	evaluator *condition.Evaluator
	logger    *slog.Logger
	security  SecurityEvents
}

// Option configures the Executor.
type Option func(*Executor)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func WithSecurityEvents(s SecurityEvents) Option {
	return func(e *Executor) {
		e.security = s
	}
}

// New constructs an executor around the given evaluator.
func New(evaluator *condition.Evaluator, opts ...Option) *Executor {
	e := &Executor{evaluator: evaluator}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveNext returns the id of the node that runs after the given node, or
// "" when no transition is eligible. Decision nodes pick the first branch
// whose condition holds, in ascending priority order; switch nodes match the
// resolved key value against case lists in declaration order; plain nodes
// follow their success edge.
func (e *Executor) ResolveNext(node models.CompiledNode, plan *models.CompiledPlan, ctx *models.Context) string {
	switch {
	case node.Decision != nil:
		return e.resolveDecision(node, plan, ctx)
	case node.Switch != nil:
		return e.resolveSwitch(node, plan, ctx)
	default:
		return node.NextOnSuccess
	}
}

// ResolveError returns the node that handles a failed execution of the given
// plain node, or "" when the flow has no error edge there.
func (e *Executor) ResolveError(node models.CompiledNode) string {
	return node.NextOnError
}

func (e *Executor) resolveDecision(node models.CompiledNode, plan *models.CompiledPlan, ctx *models.Context) string {
	cfg := node.Decision

	// Branches are pre-sorted by ascending priority at compile time.
	for _, branch := range cfg.Branches {
		if !e.evaluator.Evaluate(branch.Condition, ctx) {
			continue
		}
		if target := targetForHandle(plan, node.ID, branch.ID); target != "" {
			return target
		}
		// A matched branch with no wired transition was flagged at compile
		// time; treat it as a non-match and keep looking.
		if e.logger != nil {
			e.logger.Warn("decision branch matched but has no transition",
				"node_id", node.ID,
				"branch_id", branch.ID,
			)
		}
	}

	if cfg.DefaultBranch != "" {
		return targetForHandle(plan, node.ID, cfg.DefaultBranch)
	}
	return ""
}

func (e *Executor) resolveSwitch(node models.CompiledNode, plan *models.CompiledPlan, ctx *models.Context) string {
	cfg := node.Switch

	value, found := e.resolveSwitchKey(node.ID, cfg.SwitchKey, ctx)
	if found {
		for _, c := range cfg.Cases {
			if caseMatches(c, value) {
				if target := targetForHandle(plan, node.ID, c.ID); target != "" {
					return target
				}
				if e.logger != nil {
					e.logger.Warn("switch case matched but has no transition",
						"node_id", node.ID,
						"case_id", c.ID,
					)
				}
			}
		}
	}

	if cfg.DefaultCase != "" {
		return targetForHandle(plan, node.ID, cfg.DefaultCase)
	}
	return ""
}

// resolveSwitchKey resolves the switch key with the same reserved-key-safe
// traversal predicates use. A dangerous segment aborts resolution and is
// reported as a security event.
func (e *Executor) resolveSwitchKey(nodeID, key string, ctx *models.Context) (any, bool) {
	if segment, dangerous := condition.DangerousSegment(key); dangerous {
		if e.logger != nil {
			e.logger.Warn("dangerous segment rejected in switch key",
				"node_id", nodeID,
				"switch_key", key,
				"segment", segment,
			)
		}
		if e.security != nil {
			e.security.DangerousKeyRejected(nodeID, key, segment)
		}
		return nil, false
	}
	return condition.ResolveKey(key, ctx)
}

func caseMatches(c models.SwitchCase, value any) bool {
	for _, candidate := range c.Values {
		if condition.Equal(value, candidate) {
			return true
		}
	}
	return false
}

// targetForHandle finds the transition out of nodeID carrying the given
// source handle and returns its target, or "".
func targetForHandle(plan *models.CompiledPlan, nodeID, handle string) string {
	for _, t := range plan.TransitionsFor(nodeID) {
		if t.SourceHandle == handle {
			return t.TargetNodeID
		}
	}
	return ""
}
