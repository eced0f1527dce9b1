// Package audit defines the audit event model for the flow engine. Events
// are emitted from domain logic and kept transport-agnostic so stores and
// sinks can fan out.
package audit

import (
	"time"

	"github.com/fossabot/authrim-sub007/pkg/attrs"
)

// Category classifies audit events by their primary purpose. This enables
// different retention policies, storage backends, and routing.
type Category string

const (
	// CategoryCompliance covers events with regulatory significance; these
	// require durable storage and long retention.
	CategoryCompliance Category = "compliance"

	// CategorySecurity covers events relevant to security monitoring and
	// forensics; these feed SIEM systems and alerting pipelines.
	CategorySecurity Category = "security"

	// CategoryOperations covers events useful for debugging and operational
	// visibility; these can be sampled with shorter retention.
	CategoryOperations Category = "operations"
)

// Action names an audited flow-engine action.
type Action string

const (
	// Flow lifecycle
	ActionFlowPublished       Action = "flow_published"
	ActionFlowCompileRejected Action = "flow_compile_rejected"
	ActionFlowCompileWarning  Action = "flow_compile_warning"

	// Step execution
	ActionStepResolved Action = "step_resolved"
	ActionFlowStalled  Action = "flow_stalled"

	// Security boundary
	ActionSessionBoundaryViolation Action = "session_boundary_violation"
	ActionDangerousKeyRejected     Action = "dangerous_key_rejected"
)

// actionCategories maps each action to its category.
var actionCategories = map[Action]Category{
	ActionFlowPublished:       CategoryCompliance,
	ActionFlowCompileRejected: CategoryOperations,
	ActionFlowCompileWarning:  CategoryOperations,

	ActionStepResolved: CategoryOperations,
	ActionFlowStalled:  CategoryOperations,

	ActionSessionBoundaryViolation: CategorySecurity,
	ActionDangerousKeyRejected:     CategorySecurity,
}

// CategoryFor returns the category for an action, defaulting to operations
// for actions added after this engine was built.
func CategoryFor(action Action) Category {
	if c, ok := actionCategories[action]; ok {
		return c
	}
	return CategoryOperations
}

// Event is one audit record. Identifier fields are plain strings so the
// package stays free of domain imports and events survive serialization
// boundaries unchanged.
type Event struct {
	Category  Category  `json:"category"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`

	TenantID  string `json:"tenant_id,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	FlowID    string `json:"flow_id,omitempty"`
	NodeID    string `json:"node_id,omitempty"`

	// Reason carries the machine-checkable cause for rejections
	// (tenant_mismatch, client_mismatch, dangerous key segment).
	Reason string `json:"reason,omitempty"`
	// RequestID is the correlation id from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
}

// NewEvent builds an event from slog-style key-value attributes, so call
// sites can share one attribute list between logger and publisher.
func NewEvent(action Action, kv ...any) Event {
	return Event{
		Category:  CategoryFor(action),
		Action:    action,
		Timestamp: time.Now().UTC(),
		TenantID:  attrs.ExtractString(kv, "tenant_id"),
		ClientID:  attrs.ExtractString(kv, "client_id"),
		SessionID: attrs.ExtractString(kv, "session_id"),
		UserID:    attrs.ExtractString(kv, "user_id"),
		FlowID:    attrs.ExtractString(kv, "flow_id"),
		NodeID:    attrs.ExtractString(kv, "node_id"),
		Reason:    attrs.ExtractString(kv, "reason"),
		RequestID: attrs.ExtractString(kv, "request_id"),
	}
}
