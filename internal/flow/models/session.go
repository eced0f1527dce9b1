package models

import (
	id "github.com/fossabot/authrim-sub007/pkg/domain"
)

// Session is the engine's view of one in-progress authentication attempt.
// The session store owning the full record lives outside the engine; the
// executor only needs the boundary identifiers and the cursor into the plan.
type Session struct {
	ID            id.SessionID
	TenantID      id.TenantID
	ClientID      id.ClientID
	UserID        id.UserID
	FlowID        id.FlowID
	FlowVersion   string
	CurrentNodeID string
}

// StepScope carries the tenant/client identifiers asserted by an incoming
// step submission. Both are optional: an absent field skips that boundary
// check, a present field must match the session exactly.
type StepScope struct {
	TenantID *id.TenantID
	ClientID *id.ClientID
}
