// Package domain holds typed identifiers shared across the flow engine.
//
// IDs are distinct named types over uuid.UUID so the compiler rejects
// cross-type assignment (a TenantID can never be passed where a FlowID is
// expected). Parsing enforces the trust-boundary invariant: IDs must be
// valid, canonical, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "github.com/fossabot/authrim-sub007/pkg/domain-errors"
)

type (
	// UserID identifies the authenticating end user.
	UserID uuid.UUID
	// TenantID identifies the organization that owns a flow.
	TenantID uuid.UUID
	// ClientID identifies the OAuth/OIDC client an attempt runs under.
	ClientID uuid.UUID
	// SessionID identifies one in-progress authentication attempt.
	SessionID uuid.UUID
	// FlowID identifies a published authentication flow.
	FlowID uuid.UUID
)

// Nil is the zero UUID, exported for comparisons in callers and tests.
var Nil = uuid.Nil

func NewUserID() UserID       { return UserID(uuid.New()) }
func NewTenantID() TenantID   { return TenantID(uuid.New()) }
func NewClientID() ClientID   { return ClientID(uuid.New()) }
func NewSessionID() SessionID { return SessionID(uuid.New()) }
func NewFlowID() FlowID       { return FlowID(uuid.New()) }

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id TenantID) String() string  { return uuid.UUID(id).String() }
func (id ClientID) String() string  { return uuid.UUID(id).String() }
func (id SessionID) String() string { return uuid.UUID(id).String() }
func (id FlowID) String() string    { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id FlowID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// canonicalUUIDLength is the length of the 8-4-4-4-12 form. Parsing rejects
// every other encoding (braced, URN, compact) so IDs arriving at trust
// boundaries have exactly one spelling.
const canonicalUUIDLength = 36

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	if len(s) != canonicalUUIDLength {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a canonical UUID")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID(s)
	return TenantID(u), err
}

func ParseClientID(s string) (ClientID, error) {
	u, err := parseUUID(s)
	return ClientID(u), err
}

func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s)
	return SessionID(u), err
}

func ParseFlowID(s string) (FlowID, error) {
	u, err := parseUUID(s)
	return FlowID(u), err
}
