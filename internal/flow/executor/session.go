package executor

import (
	"errors"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	dErrors "github.com/fossabot/authrim-sub007/pkg/domain-errors"
)

// Machine-checkable reasons for session boundary failures. Handlers map
// these to an authentication error response without string matching.
var (
	ErrTenantMismatch = errors.New("tenant_mismatch")
	ErrClientMismatch = errors.New("client_mismatch")
)

// ValidateSession checks that an incoming step submission belongs to the
// session it targets. This is an authorization boundary, not a presence
// requirement: a check is skipped when the request omits the corresponding
// field, and enforced exactly when it is supplied. It exists to stop a step
// submission from one tenant or client being replayed against another
// tenant's or client's in-progress session.
//
// The tenant check runs strictly before the client check; when both would
// fail, the tenant mismatch is the error surfaced.
func ValidateSession(session models.Session, scope models.StepScope) error {
	if scope.TenantID != nil && *scope.TenantID != session.TenantID {
		return dErrors.Wrap(ErrTenantMismatch, dErrors.CodeInvalidSession, "session tenant mismatch")
	}
	if scope.ClientID != nil && *scope.ClientID != session.ClientID {
		return dErrors.Wrap(ErrClientMismatch, dErrors.CodeInvalidSession, "session client mismatch")
	}
	return nil
}
