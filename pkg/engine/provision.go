package engine

import (
	"context"
	"errors"

	"github.com/verbalis-ai/verbalis/pkg/core"
	"github.com/verbalis-ai/verbalis/pkg/core/types"
	"github.com/verbalis-ai/verbalis/pkg/identity"
)

const defaultSessionTitle = "Voice Chat"

// Provisioned is the result of one successful provisioning attempt.
type Provisioned struct {
	Session types.Session
	Token   MediaToken
	User    identity.User
}

// Provisioner exchanges a persona selection and the current identity for
// a session record plus an ephemeral media token. The two backend calls
// are sequential and not transactional: when token issuance fails the
// created session record is abandoned — not retried, not reused — and
// the caller provisions from scratch. Retry policy belongs to the
// lifecycle controller so a retry can never silently duplicate sessions.
type Provisioner struct {
	Backend   Backend
	Identity  Identity
	AgentName string
}

// Provision runs one attempt. Context deadline expiry maps to the
// distinct provision-timeout error so an unresponsive backend never
// looks like an ordinary failure.
func (p Provisioner) Provision(ctx context.Context, personaID string) (Provisioned, error) {
	if personaID == "" {
		return Provisioned{}, core.NewProvisionError("persona id is required", nil)
	}

	user, err := p.Identity.CurrentUser(ctx)
	if err != nil {
		return Provisioned{}, provisionErr("resolving current user failed", err)
	}
	if !user.EmailVerified {
		return Provisioned{}, core.NewProvisionError("email address is not verified", nil)
	}

	session, err := p.Backend.CreateSession(ctx, personaID, defaultSessionTitle)
	if err != nil {
		return Provisioned{}, provisionErr("session creation failed", err)
	}

	token, err := p.Backend.IssueMediaToken(ctx, session.RoomName, user.DisplayName(), p.AgentName)
	if err != nil {
		if timedOut(ctx, err) {
			return Provisioned{}, core.NewProvisionTimeoutError(err)
		}
		return Provisioned{}, core.NewTokenIssuanceError("media token issuance failed", err)
	}

	session.ParticipantIdentity = user.ID
	session.PersonaID = personaID
	return Provisioned{Session: session, Token: token, User: user}, nil
}

func provisionErr(message string, cause error) *core.Error {
	if timedOut(nil, cause) {
		return core.NewProvisionTimeoutError(cause)
	}
	return core.NewProvisionError(message, cause)
}

func timedOut(ctx context.Context, err error) bool {
	if ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
