package auth

import (
	"errors"
	"fmt"

	"github.com/elskow/lottery-web/internal/securitylog"
)

var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated caller of a core operation.
type Principal struct {
	UserID    uint
	Email     string
	FirstName string
	LastName  string
	Role      Role
	SessionID string
}

func PrincipalFor(u *User, sessionID string) *Principal {
	return &Principal{
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		SessionID: sessionID,
	}
}

func (p *Principal) Actor() securitylog.Actor {
	return securitylog.Actor{
		ID:        p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      string(p.Role),
	}
}

// Decision is the outcome of Authorize. Reason is empty when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

func Allowed() Decision {
	return Decision{Allowed: true}
}

func Denied(reason string) Decision {
	return Decision{Reason: reason}
}

// Err returns nil for an allowed decision and an ErrUnauthorized wrapper
// otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnauthorized, d.Reason)
}

// Authorize checks that p is authenticated and holds exactly the required
// role. Administrators do not inherit the user role.
func Authorize(p *Principal, required Role) Decision {
	if p == nil || p.UserID == 0 {
		return Denied("not authenticated")
	}
	if p.Role != required {
		return Denied(fmt.Sprintf("role %q may not act as %q", p.Role, required))
	}
	return Allowed()
}
