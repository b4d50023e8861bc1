package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	user := &Principal{UserID: 1, Role: RoleUser}
	admin := &Principal{UserID: 2, Role: RoleAdmin}

	tests := []struct {
		name      string
		principal *Principal
		required  Role
		allowed   bool
	}{
		{name: "user as user", principal: user, required: RoleUser, allowed: true},
		{name: "admin as admin", principal: admin, required: RoleAdmin, allowed: true},
		{name: "user as admin", principal: user, required: RoleAdmin},
		{name: "admin as user", principal: admin, required: RoleUser},
		{name: "anonymous", principal: nil, required: RoleUser},
		{name: "zero id", principal: &Principal{Role: RoleUser}, required: RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Authorize(tt.principal, tt.required)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.allowed {
				assert.Empty(t, d.Reason)
				assert.NoError(t, d.Err())
				return
			}
			assert.NotEmpty(t, d.Reason)
			assert.ErrorIs(t, d.Err(), ErrUnauthorized)
		})
	}
}

func TestPrincipal_Actor(t *testing.T) {
	p := PrincipalFor(&User{ID: 9, FirstName: "Ann", LastName: "Lee", Role: RoleAdmin}, "sid")

	a := p.Actor()
	assert.Equal(t, uint(9), a.ID)
	assert.Equal(t, "Ann", a.FirstName)
	assert.Equal(t, "Lee", a.LastName)
	assert.Equal(t, "admin", a.Role)
	assert.Equal(t, "sid", p.SessionID)
}
