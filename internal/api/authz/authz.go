// Package authz carries the authenticated team through request context and
// answers the pure role questions. Anything needing the database (manager
// assignments, ownership) lives with the handlers.
package authz

import (
	"context"
	"errors"

	"github.com/tfrey42/pitchside/internal/store"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *store.Team) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the team stored in ctx. It returns nil if ctx is
// nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *store.Team {
	if ctx == nil {
		return nil
	}
	user, ok := ctx.Value(userContextKey{}).(*store.Team)
	if !ok {
		return nil
	}
	return user
}

// RequireUser returns the authenticated team or ErrUnauthenticated.
func RequireUser(ctx context.Context) (*store.Team, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// RequireRole returns the authenticated team if it holds one of the roles.
func RequireRole(ctx context.Context, roles ...string) (*store.Team, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	for _, role := range roles {
		if user.Role == role {
			return user, nil
		}
	}
	return nil, ErrForbidden
}

func IsSuperuser(user *store.Team) bool {
	return user != nil && user.Role == store.RoleSuperuser
}

func IsManager(user *store.Team) bool {
	return user != nil && user.Role == store.RoleManager
}
