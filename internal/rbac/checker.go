package rbac

import (
	"context"
	"strings"
)

// Policy maps a role to the permission patterns it grants.
type Policy map[string][]string

// Allows reports whether role holds perm. Patterns may end in "*":
// "*" grants everything, "failedq:*" every failedq permission.
func (p Policy) Allows(role, perm string) bool {
	for _, pattern := range p[role] {
		if pattern == perm {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasPrefix(perm, prefix) {
			return true
		}
	}
	return false
}

func (p Policy) AllowsAny(role string, perms ...string) bool {
	for _, perm := range perms {
		if p.Allows(role, perm) {
			return true
		}
	}
	return false
}

// Can checks the caller's role against DefaultPolicy.
func Can(ctx context.Context, perm string) bool {
	role := RoleFromContext(ctx)
	return role != "" && DefaultPolicy.Allows(role, perm)
}

type roleKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext returns "" when no token was presented.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleKey{}).(string)
	return role
}
