package domain

import "strings"

// Role is the side of the marketplace a chat participant acts for
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

// roleAliases maps the role strings issued by the auth service onto the two chat roles
var roleAliases = map[string]Role{
	"customer":         RoleCustomer,
	"client":           RoleCustomer,
	"user":             RoleCustomer,
	"provider":         RoleProvider,
	"service_provider": RoleProvider,
	"tradesperson":     RoleProvider,
	"craftsman":        RoleProvider,
}

// ParseRole normalizes an auth role string. ok is false for unknown roles.
func ParseRole(raw string) (Role, bool) {
	role, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]
	return role, ok
}

// Valid reports whether r is one of the two chat roles
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleProvider
}

// Identity is the authenticated caller as seen by the chat core
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
	Name   string `json:"name"`
}
