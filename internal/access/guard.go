package access

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderdesk/pkg/errors"
)

// RoleSet is the resolved set of role names an actor holds.
type RoleSet map[enums.RoleName]struct{}

// NewRoleSet builds a RoleSet from role names.
func NewRoleSet(names ...enums.RoleName) RoleSet {
	set := make(RoleSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the role.
func (s RoleSet) Has(role enums.RoleName) bool {
	_, ok := s[role]
	return ok
}

// Names returns the role names as plain strings, in no particular order.
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, string(name))
	}
	return names
}

// Actor is the authenticated principal attempting an operation.
type Actor struct {
	UserID uuid.UUID
	Roles  RoleSet
}

// HasRole reports whether the actor holds the role.
func (a Actor) HasRole(role enums.RoleName) bool {
	return a.Roles.Has(role)
}

// RequireOwnerOrRole admits the resource owner or any holder of the
// privileged role. Everyone else gets FORBIDDEN.
func RequireOwnerOrRole(actor Actor, ownerID uuid.UUID, role enums.RoleName) error {
	if actor.UserID != uuid.Nil && actor.UserID == ownerID {
		return nil
	}
	if actor.HasRole(role) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "actor is neither owner nor privileged")
}
