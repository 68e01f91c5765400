package permission

import (
	"fmt"
	"sort"
)

// Role names an entry in the static role table.
type Role string

// Marketplace-side roles (end users of the storefront) and elevated
// roles (back-office staff). The two chains are independent; nothing
// inherits across them.
const (
	RoleUser          Role = "user"
	RoleDealer        Role = "dealer"
	RolePremiumDealer Role = "premium_dealer"

	RoleViewer     Role = "viewer"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Definition declares one role: the roles it inherits from and the
// permission tokens it adds on top of them.
type Definition struct {
	Inherits []Role
	Grants   []string
}

// DefaultRoles is the built-in role table for the marketplace. Higher
// roles are strict supersets of the roles beneath them.
func DefaultRoles() map[Role]Definition {
	return map[Role]Definition{
		RoleUser: {
			Grants: []string{
				"listing:read",
				"listing:create",
				"listing:update:own",
				"listing:delete:own",
				"account:update:own",
			},
		},
		RoleDealer: {
			Inherits: []Role{RoleUser},
			Grants: []string{
				"listing:bulk_upload",
				"dealer:inventory",
			},
		},
		RolePremiumDealer: {
			Inherits: []Role{RoleDealer},
			Grants: []string{
				"listing:feature",
				"dealer:analytics",
			},
		},

		RoleViewer: {
			Grants: []string{
				"listing:read",
				"user:read",
				"report:read",
			},
		},
		RoleModerator: {
			Inherits: []Role{RoleViewer},
			Grants: []string{
				"content:moderate",
				"listing:unpublish",
				"user:suspend",
			},
		},
		RoleAdmin: {
			Inherits: []Role{RoleModerator},
			Grants: []string{
				"admin:access",
				"user:manage",
				"user:delete",
				"user:role",
				"billing:refund",
				"session:revoke",
			},
		},
		RoleSuperAdmin: {
			Inherits: []Role{RoleAdmin},
			Grants: []string{
				"system:config",
				"admin:manage",
			},
		},
	}
}

// Set is an effective permission set.
type Set map[string]struct{}

// Has reports whether the permission token is in the set.
func (s Set) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Names returns the permission tokens in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// resolveAll walks every role bottom-up and materializes its effective
// set, rejecting inheritance cycles and references to unknown roles.
func resolveAll(defs map[Role]Definition) (map[Role]Set, error) {
	const (
		unvisited = 0
		visiting  = 1
		resolved  = 2
	)

	state := make(map[Role]int, len(defs))
	sets := make(map[Role]Set, len(defs))

	var walk func(role Role) error
	walk = func(role Role) error {
		switch state[role] {
		case resolved:
			return nil
		case visiting:
			return fmt.Errorf("role hierarchy cycle through %q", role)
		}
		def, ok := defs[role]
		if !ok {
			return fmt.Errorf("role %q inherits from undefined role", role)
		}

		state[role] = visiting
		set := make(Set)
		for _, parent := range def.Inherits {
			if err := walk(parent); err != nil {
				return err
			}
			for perm := range sets[parent] {
				set[perm] = struct{}{}
			}
		}
		for _, perm := range def.Grants {
			if perm == "" {
				return fmt.Errorf("role %q grants an empty permission", role)
			}
			set[perm] = struct{}{}
		}
		sets[role] = set
		state[role] = resolved
		return nil
	}

	for role := range defs {
		if err := walk(role); err != nil {
			return nil, err
		}
	}

	return sets, nil
}
