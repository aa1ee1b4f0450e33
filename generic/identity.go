/*
identity.go - Identity/Org collaborator interface

PURPOSE:
  Chain resolution and admin overrides need to answer four questions about
  people: who is this user's manager, does this user hold an admin role in
  an org, does this user hold a specific role, and who in an org holds one
  of a set of roles. Everything else about identity (authentication,
  sessions, profiles) lives outside this system.

  Scattered role-name string matching from the source system is collapsed
  into this single injected capability check.

SEE ALSO:
  - chain.go:   uses ResolveManager/FirstWithRole for fallback chains
  - machine.go: uses IsOrgAdmin for overrides, HasRole for role-based steps
*/
package generic

import "context"

// Directory answers identity and role questions. Implementations may be
// backed by the HR database, an external IdP, or a static fixture.
type Directory interface {
	// IsOrgAdmin reports whether userID holds an admin role in orgID.
	IsOrgAdmin(ctx context.Context, userID UserID, orgID OrgID) (bool, error)

	// ResolveManager returns the user's direct manager, if any.
	ResolveManager(ctx context.Context, userID UserID) (UserID, bool, error)

	// HasRole reports whether userID holds the named role in orgID.
	HasRole(ctx context.Context, userID UserID, orgID OrgID, role string) (bool, error)

	// FirstWithRole returns a user in orgID holding any of the given
	// roles, if one exists. Used to pick the fallback admin approver.
	FirstWithRole(ctx context.Context, orgID OrgID, roles []string) (UserID, bool, error)
}

// =============================================================================
// STATIC DIRECTORY - Fixture-backed implementation (tests/dev)
// =============================================================================

// Member is one user in a StaticDirectory.
type Member struct {
	ID        UserID
	OrgID     OrgID
	ManagerID UserID
	Roles     []string
}

// StaticDirectory is an in-memory Directory. The sqlite store provides the
// production implementation from the users table.
type StaticDirectory struct {
	AdminRoles []string
	Members    map[UserID]Member
}

func NewStaticDirectory(adminRoles []string, members ...Member) *StaticDirectory {
	d := &StaticDirectory{
		AdminRoles: adminRoles,
		Members:    make(map[UserID]Member, len(members)),
	}
	for _, m := range members {
		d.Members[m.ID] = m
	}
	return d
}

func (d *StaticDirectory) IsOrgAdmin(_ context.Context, userID UserID, orgID OrgID) (bool, error) {
	m, ok := d.Members[userID]
	if !ok || m.OrgID != orgID {
		return false, nil
	}
	for _, role := range m.Roles {
		for _, admin := range d.AdminRoles {
			if role == admin {
				return true, nil
			}
		}
	}
	return false, nil
}

func (d *StaticDirectory) ResolveManager(_ context.Context, userID UserID) (UserID, bool, error) {
	m, ok := d.Members[userID]
	if !ok || m.ManagerID == "" {
		return "", false, nil
	}
	return m.ManagerID, true, nil
}

func (d *StaticDirectory) HasRole(_ context.Context, userID UserID, orgID OrgID, role string) (bool, error) {
	m, ok := d.Members[userID]
	if !ok || m.OrgID != orgID {
		return false, nil
	}
	for _, r := range m.Roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (d *StaticDirectory) FirstWithRole(_ context.Context, orgID OrgID, roles []string) (UserID, bool, error) {
	// Deterministic order matters for chain resolution; scan roles in
	// priority order, then members by ID.
	for _, role := range roles {
		var best UserID
		for id, m := range d.Members {
			if m.OrgID != orgID {
				continue
			}
			for _, r := range m.Roles {
				if r == role && (best == "" || id < best) {
					best = id
				}
			}
		}
		if best != "" {
			return best, true, nil
		}
	}
	return "", false, nil
}
