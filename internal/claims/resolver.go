package claims

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown users and unknown workspaces.
	ErrNotFound = errors.New("claims: not found")
	// ErrForbidden covers workspaces outside the caller's organization.
	ErrForbidden = errors.New("claims: forbidden")
)

// Resolver computes the effective claim set for a caller. It is a pure
// lookup/compute step per request; it never persists state.
type Resolver struct {
	dir      Directory
	audience string
}

func NewResolver(dir Directory, audience string) *Resolver {
	return &Resolver{dir: dir, audience: audience}
}

// Resolve builds the claim set for callerID, optionally scoped to a
// workspace. With no workspace selector the claims are organization-level
// and the workspace role defaults to owner. With a selector, the
// workspace must belong to the caller's organization (mismatch is
// forbidden, absence is not found), and the workspace role comes from
// membership records — absence of membership falls back to the
// lowest-privilege role, never an elevated one.
func (r *Resolver) Resolve(ctx context.Context, callerID, organizationID, workspaceID string) (ClaimSet, error) {
	user, err := r.dir.GetUser(ctx, callerID)
	if err != nil {
		return ClaimSet{}, fmt.Errorf("resolve user: %w", err)
	}

	cs := ClaimSet{
		SubjectID:      user.ID,
		Email:          user.Email,
		OrganizationID: organizationID,
		Audience:       r.audience,
	}

	if organizationID != "" {
		om, err := r.dir.GetOrganizationMembership(ctx, callerID, organizationID)
		if err != nil {
			return ClaimSet{}, fmt.Errorf("resolve org membership: %w", err)
		}
		cs.OrganizationRole = om.EffectiveRole()
	}

	if workspaceID == "" {
		// Organization-level claims only.
		cs.WorkspaceRole = RoleOwner
		return cs, nil
	}

	ws, err := r.dir.GetWorkspace(ctx, workspaceID)
	if err != nil {
		return ClaimSet{}, err
	}
	if ws.OrganizationID == "" || ws.OrganizationID != organizationID {
		return ClaimSet{}, ErrForbidden
	}

	wm, err := r.dir.GetWorkspaceMembership(ctx, callerID, workspaceID)
	if err != nil {
		return ClaimSet{}, fmt.Errorf("resolve workspace membership: %w", err)
	}

	cs.WorkspaceID = ws.ID
	cs.WorkspaceSlug = ws.Slug
	cs.WorkspaceRole = wm.EffectiveRole()
	return cs, nil
}
