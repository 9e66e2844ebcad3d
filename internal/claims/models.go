package claims

import "context"

// ClaimSet is the payload embedded into a signed access credential.
//
// Invariants:
// - Scopes is never empty.
// - WorkspaceRole is only meaningful when WorkspaceID is set, and always
//   reflects actual membership records, never caller input.
type ClaimSet struct {
	SubjectID        string   `json:"subject_id"`
	Email            string   `json:"email"`
	OrganizationID   string   `json:"organization_id,omitempty"`
	OrganizationRole string   `json:"organization_role,omitempty"`
	WorkspaceID      string   `json:"workspace_id,omitempty"`
	WorkspaceSlug    string   `json:"workspace_slug,omitempty"`
	WorkspaceRole    string   `json:"workspace_role,omitempty"`
	Scopes           []string `json:"scopes"`
	Audience         string   `json:"audience"`
}

// Workspace role names. Keep these stable; they are part of the claims contract.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer" // lowest privilege, the non-membership fallback
)

// User is the caller identity as read from the directory.
type User struct {
	ID    string
	Email string
}

// Workspace is a named sub-scope of an organization.
type Workspace struct {
	ID             string
	OrganizationID string
	Slug           string
}

// Membership distinguishes "member with role X" from "not a member".
// Non-membership must never be confused with an explicit low-privilege
// grant in business logic; only ClaimSet serialization coerces it.
type Membership struct {
	Role     string
	IsMember bool
}

// EffectiveRole collapses the membership to the role string embedded in
// a ClaimSet. Absence of membership yields the lowest-privilege role.
func (m Membership) EffectiveRole() string {
	if !m.IsMember || m.Role == "" {
		return RoleViewer
	}
	return m.Role
}

// Directory is the external identity/membership store consumed by the
// resolver. Implementations must be read-only.
type Directory interface {
	GetUser(ctx context.Context, userID string) (User, error)
	GetOrganizationMembership(ctx context.Context, userID, organizationID string) (Membership, error)
	GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error)
	GetWorkspaceMembership(ctx context.Context, userID, workspaceID string) (Membership, error)
}
