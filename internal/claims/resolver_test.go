package claims

import (
	"context"
	"errors"
	"testing"
)

func seededDirectory() *MemoryDirectory {
	d := NewMemoryDirectory()
	d.Users["user-1"] = User{ID: "user-1", Email: "one@example.com"}
	d.Workspaces["ws-1"] = Workspace{ID: "ws-1", OrganizationID: "org-1", Slug: "alpha"}
	d.Workspaces["ws-other"] = Workspace{ID: "ws-other", OrganizationID: "org-2", Slug: "beta"}
	d.OrgMembers["user-1|org-1"] = RoleAdmin
	d.WorkspaceMembers["user-1|ws-1"] = RoleMember
	return d
}

func TestResolve_OrganizationLevelClaims(t *testing.T) {
	r := NewResolver(seededDirectory(), "integrations-api")

	cs, err := r.Resolve(context.Background(), "user-1", "org-1", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cs.SubjectID != "user-1" || cs.Email != "one@example.com" {
		t.Fatalf("unexpected identity: %+v", cs)
	}
	if cs.OrganizationRole != RoleAdmin {
		t.Fatalf("expected org role admin, got %q", cs.OrganizationRole)
	}
	if cs.WorkspaceID != "" || cs.WorkspaceSlug != "" {
		t.Fatalf("expected empty workspace fields, got %+v", cs)
	}
	if cs.WorkspaceRole != RoleOwner {
		t.Fatalf("expected owner default workspace role, got %q", cs.WorkspaceRole)
	}
	if cs.Audience != "integrations-api" {
		t.Fatalf("expected audience, got %q", cs.Audience)
	}
}

func TestResolve_WorkspaceScopedClaims(t *testing.T) {
	r := NewResolver(seededDirectory(), "integrations-api")

	cs, err := r.Resolve(context.Background(), "user-1", "org-1", "ws-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cs.WorkspaceID != "ws-1" || cs.WorkspaceSlug != "alpha" {
		t.Fatalf("unexpected workspace: %+v", cs)
	}
	if cs.WorkspaceRole != RoleMember {
		t.Fatalf("expected member role, got %q", cs.WorkspaceRole)
	}
}

func TestResolve_WorkspaceOutsideOrgIsForbidden(t *testing.T) {
	r := NewResolver(seededDirectory(), "integrations-api")

	_, err := r.Resolve(context.Background(), "user-1", "org-1", "ws-other")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestResolve_UnknownWorkspaceIsNotFound(t *testing.T) {
	r := NewResolver(seededDirectory(), "integrations-api")

	_, err := r.Resolve(context.Background(), "user-1", "org-1", "ws-missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_NonMemberFallsBackToViewer(t *testing.T) {
	d := seededDirectory()
	delete(d.WorkspaceMembers, "user-1|ws-1")
	r := NewResolver(d, "integrations-api")

	cs, err := r.Resolve(context.Background(), "user-1", "org-1", "ws-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cs.WorkspaceRole != RoleViewer {
		t.Fatalf("expected viewer fallback, got %q", cs.WorkspaceRole)
	}
}

func TestMembership_EffectiveRole(t *testing.T) {
	cases := []struct {
		m    Membership
		want string
	}{
		{Membership{}, RoleViewer},
		{Membership{Role: RoleAdmin, IsMember: false}, RoleViewer},
		{Membership{Role: "", IsMember: true}, RoleViewer},
		{Membership{Role: RoleOwner, IsMember: true}, RoleOwner},
	}
	for _, tc := range cases {
		if got := tc.m.EffectiveRole(); got != tc.want {
			t.Fatalf("EffectiveRole(%+v) = %q, want %q", tc.m, got, tc.want)
		}
	}
}
