package claims

import (
	"context"
	"sync"
)

// MemoryDirectory is a simple in-memory identity/membership store for
// tests and early development.
type MemoryDirectory struct {
	mu sync.Mutex

	Users      map[string]User
	Workspaces map[string]Workspace

	// OrgMembers is keyed by user_id|organization_id, WorkspaceMembers by
	// user_id|workspace_id. Values are role names.
	OrgMembers       map[string]string
	WorkspaceMembers map[string]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		Users:            map[string]User{},
		Workspaces:       map[string]Workspace{},
		OrgMembers:       map[string]string{},
		WorkspaceMembers: map[string]string{},
	}
}

func (d *MemoryDirectory) GetUser(ctx context.Context, userID string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.Users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (d *MemoryDirectory) GetOrganizationMembership(ctx context.Context, userID, organizationID string) (Membership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	role, ok := d.OrgMembers[userID+"|"+organizationID]
	if !ok {
		return Membership{}, nil
	}
	return Membership{Role: role, IsMember: true}, nil
}

func (d *MemoryDirectory) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.Workspaces[workspaceID]
	if !ok {
		return Workspace{}, ErrNotFound
	}
	return w, nil
}

func (d *MemoryDirectory) GetWorkspaceMembership(ctx context.Context, userID, workspaceID string) (Membership, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	role, ok := d.WorkspaceMembers[userID+"|"+workspaceID]
	if !ok {
		return Membership{}, nil
	}
	return Membership{Role: role, IsMember: true}, nil
}
