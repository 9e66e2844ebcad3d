package claims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresDirectory reads identity/membership records from the primary
// database. All methods are read-only; writes belong to the account
// management surface, which is outside this service.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) GetUser(ctx context.Context, userID string) (User, error) {
	const q = `
SELECT id, email
FROM users
WHERE id = $1
`
	var u User
	if err := d.db.QueryRowContext(ctx, q, userID).Scan(&u.ID, &u.Email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (d *PostgresDirectory) GetOrganizationMembership(ctx context.Context, userID, organizationID string) (Membership, error) {
	const q = `
SELECT role
FROM organization_members
WHERE user_id = $1 AND organization_id = $2
`
	var role string
	if err := d.db.QueryRowContext(ctx, q, userID, organizationID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Absence is a valid state, not an error.
			return Membership{}, nil
		}
		return Membership{}, fmt.Errorf("get organization membership: %w", err)
	}
	return Membership{Role: role, IsMember: true}, nil
}

func (d *PostgresDirectory) GetWorkspace(ctx context.Context, workspaceID string) (Workspace, error) {
	const q = `
SELECT id, organization_id, slug
FROM workspaces
WHERE id = $1
`
	var w Workspace
	if err := d.db.QueryRowContext(ctx, q, workspaceID).Scan(&w.ID, &w.OrganizationID, &w.Slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Workspace{}, ErrNotFound
		}
		return Workspace{}, fmt.Errorf("get workspace: %w", err)
	}
	return w, nil
}

func (d *PostgresDirectory) GetWorkspaceMembership(ctx context.Context, userID, workspaceID string) (Membership, error) {
	const q = `
SELECT role
FROM workspace_members
WHERE user_id = $1 AND workspace_id = $2
`
	var role string
	if err := d.db.QueryRowContext(ctx, q, userID, workspaceID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Membership{}, nil
		}
		return Membership{}, fmt.Errorf("get workspace membership: %w", err)
	}
	return Membership{Role: role, IsMember: true}, nil
}
