package grant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"token-service/pkg/utils"
)

// PostgresLedger persists grants in the access_grants table:
//
//   CREATE TABLE access_grants (
//     id                  TEXT PRIMARY KEY,
//     user_id             TEXT NOT NULL,
//     organization_id     TEXT NOT NULL DEFAULT '',
//     workspace_id        TEXT NOT NULL DEFAULT '',
//     display_name        TEXT NOT NULL,
//     instance_id         TEXT NOT NULL,
//     current_instance_id TEXT NOT NULL,
//     audience            TEXT NOT NULL,
//     scopes              TEXT NOT NULL,
//     is_active           BOOLEAN NOT NULL DEFAULT TRUE,
//     expires_at          TIMESTAMPTZ NOT NULL,
//     last_used_at        TIMESTAMPTZ,
//     usage_count         BIGINT NOT NULL DEFAULT 0,
//     revoked_at          TIMESTAMPTZ,
//     revoked_by          TEXT NOT NULL DEFAULT '',
//     revoke_reason       TEXT NOT NULL DEFAULT '',
//     ip_address          TEXT NOT NULL DEFAULT '',
//     user_agent          TEXT NOT NULL DEFAULT '',
//     created_via         TEXT NOT NULL DEFAULT '',
//     created_at          TIMESTAMPTZ NOT NULL,
//     updated_at          TIMESTAMPTZ NOT NULL
//   );
//   CREATE INDEX access_grants_user_active ON access_grants (user_id, is_active);
//   CREATE INDEX access_grants_instance ON access_grants (instance_id);
//
// Scopes are stored space-joined; the set is small and order-free.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

const grantColumns = `
id, user_id, organization_id, workspace_id, display_name,
instance_id, current_instance_id, audience, scopes,
is_active, expires_at, last_used_at, usage_count,
revoked_at, revoked_by, revoke_reason,
ip_address, user_agent, created_via, created_at, updated_at
`

func (l *PostgresLedger) Create(ctx context.Context, g Grant) error {
	const q = `
INSERT INTO access_grants (` + grantColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
`
	_, err := l.db.ExecContext(ctx, q,
		g.ID,
		g.UserID,
		g.OrganizationID,
		g.WorkspaceID,
		g.DisplayName,
		g.InstanceID,
		g.CurrentInstanceID,
		g.Audience,
		strings.Join(g.Scopes, " "),
		g.IsActive,
		g.ExpiresAt,
		g.LastUsedAt,
		g.UsageCount,
		g.RevokedAt,
		g.RevokedBy,
		g.RevokeReason,
		g.Metadata.IPAddress,
		g.Metadata.UserAgent,
		g.Metadata.CreatedVia,
		g.CreatedAt,
		g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create grant: %w", err)
	}
	return nil
}

func (l *PostgresLedger) ListActiveByUser(ctx context.Context, userID string) ([]Grant, error) {
	const q = `
SELECT ` + grantColumns + `
FROM access_grants
WHERE user_id = $1 AND is_active
ORDER BY created_at DESC
`
	rows, err := l.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	out := make([]Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (l *PostgresLedger) FindByID(ctx context.Context, userID, grantID string) (Grant, error) {
	const q = `
SELECT ` + grantColumns + `
FROM access_grants
WHERE user_id = $1 AND id = $2
`
	return l.queryOne(ctx, q, userID, grantID)
}

func (l *PostgresLedger) FindByInstanceID(ctx context.Context, userID, instanceID string) (Grant, error) {
	const q = `
SELECT ` + grantColumns + `
FROM access_grants
WHERE user_id = $1 AND (instance_id = $2 OR current_instance_id = $2)
`
	return l.queryOne(ctx, q, userID, instanceID)
}

func (l *PostgresLedger) FindActiveByInstanceID(ctx context.Context, instanceID string) (Grant, error) {
	const q = `
SELECT ` + grantColumns + `
FROM access_grants
WHERE (instance_id = $1 OR current_instance_id = $1) AND is_active
`
	return l.queryOne(ctx, q, instanceID)
}

func (l *PostgresLedger) Revoke(ctx context.Context, userID, grantID, revokedBy, reason string, now time.Time) (Grant, error) {
	const q = `
UPDATE access_grants
SET is_active = FALSE,
    revoked_at = $3,
    revoked_by = $4,
    revoke_reason = $5,
    updated_at = $3
WHERE user_id = $1 AND id = $2 AND is_active
RETURNING ` + grantColumns + `
`
	const probe = `
SELECT ` + grantColumns + `
FROM access_grants
WHERE user_id = $1 AND id = $2
`
	var g Grant
	err := utils.WithTx(ctx, l.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		g, err = scanGrant(tx.QueryRowContext(ctx, q, userID, grantID, now, revokedBy, reason))
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("revoke grant: %w", err)
		}

		// No active row matched: distinguish "already revoked" from "not
		// yours / does not exist" so double revocation is detectable. The
		// probe runs in the same transaction as the update.
		if _, ferr := scanGrant(tx.QueryRowContext(ctx, probe, userID, grantID)); ferr == nil {
			return ErrAlreadyRevoked
		} else if !errors.Is(ferr, sql.ErrNoRows) {
			return fmt.Errorf("revoke probe: %w", ferr)
		}
		return ErrNotFound
	})
	if err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (l *PostgresLedger) RecordRefresh(ctx context.Context, originalInstanceID, newInstanceID string, now time.Time) error {
	const q = `
UPDATE access_grants
SET current_instance_id = $2,
    last_used_at = $3,
    usage_count = usage_count + 1,
    updated_at = $3
WHERE (instance_id = $1 OR current_instance_id = $1) AND is_active
`
	res, err := l.db.ExecContext(ctx, q, originalInstanceID, newInstanceID, now)
	if err != nil {
		return fmt.Errorf("record refresh: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record refresh: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (l *PostgresLedger) queryOne(ctx context.Context, q string, args ...any) (Grant, error) {
	g, err := scanGrant(l.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Grant{}, ErrNotFound
		}
		return Grant{}, err
	}
	return g, nil
}

func scanGrant(r rowScanner) (Grant, error) {
	var g Grant
	var scopes string
	if err := r.Scan(
		&g.ID,
		&g.UserID,
		&g.OrganizationID,
		&g.WorkspaceID,
		&g.DisplayName,
		&g.InstanceID,
		&g.CurrentInstanceID,
		&g.Audience,
		&scopes,
		&g.IsActive,
		&g.ExpiresAt,
		&g.LastUsedAt,
		&g.UsageCount,
		&g.RevokedAt,
		&g.RevokedBy,
		&g.RevokeReason,
		&g.Metadata.IPAddress,
		&g.Metadata.UserAgent,
		&g.Metadata.CreatedVia,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return Grant{}, err
	}
	if scopes != "" {
		g.Scopes = strings.Split(scopes, " ")
	}
	return g, nil
}
