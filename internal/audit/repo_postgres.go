package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo appends events to the token_audit_events table:
//
//   CREATE TABLE token_audit_events (
//     id            TEXT PRIMARY KEY,
//     type          TEXT NOT NULL,
//     actor_user_id TEXT NOT NULL DEFAULT '',
//     ip_address    TEXT NOT NULL DEFAULT '',
//     grant_id      TEXT NOT NULL DEFAULT '',
//     instance_id   TEXT NOT NULL DEFAULT '',
//     message       TEXT NOT NULL DEFAULT '',
//     metadata      TEXT NOT NULL DEFAULT '',
//     created_at    TIMESTAMPTZ NOT NULL
//   );
//
// INSERT-only; no update or delete statements exist on purpose.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO token_audit_events
(id, type, actor_user_id, ip_address, grant_id, instance_id, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.ActorUserID,
		e.IPAddress,
		e.GrantID,
		e.InstanceID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
