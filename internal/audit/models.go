package audit

import "time"

// Event is an immutable, append-only audit log record for token
// lifecycle activity.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and ip capture are best-effort; token operations must not
//   block on audit failures.
// - Refresh secrets never appear in events, only grant/instance ids.
//
// Storage recommendation (Postgres):
// - Table token_audit_events with an INSERT-only policy.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the lifecycle stage of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated caller (empty for refresh, where
	// possession of the secret is the credential).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Target identifiers.
	GrantID    string `json:"grant_id,omitempty" db:"grant_id"`
	InstanceID string `json:"instance_id,omitempty" db:"instance_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeTokenIssued    EventType = "token_issued"
	EventTypeTokenRefreshed EventType = "token_refreshed"
	EventTypeTokenRevoked   EventType = "token_revoked"
)
