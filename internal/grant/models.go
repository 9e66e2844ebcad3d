package grant

import "time"

// Grant is the durable record of one issuance event: "a caller obtained
// ongoing access". One row per issuance, never updated back to active.
//
// Invariants:
// - Exactly one Grant per successful issue call.
// - IsActive=false is terminal.
// - ExpiresAt bounds the outer (refresh) lifetime, distinct from the
//   short-lived access credential's own expiry.
// - InstanceID is the original minting's instance id; CurrentInstanceID
//   tracks the latest re-mint so revocation always covers the credential
//   a refresh produced.
type Grant struct {
	ID             string `json:"id" db:"id"`
	UserID         string `json:"user_id" db:"user_id"`
	OrganizationID string `json:"organization_id,omitempty" db:"organization_id"`
	WorkspaceID    string `json:"workspace_id,omitempty" db:"workspace_id"`

	DisplayName       string   `json:"display_name" db:"display_name"`
	InstanceID        string   `json:"instance_id" db:"instance_id"`
	CurrentInstanceID string   `json:"current_instance_id" db:"current_instance_id"`
	Audience          string   `json:"audience" db:"audience"`
	Scopes            []string `json:"scopes" db:"scopes"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	LastUsedAt *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	UsageCount int64      `json:"usage_count" db:"usage_count"`

	RevokedAt    *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokedBy    string     `json:"revoked_by,omitempty" db:"revoked_by"`
	RevokeReason string     `json:"revoke_reason,omitempty" db:"revoke_reason"`

	Metadata Metadata `json:"metadata" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Metadata captures request provenance for auditing.
type Metadata struct {
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	CreatedVia string `json:"created_via,omitempty"`
}

// Summary is the sanitized listing shape. Instance ids and anything a
// caller could replay are withheld from listing responses.
type Summary struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	WorkspaceID string     `json:"workspace_id,omitempty"`
	Scopes      []string   `json:"scopes"`
	Audience    string     `json:"audience"`
	ExpiresAt   time.Time  `json:"expires_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	UsageCount  int64      `json:"usage_count"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (g Grant) Summary() Summary {
	return Summary{
		ID:          g.ID,
		DisplayName: g.DisplayName,
		WorkspaceID: g.WorkspaceID,
		Scopes:      g.Scopes,
		Audience:    g.Audience,
		ExpiresAt:   g.ExpiresAt,
		LastUsedAt:  g.LastUsedAt,
		UsageCount:  g.UsageCount,
		CreatedAt:   g.CreatedAt,
	}
}
