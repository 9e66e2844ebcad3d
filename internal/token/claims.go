package token

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	// TokenTypeAccess marks short-lived delegated access credentials.
	TokenTypeAccess TokenType = "access"
	// TokenTypeSession marks browser/CLI session tokens minted by the
	// account authentication surface. This service only verifies them.
	TokenTypeSession TokenType = "session"
)

// Claims is the only supported JWT claims shape for this service.
// The registered ID claim (jti) is the token instance id: it is freshly
// generated per mint and is the unit of revocation.
type Claims struct {
	jwt.RegisteredClaims

	Email            string    `json:"email,omitempty"`
	OrganizationID   string    `json:"organization_id,omitempty"`
	OrganizationRole string    `json:"organization_role,omitempty"`
	WorkspaceID      string    `json:"workspace_id,omitempty"`
	WorkspaceSlug    string    `json:"workspace_slug,omitempty"`
	WorkspaceRole    string    `json:"workspace_role,omitempty"`
	Scopes           []string  `json:"scopes,omitempty"`
	TokenType        TokenType `json:"token_type"`
}
