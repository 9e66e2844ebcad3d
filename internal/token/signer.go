package token

import (
	"errors"
	"time"

	"token-service/internal/claims"
	"token-service/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrConfiguration indicates missing signing key material. It is fatal
// and not retryable by the caller.
var ErrConfiguration = errors.New("token: signing key unavailable")

// Signer mints and verifies signed credentials. Key material is injected
// through the constructor; nothing reads ambient global state, so tests
// can supply deterministic keys.
type Signer struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
}

func NewSigner(cfg config.TokenConfig) (*Signer, error) {
	if cfg.SigningSecret == "" {
		return nil, ErrConfiguration
	}
	ttl := cfg.AccessTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Signer{
		secret:    []byte(cfg.SigningSecret),
		issuer:    cfg.Issuer,
		accessTTL: ttl,
	}, nil
}

// AccessTTL reports the configured access-credential lifetime.
func (s *Signer) AccessTTL() time.Duration { return s.accessTTL }

// Minted describes one minting event.
type Minted struct {
	InstanceID string
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

/* ===================== MINT ===================== */

// Mint signs a fresh access credential from the claim set. Every call
// generates a new instance id, including re-mints during refresh;
// instance ids are never reused across minting events.
func (s *Signer) Mint(now time.Time, cs claims.ClaimSet) (string, Minted, error) {
	instanceID := uuid.NewString()
	issuedAt := now.UTC()
	expiresAt := issuedAt.Add(s.accessTTL)

	c := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   cs.SubjectID,
			Audience:  audienceOrNil(cs.Audience),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        instanceID,
		},
		Email:            cs.Email,
		OrganizationID:   cs.OrganizationID,
		OrganizationRole: cs.OrganizationRole,
		WorkspaceID:      cs.WorkspaceID,
		WorkspaceSlug:    cs.WorkspaceSlug,
		WorkspaceRole:    cs.WorkspaceRole,
		Scopes:           cs.Scopes,
		TokenType:        TokenTypeAccess,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", Minted{}, err
	}
	return signed, Minted{InstanceID: instanceID, IssuedAt: issuedAt, ExpiresAt: expiresAt}, nil
}

/* ===================== VERIFY ===================== */

// Verify parses and validates a signed token of the expected type.
// Used for session tokens on authenticated endpoints; resource-server
// verification of access credentials lives outside this service.
func (s *Signer) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	var c Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)

	_, err := parser.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	validator := jwt.NewValidator(opts...)
	if err := validator.Validate(c.RegisteredClaims); err != nil {
		return Claims{}, err
	}

	if c.TokenType != expected {
		return Claims{}, errors.New("token_type mismatch")
	}
	if c.Subject == "" {
		return Claims{}, errors.New("subject missing")
	}
	if c.ID == "" {
		return Claims{}, errors.New("instance id missing")
	}

	return c, nil
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
