package session

import (
	"context"
	"errors"
)

type ctxKey int

const (
	ctxUserID ctxKey = iota
	ctxEmail
	ctxOrganizationID
)

// WithIdentity stores the verified session identity on the context.
func WithIdentity(ctx context.Context, userID, email, organizationID string) context.Context {
	ctx = context.WithValue(ctx, ctxUserID, userID)
	ctx = context.WithValue(ctx, ctxEmail, email)
	ctx = context.WithValue(ctx, ctxOrganizationID, organizationID)
	return ctx
}

func UserID(ctx context.Context) (string, error) {
	v := ctx.Value(ctxUserID)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("user_id not in context")
}

func Email(ctx context.Context) (string, error) {
	v := ctx.Value(ctxEmail)
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("email not in context")
}

// OrganizationID may legitimately be empty for callers outside any
// organization, so absence is not an error.
func OrganizationID(ctx context.Context) string {
	if s, ok := ctx.Value(ctxOrganizationID).(string); ok {
		return s
	}
	return ""
}
