package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to callers.
// - Token operations treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogIssued records a successful issuance.
func (s *Service) LogIssued(ctx context.Context, actorUserID, ip, grantID, instanceID string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeTokenIssued,
		ActorUserID: actorUserID,
		IPAddress:   ip,
		GrantID:     grantID,
		InstanceID:  instanceID,
		Message:     "access token issued",
	})
}

// LogRefreshed records a re-mint from a refresh secret.
func (s *Service) LogRefreshed(ctx context.Context, ip, grantID, instanceID string) error {
	return s.Append(ctx, Event{
		Type:       EventTypeTokenRefreshed,
		IPAddress:  ip,
		GrantID:    grantID,
		InstanceID: instanceID,
		Message:    "access token refreshed",
	})
}

// LogRevoked records a revocation, including the reason given.
func (s *Service) LogRevoked(ctx context.Context, actorUserID, ip, grantID, instanceID, reason string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeTokenRevoked,
		ActorUserID: actorUserID,
		IPAddress:   ip,
		GrantID:     grantID,
		InstanceID:  instanceID,
		Message:     "access token revoked",
		Metadata:    reason,
	})
}
