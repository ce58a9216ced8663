package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"perfumestock/backend/internal/domain"
	"perfumestock/backend/internal/reporting"
	"perfumestock/backend/internal/store"
	"perfumestock/backend/internal/xid"
)

// ErrForbidden marks role failures; handlers answer 403 for it.
var ErrForbidden = errors.New("forbidden")

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo    store.Repository
	reports *reporting.Engine
	now     func() time.Time
}

func New(repo store.Repository, reports *reporting.Engine) *Service {
	if reports == nil {
		reports = reporting.NewEngine(nil, 0)
	}

	return &Service{
		repo:    repo,
		reports: reports,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// requireRole returns the actor when its role is one of roles. An empty roles
// list only requires an authenticated actor.
func requireRole(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Actor{}, fmt.Errorf("authentication required: %w", ErrForbidden)
	}
	if len(roles) == 0 {
		return actor, nil
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Actor{}, fmt.Errorf("%s role required: %w", strings.Join(roles, " or "), ErrForbidden)
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if _, err := requireRole(ctx, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, limit)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{UserID: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		ActorID:    actor.UserID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  s.now(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

func containsFold(haystack string, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}
