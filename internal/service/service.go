package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
	"github.com/spec-kit/helpdesk-engine/internal/events"
	"github.com/spec-kit/helpdesk-engine/internal/observability"
	"github.com/spec-kit/helpdesk-engine/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-engine/pkg/util/errorutil"
)

// Runtime bundles the collaborators every service shares.
type Runtime struct {
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
	Now          func() time.Time
	NewID        func() string
	StoreTimeout time.Duration
}

func (rt Runtime) withDefaults() Runtime {
	if rt.Logger == nil {
		rt.Logger = zap.NewNop()
	}
	if rt.Now == nil {
		rt.Now = time.Now
	}
	if rt.NewID == nil {
		rt.NewID = uuid.NewString
	}
	return rt
}

// storeContext bounds a single store round trip.
func (rt Runtime) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if rt.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, rt.StoreTimeout)
}

func (rt Runtime) publishEvent(ctx context.Context, event events.Event) {
	if rt.Dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = rt.NewID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = rt.Now()
	}
	if err := rt.Dispatcher.Publish(ctx, event); err != nil {
		rt.Logger.Warn("event delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

// mapStoreError turns repository sentinels into domain errors. Anything else
// is a store failure.
func mapStoreError(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict(resource+" was modified concurrently; reload and retry", map[string]any{"id": id})
	}
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return apperrors.NewDependencyError(resource+" store", err)
}

func userActor(user *domain.User) events.Actor {
	if user == nil {
		return events.SystemActor
	}
	return events.Actor{UserID: user.ID, Role: user.Role}
}

func requireActor(user *domain.User) error {
	if user == nil {
		return apperrors.NewUnauthorized("authenticated user required")
	}
	return nil
}

func requireStaff(user *domain.User) error {
	if err := requireActor(user); err != nil {
		return err
	}
	if !user.Role.IsSupport() && user.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("support staff role required")
	}
	return nil
}
