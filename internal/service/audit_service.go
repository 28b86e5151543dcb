package service

import (
	"context"
	"log/slog"

	"finrep-server/internal/event"
	"finrep-server/internal/model"
)

// AuditService drains the event bus into the audit trail. Persistence is
// best effort: a failed insert is logged, never propagated back to the
// request that produced the event.
type AuditService struct {
	store AuditStore
	bus   event.Bus
	perms *PermissionService
}

func NewAuditService(store AuditStore, bus event.Bus, perms *PermissionService) *AuditService {
	return &AuditService{store: store, bus: bus, perms: perms}
}

// Run subscribes to the bus and persists events until ctx is cancelled.
// Call it in its own goroutine.
func (s *AuditService) Run(ctx context.Context) {
	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := s.store.Insert(ctx, e); err != nil {
				slog.Error("failed to persist audit event", "type", e.Type, "error", err)
			}
		}
	}
}

// List returns the most recent audit events, newest first. Restricted to
// site managers.
func (s *AuditService) List(ctx context.Context, actorID string, limit int) ([]event.Event, error) {
	if err := s.perms.Require(ctx, actorID, model.PermSiteManage); err != nil {
		return nil, err
	}
	return s.store.List(ctx, limit)
}
