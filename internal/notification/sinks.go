package notification

import (
	"context"

	auditdomain "github.com/smallbiznis/carepoints/internal/audit/domain"
	"github.com/smallbiznis/carepoints/internal/liveevents"
)

type LiveSink struct {
	hub *liveevents.Hub
}

func NewLiveSink(hub *liveevents.Hub) *LiveSink {
	return &LiveSink{hub: hub}
}

func (s *LiveSink) Name() string { return "live" }

func (s *LiveSink) Deliver(_ context.Context, event Event) error {
	userID := event.UserID.String()
	s.hub.Publish(userID, liveevents.LiveEvent{
		ID:         event.ID,
		Type:       event.Type,
		UserID:     userID,
		OccurredAt: event.OccurredAt,
		Payload:    event.Payload,
	})
	return nil
}

// AuditSink records every gamification event in the audit trail.
type AuditSink struct {
	svc auditdomain.Service
}

func NewAuditSink(svc auditdomain.Service) *AuditSink {
	return &AuditSink{svc: svc}
}

func (s *AuditSink) Name() string { return "audit" }

func (s *AuditSink) Deliver(ctx context.Context, event Event) error {
	userID := event.UserID.String()
	metadata := make(map[string]any, len(event.Payload)+1)
	for key, value := range event.Payload {
		metadata[key] = value
	}
	metadata["event_id"] = event.ID
	return s.svc.AuditLog(ctx, string(auditdomain.ActorTypeUser), &userID, "gamification."+event.Type, "user", &userID, metadata)
}
