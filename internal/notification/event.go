package notification

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

const (
	EventActivityRecorded    = "activity.recorded"
	EventActivityVerified    = "activity.verified"
	EventStreakMilestone     = "streak.milestone"
	EventAchievementUnlocked = "achievement.unlocked"
	EventRewardRedeemed      = "reward.redeemed"
	EventRewardFulfilled     = "reward.fulfilled"
	EventRewardExpired       = "reward.expired"
	EventPointsAdjusted      = "points.adjusted"
)

// Event is a committed gamification fact delivered to sinks after the fact.
type Event struct {
	ID         string
	Type       string
	UserID     snowflake.ID
	OccurredAt time.Time
	RequestID  string
	Payload    map[string]any
}

func NewEvent(eventType string, userID snowflake.ID, occurredAt time.Time, payload map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}
}

// Publisher accepts events without blocking the caller.
type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}

// Sink delivers events to one collaborator.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}
