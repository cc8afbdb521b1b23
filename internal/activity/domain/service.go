package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	achievementdomain "github.com/smallbiznis/carepoints/internal/achievement/domain"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	"github.com/smallbiznis/carepoints/pkg/db/pagination"
)

type Service interface {
	RecordActivity(ctx context.Context, req RecordActivityRequest) (*RecordActivityResponse, error)
	ListUserActivities(ctx context.Context, userID snowflake.ID, page pagination.Page) (ListActivityRecordsResponse, error)
	VerifyRecord(ctx context.Context, id snowflake.ID, status VerificationStatus) (*ActivityRecord, error)
}

type RecordActivityRequest struct {
	UserID        snowflake.ID `json:"-"`
	ActivityID    snowflake.ID `json:"activity_id"`
	Notes         *string      `json:"notes,omitempty"`
	ProofImageURL *string      `json:"proof_image_url,omitempty"`
}

type StreakSummary struct {
	Current     int   `json:"current"`
	Longest     int   `json:"longest"`
	BonusPoints int64 `json:"bonus_points,omitempty"`
}

type UnlockedSummary struct {
	AchievementID snowflake.ID `json:"achievement_id"`
	Name          string       `json:"name"`
	Level         int          `json:"level"`
	BonusPoints   int64        `json:"bonus_points,omitempty"`
}

type RecordActivityResponse struct {
	Record       ActivityRecord             `json:"record"`
	Account      pointsdomain.PointsAccount `json:"account"`
	Streak       StreakSummary              `json:"streak"`
	Achievements []UnlockedSummary          `json:"achievements"`
}

type ListActivityRecordsResponse struct {
	pagination.PageInfo
	Records []ActivityRecord `json:"records"`
}

func SummarizeUnlocks(unlocks []achievementdomain.Unlock) []UnlockedSummary {
	out := make([]UnlockedSummary, 0, len(unlocks))
	for _, unlock := range unlocks {
		out = append(out, UnlockedSummary{
			AchievementID: unlock.Achievement.ID,
			Name:          unlock.Achievement.Name,
			Level:         unlock.Achievement.Level,
			BonusPoints:   unlock.BonusPoints,
		})
	}
	return out
}

var (
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidActivity   = errors.New("invalid_activity")
	ErrInvalidNotes      = errors.New("invalid_notes")
	ErrInvalidProofURL   = errors.New("invalid_proof_url")
	ErrInvalidStatus     = errors.New("invalid_verification_status")
	ErrDuplicateActivity = errors.New("duplicate_activity")
	ErrRecordNotFound    = errors.New("activity_record_not_found")
	ErrRecordNotPending  = errors.New("activity_record_not_pending")
)
