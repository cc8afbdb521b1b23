package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	achievementdomain "github.com/smallbiznis/carepoints/internal/achievement/domain"
	"github.com/smallbiznis/carepoints/internal/activity/domain"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	"github.com/smallbiznis/carepoints/internal/clock"
	"github.com/smallbiznis/carepoints/internal/config"
	"github.com/smallbiznis/carepoints/internal/notification"
	obsmetrics "github.com/smallbiznis/carepoints/internal/observability/metrics"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	"github.com/smallbiznis/carepoints/internal/streak"
	"github.com/smallbiznis/carepoints/pkg/db"
	"github.com/smallbiznis/carepoints/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         domain.Repository
	CatalogRepo  catalogdomain.Repository
	Ledger       pointsdomain.Ledger
	Streaks      *streak.Calculator
	Evaluator    achievementdomain.Evaluator
	Clock        clock.Clock
	Gamification *config.GamificationConfigHolder
	Publisher    notification.Publisher `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics    `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	catalogRepo  catalogdomain.Repository
	ledger       pointsdomain.Ledger
	streaks      *streak.Calculator
	evaluator    achievementdomain.Evaluator
	clock        clock.Clock
	gamification *config.GamificationConfigHolder
	publisher    notification.Publisher
	obsMetrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("activity.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		catalogRepo:  p.CatalogRepo,
		ledger:       p.Ledger,
		streaks:      p.Streaks,
		evaluator:    p.Evaluator,
		clock:        p.Clock,
		gamification: p.Gamification,
		publisher:    p.Publisher,
		obsMetrics:   p.ObsMetrics,
	}
}

// recording collects what one committed RecordActivity changed.
type recording struct {
	activity catalogdomain.Activity
	record   domain.ActivityRecord
	earned   *pointsdomain.PointsTransaction
	account  pointsdomain.PointsAccount
	streak   streak.Result
	unlocks  []achievementdomain.Unlock
}

// RecordActivity credits a completed activity. Points, streak and
// achievements are updated in one transaction under the user's account lock.
func (s *Service) RecordActivity(ctx context.Context, req domain.RecordActivityRequest) (*domain.RecordActivityResponse, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if req.ActivityID == 0 {
		return nil, domain.ErrInvalidActivity
	}
	notes, err := sanitizeNotes(req.Notes)
	if err != nil {
		return nil, err
	}
	proofURL, err := validateProofURL(req.ProofImageURL)
	if err != nil {
		return nil, err
	}

	cfg := s.gamification.Get()
	var out recording
	err = db.Transaction(ctx, s.db, cfg.TxMaxAttempts, func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()

		// The account lock comes before any other read so that the
		// duplicate check below sees every recording committed ahead of it.
		account, created, err := s.ledger.EnsureAccount(ctx, tx, req.UserID, now)
		if err != nil {
			return err
		}

		activity, err := s.catalogRepo.FindActivityByID(ctx, tx, req.ActivityID)
		if err != nil {
			return err
		}
		if activity == nil {
			return catalogdomain.ErrActivityNotFound
		}
		if !activity.Active {
			return catalogdomain.ErrActivityInactive
		}

		if win, gated := frequencyWindow(activity.Frequency, now, cfg.Location(), cfg.StrictFrequency); gated {
			exists, err := s.repo.ExistsInWindow(ctx, tx, req.UserID, activity.ID, win.from, win.to)
			if err != nil {
				return err
			}
			if exists {
				return domain.ErrDuplicateActivity
			}
		}

		record := domain.ActivityRecord{
			ID:                 s.genID.Generate(),
			UserID:             req.UserID,
			ActivityID:         activity.ID,
			CompletedAt:        now,
			PointsEarned:       activity.PointsValue,
			Notes:              notes,
			ProofImageURL:      proofURL,
			VerificationStatus: domain.VerificationStatusPending,
		}
		if err := s.repo.Insert(ctx, tx, &record); err != nil {
			return err
		}

		sourceID := record.ID
		earned, err := s.ledger.Post(ctx, tx, account, pointsdomain.Entry{
			Amount:      activity.PointsValue,
			Type:        pointsdomain.TransactionTypeEarned,
			Description: activity.Name,
			SourceType:  pointsdomain.SourceTypeActivity,
			SourceID:    &sourceID,
			OccurredAt:  now,
		})
		if err != nil {
			return err
		}

		var streakResult streak.Result
		if created {
			streakResult, err = s.streaks.Start(ctx, tx, account, now)
		} else {
			streakResult, err = s.streaks.Apply(ctx, tx, account, record.ID, now)
		}
		if err != nil {
			return err
		}

		unlocks, err := s.evaluator.Evaluate(ctx, tx, account, now)
		if err != nil {
			return err
		}

		out = recording{
			activity: *activity,
			record:   record,
			earned:   earned,
			account:  *account,
			streak:   streakResult,
			unlocks:  unlocks,
		}
		return nil
	})
	if err != nil {
		s.recordRejected(ctx, err)
		return nil, err
	}

	s.afterRecord(ctx, out)

	resp := &domain.RecordActivityResponse{
		Record:  out.record,
		Account: out.account,
		Streak: domain.StreakSummary{
			Current: out.streak.Current,
			Longest: out.streak.Longest,
		},
		Achievements: domain.SummarizeUnlocks(out.unlocks),
	}
	if out.streak.Milestone() {
		resp.Streak.BonusPoints = out.streak.Bonus.Amount
	}
	return resp, nil
}

func (s *Service) recordRejected(ctx context.Context, err error) {
	reason := "error"
	switch {
	case errors.Is(err, domain.ErrDuplicateActivity):
		reason = "duplicate"
	case errors.Is(err, catalogdomain.ErrActivityNotFound):
		reason = "not_found"
	case errors.Is(err, catalogdomain.ErrActivityInactive):
		reason = "inactive"
	default:
		s.log.Error("record activity failed", zap.Error(err))
	}
	s.obsMetrics.RecordActivityRejected(ctx, reason)
}

// afterRecord emits metrics and events for a committed recording.
func (s *Service) afterRecord(ctx context.Context, out recording) {
	userID := out.record.UserID
	now := out.record.CompletedAt

	s.obsMetrics.RecordActivity(ctx, string(out.activity.Category))
	s.obsMetrics.RecordPoints(ctx, string(out.earned.Type), string(out.earned.SourceType), out.earned.Amount)

	events := []notification.Event{
		notification.NewEvent(notification.EventActivityRecorded, userID, now, map[string]any{
			"activity_id":      out.activity.ID.String(),
			"record_id":        out.record.ID.String(),
			"points_earned":    out.record.PointsEarned,
			"available_points": out.account.AvailablePoints,
		}),
	}

	if out.streak.Milestone() {
		s.obsMetrics.RecordStreakMilestone(ctx)
		s.obsMetrics.RecordPoints(ctx, string(out.streak.Bonus.Type), string(out.streak.Bonus.SourceType), out.streak.Bonus.Amount)
		events = append(events, notification.NewEvent(notification.EventStreakMilestone, userID, now, map[string]any{
			"streak":       out.streak.Current,
			"bonus_points": out.streak.Bonus.Amount,
		}))
	}

	for _, unlock := range out.unlocks {
		s.obsMetrics.RecordAchievementUnlocked(ctx, unlock.Achievement.Level)
		if unlock.BonusPoints > 0 {
			s.obsMetrics.RecordPoints(ctx, string(pointsdomain.TransactionTypeBonus), string(pointsdomain.SourceTypeAchievement), unlock.BonusPoints)
		}
		events = append(events, notification.NewEvent(notification.EventAchievementUnlocked, userID, now, map[string]any{
			"achievement_id": unlock.Achievement.ID.String(),
			"name":           unlock.Achievement.Name,
			"level":          unlock.Achievement.Level,
			"bonus_points":   unlock.BonusPoints,
		}))
	}

	s.log.Info("activity recorded",
		zap.String("user_id", userID.String()),
		zap.String("activity_id", out.activity.ID.String()),
		zap.Int64("points", out.record.PointsEarned),
		zap.Int("streak", out.streak.Current),
		zap.Int("unlocked", len(out.unlocks)),
	)

	if s.publisher != nil {
		s.publisher.Publish(ctx, events...)
	}
}

func (s *Service) ListUserActivities(ctx context.Context, userID snowflake.ID, page pagination.Page) (domain.ListActivityRecordsResponse, error) {
	if userID == 0 {
		return domain.ListActivityRecordsResponse{}, domain.ErrInvalidUser
	}
	page = page.Normalize()

	items, err := s.repo.ListByUser(ctx, s.db, userID, page.Limit+1, page.Offset)
	if err != nil {
		return domain.ListActivityRecordsResponse{}, err
	}
	items, info := pagination.Trim(items, page)
	if items == nil {
		items = []domain.ActivityRecord{}
	}
	return domain.ListActivityRecordsResponse{PageInfo: info, Records: items}, nil
}

// VerifyRecord settles a pending record. Verification never changes the
// points already credited.
func (s *Service) VerifyRecord(ctx context.Context, id snowflake.ID, status domain.VerificationStatus) (*domain.ActivityRecord, error) {
	if id == 0 {
		return nil, domain.ErrInvalidActivity
	}
	if status != domain.VerificationStatusVerified && status != domain.VerificationStatusRejected {
		return nil, domain.ErrInvalidStatus
	}

	var record *domain.ActivityRecord
	err := db.Transaction(ctx, s.db, s.gamification.Get().TxMaxAttempts, func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrRecordNotFound
		}
		updated, err := s.repo.UpdateVerification(ctx, tx, id, status, s.clock.Now())
		if err != nil {
			return err
		}
		if !updated {
			return domain.ErrRecordNotPending
		}
		record, err = s.repo.FindByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, notification.NewEvent(notification.EventActivityVerified, record.UserID, s.clock.Now(), map[string]any{
			"record_id": record.ID.String(),
			"status":    string(record.VerificationStatus),
		}))
	}
	return record, nil
}
