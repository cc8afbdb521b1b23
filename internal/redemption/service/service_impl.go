package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	"github.com/smallbiznis/carepoints/internal/clock"
	"github.com/smallbiznis/carepoints/internal/config"
	"github.com/smallbiznis/carepoints/internal/notification"
	obsmetrics "github.com/smallbiznis/carepoints/internal/observability/metrics"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	"github.com/smallbiznis/carepoints/internal/redemption/domain"
	"github.com/smallbiznis/carepoints/pkg/db"
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
	Ledger       pointsdomain.Ledger
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
	ledger       pointsdomain.Ledger
	clock        clock.Clock
	gamification *config.GamificationConfigHolder
	publisher    notification.Publisher
	obsMetrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("redemption.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		ledger:       p.Ledger,
		clock:        p.Clock,
		gamification: p.Gamification,
		publisher:    p.Publisher,
		obsMetrics:   p.ObsMetrics,
	}
}

// RedeemReward spends points on a reward. The reward row is locked before
// the account row, and finite inventory is decremented with a conditional
// update in the same transaction.
func (s *Service) RedeemReward(ctx context.Context, req domain.RedeemRequest) (*domain.UserReward, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if req.RewardID == 0 {
		return nil, domain.ErrInvalidReward
	}

	var (
		entry   domain.UserReward
		reward  catalogdomain.Reward
		account pointsdomain.PointsAccount
	)
	err := db.Transaction(ctx, s.db, s.gamification.Get().TxMaxAttempts, func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()

		locked, err := s.repo.LockReward(ctx, tx, req.RewardID)
		if err != nil {
			return err
		}
		if locked == nil {
			return catalogdomain.ErrRewardNotFound
		}
		if !locked.Active {
			return catalogdomain.ErrRewardInactive
		}
		if !locked.InStock() {
			return domain.ErrOutOfStock
		}

		acc, err := s.ledger.LockAccount(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if acc == nil {
			return pointsdomain.ErrNoAccount
		}
		if acc.AvailablePoints < locked.PointsCost {
			return pointsdomain.ErrInsufficientPoints
		}

		created := domain.UserReward{
			ID:          s.genID.Generate(),
			UserID:      req.UserID,
			RewardID:    locked.ID,
			Code:        newCode(locked.Category),
			Status:      domain.StatusActive,
			PointsSpent: locked.PointsCost,
			EarnedAt:    now,
			RewardName:  locked.Name,
		}
		if validity := locked.Category.RedemptionValidity(); validity > 0 {
			expiresAt := now.Add(validity)
			created.ExpiresAt = &expiresAt
		}
		if err := s.repo.Insert(ctx, tx, &created); err != nil {
			return err
		}

		if locked.PointsCost > 0 {
			sourceID := created.ID
			if _, err := s.ledger.Post(ctx, tx, acc, pointsdomain.Entry{
				Amount:      -locked.PointsCost,
				Type:        pointsdomain.TransactionTypeSpent,
				Description: "Redeemed: " + locked.Name,
				SourceType:  pointsdomain.SourceTypeReward,
				SourceID:    &sourceID,
				OccurredAt:  now,
			}); err != nil {
				return err
			}
		}

		if locked.Inventory != nil {
			ok, err := s.repo.DecrementInventory(ctx, tx, locked.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrOutOfStock
			}
			remaining := *locked.Inventory - 1
			locked.Inventory = &remaining
		}

		entry = created
		reward = *locked
		account = *acc
		return nil
	})
	if err != nil {
		s.recordRejected(ctx, err)
		return nil, err
	}

	s.obsMetrics.RecordRedemption(ctx, string(reward.Category))
	if entry.PointsSpent > 0 {
		s.obsMetrics.RecordPoints(ctx, string(pointsdomain.TransactionTypeSpent), string(pointsdomain.SourceTypeReward), -entry.PointsSpent)
	}
	s.log.Info("reward redeemed",
		zap.String("user_id", entry.UserID.String()),
		zap.String("reward_id", reward.ID.String()),
		zap.String("user_reward_id", entry.ID.String()),
		zap.Int64("points_spent", entry.PointsSpent),
	)
	if s.publisher != nil {
		s.publisher.Publish(ctx, notification.NewEvent(notification.EventRewardRedeemed, entry.UserID, entry.EarnedAt, map[string]any{
			"reward_id":        reward.ID.String(),
			"user_reward_id":   entry.ID.String(),
			"reward_name":      reward.Name,
			"code":             entry.Code,
			"points_spent":     entry.PointsSpent,
			"available_points": account.AvailablePoints,
		}))
	}
	return &entry, nil
}

func (s *Service) recordRejected(ctx context.Context, err error) {
	reason := "error"
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		reason = "out_of_stock"
	case errors.Is(err, pointsdomain.ErrInsufficientPoints):
		reason = "insufficient_points"
	case errors.Is(err, pointsdomain.ErrNoAccount):
		reason = "no_account"
	case errors.Is(err, catalogdomain.ErrRewardInactive):
		reason = "inactive"
	case errors.Is(err, catalogdomain.ErrRewardNotFound):
		reason = "not_found"
	default:
		s.log.Error("redeem reward failed", zap.Error(err))
	}
	s.obsMetrics.RecordRedemptionRejected(ctx, reason)
}

func (s *Service) ListUserRewards(ctx context.Context, userID snowflake.ID, status string) ([]domain.UserReward, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	var filter *domain.Status
	if trimmed := strings.ToLower(strings.TrimSpace(status)); trimmed != "" {
		parsed := domain.Status(trimmed)
		if !parsed.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter = &parsed
	}

	items, err := s.repo.ListByUser(ctx, s.db, userID, filter)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.UserReward{}
	}
	return items, nil
}

func (s *Service) FulfillByCode(ctx context.Context, code string) (*domain.UserReward, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	var entry *domain.UserReward
	err := db.Transaction(ctx, s.db, s.gamification.Get().TxMaxAttempts, func(tx *gorm.DB) error {
		now := s.clock.Now().UTC()
		current, err := s.repo.FindByCodeForUpdate(ctx, tx, code)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrRedemptionNotFound
		}
		if current.Status != domain.StatusActive {
			return domain.ErrRedemptionNotActive
		}
		if current.Expired(now) {
			return domain.ErrRedemptionExpired
		}
		ok, err := s.repo.MarkRedeemed(ctx, tx, current.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrRedemptionNotActive
		}
		current.Status = domain.StatusRedeemed
		current.RedeemedAt = &now
		entry = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, notification.NewEvent(notification.EventRewardFulfilled, entry.UserID, *entry.RedeemedAt, map[string]any{
			"reward_id":      entry.RewardID.String(),
			"user_reward_id": entry.ID.String(),
		}))
	}
	return entry, nil
}

func (s *Service) ExpireDue(ctx context.Context, now time.Time, batchSize int) ([]domain.UserReward, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var expired []domain.UserReward
	err := db.Transaction(ctx, s.db, s.gamification.Get().TxMaxAttempts, func(tx *gorm.DB) error {
		claimed, err := s.repo.ClaimExpired(ctx, tx, now, batchSize)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			expired = nil
			return nil
		}
		ids := make([]snowflake.ID, 0, len(claimed))
		for _, item := range claimed {
			ids = append(ids, item.ID)
		}
		if _, err := s.repo.MarkExpired(ctx, tx, ids); err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].Status = domain.StatusExpired
		}
		expired = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.publisher != nil && len(expired) > 0 {
		events := make([]notification.Event, 0, len(expired))
		for _, item := range expired {
			events = append(events, notification.NewEvent(notification.EventRewardExpired, item.UserID, now, map[string]any{
				"reward_id":      item.RewardID.String(),
				"user_reward_id": item.ID.String(),
			}))
		}
		s.publisher.Publish(ctx, events...)
	}
	return expired, nil
}
