package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/carepoints/internal/audit/domain"
	"github.com/smallbiznis/carepoints/internal/clock"
	"github.com/smallbiznis/carepoints/internal/config"
	"github.com/smallbiznis/carepoints/internal/notification"
	obsmetrics "github.com/smallbiznis/carepoints/internal/observability/metrics"
	"github.com/smallbiznis/carepoints/internal/points/domain"
	"github.com/smallbiznis/carepoints/pkg/db"
	"github.com/smallbiznis/carepoints/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxReasonLength = 500

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Repo         domain.Repository
	Ledger       domain.Ledger
	Clock        clock.Clock
	Gamification *config.GamificationConfigHolder
	AuditSvc     auditdomain.Service    `optional:"true"`
	Publisher    notification.Publisher `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics    `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	repo         domain.Repository
	ledger       domain.Ledger
	clock        clock.Clock
	gamification *config.GamificationConfigHolder
	auditSvc     auditdomain.Service
	publisher    notification.Publisher
	obsMetrics   *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("points.service"),
		repo:         p.Repo,
		ledger:       p.Ledger,
		clock:        p.Clock,
		gamification: p.Gamification,
		auditSvc:     p.AuditSvc,
		publisher:    p.Publisher,
		obsMetrics:   p.ObsMetrics,
	}
}

// GetAccount returns the user's account, creating an empty one on first read.
func (s *Service) GetAccount(ctx context.Context, userID snowflake.ID) (*domain.PointsAccount, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	account, err := s.repo.FindAccount(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	if _, err := s.repo.InsertAccountIfAbsent(ctx, s.db, userID, s.clock.Now()); err != nil {
		return nil, err
	}
	account, err = s.repo.FindAccount(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, domain.ErrNoAccount
	}
	return account, nil
}

func (s *Service) ListHistory(ctx context.Context, userID snowflake.ID, page pagination.Page) (domain.HistoryResponse, error) {
	if userID == 0 {
		return domain.HistoryResponse{}, domain.ErrInvalidUser
	}
	page = page.Normalize()

	items, err := s.repo.ListTransactions(ctx, s.db, userID, page.Limit+1, page.Offset)
	if err != nil {
		return domain.HistoryResponse{}, err
	}
	items, info := pagination.Trim(items, page)
	if items == nil {
		items = []domain.PointsTransaction{}
	}
	return domain.HistoryResponse{PageInfo: info, Transactions: items}, nil
}

func (s *Service) Adjust(ctx context.Context, req domain.AdjustRequest) (*domain.AdjustResponse, error) {
	if req.UserID == 0 {
		return nil, domain.ErrInvalidUser
	}
	if req.Amount == 0 {
		return nil, domain.ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" || len(reason) > maxReasonLength {
		return nil, domain.ErrInvalidReason
	}

	var resp domain.AdjustResponse
	err := db.Transaction(ctx, s.db, s.gamification.Get().TxMaxAttempts, func(tx *gorm.DB) error {
		now := s.clock.Now()
		account, _, err := s.ledger.EnsureAccount(ctx, tx, req.UserID, now)
		if err != nil {
			return err
		}
		txn, err := s.ledger.Post(ctx, tx, account, domain.Entry{
			Amount:      req.Amount,
			Type:        domain.TransactionTypeAdjustment,
			Description: reason,
			SourceType:  domain.SourceTypeAdmin,
			OccurredAt:  now,
		})
		if err != nil {
			return err
		}
		resp = domain.AdjustResponse{Account: *account, Transaction: *txn}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordPoints(ctx, string(resp.Transaction.Type), string(resp.Transaction.SourceType), resp.Transaction.Amount)

	if s.auditSvc != nil {
		targetID := req.UserID.String()
		if err := s.auditSvc.AuditLog(ctx, "", nil, "points.adjusted", "points_account", &targetID, map[string]any{
			"amount":         req.Amount,
			"reason":         reason,
			"transaction_id": resp.Transaction.ID.String(),
		}); err != nil {
			s.log.Warn("failed to write adjustment audit log", zap.Error(err))
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, notification.NewEvent(notification.EventPointsAdjusted, req.UserID, resp.Transaction.CreatedAt, map[string]any{
			"amount":           req.Amount,
			"available_points": resp.Account.AvailablePoints,
		}))
	}

	return &resp, nil
}
