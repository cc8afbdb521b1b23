package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/carepoints/internal/audit/domain"
	"github.com/smallbiznis/carepoints/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectActivity       = "activity"
	ObjectAchievement    = "achievement"
	ObjectReward         = "reward"
	ObjectActivityRecord = "activity_record"
	ObjectPoints         = "points"
	ObjectRedemption     = "redemption"
	ObjectAuditLog       = "audit_log"
)

const (
	ActionActivityCreate = "activity.create"
	ActionActivityUpdate = "activity.update"

	ActionAchievementCreate = "achievement.create"

	ActionRewardCreate = "reward.create"
	ActionRewardUpdate = "reward.update"

	ActionActivityRecordVerify = "activity_record.verify"

	ActionPointsAdjust = "points.adjust"
	ActionPointsView   = "points.view"

	ActionRedemptionFulfill = "redemption.fulfill"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, object string, action string) error {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := fmt.Sprintf("user:%s", userID.String())
	roleName := fmt.Sprintf("role:%s", usercontext.RoleFromContext(ctx))
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	actorID := userID.String()
	if !allowed {
		s.log.Debug("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.audit(ctx, "authorization.denied", &actorID, roleName, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.audit(ctx, "authorization.granted", &actorID, roleName, object, action)
	}
	return nil
}

// ensureGrouping keeps exactly one role link per subject; the token's role wins.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) audit(ctx context.Context, event string, actorID *string, roleName, object, action string) {
	if s.auditSvc == nil {
		return
	}
	targetID := object
	if err := s.auditSvc.AuditLog(ctx, "user", actorID, event, "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
		"role":   strings.TrimPrefix(roleName, "role:"),
	}); err != nil {
		s.log.Warn("authorization audit failed", zap.Error(err))
	}
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionPointsAdjust, ActionRedemptionFulfill, ActionActivityRecordVerify:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Member permissions
		{"role:member", ObjectPoints, ActionPointsView},

		// Admin permissions
		{"role:admin", ObjectPoints, ActionPointsView},
		{"role:admin", ObjectPoints, ActionPointsAdjust},
		{"role:admin", ObjectActivity, ActionActivityCreate},
		{"role:admin", ObjectActivity, ActionActivityUpdate},
		{"role:admin", ObjectAchievement, ActionAchievementCreate},
		{"role:admin", ObjectReward, ActionRewardCreate},
		{"role:admin", ObjectReward, ActionRewardUpdate},
		{"role:admin", ObjectActivityRecord, ActionActivityRecordVerify},
		{"role:admin", ObjectRedemption, ActionRedemptionFulfill},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
