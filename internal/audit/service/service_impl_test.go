package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/carepoints/internal/audit/domain"
	"github.com/smallbiznis/carepoints/internal/audit/repository"
	"github.com/smallbiznis/carepoints/internal/clock"
	obscontext "github.com/smallbiznis/carepoints/internal/observability/context"
	"github.com/smallbiznis/carepoints/internal/usercontext"
	"github.com/smallbiznis/carepoints/pkg/db/dbtest"
	"github.com/smallbiznis/carepoints/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	conn := dbtest.Open(t, &auditdomain.AuditLog{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: fake,
	}).(*Service), fake
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := usercontext.WithRole(usercontext.WithUserID(context.Background(), 7), usercontext.RoleAdmin)
	ctx = obscontext.WithRequestID(ctx, "req-9")
	ctx = obscontext.WithClient(ctx, "10.0.0.1", "curl/8")

	target := "42"
	require.NoError(t, svc.AuditLog(ctx, "", nil, "points.adjusted", "points_account", &target, map[string]any{
		"amount": 50,
		"code":   "WELLNESS-01HZX3ABCD",
		"notes":  "back pain after the run",
	}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{Action: "points.adjusted"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, string(auditdomain.ActorTypeAdmin), entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "7", *entry.ActorID)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "10.0.0.1", *entry.IPAddress)
	assert.Equal(t, "req-9", entry.Metadata["request_id"])
	assert.Equal(t, "WELLNESS-****ABCD", entry.Metadata["code"])
	assert.Equal(t, "[redacted 23 chars]", entry.Metadata["notes"])
}

func TestAuditLogDefaultsToSystemActor(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.AuditLog(context.Background(), "", nil, "reward.expired", "", nil, nil))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{ActorType: "system"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
	assert.Nil(t, resp.AuditLogs[0].ActorID)

	err = svc.AuditLog(context.Background(), "", nil, "  ", "x", nil, nil)
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPagesNewestFirst(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, "system", nil, "catalog.reward_updated", "reward", nil, map[string]any{"n": i}))
		fake.Advance(time.Minute)
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Page: pagination.Page{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Page: pagination.Page{Limit: 2, Offset: 2}})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)

	start := fake.Now()
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
