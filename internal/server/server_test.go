package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	achievementdomain "github.com/smallbiznis/carepoints/internal/achievement/domain"
	achievementrepository "github.com/smallbiznis/carepoints/internal/achievement/repository"
	achievementservice "github.com/smallbiznis/carepoints/internal/achievement/service"
	activitydomain "github.com/smallbiznis/carepoints/internal/activity/domain"
	activityrepository "github.com/smallbiznis/carepoints/internal/activity/repository"
	activityservice "github.com/smallbiznis/carepoints/internal/activity/service"
	auditdomain "github.com/smallbiznis/carepoints/internal/audit/domain"
	auditrepository "github.com/smallbiznis/carepoints/internal/audit/repository"
	auditservice "github.com/smallbiznis/carepoints/internal/audit/service"
	"github.com/smallbiznis/carepoints/internal/authorization"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/carepoints/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/carepoints/internal/catalog/service"
	"github.com/smallbiznis/carepoints/internal/clock"
	"github.com/smallbiznis/carepoints/internal/config"
	"github.com/smallbiznis/carepoints/internal/liveevents"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	pointsrepository "github.com/smallbiznis/carepoints/internal/points/repository"
	pointsservice "github.com/smallbiznis/carepoints/internal/points/service"
	"github.com/smallbiznis/carepoints/internal/ratelimit"
	redemptiondomain "github.com/smallbiznis/carepoints/internal/redemption/domain"
	redemptionrepository "github.com/smallbiznis/carepoints/internal/redemption/repository"
	redemptionservice "github.com/smallbiznis/carepoints/internal/redemption/service"
	"github.com/smallbiznis/carepoints/internal/streak"
	"github.com/smallbiznis/carepoints/internal/usercontext"
	"github.com/smallbiznis/carepoints/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type testEnv struct {
	t        *testing.T
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	hub      *liveevents.Hub
	verifier *TokenVerifier
	server   *Server
}

func newTestEnv(t *testing.T, rateLimit config.RateLimitConfig) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn := dbtest.Open(t,
		&catalogdomain.Activity{},
		&catalogdomain.Achievement{},
		&catalogdomain.Reward{},
		&pointsdomain.PointsAccount{},
		&pointsdomain.PointsTransaction{},
		&activitydomain.ActivityRecord{},
		&achievementdomain.UserAchievement{},
		&redemptiondomain.UserReward{},
		&auditdomain.AuditLog{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	gamification := config.NewStaticGamificationConfig(config.DefaultGamificationConfig())

	cfg := config.Config{AuthJWTSecret: testSecret, RateLimit: rateLimit}

	auditSvc := auditservice.NewService(auditservice.Params{DB: conn, Log: log, GenID: node, Repo: auditrepository.Provide(), Clock: fake})
	enforcer, err := authorization.NewEnforcer(conn)
	require.NoError(t, err)
	authzSvc := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer, AuditSvc: auditSvc})

	pointsRepo := pointsrepository.Provide()
	ledger := pointsservice.NewLedger(pointsservice.LedgerParams{GenID: node, Repo: pointsRepo})
	catalogRepo := catalogrepository.Provide()
	activityRepo := activityrepository.Provide()
	achievementRepo := achievementrepository.Provide()

	hub := liveevents.NewHub()

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	server := NewServer(ServerParams{
		Gin:      engine,
		Cfg:      cfg,
		Log:      log,
		AuthzSvc: authzSvc,
		AuditSvc: auditSvc,
		CatalogSvc: catalogservice.New(catalogservice.Params{
			DB: conn, Log: log, GenID: node, Repo: catalogRepo, Clock: fake, AuditSvc: auditSvc,
		}),
		PointsSvc: pointsservice.New(pointsservice.Params{
			DB: conn, Log: log, Repo: pointsRepo, Ledger: ledger, Clock: fake, Gamification: gamification, AuditSvc: auditSvc,
		}),
		ActivitySvc: activityservice.New(activityservice.Params{
			DB:           conn,
			Log:          log,
			GenID:        node,
			Repo:         activityRepo,
			CatalogRepo:  catalogRepo,
			Ledger:       ledger,
			Streaks:      streak.New(streak.Params{Finder: activityRepo, Ledger: ledger}),
			Evaluator:    achievementservice.NewEvaluator(achievementservice.EvaluatorParams{GenID: node, Repo: achievementRepo, Ledger: ledger}),
			Clock:        fake,
			Gamification: gamification,
		}),
		AchievementSvc: achievementservice.New(achievementservice.Params{DB: conn, Log: log, Repo: achievementRepo}),
		RedemptionSvc: redemptionservice.New(redemptionservice.Params{
			DB: conn, Log: log, GenID: node, Repo: redemptionrepository.Provide(), Ledger: ledger, Clock: fake, Gamification: gamification,
		}),
		LiveEvents:  hub,
		UserLimiter: ratelimit.NewUserLimiter(ratelimit.UserLimiterParams{Config: cfg, Log: log}),
	})

	return &testEnv{
		t:        t,
		db:       conn,
		node:     node,
		clock:    fake,
		hub:      hub,
		verifier: NewTokenVerifier(testSecret, ""),
		server:   server,
	}
}

func (e *testEnv) token(userID snowflake.ID, role string) string {
	e.t.Helper()
	token, err := e.verifier.Sign(userID, role, time.Hour)
	require.NoError(e.t, err)
	return token
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader *bytes.Reader
	switch typed := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(typed))
	default:
		raw, err := json.Marshal(typed)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Engine().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var payload apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return payload
}

func (e *testEnv) activity(name string, points int64, active bool) catalogdomain.Activity {
	e.t.Helper()
	item := catalogdomain.Activity{
		ID:          e.node.Generate(),
		Name:        name,
		Category:    catalogdomain.ActivityCategoryPhysical,
		PointsValue: points,
		Frequency:   catalogdomain.FrequencyDaily,
		Active:      active,
		CreatedAt:   e.clock.Now(),
		UpdatedAt:   e.clock.Now(),
	}
	require.NoError(e.t, catalogrepository.Provide().InsertActivity(context.Background(), e.db, &item))
	return item
}

func (e *testEnv) reward(name string, cost int64, inventory *int64, active bool) catalogdomain.Reward {
	e.t.Helper()
	item := catalogdomain.Reward{
		ID:         e.node.Generate(),
		Name:       name,
		Category:   catalogdomain.RewardCategoryGiftCard,
		PointsCost: cost,
		Inventory:  inventory,
		Active:     active,
		CreatedAt:  e.clock.Now(),
		UpdatedAt:  e.clock.Now(),
	}
	require.NoError(e.t, catalogrepository.Provide().InsertReward(context.Background(), e.db, &item))
	return item
}

func int64Ptr(v int64) *int64 { return &v }

func TestHealthAndFallback(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})

	rec := env.do(http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})

	rec := env.do(http.MethodGet, "/api/user/points", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "unauthorized", payload.Error.Type)
	assert.Equal(t, "unauthorized", payload.Error.Code)

	rec = env.do(http.MethodGet, "/api/user/points", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := NewTokenVerifier("other-secret", "").Sign(snowflake.ID(1), usercontext.RoleAdmin, time.Hour)
	require.NoError(t, err)
	rec = env.do(http.MethodGet, "/api/user/points", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetPointsCreatesAccountLazily(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})

	rec := env.do(http.MethodGet, "/api/user/points", env.token(snowflake.ID(501), usercontext.RoleMember), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data pointsdomain.PointsAccount `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, snowflake.ID(501), resp.Data.UserID)
	assert.Zero(t, resp.Data.AvailablePoints)
}

func TestRecordActivityFlow(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})
	walk := env.activity("Morning walk", 10, true)
	retired := env.activity("Retired", 10, false)
	token := env.token(snowflake.ID(601), usercontext.RoleMember)

	rec := env.do(http.MethodPost, "/api/activities/record", token, map[string]any{
		"activity_id": walk.ID.String(),
		"notes":       "30 minutes",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Data activitydomain.RecordActivityResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(10), resp.Data.Record.PointsEarned)
	assert.Equal(t, snowflake.ID(601), resp.Data.Record.UserID)
	assert.Equal(t, int64(10), resp.Data.Account.AvailablePoints)
	assert.Equal(t, 1, resp.Data.Streak.Current)

	rec = env.do(http.MethodPost, "/api/activities/record", token, map[string]any{"activity_id": walk.ID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_activity", decodeError(t, rec).Error.Code)

	rec = env.do(http.MethodPost, "/api/activities/record", token, map[string]any{"activity_id": retired.ID.String()})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "inactive_entity", decodeError(t, rec).Error.Code)

	rec = env.do(http.MethodPost, "/api/activities/record", token, map[string]any{"activity_id": env.node.Generate().String()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error.Code)

	rec = env.do(http.MethodPost, "/api/activities/record", token, `{"activity_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Error.Type)

	rec = env.do(http.MethodGet, "/api/user/points/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Data []pointsdomain.PointsTransaction `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Data, 1)
	assert.Equal(t, pointsdomain.TransactionTypeEarned, history.Data[0].Type)

	rec = env.do(http.MethodGet, "/api/user/activities?limit=5", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodGet, "/api/user/activities?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListActivitiesRejectsUnknownCategory(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})
	env.activity("Morning walk", 10, true)

	rec := env.do(http.MethodGet, "/api/activities", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []catalogdomain.Activity `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)

	rec = env.do(http.MethodGet, "/api/activities?category=sleeping", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_category", decodeError(t, rec).Error.Code)
}

func TestRedeemRewardErrors(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})
	admin := env.token(snowflake.ID(1), usercontext.RoleAdmin)
	member := snowflake.ID(701)
	token := env.token(member, usercontext.RoleMember)

	card := env.reward("Gift card", 100, int64Ptr(1), true)
	soldOut := env.reward("Sold out", 10, int64Ptr(0), true)
	retired := env.reward("Retired", 10, nil, false)

	rec := env.do(http.MethodPost, "/api/rewards/redeem", token, map[string]any{"reward_id": card.ID.String()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no_account", decodeError(t, rec).Error.Code)

	rec = env.do(http.MethodPost, "/api/admin/points/adjust", admin, map[string]any{
		"user_id": member.String(),
		"amount":  50,
		"reason":  "welcome bonus",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(http.MethodPost, "/api/rewards/redeem", token, map[string]any{"reward_id": card.ID.String()})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_points", decodeError(t, rec).Error.Code)

	rec = env.do(http.MethodPost, "/api/rewards/redeem", token, map[string]any{"reward_id": soldOut.ID.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "out_of_stock", decodeError(t, rec).Error.Code)

	rec = env.do(http.MethodPost, "/api/rewards/redeem", token, map[string]any{"reward_id": retired.ID.String()})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error.Code)

	rec = env.do(http.MethodPost, "/api/admin/points/adjust", admin, map[string]any{
		"user_id": member.String(),
		"amount":  60,
		"reason":  "top up",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/rewards/redeem", token, map[string]any{"reward_id": card.ID.String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var redeemed struct {
		Data redemptiondomain.UserReward `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &redeemed))
	assert.True(t, strings.HasPrefix(redeemed.Data.Code, "GIFT-CARD-"))
	assert.Equal(t, redemptiondomain.StatusActive, redeemed.Data.Status)

	rec = env.do(http.MethodGet, "/api/user/rewards?status=active", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rewards struct {
		Data []redemptiondomain.UserReward `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rewards))
	assert.Len(t, rewards.Data, 1)

	rec = env.do(http.MethodPost, "/api/admin/redemptions/"+redeemed.Data.Code+"/fulfill", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})
	member := env.token(snowflake.ID(801), usercontext.RoleMember)

	rec := env.do(http.MethodPost, "/api/admin/points/adjust", member, map[string]any{
		"user_id": "801",
		"amount":  1000,
		"reason":  "self service",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeError(t, rec).Error.Code)

	rec = env.do(http.MethodGet, "/api/admin/audit-logs", member, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := env.token(snowflake.ID(2), usercontext.RoleAdmin)
	rec = env.do(http.MethodPost, "/api/admin/activities", admin, map[string]any{
		"name":         "Yoga",
		"category":     "physical",
		"points_value": 15,
		"frequency":    "daily",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(http.MethodGet, "/api/admin/audit-logs?action=authorization.denied", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var logs struct {
		Data []auditdomain.AuditLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Len(t, logs.Data, 2)
}

func TestUserRateLimit(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{Enabled: true, UserRate: 0.001, UserBurst: 2, LocalOnly: true, RetryAfter: 1})
	token := env.token(snowflake.ID(901), usercontext.RoleMember)

	for i := 0; i < 2; i++ {
		rec := env.do(http.MethodPost, "/api/rewards/redeem", token, `{}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}

	rec := env.do(http.MethodPost, "/api/rewards/redeem", token, `{}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeError(t, rec).Error.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	other := env.token(snowflake.ID(902), usercontext.RoleMember)
	rec = env.do(http.MethodPost, "/api/rewards/redeem", other, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamUserEvents(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})
	userID := snowflake.ID(1001)

	httpServer := httptest.NewServer(env.server.Engine())
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/user/events/ws?access_token=" + env.token(userID, usercontext.RoleMember)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.Subscribers(userID.String()) == 1 }, time.Second, 10*time.Millisecond)

	env.hub.Publish(userID.String(), liveevents.LiveEvent{
		ID:         "evt-1",
		Type:       "achievement.unlocked",
		UserID:     userID.String(),
		OccurredAt: env.clock.Now(),
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event liveevents.LiveEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "evt-1", event.ID)
	assert.Equal(t, "achievement.unlocked", event.Type)
}

func TestStreamUserEventsRequiresToken(t *testing.T) {
	env := newTestEnv(t, config.RateLimitConfig{})

	httpServer := httptest.NewServer(env.server.Engine())
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/api/user/events/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
