package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/carepoints/internal/achievement"
	achievementdomain "github.com/smallbiznis/carepoints/internal/achievement/domain"
	"github.com/smallbiznis/carepoints/internal/activity"
	activitydomain "github.com/smallbiznis/carepoints/internal/activity/domain"
	"github.com/smallbiznis/carepoints/internal/audit"
	auditdomain "github.com/smallbiznis/carepoints/internal/audit/domain"
	"github.com/smallbiznis/carepoints/internal/authorization"
	"github.com/smallbiznis/carepoints/internal/catalog"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	"github.com/smallbiznis/carepoints/internal/config"
	"github.com/smallbiznis/carepoints/internal/liveevents"
	"github.com/smallbiznis/carepoints/internal/notification"
	"github.com/smallbiznis/carepoints/internal/observability"
	obsmiddleware "github.com/smallbiznis/carepoints/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/carepoints/internal/observability/metrics"
	obstracing "github.com/smallbiznis/carepoints/internal/observability/tracing"
	"github.com/smallbiznis/carepoints/internal/points"
	pointsdomain "github.com/smallbiznis/carepoints/internal/points/domain"
	"github.com/smallbiznis/carepoints/internal/ratelimit"
	"github.com/smallbiznis/carepoints/internal/redemption"
	redemptiondomain "github.com/smallbiznis/carepoints/internal/redemption/domain"
	"github.com/smallbiznis/carepoints/internal/streak"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	authorization.Module,
	notification.Module,
	catalog.Module,
	points.Module,
	streak.Module,
	achievement.Module,
	activity.Module,
	redemption.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.MiddlewareConfig{
		SkipPaths:       []string{"/health", "/metrics"},
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(httpMetrics.GinMiddleware())
	if corsCfg, ok := corsConfig(cfg.CORSAllowedOrigins); ok {
		r.Use(cors.New(corsCfg))
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && strings.TrimSpace(origins[0]) == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = origins
	}
	return corsCfg, true
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(cfg, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	verifier       *TokenVerifier
	authzSvc       authorization.Service
	auditSvc       auditdomain.Service
	catalogSvc     catalogdomain.Service
	pointsSvc      pointsdomain.Service
	activitySvc    activitydomain.Service
	achievementSvc achievementdomain.Service
	redemptionSvc  redemptiondomain.Service
	liveEvents     *liveevents.Hub
	userLimiter    *ratelimit.UserLimiter
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	AuthzSvc       authorization.Service
	AuditSvc       auditdomain.Service
	CatalogSvc     catalogdomain.Service
	PointsSvc      pointsdomain.Service
	ActivitySvc    activitydomain.Service
	AchievementSvc achievementdomain.Service
	RedemptionSvc  redemptiondomain.Service
	LiveEvents     *liveevents.Hub        `optional:"true"`
	UserLimiter    *ratelimit.UserLimiter `optional:"true"`
	ObsMetrics     *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		verifier:       NewTokenVerifier(p.Cfg.AuthJWTSecret, p.Cfg.AuthJWTIssuer),
		authzSvc:       p.AuthzSvc,
		auditSvc:       p.AuditSvc,
		catalogSvc:     p.CatalogSvc,
		pointsSvc:      p.PointsSvc,
		activitySvc:    p.ActivitySvc,
		achievementSvc: p.AchievementSvc,
		redemptionSvc:  p.RedemptionSvc,
		liveEvents:     p.LiveEvents,
		userLimiter:    p.UserLimiter,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerUserRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Catalog --------
	api.GET("/activities", s.ListActivities)
	api.GET("/achievements", s.ListAchievements)
	api.GET("/rewards", s.ListRewards)

	// -------- Mutations --------
	api.POST("/activities/record", s.AuthRequired(), s.UserRateLimit(), s.RecordActivity)
	api.POST("/rewards/redeem", s.AuthRequired(), s.UserRateLimit(), s.RedeemReward)
}

func (s *Server) registerUserRoutes() {
	user := s.engine.Group("/api/user", s.AuthRequired())

	user.GET("/points", s.authorize(authorization.ObjectPoints, authorization.ActionPointsView), s.GetPoints)
	user.GET("/points/history", s.authorize(authorization.ObjectPoints, authorization.ActionPointsView), s.ListPointsHistory)
	user.GET("/achievements", s.ListUserAchievements)
	user.GET("/activities", s.ListUserActivities)
	user.GET("/rewards", s.ListUserRewards)
	user.GET("/events/ws", s.StreamUserEvents)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AuthRequired())

	// -------- Catalog --------
	admin.POST("/activities", s.authorize(authorization.ObjectActivity, authorization.ActionActivityCreate), s.CreateActivity)
	admin.PATCH("/activities/:id", s.authorize(authorization.ObjectActivity, authorization.ActionActivityUpdate), s.UpdateActivity)
	admin.POST("/achievements", s.authorize(authorization.ObjectAchievement, authorization.ActionAchievementCreate), s.CreateAchievement)
	admin.POST("/rewards", s.authorize(authorization.ObjectReward, authorization.ActionRewardCreate), s.CreateReward)
	admin.PATCH("/rewards/:id", s.authorize(authorization.ObjectReward, authorization.ActionRewardUpdate), s.UpdateReward)

	// -------- Operations --------
	admin.POST("/activity-records/:id/verify", s.authorize(authorization.ObjectActivityRecord, authorization.ActionActivityRecordVerify), s.VerifyActivityRecord)
	admin.POST("/points/adjust", s.authorize(authorization.ObjectPoints, authorization.ActionPointsAdjust), s.AdjustPoints)
	admin.POST("/redemptions/:code/fulfill", s.authorize(authorization.ObjectRedemption, authorization.ActionRedemptionFulfill), s.FulfillRedemption)
	admin.GET("/users/:id/points", s.authorize(authorization.ObjectPoints, authorization.ActionPointsAdjust), s.GetUserPoints)

	// -------- Audit --------
	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
