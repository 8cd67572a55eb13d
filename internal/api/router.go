package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/coach_go_server/config"
	"github.com/qs3c/coach_go_server/internal/api/handler"
	"github.com/qs3c/coach_go_server/internal/api/middleware"
	"github.com/qs3c/coach_go_server/internal/pkg/metrics"
)

type Router struct {
	authHandler         *handler.AuthHandler
	userHandler         *handler.UserHandler
	settingsHandler     *handler.SettingsHandler
	recorderHandler     *handler.RecorderHandler
	conversationHandler *handler.ConversationHandler
	checkInHandler      *handler.CheckInHandler
	subscriptionHandler *handler.SubscriptionHandler
	websocketHandler    *handler.WebSocketHandler
	metrics             *metrics.Metrics
	logger              *zap.Logger
	cfg                 *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	settingsHandler *handler.SettingsHandler,
	recorderHandler *handler.RecorderHandler,
	conversationHandler *handler.ConversationHandler,
	checkInHandler *handler.CheckInHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	websocketHandler *handler.WebSocketHandler,
	m *metrics.Metrics,
	logger *zap.Logger,
	cfg *config.Config,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		authHandler:         authHandler,
		userHandler:         userHandler,
		settingsHandler:     settingsHandler,
		recorderHandler:     recorderHandler,
		conversationHandler: conversationHandler,
		checkInHandler:      checkInHandler,
		subscriptionHandler: subscriptionHandler,
		websocketHandler:    websocketHandler,
		metrics:             m,
		logger:              logger,
		cfg:                 cfg,
	}
}

func (r *Router) Setup() (*gin.Engine, error) {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	analyzeLimit, err := middleware.RateLimit(r.cfg.RateLimit.Analyze, r.metrics)
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(r.logger))
	engine.Use(middleware.RequestLogger(r.logger))
	engine.Use(r.metrics.Middleware())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/metrics", r.metrics.Handler())

	api := engine.Group("/api/v1")
	{
		// WebSocket，token 走查询参数
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/verify-email", r.authHandler.VerifyEmail)
			auth.GET("/github", r.authHandler.GithubAuth)
			auth.GET("/github/callback", r.authHandler.GithubCallback)
		}

		// 公开接口 - 套餐（可选认证）
		api.GET("/plans", middleware.OptionalAuth(r.cfg.JWT.Secret), r.subscriptionHandler.Plans)

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			// 用户
			user := authenticated.Group("/user")
			{
				user.GET("/profile", r.userHandler.GetProfile)
				user.PUT("/profile", r.userHandler.UpdateProfile)
				user.POST("/avatar", r.userHandler.UploadAvatar)
				user.GET("/quota", r.userHandler.GetQuota)
			}

			// 设置
			authenticated.GET("/settings", r.settingsHandler.Get)
			authenticated.PUT("/settings", r.settingsHandler.Update)

			// 录音器
			rec := authenticated.Group("/recorder")
			{
				rec.GET("/permission", r.recorderHandler.GetPermission)
				rec.PUT("/permission", r.recorderHandler.SetPermission)
				rec.GET("/status", r.recorderHandler.Status)
				rec.POST("/start", r.recorderHandler.Start)
				rec.POST("/chunks", r.recorderHandler.PushChunk)
				rec.POST("/stop", r.recorderHandler.Stop)
				rec.GET("/stream", r.recorderHandler.Stream)
			}

			// 录音
			recordings := authenticated.Group("/recordings")
			{
				recordings.GET("", r.recorderHandler.ListRecordings)
				recordings.DELETE("/:id", r.recorderHandler.DeleteRecording)
				recordings.POST("/:id/analyze", analyzeLimit, r.conversationHandler.Analyze)
				recordings.POST("/:id/jobs", analyzeLimit, r.conversationHandler.Submit)
			}

			// 对话
			conversations := authenticated.Group("/conversations")
			{
				conversations.POST("/demo", analyzeLimit, r.conversationHandler.Demo)
				conversations.GET("", r.conversationHandler.List)
				conversations.GET("/:id", r.conversationHandler.Get)
				conversations.DELETE("/:id", r.conversationHandler.Delete)
			}
			authenticated.GET("/jobs/:id", r.conversationHandler.GetJob)

			// 打卡
			checkins := authenticated.Group("/checkins")
			{
				checkins.POST("", r.checkInHandler.Create)
				checkins.GET("", r.checkInHandler.List)
				checkins.GET("/today", r.checkInHandler.Today)
				checkins.GET("/summary", r.checkInHandler.Summary)
			}

			// 订阅
			sub := authenticated.Group("/subscription")
			{
				sub.GET("", r.subscriptionHandler.Get)
				sub.POST("/upgrade", r.subscriptionHandler.Upgrade)
				sub.POST("/cancel", r.subscriptionHandler.Cancel)
				sub.POST("/reactivate", r.subscriptionHandler.Reactivate)
				sub.GET("/access", r.subscriptionHandler.Access)
			}
		}
	}

	return engine, nil
}
