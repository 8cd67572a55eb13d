package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/coach_go_server/config"
	"github.com/qs3c/coach_go_server/internal/api"
	"github.com/qs3c/coach_go_server/internal/api/handler"
	"github.com/qs3c/coach_go_server/internal/database"
	"github.com/qs3c/coach_go_server/internal/pkg/cron"
	"github.com/qs3c/coach_go_server/internal/pkg/email"
	"github.com/qs3c/coach_go_server/internal/pkg/inflight"
	"github.com/qs3c/coach_go_server/internal/pkg/llm"
	"github.com/qs3c/coach_go_server/internal/pkg/logger"
	"github.com/qs3c/coach_go_server/internal/pkg/metrics"
	"github.com/qs3c/coach_go_server/internal/pkg/oauth"
	"github.com/qs3c/coach_go_server/internal/pkg/pubsub"
	"github.com/qs3c/coach_go_server/internal/pkg/queue"
	"github.com/qs3c/coach_go_server/internal/pkg/storage"
	"github.com/qs3c/coach_go_server/internal/pkg/transcribe"
	"github.com/qs3c/coach_go_server/internal/pkg/ws"
	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/service"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(cfg.Log)
	defer log.Sync()

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	log.Info("database connected", zap.String("driver", cfg.Database.Driver))

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	log.Info("redis connected")

	// 对象存储（可选）
	var store storage.ObjectStore
	if s, err := storage.New(cfg); err != nil {
		log.Warn("object storage disabled", zap.Error(err))
	} else {
		store = s
	}

	// 录音临时存储；异步任务需要 worker 能读到录音
	var (
		recordings repository.RecordingStore
		jobQueue   service.JobQueue
	)
	switch cfg.Recorder.Store {
	case "redis":
		recordings = repository.NewRedisRecordingStore(rdb, cfg.Recorder.RecordingTTL())
		jobQueue = queue.NewQueue(rdb, cfg.Queue.ConversationQueue)
	default:
		recordings = repository.NewMemoryRecordingStore(cfg.Recorder.RecordingTTL())
		log.Info("async jobs disabled with in-memory recording store")
	}

	m := metrics.New()
	hub := ws.NewHub(log.Named("ws"))

	var mailer service.Mailer
	if cfg.Email.SMTPHost != "" {
		mailer = email.NewService(&cfg.Email)
	}
	github := oauth.NewGithubOAuth(&cfg.OAuth.Github)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	checkInRepo := repository.NewCheckInRepository(db)
	convRepo := repository.NewConversationRepository(db)
	jobRepo := repository.NewJobRepository(db)

	// 初始化 Service
	loc := cfg.App.Location()
	subscriptionService := service.NewSubscriptionService(subRepo, log.Named("subscription"))
	quotaService := service.NewQuotaService(userRepo, subscriptionService, loc)
	authService := service.NewAuthService(userRepo, cfg, github, mailer, log.Named("auth"))
	userService := service.NewUserService(userRepo, store, quotaService, log.Named("user"))
	settingsService := service.NewSettingsService(settingsRepo)
	checkInService := service.NewCheckInService(checkInRepo, loc)
	recorderService := service.NewRecorderService(recordings, hub, m, &cfg.Recorder, log.Named("recorder"))
	defer recorderService.Close()
	conversationService := service.NewConversationService(
		convRepo,
		jobRepo,
		recordings,
		settingsService,
		quotaService,
		inflight.NewRedisGuard(rdb, cfg.Recorder.InFlightTTL()),
		transcribe.NewClient(&cfg.Transcription),
		llm.NewClient(&cfg.LLM),
		jobQueue,
		m,
		cfg,
		log.Named("conversation"),
	)

	// 定时任务
	scheduler := cron.NewService(quotaService, subscriptionService, jobRepo, loc, log.Named("cron"))
	if err := scheduler.Start(); err != nil {
		log.Fatal("failed to start cron", zap.Error(err))
	}
	defer scheduler.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go recorderService.RunJanitor(ctx)

	// worker 进度经 Redis 转发到 WebSocket
	go func() {
		err := pubsub.NewSubscriber(rdb).Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
			if err := hub.SendToUser(msg.UserID, &ws.Message{Type: ws.TypeJobProgress, Data: msg}); err != nil {
				log.Debug("progress push failed", zap.Int64("user_id", msg.UserID), zap.Error(err))
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("progress subscriber stopped", zap.Error(err))
		}
	}()

	// 初始化 Handler
	router := api.NewRouter(
		handler.NewAuthHandler(authService, oauth.NewStateStore(rdb), cfg.OAuth.Github.FrontendURL),
		handler.NewUserHandler(userService, quotaService),
		handler.NewSettingsHandler(settingsService),
		handler.NewRecorderHandler(recorderService, cfg.CORS.AllowedOrigins, log.Named("recorder")),
		handler.NewConversationHandler(conversationService, log.Named("conversation")),
		handler.NewCheckInHandler(checkInService),
		handler.NewSubscriptionHandler(subscriptionService),
		handler.NewWebSocketHandler(hub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins, log.Named("ws")),
		m,
		log.Named("http"),
		cfg,
	)
	engine, err := router.Setup()
	if err != nil {
		log.Fatal("failed to setup router", zap.Error(err))
	}

	// 启动服务器
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}
	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
}
