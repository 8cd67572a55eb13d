package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/qs3c/coach_go_server/config"
	"github.com/qs3c/coach_go_server/internal/database"
	"github.com/qs3c/coach_go_server/internal/pkg/inflight"
	"github.com/qs3c/coach_go_server/internal/pkg/llm"
	"github.com/qs3c/coach_go_server/internal/pkg/logger"
	"github.com/qs3c/coach_go_server/internal/pkg/metrics"
	"github.com/qs3c/coach_go_server/internal/pkg/pubsub"
	"github.com/qs3c/coach_go_server/internal/pkg/queue"
	"github.com/qs3c/coach_go_server/internal/pkg/transcribe"
	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/service"
	"github.com/qs3c/coach_go_server/internal/worker"
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

	log := logger.Must(cfg.Log).Named("worker")
	defer log.Sync()

	if cfg.Recorder.Store != "redis" {
		log.Fatal("worker requires recorder.store=redis", zap.String("store", cfg.Recorder.Store))
	}

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	log.Info("database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	log.Info("redis connected")

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	loc := cfg.App.Location()
	subscriptionService := service.NewSubscriptionService(repository.NewSubscriptionRepository(db), log)
	quotaService := service.NewQuotaService(userRepo, subscriptionService, loc)

	jobQueue := queue.NewQueue(rdb, cfg.Queue.ConversationQueue)
	conversationService := service.NewConversationService(
		repository.NewConversationRepository(db),
		repository.NewJobRepository(db),
		repository.NewRedisRecordingStore(rdb, cfg.Recorder.RecordingTTL()),
		service.NewSettingsService(repository.NewSettingsRepository(db)),
		quotaService,
		inflight.NewRedisGuard(rdb, cfg.Recorder.InFlightTTL()),
		transcribe.NewClient(&cfg.Transcription),
		llm.NewClient(&cfg.LLM),
		jobQueue,
		metrics.New(),
		cfg,
		log,
	)

	// 创建任务处理器
	processor := worker.NewProcessor(conversationService, pubsub.NewPublisher(rdb), log)
	pool := worker.NewPool(jobQueue, processor, cfg.Queue.MaxWorkers, log)

	// 监听退出信号
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("worker started", zap.Int("max_workers", cfg.Queue.MaxWorkers))
	pool.Run(ctx)
	log.Info("worker shutdown complete")
}
