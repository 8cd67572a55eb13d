package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/qs3c/coach_go_server/config"
	"github.com/qs3c/coach_go_server/internal/database"
	"github.com/qs3c/coach_go_server/internal/pkg/cron"
	"github.com/qs3c/coach_go_server/internal/pkg/logger"
	"github.com/qs3c/coach_go_server/internal/repository"
	"github.com/qs3c/coach_go_server/internal/service"
)

var (
	dryRun     = flag.Bool("dry-run", true, "Dry run mode, only report what would change")
	resetQuota = flag.Bool("reset-quota", false, "Also reset daily analysis quotas")
)

func main() {
	flag.Parse()

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

	log := logger.Must(cfg.Log).Named("sweeper")
	defer log.Sync()

	// 连接数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}

	loc := cfg.App.Location()
	subscriptionService := service.NewSubscriptionService(repository.NewSubscriptionRepository(db), log)
	quotaService := service.NewQuotaService(repository.NewUserRepository(db), subscriptionService, loc)
	svc := cron.NewService(quotaService, subscriptionService, repository.NewJobRepository(db), loc, log)

	log.Info("starting sweep", zap.Bool("dry_run", *dryRun))
	result, err := svc.Sweep(*dryRun)
	if err != nil {
		log.Fatal("sweep failed", zap.Error(err))
	}

	if *resetQuota && !*dryRun {
		if err := svc.RunNow(); err != nil {
			log.Fatal("quota reset failed", zap.Error(err))
		}
		log.Info("daily quotas reset")
	}

	log.Info("sweep completed",
		zap.Int("expired_subscriptions", result.ExpiredSubscriptions),
		zap.Int64("failed_jobs", result.FailedJobs),
	)
	if *dryRun {
		log.Info("this was a dry run, run with -dry-run=false to apply")
	}
}
