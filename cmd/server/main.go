package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loyaltysystem/internal/config"
	"loyaltysystem/internal/handler"
	"loyaltysystem/internal/infrastructure/cache"
	"loyaltysystem/internal/infrastructure/database"
	"loyaltysystem/internal/infrastructure/mq"
	"loyaltysystem/internal/job"
	"loyaltysystem/pkg/idgen"
	"loyaltysystem/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	l := logger.Init(os.Getenv("LOG_LEVEL"))
	defer l.Sync()

	cfg := config.LoadConfig("config/config.yaml")

	idgen.Init(1)

	db := database.InitMySQL(&cfg.MySQL)
	redisClient := cache.InitRedis(&cfg.Redis)

	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	sessionSweeper := job.NewSessionSweeper(db, cfg)
	go sessionSweeper.Start(ctx)

	router := handler.SetupRouter(db, redisClient, cfg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		zap.L().Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("shutting down")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("shutdown incomplete", zap.Error(err))
	}

	zap.L().Info("server stopped")
}
