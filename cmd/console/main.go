package main

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/console/handler"
	"github.com/xela07ax/tenant-agent-core/internal/console/server"
	"github.com/xela07ax/tenant-agent-core/internal/console/service"
	"github.com/xela07ax/tenant-agent-core/internal/engagement"
	"github.com/xela07ax/tenant-agent-core/internal/infra"
	"github.com/xela07ax/tenant-agent-core/internal/infra/auth"
	"github.com/xela07ax/tenant-agent-core/internal/repository/postgres"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 2. Ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	repo, err := postgres.New(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to init postgres", zap.Error(err))
	}
	if err := repo.Ping(ctx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	cancel()
	defer repo.Close()

	// 3. Ключи RS256: публичный проверяет, приватный подписывает
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("failed to parse public key", zap.Error(err))
	}
	privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("failed to parse private key", zap.Error(err))
	}

	// 4. Слои (Dependency Injection)
	authSvc := service.NewAuthService(repo,
		auth.NewBaseValidator(pubKey),
		auth.NewIssuer(privKey, cfg.Auth.TokenTTL))
	tenantSvc := service.NewTenantService(repo, rdb, logger)
	tracker := engagement.NewTracker(repo, logger, 0)

	srv := server.NewConsoleServer(
		logger,
		authSvc,
		handler.NewAuthHandler(authSvc),
		handler.NewRunHandler(repo),
		handler.NewTenantHandler(tenantSvc),
		handler.NewObserveHandler(repo, tracker, repo),
	)

	// 5. Запуск сервера
	httpSrv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("console API started", zap.String("addr", httpSrv.Addr))
	if err := httpSrv.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
