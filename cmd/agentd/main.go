package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/audit"
	"github.com/xela07ax/tenant-agent-core/internal/connectors"
	"github.com/xela07ax/tenant-agent-core/internal/cycle"
	"github.com/xela07ax/tenant-agent-core/internal/engagement"
	"github.com/xela07ax/tenant-agent-core/internal/infra"
	"github.com/xela07ax/tenant-agent-core/internal/killswitch"
	"github.com/xela07ax/tenant-agent-core/internal/lock"
	"github.com/xela07ax/tenant-agent-core/internal/ratelimit"
	"github.com/xela07ax/tenant-agent-core/internal/repository/postgres"
	"github.com/xela07ax/tenant-agent-core/internal/sandbox"
	"github.com/xela07ax/tenant-agent-core/internal/scheduler"
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

	// Контекст жизненного цикла фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	repo, err := postgres.New(appCtx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to init postgres", zap.Error(err))
	}
	defer repo.Close()

	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := repo.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	// 3. Метрики на приватном регистре
	reg := prometheus.NewRegistry()
	metrics := cycle.NewMetrics(reg)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := ":" + strconv.Itoa(cfg.Server.MetricsPort)
		logger.Info("metrics endpoint started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics endpoint failed", zap.Error(err))
		}
	}()

	// 4. Control Plane: kill switch с прогревом и живой подпиской
	ksm := killswitch.NewManager(rdb, repo, logger)
	if err := ksm.Init(appCtx); err != nil {
		logger.Fatal("failed to init kill switch", zap.Error(err))
	}
	go ksm.StartListener(appCtx)

	// 5. Аудит: батчующий recorder поверх Postgres
	recorder := audit.NewRecorder(repo, logger,
		cfg.Agent.AuditBufferSize, cfg.Agent.AuditFlushInterval, metrics.AuditBufferFill)
	recorder.Start()

	// 6. Execution Layer: внешний исполнитель + контур надежности
	var executor connectors.ActionExecutor
	if url := os.Getenv("EXECUTOR_URL"); url != "" {
		executor = connectors.NewHTTPAdapter(url)
	} else {
		// Без внешнего исполнителя работаем на моке (dev/staging)
		logger.Warn("EXECUTOR_URL is not set, using mock executor")
		executor = &connectors.MockExecutor{}
	}
	safeExecutor := connectors.NewReliabilityWrapper(executor, connectors.CBSettings{
		MaxRequests: cfg.Agent.CBMaxRequests,
		Interval:    cfg.Agent.CBInterval,
		Timeout:     cfg.Agent.CBTimeout,
	})

	// 7. Доменные компоненты
	limiter := ratelimit.NewLimiter(
		ratelimit.NewRedisCounter(rdb), repo, logger, metrics.RateLimitBreaches)
	tracker := engagement.NewTracker(repo, logger, 0)
	locks := lock.NewRedisStore(rdb, logger)

	registry := sandbox.NewFileRegistry()
	sandbox.RegisterBuiltins(registry)
	if err := registry.LoadFile(cfg.Sandbox.RegistryPath); err != nil {
		logger.Warn("sandbox registry not loaded", zap.Error(err))
	}
	sandboxExec := sandbox.NewExecutor(repo, limiter, registry, repo, logger, metrics.SandboxDuration)

	// sandbox_job исполняется внутри процесса, остальное — снаружи
	dispatcher := connectors.NewDispatcher(safeExecutor, sandboxExec)

	orch := cycle.NewOrchestrator(
		repo, locks, limiter, tracker, repo,
		dispatcher, recorder, repo, repo,
		metrics, logger, cfg.Agent.LockTTL,
	)

	// 8. Планировщик
	sched := scheduler.New(repo, orch, ksm, logger,
		cfg.Agent.CycleInterval, cfg.Agent.MaxConcurrentTenants)
	go sched.Run(appCtx)

	logger.Info("agentd started",
		zap.Duration("cycle_interval", cfg.Agent.CycleInterval),
		zap.String("holder_id", orch.HolderID()),
	)

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("agentd stopping...")
	cancel()
	recorder.Stop() // Дренаж буфера аудита перед выходом
	logger.Info("agentd exited properly")
}
