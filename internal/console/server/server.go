package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/xela07ax/tenant-agent-core/internal/console/handler"
	"github.com/xela07ax/tenant-agent-core/internal/console/service"
	"github.com/xela07ax/tenant-agent-core/internal/infra/auth"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// AuthService одновременно и выпускает токены, и проверяет их (RS256)
	authService *service.AuthService

	authHandler    *handler.AuthHandler    // /auth/token
	runHandler     *handler.RunHandler     // /v1/runs
	tenantHandler  *handler.TenantHandler  // /v1/tenants (kill switch)
	observeHandler *handler.ObserveHandler // /v1/alerts, /v1/engagement, /v1/sandbox
}

// NewConsoleServer инициализирует сервер консоли со всеми зависимостями
func NewConsoleServer(
	logger *zap.Logger,
	authService *service.AuthService,
	authH *handler.AuthHandler,
	runH *handler.RunHandler,
	tenantH *handler.TenantHandler,
	observeH *handler.ObserveHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:         chi.NewRouter(),
		logger:         logger.Named("console-api"),
		authService:    authService,
		authHandler:    authH,
		runHandler:     runH,
		tenantHandler:  tenantH,
		observeHandler: observeH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.authService, s.logger))

		// История циклов
		r.Route("/v1/runs", func(r chi.Router) {
			r.Get("/", s.runHandler.List)
			r.Get("/{tenant}/{n}", s.runHandler.Get)
		})

		// Kill switch тенантов
		r.Route("/v1/tenants/{id}", func(r chi.Router) {
			r.Post("/disable", s.tenantHandler.Disable) // Мгновенная остановка
			r.Post("/enable", s.tenantHandler.Enable)
		})

		// Observability
		r.Get("/v1/alerts", s.observeHandler.Alerts)
		r.Get("/v1/engagement/{tenant}/stats", s.observeHandler.EngagementStats)
		r.Get("/v1/sandbox/executions", s.observeHandler.SandboxExecutions)
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
