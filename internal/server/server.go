// Пакет server — HTTP-сервер passlink с graceful shutdown.
// Без TLS: HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/bigkaa/passlink/internal/api/errors"
	"github.com/bigkaa/passlink/internal/api/handlers"
	"github.com/bigkaa/passlink/internal/api/middleware"
	"github.com/bigkaa/passlink/internal/config"
	"github.com/bigkaa/passlink/internal/domain/rbac"
)

// Server — HTTP-сервер passlink.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт сервер с маршрутами и middleware.
// keyAuth — проверка API-ключа и allow-list (service.AccessGate).
func New(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	health *handlers.HealthHandler,
	jwtAuth *middleware.JWTAuth,
	keyAuth middleware.CredentialAuthenticator,
) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           NewRouter(cfg, logger, api, health, jwtAuth, keyAuth),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер:
//
//	/health/*, /metrics, /api/v1/public/* — без аутентификации
//	/api/v1/external/*                    — API-ключ + allow-list
//	остальное /api/v1/*                   — Keycloak JWT + роль
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	api *handlers.APIHandler,
	health *handlers.HealthHandler,
	jwtAuth *middleware.JWTAuth,
	keyAuth middleware.CredentialAuthenticator,
) http.Handler {
	router := chi.NewRouter()

	// TrustedProxyIP переписывает RemoteAddr, поэтому идёт раньше логирования
	if len(cfg.TrustedProxies) > 0 {
		router.Use(middleware.TrustedProxyIP(cfg.TrustedProxies))
	}
	router.Use(chimw.Recoverer)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.NotFound(w, "Маршрут не найден")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apierrors.WriteError(w, http.StatusMethodNotAllowed, apierrors.CodeValidationError, "Метод не поддерживается")
	})

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/public/links/{id}", func(r chi.Router) {
			r.Get("/", api.CheckLink)
			r.Post("/reveal", api.RevealLink)
		})

		r.Route("/external", func(r chi.Router) {
			r.Use(handlers.RequirePOST)
			r.Use(middleware.APIKeyAuth(cfg.APIKeyHeader, keyAuth, handlers.WriteExternalAuthError))
			r.HandleFunc("/links", api.CreateExternalLink)
		})

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware())

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(rbac.RoleAdmin, rbac.RoleTechnician))
				r.Post("/links", api.CreateLink)
				r.Get("/links", api.ListLinks)
				r.Get("/links/{id}", api.GetLink)
				r.Post("/links/{id}/revoke", api.RevokeLink)
				r.Post("/links/{id}/regenerate", api.RegenerateLink)
				r.Post("/links/{id}/send-email", api.SendLinkEmail)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(rbac.RoleAdmin))
				r.Delete("/links/{id}", api.DeleteLink)
				r.Post("/api-credentials", api.CreateAPICredential)
				r.Get("/api-credentials", api.ListAPICredentials)
				r.Post("/api-credentials/{id}/deactivate", api.DeactivateAPICredential)
				r.Post("/ip-allowlist", api.AddAllowListEntry)
				r.Get("/ip-allowlist", api.ListAllowList)
				r.Delete("/ip-allowlist/{id}", api.RemoveAllowListEntry)
				r.Get("/audit", api.ListAudit)
			})
		})
	})

	return router
}

// Run запускает сервер и ждёт SIGINT/SIGTERM, затем выполняет graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен", slog.String("addr", s.httpServer.Addr))

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
