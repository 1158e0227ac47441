// dephealth.go — мониторинг зависимостей через topologymetrics SDK.
//
// passlink зависит от двух внешних систем:
//   - PostgreSQL — хранилище ссылок, без него раскрытие невозможно (critical);
//   - Keycloak JWKS — ключи для проверки JWT сотрудников (critical).
//
// SMTP в мониторинг не входит: недоступность почты не мешает создавать
// и раскрывать ссылки, ошибки доставки видны в passlink_email_deliveries_total.
//
// Метрики публикуются на /metrics (app_dependency_health,
// app_dependency_latency_seconds, app_dependency_status, app_dependency_status_detail).
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // HTTP checker для Keycloak
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// DephealthConfig — параметры мониторинга зависимостей.
type DephealthConfig struct {
	// ServiceID — имя вершины графа (passlink)
	ServiceID string
	// Group — значение PL_DEPHEALTH_GROUP
	Group string
	// DB — *sql.DB поверх pgxpool (stdlib.OpenDBFromPool)
	DB *sql.DB
	// PostgresURL — URL PostgreSQL, только для лейблов
	PostgresURL string
	// JWKSURL — JWKS endpoint Keycloak
	JWKSURL string
	// CheckInterval — период проверки
	CheckInterval time.Duration
	// TLSSkipVerify — не проверять сертификат Keycloak (PL_CA_CERT_PATH не задан)
	TLSSkipVerify bool
	// Registerer — Prometheus registry (nil — глобальный)
	Registerer prometheus.Registerer
}

// DephealthService — мониторинг зависимостей.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService регистрирует проверки PostgreSQL (pool mode) и Keycloak JWKS.
func NewDephealthService(cfg DephealthConfig, logger *slog.Logger) (*DephealthService, error) {
	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(cfg.DB)),
			dephealth.FromURL(cfg.PostgresURL),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
		),
		dephealth.HTTP("keycloak-jwks",
			dephealth.FromURL(cfg.JWKSURL),
			dephealth.WithHTTPHealthPath(jwksHealthPath(cfg.JWKSURL)),
			dephealth.CheckInterval(cfg.CheckInterval),
			dephealth.Critical(true),
			dephealth.WithHTTPTLSSkipVerify(cfg.TLSSkipVerify),
		),
	}
	if cfg.Registerer != nil {
		opts = append(opts, dephealth.WithRegisterer(cfg.Registerer))
	}

	dh, err := dephealth.New(cfg.ServiceID, cfg.Group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// jwksHealthPath — путь JWKS как health-path Keycloak. /health у Keycloak
// доступен только на management-порту, поэтому проверяем сам realm.
func jwksHealthPath(jwksURL string) string {
	parsed, err := url.Parse(jwksURL)
	if err != nil || parsed.Path == "" {
		return "/health"
	}
	return parsed.Path
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL + Keycloak)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health — текущее состояние зависимостей (имя → ok).
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
