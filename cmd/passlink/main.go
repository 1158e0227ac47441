// Точка входа passlink — сервиса одноразовых ссылок на пароли.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// собирает сервисный слой (шифрование, аудит, почта, раскрытие, допуск),
// запускает фоновые задачи (истечение срока, topologymetrics)
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/passlink/internal/api/handlers"
	"github.com/bigkaa/passlink/internal/api/middleware"
	"github.com/bigkaa/passlink/internal/config"
	"github.com/bigkaa/passlink/internal/crypto"
	"github.com/bigkaa/passlink/internal/database"
	"github.com/bigkaa/passlink/internal/mailer"
	"github.com/bigkaa/passlink/internal/repository"
	"github.com/bigkaa/passlink/internal/server"
	"github.com/bigkaa/passlink/internal/service"
)

func main() {
	// 1. Конфигурация
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Логирование
	logger := config.SetupLogger(cfg)
	logger.Info("passlink запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("public_base_url", cfg.PublicBaseURL),
	)

	// 3. Миграции
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. PostgreSQL
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// *sql.DB поверх того же пула: topologymetrics видит его исчерпание
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Шифрование
	cipher, err := crypto.NewCipher(cfg.EncryptionKey)
	if err != nil {
		logger.Error("Ошибка инициализации шифрования", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Repositories
	linkRepo := repository.NewLinkRepository(pool)
	credRepo := repository.NewAPICredentialRepository(pool)
	allowRepo := repository.NewAllowListRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)

	// 7. Аудит (асинхронная очередь)
	auditRecorder := service.NewAuditRecorder(auditRepo, cfg.AuditQueueSize, logger)

	// 8. Почта (опционально)
	var notifier service.LinkNotifier
	if cfg.NotificationsEnabled() {
		smtpMailer, err := mailer.NewSMTPMailer(mailer.Config{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			From:      cfg.SMTPFrom,
			TLSPolicy: cfg.SMTPTLSPolicy,
			Timeout:   cfg.SMTPTimeout,
		}, logger)
		if err != nil {
			logger.Error("Ошибка настройки SMTP", slog.String("error", err.Error()))
			os.Exit(1)
		}
		notificationSvc, err := service.NewNotificationService(smtpMailer, logger)
		if err != nil {
			logger.Error("Ошибка загрузки шаблонов писем", slog.String("error", err.Error()))
			os.Exit(1)
		}
		notifier = notificationSvc
		logger.Info("Уведомления по почте включены",
			slog.String("smtp_host", cfg.SMTPHost),
			slog.Int("smtp_port", cfg.SMTPPort),
		)
	} else {
		logger.Warn("PL_SMTP_HOST не задан, отправка писем отключена")
	}

	// 9. Services
	disclosureSvc := service.NewDisclosureService(linkRepo, cipher, auditRecorder, notifier, service.DisclosureConfig{
		PublicBaseURL: cfg.PublicBaseURL,
		MaxRetries:    cfg.RevealMaxRetries,
		LinkTTL:       cfg.LinkTTL,
	}, logger)
	credentialSvc := service.NewAPICredentialService(credRepo, auditRecorder, logger)
	allowListSvc := service.NewAllowListService(allowRepo, auditRecorder, logger)
	accessGate := service.NewAccessGate(credRepo, allowRepo, logger)

	if entries, err := allowRepo.List(ctx); err != nil {
		logger.Warn("Не удалось прочитать allow-list", slog.String("error", err.Error()))
	} else if len(entries) == 0 {
		logger.Warn("Allow-list пуст: программный API принимает запросы с любого адреса")
	}

	// 10. Readiness и JWT
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}

	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:          cfg.JWTJWKSURL,
		CACertPath:       cfg.CACertPath,
		Issuer:           cfg.JWTIssuer,
		AdminGroups:      cfg.RoleAdminGroups,
		TechnicianGroups: cfg.RoleTechnicianGroups,
		ClientTimeout:    cfg.JWKSClientTimeout,
		RefreshInterval:  cfg.JWKSRefreshInterval,
		Leeway:           cfg.JWTLeeway,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 11. Фоновые задачи
	expirySvc := service.NewExpiryService(linkRepo, disclosureSvc, cfg.LinkTTL, cfg.ExpiryInterval, logger)
	expirySvc.Start(ctx)

	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "passlink",
		Group:         cfg.DephealthGroup,
		DB:            pgDB,
		PostgresURL:   cfg.DatabaseURL(),
		JWKSURL:       cfg.JWTJWKSURL,
		CheckInterval: cfg.DephealthCheckInterval,
		TLSSkipVerify: cfg.CACertPath == "",
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
		dephealthSvc = nil
	}

	// 12. HTTP
	apiHandler := handlers.NewAPIHandler(disclosureSvc, credentialSvc, allowListSvc, auditRecorder, logger)
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker)

	srv := server.New(cfg, logger, apiHandler, healthHandler, jwtAuth, accessGate)
	runErr := srv.Run()

	// 13. Остановка фоновых задач; аудит дописывает очередь последним
	logger.Info("Останавливаем фоновые задачи...")
	expirySvc.Stop()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := auditRecorder.Close(closeCtx); err != nil {
		logger.Error("Не все записи аудита сохранены", slog.String("error", err.Error()))
	}

	if runErr != nil {
		logger.Error("Ошибка сервера", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
	logger.Info("passlink остановлен")
}
