// database.go — пул pgx для хранилища ссылок, embedded-миграции и readiness.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/passlink/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pingAttempts — сколько раз Connect пингует базу, прежде чем сдаться.
// PostgreSQL в compose/k8s часто поднимается позже сервиса.
const pingAttempts = 5

// Connect открывает пул на PL_DB_* и ждёт, пока база ответит на ping.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("разбор параметров PostgreSQL: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("создание пула PostgreSQL: %w", err)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	b := backoff.WithContext(backoff.WithMaxRetries(eb, pingAttempts-1), ctx)

	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		pingErr := pool.Ping(ctx)
		if pingErr != nil {
			logger.Warn("PostgreSQL пока не отвечает",
				slog.Int("attempt", attempt),
				slog.String("error", pingErr.Error()),
			)
		}
		return pingErr
	}, b)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL недоступен после %d попыток: %w", attempt, err)
	}

	logger.Info("Хранилище ссылок подключено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)

	return pool, nil
}

// Migrate доводит схему до последней версии из migrations/.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("чтение embedded-миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, MigrateURL(cfg))
	if err != nil {
		return fmt.Errorf("подготовка golang-migrate: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("миграция схемы: %w", err)
	}

	version, dirty, _ := m.Version()
	if dirty {
		logger.Warn("Схема помечена как dirty, нужна ручная проверка",
			slog.Uint64("version", uint64(version)),
		)
		return nil
	}
	logger.Info("Схема актуальна", slog.Uint64("version", uint64(version)))

	return nil
}

// MigrateURL собирает pgx5:// URL для golang-migrate. Учётные данные
// экранируются через url.UserPassword.
func MigrateURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// ReadinessChecker отвечает /health/ready за хранилище ссылок.
type ReadinessChecker struct {
	pool *pgxpool.Pool
}

func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{pool: pool}
}

// CheckReady пингует пул с таймаутом 3s; статус "ok" или "fail".
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("хранилище ссылок недоступно: %v", err)
	}
	stat := c.pool.Stat()
	return "ok", fmt.Sprintf("соединений: %d/%d", stat.AcquiredConns(), stat.MaxConns())
}
