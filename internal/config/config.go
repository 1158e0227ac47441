// Пакет config — загрузка и валидация конфигурации PassLink
// из переменных окружения.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/mail"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации PassLink.
// Загружается один раз при старте и дальше только читается.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Базовый URL публичной страницы получателя; ссылка = <base>/reveal/<id>
	PublicBaseURL string
	// Адреса reverse proxy, которым разрешено передавать X-Forwarded-For.
	// Пусто — заголовок игнорируется, адрес клиента берётся из соединения.
	TrustedProxies []netip.Prefix

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string
	// Верхняя граница пула: каждое раскрытие держит соединение на время транзакции
	DBMaxConns int

	// --- Шифрование ---

	// Мастер-ключ AES-256 (32 байта), в окружении — 64 hex-символа
	EncryptionKey []byte

	// --- Keycloak / JWT ---

	// URL Keycloak (например, https://keycloak.kryukov.lan)
	KeycloakURL string
	// Имя realm в Keycloak
	KeycloakRealm string
	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления ключей JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Путь к CA-сертификату Keycloak (опционально)
	CACertPath string

	// --- Маппинг групп → ролей ---

	// Группы Keycloak, дающие роль admin
	RoleAdminGroups []string
	// Группы Keycloak, дающие роль technician
	RoleTechnicianGroups []string

	// --- Программный API ---

	// Имя заголовка с API-ключом
	APIKeyHeader string

	// --- Раскрытие и срок жизни ---

	// Число повторов транзакции раскрытия при конфликте сериализации
	RevealMaxRetries int
	// Срок жизни неиспользованной ссылки (0 — без истечения)
	LinkTTL time.Duration
	// Интервал фоновой проверки истёкших ссылок
	ExpiryInterval time.Duration

	// --- SMTP ---

	// Хост SMTP (пусто — уведомления отключены)
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	// Адрес отправителя
	SMTPFrom string
	// Политика TLS: mandatory, opportunistic, none
	SMTPTLSPolicy string
	// Таймаут соединения с SMTP
	SMTPTimeout time.Duration

	// --- Аудит ---

	// Ёмкость очереди асинхронной записи аудита
	AuditQueueSize int

	// --- Мониторинг ---

	// Группа сервиса в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PL_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("PL_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("PL_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PL_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// PL_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PL_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PL_LOG_LEVEL: %w", err)
	}

	// PL_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("PL_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PL_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// PL_PUBLIC_BASE_URL — обязательный
	cfg.PublicBaseURL, err = getEnvRequired("PL_PUBLIC_BASE_URL")
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(cfg.PublicBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("PL_PUBLIC_BASE_URL: ожидается абсолютный http(s) URL, получено %q", cfg.PublicBaseURL)
	}
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	// PL_TRUSTED_PROXIES — адреса и CIDR через запятую (по умолчанию пусто)
	cfg.TrustedProxies, err = parsePrefixes(os.Getenv("PL_TRUSTED_PROXIES"))
	if err != nil {
		return nil, fmt.Errorf("PL_TRUSTED_PROXIES: %w", err)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("PL_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("PL_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PL_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("PL_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("PL_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("PL_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// PL_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("PL_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PL_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// PL_DB_MAX_CONNS — размер пула (по умолчанию 10)
	cfg.DBMaxConns, err = getEnvInt("PL_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("PL_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("PL_DB_MAX_CONNS: должно быть не меньше 1, получено %d", cfg.DBMaxConns)
	}

	// --- Шифрование ---

	// PL_ENCRYPTION_KEY — обязательный, ровно 256 бит
	rawKey, err := getEnvRequired("PL_ENCRYPTION_KEY")
	if err != nil {
		return nil, err
	}
	cfg.EncryptionKey, err = hex.DecodeString(strings.TrimSpace(rawKey))
	if err != nil {
		return nil, fmt.Errorf("PL_ENCRYPTION_KEY: ожидается hex-строка")
	}
	if len(cfg.EncryptionKey) != 32 {
		return nil, fmt.Errorf("PL_ENCRYPTION_KEY: длина ключа %d бит, требуется 256", len(cfg.EncryptionKey)*8)
	}

	// --- Keycloak ---

	cfg.KeycloakURL, err = getEnvRequired("PL_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")

	// PL_KEYCLOAK_REALM — realm (по умолчанию passlink)
	cfg.KeycloakRealm = getEnvDefault("PL_KEYCLOAK_REALM", "passlink")

	// --- JWT ---

	cfg.JWTIssuer = getEnvDefault("PL_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))

	cfg.JWTJWKSURL = getEnvDefault("PL_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	cfg.JWKSClientTimeout, err = getEnvDuration("PL_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PL_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	cfg.JWKSRefreshInterval, err = getEnvDuration("PL_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PL_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.JWTLeeway, err = getEnvDuration("PL_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PL_JWT_LEEWAY: %w", err)
	}

	cfg.CACertPath = getEnvDefault("PL_CA_CERT_PATH", "")

	// --- Маппинг групп → ролей ---

	cfg.RoleAdminGroups = parseCSV(getEnvDefault("PL_ROLE_ADMIN_GROUPS", "passlink-admins"))
	cfg.RoleTechnicianGroups = parseCSV(getEnvDefault("PL_ROLE_TECHNICIAN_GROUPS", "passlink-technicians"))

	// --- Программный API ---

	cfg.APIKeyHeader = getEnvDefault("PL_API_KEY_HEADER", "X-API-Key")

	// --- Раскрытие и срок жизни ---

	cfg.RevealMaxRetries, err = getEnvInt("PL_REVEAL_MAX_RETRIES", 5)
	if err != nil {
		return nil, fmt.Errorf("PL_REVEAL_MAX_RETRIES: %w", err)
	}
	if cfg.RevealMaxRetries < 0 || cfg.RevealMaxRetries > 20 {
		return nil, fmt.Errorf("PL_REVEAL_MAX_RETRIES: значение %d вне допустимого диапазона 0-20", cfg.RevealMaxRetries)
	}

	cfg.LinkTTL, err = getEnvDuration("PL_LINK_TTL", 0)
	if err != nil {
		return nil, fmt.Errorf("PL_LINK_TTL: %w", err)
	}
	if cfg.LinkTTL < 0 {
		return nil, fmt.Errorf("PL_LINK_TTL: отрицательная длительность %s", cfg.LinkTTL)
	}

	cfg.ExpiryInterval, err = getEnvDuration("PL_EXPIRY_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("PL_EXPIRY_INTERVAL: %w", err)
	}
	if cfg.ExpiryInterval <= 0 {
		return nil, fmt.Errorf("PL_EXPIRY_INTERVAL: должен быть больше нуля")
	}

	// --- SMTP ---

	cfg.SMTPHost = getEnvDefault("PL_SMTP_HOST", "")

	cfg.SMTPPort, err = getEnvInt("PL_SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("PL_SMTP_PORT: %w", err)
	}

	cfg.SMTPUsername = getEnvDefault("PL_SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvDefault("PL_SMTP_PASSWORD", "")
	cfg.SMTPFrom = getEnvDefault("PL_SMTP_FROM", "")

	// Без отправителя письма не уйдут — проверяем заранее
	if cfg.SMTPHost != "" {
		if cfg.SMTPFrom == "" {
			return nil, fmt.Errorf("PL_SMTP_FROM: обязателен, если задан PL_SMTP_HOST")
		}
		if _, err := mail.ParseAddress(cfg.SMTPFrom); err != nil {
			return nil, fmt.Errorf("PL_SMTP_FROM: некорректный адрес %q", cfg.SMTPFrom)
		}
	}

	cfg.SMTPTLSPolicy = getEnvDefault("PL_SMTP_TLS_POLICY", "mandatory")
	switch cfg.SMTPTLSPolicy {
	case "mandatory", "opportunistic", "none":
	default:
		return nil, fmt.Errorf("PL_SMTP_TLS_POLICY: недопустимое значение %q, допустимые: mandatory, opportunistic, none", cfg.SMTPTLSPolicy)
	}

	cfg.SMTPTimeout, err = getEnvDuration("PL_SMTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PL_SMTP_TIMEOUT: %w", err)
	}

	// --- Аудит ---

	cfg.AuditQueueSize, err = getEnvInt("PL_AUDIT_QUEUE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("PL_AUDIT_QUEUE_SIZE: %w", err)
	}
	if cfg.AuditQueueSize < 1 {
		return nil, fmt.Errorf("PL_AUDIT_QUEUE_SIZE: значение %d меньше 1", cfg.AuditQueueSize)
	}

	// --- Мониторинг ---

	cfg.DephealthGroup = getEnvDefault("PL_DEPHEALTH_GROUP", "passlink")

	cfg.DephealthCheckInterval, err = getEnvDuration("PL_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PL_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("PL_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PL_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL — URL PostgreSQL без учётных данных (лейблы topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// NotificationsEnabled сообщает, настроена ли отправка писем.
func (c *Config) NotificationsEnabled() bool {
	return c.SMTPHost != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parsePrefixes разбирает список адресов и CIDR через запятую.
// Одиночный адрес превращается в префикс /32 (/128 для IPv6).
func parsePrefixes(s string) ([]netip.Prefix, error) {
	var result []netip.Prefix
	for _, item := range parseCSV(s) {
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, fmt.Errorf("некорректный CIDR %q", item)
			}
			result = append(result, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("некорректный адрес %q", item)
		}
		addr = addr.Unmap()
		result = append(result, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return result, nil
}
