package config

import (
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// minimalEnvs возвращает минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"PL_PUBLIC_BASE_URL": "https://pass.example.org",
		"PL_DB_HOST":         "localhost",
		"PL_DB_NAME":         "passlink",
		"PL_DB_USER":         "passlink",
		"PL_DB_PASSWORD":     "secret",
		"PL_ENCRYPTION_KEY":  testKeyHex,
		"PL_KEYCLOAK_URL":    "https://keycloak.kryukov.lan",
	}
}

// loadWith очищает обязательные переменные, выставляет envs и вызывает Load.
func loadWith(t *testing.T, envs map[string]string) (*Config, error) {
	t.Helper()
	for k := range minimalEnvs() {
		os.Unsetenv(k)
	}
	setEnvs(t, envs)
	return Load()
}

func TestLoad_MinimalConfig(t *testing.T) {
	cfg, err := loadWith(t, minimalEnvs())
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидается 8080", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидается json", cfg.LogFormat)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, ожидается 5432", cfg.DBPort)
	}
	if cfg.DBSSLMode != "disable" {
		t.Errorf("DBSSLMode = %q, ожидается disable", cfg.DBSSLMode)
	}
	if cfg.DBMaxConns != 10 {
		t.Errorf("DBMaxConns = %d, ожидается 10", cfg.DBMaxConns)
	}
	if len(cfg.EncryptionKey) != 32 {
		t.Errorf("len(EncryptionKey) = %d, ожидается 32", len(cfg.EncryptionKey))
	}
	if cfg.KeycloakRealm != "passlink" {
		t.Errorf("KeycloakRealm = %q, ожидается passlink", cfg.KeycloakRealm)
	}
	if cfg.APIKeyHeader != "X-API-Key" {
		t.Errorf("APIKeyHeader = %q, ожидается X-API-Key", cfg.APIKeyHeader)
	}
	if cfg.RevealMaxRetries != 5 {
		t.Errorf("RevealMaxRetries = %d, ожидается 5", cfg.RevealMaxRetries)
	}
	if cfg.LinkTTL != 0 {
		t.Errorf("LinkTTL = %v, ожидается 0", cfg.LinkTTL)
	}
	if cfg.ExpiryInterval != 5*time.Minute {
		t.Errorf("ExpiryInterval = %v, ожидается 5m", cfg.ExpiryInterval)
	}
	if cfg.NotificationsEnabled() {
		t.Error("NotificationsEnabled() = true без PL_SMTP_HOST")
	}
	if cfg.SMTPTLSPolicy != "mandatory" {
		t.Errorf("SMTPTLSPolicy = %q, ожидается mandatory", cfg.SMTPTLSPolicy)
	}
	if cfg.AuditQueueSize != 1024 {
		t.Errorf("AuditQueueSize = %d, ожидается 1024", cfg.AuditQueueSize)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies = %v, ожидается пусто", cfg.TrustedProxies)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидается 15s", cfg.DephealthCheckInterval)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 5s", cfg.ShutdownTimeout)
	}
}

func TestLoad_JWTAutoDerive(t *testing.T) {
	cfg, err := loadWith(t, minimalEnvs())
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	expectedIssuer := "https://keycloak.kryukov.lan/realms/passlink"
	if cfg.JWTIssuer != expectedIssuer {
		t.Errorf("JWTIssuer = %q, ожидается %q", cfg.JWTIssuer, expectedIssuer)
	}

	expectedJWKS := "https://keycloak.kryukov.lan/realms/passlink/protocol/openid-connect/certs"
	if cfg.JWTJWKSURL != expectedJWKS {
		t.Errorf("JWTJWKSURL = %q, ожидается %q", cfg.JWTJWKSURL, expectedJWKS)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	envs := minimalEnvs()
	envs["PL_PORT"] = "9090"
	envs["PL_LOG_LEVEL"] = "debug"
	envs["PL_LOG_FORMAT"] = "text"
	envs["PL_PUBLIC_BASE_URL"] = "https://pass.example.org/"
	envs["PL_TRUSTED_PROXIES"] = "10.0.0.0/8, 192.0.2.10"
	envs["PL_DB_SSL_MODE"] = "require"
	envs["PL_ROLE_ADMIN_GROUPS"] = "admins, super-admins"
	envs["PL_ROLE_TECHNICIAN_GROUPS"] = "helpdesk"
	envs["PL_API_KEY_HEADER"] = "X-PassLink-Key"
	envs["PL_LINK_TTL"] = "72h"
	envs["PL_SMTP_HOST"] = "smtp.example.org"
	envs["PL_SMTP_FROM"] = "PassLink <noreply@example.org>"
	envs["PL_SMTP_TLS_POLICY"] = "opportunistic"
	envs["PL_SHUTDOWN_TIMEOUT"] = "10s"

	cfg, err := loadWith(t, envs)
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, ожидается 9090", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.PublicBaseURL != "https://pass.example.org" {
		t.Errorf("PublicBaseURL = %q, ожидается без trailing slash", cfg.PublicBaseURL)
	}
	if len(cfg.TrustedProxies) != 2 ||
		cfg.TrustedProxies[0].String() != "10.0.0.0/8" ||
		cfg.TrustedProxies[1].String() != "192.0.2.10/32" {
		t.Errorf("TrustedProxies = %v, ожидается [10.0.0.0/8 192.0.2.10/32]", cfg.TrustedProxies)
	}
	if len(cfg.RoleAdminGroups) != 2 || cfg.RoleAdminGroups[1] != "super-admins" {
		t.Errorf("RoleAdminGroups = %v, ожидается [admins super-admins]", cfg.RoleAdminGroups)
	}
	if len(cfg.RoleTechnicianGroups) != 1 || cfg.RoleTechnicianGroups[0] != "helpdesk" {
		t.Errorf("RoleTechnicianGroups = %v, ожидается [helpdesk]", cfg.RoleTechnicianGroups)
	}
	if cfg.APIKeyHeader != "X-PassLink-Key" {
		t.Errorf("APIKeyHeader = %q", cfg.APIKeyHeader)
	}
	if cfg.LinkTTL != 72*time.Hour {
		t.Errorf("LinkTTL = %v, ожидается 72h", cfg.LinkTTL)
	}
	if !cfg.NotificationsEnabled() {
		t.Error("NotificationsEnabled() = false при заданном PL_SMTP_HOST")
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort = %d, ожидается 587", cfg.SMTPPort)
	}
	if cfg.SMTPTLSPolicy != "opportunistic" {
		t.Errorf("SMTPTLSPolicy = %q, ожидается opportunistic", cfg.SMTPTLSPolicy)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидается 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	for missing := range minimalEnvs() {
		t.Run(missing, func(t *testing.T) {
			envs := minimalEnvs()
			delete(envs, missing)

			_, err := loadWith(t, envs)
			if err == nil {
				t.Errorf("Load() не вернул ошибку при отсутствии %s", missing)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"PL_PORT", "0"},
		{"PL_PORT", "70000"},
		{"PL_PORT", "abc"},
		{"PL_LOG_LEVEL", "verbose"},
		{"PL_LOG_FORMAT", "xml"},
		{"PL_PUBLIC_BASE_URL", "pass.example.org"},
		{"PL_TRUSTED_PROXIES", "10.0.0.0/33"},
		{"PL_TRUSTED_PROXIES", "proxy.local"},
		{"PL_DB_SSL_MODE", "prefer"},
		{"PL_DB_MAX_CONNS", "0"},
		{"PL_REVEAL_MAX_RETRIES", "-1"},
		{"PL_LINK_TTL", "abc"},
		{"PL_LINK_TTL", "-1h"},
		{"PL_EXPIRY_INTERVAL", "0s"},
		{"PL_SMTP_TLS_POLICY", "starttls"},
		{"PL_AUDIT_QUEUE_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.value

			_, err := loadWith(t, envs)
			if err == nil {
				t.Errorf("Load() не вернул ошибку при %s=%q", tt.key, tt.value)
			}
		})
	}
}

// TestLoad_EncryptionKeyLength — принимается только ключ ровно 256 бит.
func TestLoad_EncryptionKeyLength(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"256 бит", testKeyHex, false},
		{"128 бит", testKeyHex[:32], true},
		{"на байт длиннее", testKeyHex + "20", true},
		{"не hex", strings.Repeat("zz", 32), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs["PL_ENCRYPTION_KEY"] = tt.value

			_, err := loadWith(t, envs)
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_SMTPRequiresFrom(t *testing.T) {
	envs := minimalEnvs()
	envs["PL_SMTP_HOST"] = "smtp.example.org"

	if _, err := loadWith(t, envs); err == nil {
		t.Error("Load() не вернул ошибку без PL_SMTP_FROM")
	}

	envs["PL_SMTP_FROM"] = "не адрес"
	if _, err := loadWith(t, envs); err == nil {
		t.Error("Load() не вернул ошибку при некорректном PL_SMTP_FROM")
	}
}

func TestLoad_KeycloakURLTrailingSlash(t *testing.T) {
	envs := minimalEnvs()
	envs["PL_KEYCLOAK_URL"] = "https://keycloak.kryukov.lan/"

	cfg, err := loadWith(t, envs)
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.KeycloakURL != "https://keycloak.kryukov.lan" {
		t.Errorf("KeycloakURL = %q, ожидается без trailing slash", cfg.KeycloakURL)
	}
}

func TestDatabaseDSN(t *testing.T) {
	cfg := &Config{
		DBHost:     "db.example.com",
		DBPort:     5432,
		DBName:     "passlink",
		DBUser:     "user",
		DBPassword: "pass",
		DBSSLMode:  "disable",
	}
	expected := "host=db.example.com port=5432 dbname=passlink user=user password=pass sslmode=disable"
	if dsn := cfg.DatabaseDSN(); dsn != expected {
		t.Errorf("DatabaseDSN() = %q, ожидается %q", dsn, expected)
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{DBHost: "db.example.com", DBPort: 5432, DBName: "passlink", DBPassword: "secret"}
	want := "postgres://db.example.com:5432/passlink"
	if got := cfg.DatabaseURL(); got != want {
		t.Errorf("DatabaseURL() = %q, ожидается %q", got, want)
	}
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		t.Run(format, func(t *testing.T) {
			cfg := &Config{
				LogLevel:  slog.LevelInfo,
				LogFormat: format,
			}
			if logger := SetupLogger(cfg); logger == nil {
				t.Error("SetupLogger() вернул nil")
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"admins", []string{"admins"}},
		{"admins, helpdesk", []string{"admins", "helpdesk"}},
		{"admins,,helpdesk,", []string{"admins", "helpdesk"}},
		{" admins , helpdesk , guests ", []string{"admins", "helpdesk", "guests"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseCSV(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("parseCSV(%q) = %v (len %d), ожидается %v (len %d)",
					tt.input, result, len(result), tt.expected, len(tt.expected))
			}
			for i, v := range result {
				if v != tt.expected[i] {
					t.Errorf("parseCSV(%q)[%d] = %q, ожидается %q", tt.input, i, v, tt.expected[i])
				}
			}
		})
	}
}
