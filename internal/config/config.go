// Пакет config — загрузка и валидация конфигурации Jiji API
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Режимы проверки пользовательского токена.
const (
	// AuthModeSupabase — проверка токена запросом к Supabase Auth (GET /auth/v1/user).
	AuthModeSupabase = "supabase"
	// AuthModeJWKS — локальная проверка подписи JWT по JWKS.
	AuthModeJWKS = "jwks"
)

// Backend'ы объектного хранилища.
const (
	// StorageBackendSupabase — Supabase Storage HTTP API.
	StorageBackendSupabase = "supabase"
	// StorageBackendGCS — Google Cloud Storage.
	StorageBackendGCS = "gcs"
)

// Config содержит все параметры конфигурации Jiji API.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// Разрешённые CORS origins
	CORSAllowedOrigins []string

	// --- Supabase ---

	// Базовый URL проекта Supabase (https://<ref>.supabase.co)
	SupabaseURL string
	// Service role key — только для backend (подпись URL, обход RLS)
	SupabaseServiceRoleKey string
	// Публичный anon key (опционально)
	SupabaseAnonKey string
	// Таймаут HTTP-запросов к Supabase
	SupabaseTimeout time.Duration
	// Путь к CA-сертификату для исходящих TLS-соединений (опционально)
	CACertPath string

	// --- PostgreSQL (каталог ресурсов и журнал запросов) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Применять встроенные миграции при старте
	DBMigrate bool

	// --- Аутентификация ---

	// Режим проверки токена: supabase или jwks
	AuthMode string
	// URL JWKS (для режима jwks)
	JWTJWKSURL string
	// Ожидаемый issuer JWT (пусто — не проверяется)
	JWTIssuer string
	// Ожидаемый audience JWT (пусто — не проверяется)
	JWTAudience string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Объектное хранилище ---

	// Backend: supabase или gcs
	StorageBackend string
	// Логический bucket с учебными материалами
	StorageBucket string
	// Срок действия подписанных URL
	SignedURLTTL time.Duration
	// Путь к JSON-ключу сервисного аккаунта GCS (для backend gcs)
	GCSCredentialsFile string

	// --- Поиск ---

	// Максимальное количество ресурсов в ответе
	SearchLimit int

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	DephealthIsEntry       bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:cyclop,funlen // линейный разбор переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("JJ_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("JJ_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("JJ_PORT: порт %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("JJ_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("JJ_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("JJ_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("JJ_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.HTTPReadTimeout, err = getEnvDuration("JJ_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("JJ_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("JJ_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("JJ_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("JJ_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("JJ_HTTP_IDLE_TIMEOUT: %w", err)
	}
	cfg.ShutdownTimeout, err = getEnvDuration("JJ_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("JJ_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.CORSAllowedOrigins = parseCSV(getEnvDefault("JJ_CORS_ALLOWED_ORIGINS",
		"http://localhost:3000,http://127.0.0.1:3000"))

	// --- Supabase ---

	supabaseURL, err := getEnvRequired("JJ_SUPABASE_URL")
	if err != nil {
		return nil, err
	}
	cfg.SupabaseURL = strings.TrimRight(supabaseURL, "/")

	cfg.SupabaseServiceRoleKey, err = getEnvRequired("JJ_SUPABASE_SERVICE_ROLE_KEY")
	if err != nil {
		return nil, err
	}
	cfg.SupabaseAnonKey = os.Getenv("JJ_SUPABASE_ANON_KEY")

	cfg.SupabaseTimeout, err = getEnvDurationPositive("JJ_SUPABASE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("JJ_SUPABASE_TIMEOUT: %w", err)
	}
	cfg.CACertPath = os.Getenv("JJ_CA_CERT_PATH")

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("JJ_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("JJ_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("JJ_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("JJ_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("JJ_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("JJ_DB_PASSWORD"); err != nil {
		return nil, err
	}

	// Supabase принимает подключения только по TLS, поэтому require по умолчанию
	cfg.DBSSLMode = getEnvDefault("JJ_DB_SSL_MODE", "require")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("JJ_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	cfg.DBMigrate, err = getEnvBool("JJ_DB_MIGRATE", false)
	if err != nil {
		return nil, fmt.Errorf("JJ_DB_MIGRATE: %w", err)
	}

	// --- Аутентификация ---

	cfg.AuthMode = strings.ToLower(getEnvDefault("JJ_AUTH_MODE", AuthModeSupabase))
	if cfg.AuthMode != AuthModeSupabase && cfg.AuthMode != AuthModeJWKS {
		return nil, fmt.Errorf("JJ_AUTH_MODE: недопустимый режим %q, допустимые: supabase, jwks", cfg.AuthMode)
	}

	// Issuer и JWKS URL по умолчанию вычисляются из URL проекта Supabase
	cfg.JWTJWKSURL = getEnvDefault("JJ_JWT_JWKS_URL", cfg.SupabaseURL+"/auth/v1/.well-known/jwks.json")
	cfg.JWTIssuer = getEnvDefault("JJ_JWT_ISSUER", cfg.SupabaseURL+"/auth/v1")
	cfg.JWTAudience = getEnvDefault("JJ_JWT_AUDIENCE", "authenticated")

	cfg.JWKSClientTimeout, err = getEnvDurationPositive("JJ_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("JJ_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDurationPositive("JJ_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("JJ_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("JJ_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("JJ_JWT_LEEWAY: %w", err)
	}

	// --- Объектное хранилище ---

	cfg.StorageBackend = strings.ToLower(getEnvDefault("JJ_STORAGE_BACKEND", StorageBackendSupabase))
	if cfg.StorageBackend != StorageBackendSupabase && cfg.StorageBackend != StorageBackendGCS {
		return nil, fmt.Errorf("JJ_STORAGE_BACKEND: недопустимый backend %q, допустимые: supabase, gcs", cfg.StorageBackend)
	}
	cfg.StorageBucket = getEnvDefault("JJ_STORAGE_BUCKET", "learning-content")

	cfg.SignedURLTTL, err = getEnvDurationPositive("JJ_SIGNED_URL_TTL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("JJ_SIGNED_URL_TTL: %w", err)
	}

	cfg.GCSCredentialsFile = os.Getenv("JJ_GCS_CREDENTIALS_FILE")
	if cfg.StorageBackend == StorageBackendGCS && cfg.GCSCredentialsFile == "" {
		return nil, fmt.Errorf("JJ_GCS_CREDENTIALS_FILE: обязателен для JJ_STORAGE_BACKEND=gcs")
	}

	// --- Поиск ---

	cfg.SearchLimit, err = getEnvInt("JJ_SEARCH_LIMIT", 5)
	if err != nil {
		return nil, fmt.Errorf("JJ_SEARCH_LIMIT: %w", err)
	}
	if cfg.SearchLimit < 1 {
		return nil, fmt.Errorf("JJ_SEARCH_LIMIT: значение должно быть >= 1")
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("JJ_DEPHEALTH_GROUP", "learnjiji")
	cfg.DephealthCheckInterval, err = getEnvDurationPositive("JJ_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("JJ_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL для pgxpool.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
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

// getEnvDurationPositive — как getEnvDuration, но заданное значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
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

// parseCSV разбирает строку через запятую, отбрасывая пустые элементы.
func parseCSV(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			result = append(result, p)
		}
	}
	return result
}
