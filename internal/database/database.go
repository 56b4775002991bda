// Пакет database — пул PostgreSQL для каталога материалов (resources)
// и журнала вопросов (queries).
// Схема обычно ведётся в Supabase; встроенные миграции применяются только при JJ_DB_MIGRATE=true.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/learnjiji/jiji-api/internal/config"
)

// applicationName — имя сервиса в pg_stat_activity.
const applicationName = "jiji-api"

// readyTimeout — таймаут проверки готовности.
const readyTimeout = 3 * time.Second

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect открывает пул к базе каталога и проверяет её доступность.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("база каталога недоступна: %w", err)
	}

	logger.Info("Подключение к базе каталога установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)

	return pool, nil
}

// Migrate создаёт таблицы resources и queries из встроенных миграций.
// Уже применённая схема не считается ошибкой.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(cfg))
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Info("Схема каталога актуальна",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// migrateURL — URL для драйвера pgx5 golang-migrate.
// Пароль экранируется: в Supabase он часто содержит спецсимволы.
func migrateURL(cfg *config.Config) string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(cfg.DBUser, cfg.DBPassword),
		Host:     fmt.Sprintf("%s:%d", cfg.DBHost, cfg.DBPort),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": {cfg.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// schemaQuery проверяет наличие обеих таблиц сервиса.
const schemaQuery = `SELECT to_regclass('resources') IS NOT NULL AND to_regclass('queries') IS NOT NULL`

// Pinger — часть pgxpool.Pool, нужная для проверки готовности.
type Pinger interface {
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReadinessChecker — готовность базы: соединение есть и схема на месте.
type ReadinessChecker struct {
	db Pinger
}

// NewReadinessChecker создаёт проверку готовности базы каталога.
func NewReadinessChecker(db Pinger) *ReadinessChecker {
	return &ReadinessChecker{db: db}
}

// CheckReady возвращает "fail", если база недоступна или нет таблиц resources и queries.
func (c *ReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}

	var present bool
	if err := c.db.QueryRow(ctx, schemaQuery).Scan(&present); err != nil {
		return "fail", fmt.Sprintf("ошибка проверки схемы: %v", err)
	}
	if !present {
		return "fail", "нет таблиц resources или queries"
	}
	return "ok", "подключение активно"
}
