// Точка входа Jiji API — сервиса ответов на вопросы учеников.
// Загружает конфигурацию, подключается к PostgreSQL (опционально применяет миграции),
// создаёт клиенты Supabase Auth и объектного хранилища, сервисный слой и handlers,
// запускает topologymetrics и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/learnjiji/jiji-api/internal/api/handlers"
	"github.com/bigkaa/learnjiji/jiji-api/internal/api/middleware"
	"github.com/bigkaa/learnjiji/jiji-api/internal/api/openapi"
	"github.com/bigkaa/learnjiji/jiji-api/internal/authclient"
	"github.com/bigkaa/learnjiji/jiji-api/internal/config"
	"github.com/bigkaa/learnjiji/jiji-api/internal/database"
	"github.com/bigkaa/learnjiji/jiji-api/internal/objectstore"
	"github.com/bigkaa/learnjiji/jiji-api/internal/repository"
	"github.com/bigkaa/learnjiji/jiji-api/internal/server"
	"github.com/bigkaa/learnjiji/jiji-api/internal/service"
)

// storeBackend — объектное хранилище с проверкой bucket для readiness.
type storeBackend interface {
	objectstore.Store
	objectstore.Prober
}

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Jiji API запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("auth_mode", cfg.AuthMode),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	ctx := context.Background()

	// 3. Миграции БД (каталог обычно ведётся в Supabase, поэтому по умолчанию выключены)
	if cfg.DBMigrate {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Объектное хранилище учебных материалов
	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания клиента хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	// 6. Проверка токенов пользователей
	verifier, authChecker, err := newVerifier(cfg, logger)
	if err != nil {
		logger.Error("Ошибка создания проверки токенов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Repositories
	resourceRepo := repository.NewResourceRepository(pool)
	queryLogRepo := repository.NewQueryLogRepository(pool)

	// 8. Services
	linkSvc := service.NewLinkService(store, cfg.StorageBucket, cfg.SignedURLTTL, logger)
	retrievalSvc := service.NewRetrievalService(resourceRepo, linkSvc, cfg.SearchLimit, logger)
	askSvc := service.NewAskService(retrievalSvc, queryLogRepo, cfg.SearchLimit, logger)

	// 9. Handlers
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		objectstore.NewReadinessChecker(store, cfg.StorageBucket),
		authChecker,
	)
	apiHandler := handlers.NewAPIHandler(healthHandler, askSvc, logger)

	// 10. Middleware /ask-jiji: аутентификация, затем валидация тела по контракту
	doc, err := openapi.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := middleware.NewRequestValidator(doc, logger)
	if err != nil {
		logger.Error("Ошибка создания валидатора запросов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	authenticator := middleware.NewAuthenticator(verifier, logger)

	// 11. topologymetrics — мониторинг зависимостей
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"jiji-api",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		service.SupabaseDependencies(
			cfg.SupabaseURL,
			cfg.JWTJWKSURL,
			cfg.AuthMode == config.AuthModeJWKS,
			cfg.StorageBackend == config.StorageBackendSupabase,
		),
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
		defer dephealthSvc.Stop()
	}

	// 12. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler,
		[]func(http.Handler) http.Handler{
			authenticator.Middleware(),
			validator.Middleware(),
		},
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	)

	// 13. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Сервер завершился с ошибкой", slog.String("error", err.Error()))
		os.Exit(1) //nolint:gocritic // exitAfterDefer: ресурсы освобождает ОС
	}

	logger.Info("Jiji API остановлен")
}

// newStore создаёт клиент объектного хранилища по JJ_STORAGE_BACKEND.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storeBackend, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendGCS:
		logger.Info("Хранилище: Google Cloud Storage", slog.String("bucket", cfg.StorageBucket))
		return objectstore.NewGCSStore(ctx, cfg.GCSCredentialsFile, logger)
	default:
		logger.Info("Хранилище: Supabase Storage", slog.String("bucket", cfg.StorageBucket))
		return objectstore.NewSupabaseStore(
			cfg.SupabaseURL,
			cfg.SupabaseServiceRoleKey,
			cfg.CACertPath,
			cfg.SupabaseTimeout,
			logger,
		)
	}
}

// newVerifier создаёт проверку токенов по JJ_AUTH_MODE.
// Для режима supabase дополнительно возвращает readiness checker Supabase Auth.
func newVerifier(cfg *config.Config, logger *slog.Logger) (middleware.IdentityVerifier, handlers.ReadinessChecker, error) {
	if cfg.AuthMode == config.AuthModeJWKS {
		v, err := middleware.NewJWTVerifier(
			cfg.JWTJWKSURL,
			cfg.CACertPath,
			cfg.JWTIssuer,
			cfg.JWTAudience,
			cfg.JWKSClientTimeout,
			cfg.JWKSRefreshInterval,
			cfg.JWTLeeway,
			logger,
		)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Проверка токенов по JWKS",
			slog.String("jwks_url", cfg.JWTJWKSURL),
			slog.String("issuer", cfg.JWTIssuer),
		)
		return v, nil, nil
	}

	apiKey := cfg.SupabaseAnonKey
	if apiKey == "" {
		apiKey = cfg.SupabaseServiceRoleKey
	}
	client, err := authclient.New(cfg.SupabaseURL, apiKey, cfg.CACertPath, cfg.SupabaseTimeout, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Проверка токенов через Supabase Auth", slog.String("url", cfg.SupabaseURL))
	return client, authclient.NewReadinessChecker(client), nil
}
