// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// Jiji API мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - Supabase Auth — HTTP checker к /auth/v1/health или к JWKS endpoint (critical)
//   - Supabase Storage — HTTP checker к /storage/v1/status (не critical: при
//     недоступности хранилища ответы деградируют до "#", но не падают)
//
// GCS как зависимость не регистрируется: readiness проверяет bucket напрямую.
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
//   - app_dependency_status — категория статуса
//   - app_dependency_status_detail — детальный статус
package service

import (
	"context"
	"database/sql"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPDependency — внешний HTTP-сервис, доступность которого проверяется по health path.
type HTTPDependency struct {
	// Name — имя зависимости в метриках
	Name string
	// URL — базовый URL сервиса
	URL string
	// HealthPath — путь проверки
	HealthPath string
	// Critical — недоступность зависимости делает сервис неработоспособным
	Critical bool
}

// SupabaseDependencies возвращает HTTP-зависимости Supabase для текущего режима.
// useJWKS — токены проверяются локально по JWKS (иначе через /auth/v1/user).
// supabaseStorage — материалы хранятся в Supabase Storage.
func SupabaseDependencies(supabaseURL, jwksURL string, useJWKS, supabaseStorage bool) []HTTPDependency {
	base := strings.TrimRight(supabaseURL, "/")

	deps := make([]HTTPDependency, 0, 2)
	if useJWKS {
		path := "/"
		if parsed, err := url.Parse(jwksURL); err == nil && parsed.Path != "" {
			path = parsed.Path
		}
		deps = append(deps, HTTPDependency{Name: "supabase-jwks", URL: jwksURL, HealthPath: path, Critical: true})
	} else {
		deps = append(deps, HTTPDependency{Name: "supabase-auth", URL: base, HealthPath: "/auth/v1/health", Critical: true})
	}

	if supabaseStorage {
		deps = append(deps, HTTPDependency{Name: "supabase-storage", URL: base, HealthPath: "/storage/v1/status"})
	}
	return deps
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	names  []string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// Параметры:
//   - serviceID — имя вершины графа текущего приложения ("jiji-api")
//   - group — имя группы в метриках (JJ_DEPHEALTH_GROUP)
//   - db — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool()
//   - pgConnURL — URL подключения к PostgreSQL (для метрик/лейблов, не для подключения)
//   - httpDeps — HTTP-зависимости (см. SupabaseDependencies)
//   - checkInterval — интервал проверки зависимостей (JJ_DEPHEALTH_CHECK_INTERVAL)
//   - isEntry — при true добавляет лейбл isentry=yes ко всем зависимостям (DEPHEALTH_ISENTRY)
func NewDephealthService(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	httpDeps []HTTPDependency,
	checkInterval time.Duration,
	isEntry bool,
	logger *slog.Logger,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, db, pgConnURL, httpDeps, checkInterval, isEntry, logger)
}

// NewDephealthServiceWithRegisterer создаёт сервис с указанным Prometheus registerer.
// Используется в тестах для изоляции метрик.
func NewDephealthServiceWithRegisterer(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	httpDeps []HTTPDependency,
	checkInterval time.Duration,
	isEntry bool,
	logger *slog.Logger,
	registerer prometheus.Registerer,
) (*DephealthService, error) {
	return newDephealthService(serviceID, group, db, pgConnURL, httpDeps, checkInterval, isEntry,
		logger, dephealth.WithRegisterer(registerer))
}

func newDephealthService(
	serviceID string,
	group string,
	db *sql.DB,
	pgConnURL string,
	httpDeps []HTTPDependency,
	checkInterval time.Duration,
	isEntry bool,
	logger *slog.Logger,
	extraOpts ...dephealth.Option,
) (*DephealthService, error) {
	pgDepOpts := []dephealth.DependencyOption{
		dephealth.FromURL(pgConnURL),
		dephealth.CheckInterval(checkInterval),
		dephealth.Critical(true),
	}
	if isEntry {
		pgDepOpts = append(pgDepOpts, dephealth.WithLabel("isentry", "yes"))
	}

	opts := make([]dephealth.Option, 0, 2+len(httpDeps)+len(extraOpts))
	opts = append(opts,
		dephealth.WithLogger(logger),
		// PostgreSQL — connection pool mode через существующий pgxpool.
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)), pgDepOpts...),
	)

	names := []string{"postgresql"}
	for _, dep := range httpDeps {
		depOpts := []dephealth.DependencyOption{
			dephealth.FromURL(dep.URL),
			dephealth.WithHTTPHealthPath(dep.HealthPath),
			dephealth.CheckInterval(checkInterval),
			dephealth.Critical(dep.Critical),
		}
		if isEntry {
			depOpts = append(depOpts, dephealth.WithLabel("isentry", "yes"))
		}
		if parsed, err := url.Parse(dep.URL); err == nil && parsed.Scheme == "https" {
			depOpts = append(depOpts, dephealth.WithHTTPTLSSkipVerify(false))
		}
		opts = append(opts, dephealth.HTTP(dep.Name, depOpts...))
		names = append(names, dep.Name)
	}
	opts = append(opts, extraOpts...)

	dh, err := dephealth.New(serviceID, group, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		names:  names,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен",
		slog.Any("dependencies", ds.names),
	)
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
