// retrieval.go — подбор материалов каталога по вопросу.
// Координирует нормализацию, repository, сервис ссылок и Prometheus-метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
	"github.com/bigkaa/learnjiji/jiji-api/internal/repository"
)

// ErrRetrieval — каталог материалов недоступен или вернул ошибку.
var ErrRetrieval = errors.New("ошибка поиска в каталоге")

var retrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "jj_retrieval_duration_seconds",
	Help:    "Длительность подбора материалов, включая выпуск ссылок.",
	Buckets: prometheus.DefBuckets,
})

// LinkResolver — выпуск URL материала по storage_path.
type LinkResolver interface {
	Resolve(ctx context.Context, storagePath string) string
}

// RetrievalService — поиск материалов по подстроке в title и description.
type RetrievalService struct {
	resources    repository.ResourceRepository
	links        LinkResolver
	defaultLimit int
	logger       *slog.Logger
}

// NewRetrievalService создаёт сервис подбора материалов.
// defaultLimit применяется, когда вызывающий код передаёт limit <= 0.
func NewRetrievalService(
	resources repository.ResourceRepository,
	links LinkResolver,
	defaultLimit int,
	logger *slog.Logger,
) *RetrievalService {
	return &RetrievalService{
		resources:    resources,
		links:        links,
		defaultLimit: defaultLimit,
		logger:       logger.With(slog.String("component", "retrieval_service")),
	}
}

// Match возвращает до limit материалов, у которых title или description содержит
// нормализованный вопрос. Порядок определяется каталогом.
// Результат никогда не nil: при отсутствии совпадений — пустой срез.
func (s *RetrievalService) Match(ctx context.Context, query string, limit int) ([]model.Resource, error) {
	start := time.Now()
	defer func() { retrievalDuration.Observe(time.Since(start).Seconds()) }()

	if limit <= 0 {
		limit = s.defaultLimit
	}

	term := NormalizeQuery(query)

	records, err := s.resources.SearchContains(ctx, term, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	if len(records) > limit {
		records = records[:limit]
	}

	result := make([]model.Resource, 0, len(records))
	for _, rec := range records {
		var url string
		if rec.StoragePath != nil {
			url = s.links.Resolve(ctx, *rec.StoragePath)
		}
		description := rec.Description
		if description != nil && *description == "" {
			description = nil
		}
		result = append(result, model.Resource{
			ID:          rec.ID,
			Title:       rec.Title,
			Description: description,
			Type:        rec.Type,
			URL:         url,
		})
	}

	s.logger.Debug("Подбор материалов выполнен",
		slog.String("term", term),
		slog.Int("limit", limit),
		slog.Int("found", len(result)),
	)

	return result, nil
}
