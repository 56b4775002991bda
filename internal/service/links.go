// links.go — выпуск ссылок на учебные материалы в объектном хранилище.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/learnjiji/jiji-api/internal/objectstore"
)

// BrokenLinkPlaceholder — URL материала, ссылку на который выпустить не удалось.
const BrokenLinkPlaceholder = "#"

var linkResolutionFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "jj_link_resolution_failures_total",
	Help: "Количество материалов, для которых не удалось выпустить подписанный URL.",
})

// LinkService превращает storage_path материала в подписанный URL.
// Ошибки хранилища наружу не передаются.
type LinkService struct {
	store  objectstore.Store
	bucket string
	expiry time.Duration
	logger *slog.Logger
}

// NewLinkService создаёт сервис ссылок для bucket со сроком действия URL expiry.
func NewLinkService(store objectstore.Store, bucket string, expiry time.Duration, logger *slog.Logger) *LinkService {
	return &LinkService{
		store:  store,
		bucket: bucket,
		expiry: expiry,
		logger: logger.With(slog.String("component", "link_service")),
	}
}

// Resolve возвращает URL для storagePath.
// Пустой путь — "" (у материала нет файла), ошибка подписи — BrokenLinkPlaceholder.
func (s *LinkService) Resolve(ctx context.Context, storagePath string) string {
	path := strings.TrimSpace(storagePath)
	if path == "" {
		return ""
	}

	signed, err := s.store.SignedURL(ctx, s.bucket, path, s.expiry)
	if err == nil {
		return signed
	}

	linkResolutionFailures.Inc()
	s.logger.Warn("Не удалось выпустить подписанный URL",
		slog.String("bucket", s.bucket),
		slog.String("storage_path", path),
		slog.String("error", err.Error()),
	)
	s.logFolderContents(ctx, path)

	return BrokenLinkPlaceholder
}

// logFolderContents логирует содержимое папки объекта, чтобы по логу было видно,
// что на самом деле лежит в хранилище. Ошибка листинга только логируется.
func (s *LinkService) logFolderContents(ctx context.Context, path string) {
	folder := objectstore.ParentFolder(path)

	entries, err := s.store.List(ctx, s.bucket, folder)
	if err != nil {
		s.logger.Debug("Не удалось получить листинг папки",
			slog.String("folder", folder),
			slog.String("error", err.Error()),
		)
		return
	}

	s.logger.Debug("Содержимое папки материала",
		slog.String("folder", folder),
		slog.Any("files", objectstore.EntryNames(entries)),
	)
}
