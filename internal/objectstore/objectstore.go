// Пакет objectstore — доступ к приватному объектному хранилищу учебных материалов:
// выпуск подписанных (ограниченных по времени) URL и листинг папок.
// Различия форматов ответов backend'ов не выходят за пределы пакета:
// наружу всегда отдаётся готовый абсолютный URL.
package objectstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Ошибки объектного хранилища.
var (
	// ErrObjectNotFound — объект отсутствует в bucket.
	ErrObjectNotFound = errors.New("объект не найден в хранилище")
	// ErrEmptySignedURL — хранилище ответило без подписанного URL.
	ErrEmptySignedURL = errors.New("пустой подписанный URL в ответе хранилища")
)

// Entry — элемент листинга папки.
type Entry struct {
	// Name — имя объекта или подпапки относительно папки
	Name string
	// Size — размер в байтах (0 для папок)
	Size int64
	// Folder — true, если элемент является подпапкой
	Folder bool
}

// Store — операции хранилища, необходимые сервису.
// Реализации безопасны для конкурентного использования.
type Store interface {
	// SignedURL выпускает URL для чтения объекта path в bucket со сроком действия expiry.
	SignedURL(ctx context.Context, bucket, path string, expiry time.Duration) (string, error)
	// List возвращает содержимое папки folder ("" — корень bucket).
	List(ctx context.Context, bucket, folder string) ([]Entry, error)
}

// ParentFolder возвращает папку объекта: всё до последнего "/".
// Для объекта в корне bucket возвращает "".
func ParentFolder(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// EntryNames возвращает имена элементов листинга (для диагностических логов).
func EntryNames(entries []Entry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}

// Prober — проверка доступности bucket для readiness probe.
type Prober interface {
	ProbeBucket(ctx context.Context, bucket string) error
}

// ReadinessChecker — проверка готовности объектного хранилища.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	prober Prober
	bucket string
}

// NewReadinessChecker создаёт проверку готовности для указанного bucket.
func NewReadinessChecker(prober Prober, bucket string) *ReadinessChecker {
	return &ReadinessChecker{prober: prober, bucket: bucket}
}

// CheckReady проверяет, что bucket доступен.
func (c *ReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.prober.ProbeBucket(ctx, c.bucket); err != nil {
		return "fail", err.Error()
	}
	return "ok", "bucket " + c.bucket + " доступен"
}
