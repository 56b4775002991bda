package objectstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSStore — объектное хранилище на Google Cloud Storage.
// Подписанные URL выпускаются по схеме V4 ключом сервисного аккаунта.
type GCSStore struct {
	client *storage.Client
	logger *slog.Logger
}

// NewGCSStore создаёт клиент GCS с ключом сервисного аккаунта из credentialsFile.
func NewGCSStore(ctx context.Context, credentialsFile string, logger *slog.Logger) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("создание клиента GCS: %w", err)
	}

	return &GCSStore{
		client: client,
		logger: logger.With(slog.String("component", "gcs_storage")),
	}, nil
}

// SignedURL выпускает V4 signed URL на GET объекта.
// Подпись не проверяет наличие объекта, поэтому сначала запрашиваются его атрибуты.
func (s *GCSStore) SignedURL(ctx context.Context, bucket, path string, expiry time.Duration) (string, error) {
	handle := s.client.Bucket(bucket)

	if _, err := handle.Object(path).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectNotFound)
		}
		return "", fmt.Errorf("получение атрибутов %s/%s: %w", bucket, path, err)
	}

	signed, err := handle.SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodGet,
		Expires: time.Now().Add(expiry),
	})
	if err != nil {
		return "", fmt.Errorf("подпись URL %s/%s: %w", bucket, path, err)
	}
	if signed == "" {
		return "", ErrEmptySignedURL
	}
	return signed, nil
}

// List возвращает объекты и подпапки непосредственно внутри folder.
func (s *GCSStore) List(ctx context.Context, bucket, folder string) ([]Entry, error) {
	prefix := folder
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	it := s.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: prefix, Delimiter: "/"})

	var entries []Entry
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("листинг GCS %s/%s: %w", bucket, prefix, err)
		}

		// С Delimiter подпапки приходят как элементы с заполненным Prefix
		if attrs.Prefix != "" {
			entries = append(entries, Entry{
				Name:   strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/"),
				Folder: true,
			})
			continue
		}
		entries = append(entries, Entry{
			Name: strings.TrimPrefix(attrs.Name, prefix),
			Size: attrs.Size,
		})
	}

	return entries, nil
}

// ProbeBucket проверяет доступность bucket через чтение его атрибутов.
func (s *GCSStore) ProbeBucket(ctx context.Context, bucket string) error {
	if _, err := s.client.Bucket(bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("GCS bucket %s недоступен: %w", bucket, err)
	}
	return nil
}

// Close закрывает клиент GCS.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

var (
	_ Store  = (*GCSStore)(nil)
	_ Prober = (*GCSStore)(nil)
)
