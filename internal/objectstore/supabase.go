package objectstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// SupabaseStore — клиент Supabase Storage HTTP API.
// Авторизуется service role key, поэтому видит приватные bucket'ы в обход RLS.
type SupabaseStore struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string //nolint:gosec // G101: поле структуры, секрет приходит из конфигурации
	logger     *slog.Logger
}

// NewSupabaseStore создаёт клиент Supabase Storage.
// supabaseURL — URL проекта (https://<ref>.supabase.co).
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// timeout — таймаут HTTP-запросов.
func NewSupabaseStore(
	supabaseURL string,
	serviceKey string,
	caCertPath string,
	timeout time.Duration,
	logger *slog.Logger,
) (*SupabaseStore, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
	}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата Storage: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
		logger.Info("CA-сертификат Storage добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &SupabaseStore{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL:    strings.TrimRight(supabaseURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		logger:     logger.With(slog.String("component", "supabase_storage")),
	}, nil
}

// signResponse — ответ POST /object/sign/{bucket}/{path}.
// Разные версии Storage API отдают signedURL или signedUrl, иногда внутри data;
// encoding/json сопоставляет ключи без учёта регистра, поэтому одного поля достаточно.
type signResponse struct {
	SignedURL string `json:"signedURL"`
	Data      *struct {
		SignedURL string `json:"signedURL"`
	} `json:"data,omitempty"`
}

// SignedURL выпускает подписанный URL для чтения объекта.
// POST {base}/object/sign/{bucket}/{path}, тело {"expiresIn": <секунды>}.
func (s *SupabaseStore) SignedURL(ctx context.Context, bucket, path string, expiry time.Duration) (string, error) {
	reqURL := fmt.Sprintf("%s/object/sign/%s/%s", s.baseURL, url.PathEscape(bucket), escapeObjectPath(path))

	body := map[string]int{"expiresIn": int(expiry / time.Second)}

	resp, err := s.doJSON(ctx, reqURL, body)
	if err != nil {
		return "", fmt.Errorf("запрос подписи %s/%s: %w", bucket, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.statusError(resp, bucket, path)
	}

	var sr signResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("декодирование ответа подписи: %w", err)
	}

	raw := sr.SignedURL
	if raw == "" && sr.Data != nil {
		raw = sr.Data.SignedURL
	}
	return s.absoluteURL(raw)
}

// listRequest — тело POST /object/list/{bucket}.
type listRequest struct {
	Prefix string      `json:"prefix"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
	SortBy listSorting `json:"sortBy"`
}

type listSorting struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}

// listItem — элемент ответа листинга. У папок id равен null.
type listItem struct {
	Name     string  `json:"name"`
	ID       *string `json:"id"`
	Metadata *struct {
		Size int64 `json:"size"`
	} `json:"metadata"`
}

// List возвращает содержимое папки bucket (первые 100 элементов по имени).
func (s *SupabaseStore) List(ctx context.Context, bucket, folder string) ([]Entry, error) {
	reqURL := fmt.Sprintf("%s/object/list/%s", s.baseURL, url.PathEscape(bucket))

	body := listRequest{
		Prefix: folder,
		Limit:  100,
		SortBy: listSorting{Column: "name", Order: "asc"},
	}

	resp, err := s.doJSON(ctx, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("запрос листинга %s/%s: %w", bucket, folder, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.statusError(resp, bucket, folder)
	}

	var items []listItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("декодирование ответа листинга: %w", err)
	}

	entries := make([]Entry, 0, len(items))
	for _, it := range items {
		e := Entry{Name: it.Name, Folder: it.ID == nil}
		if it.Metadata != nil {
			e.Size = it.Metadata.Size
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ProbeBucket проверяет доступность bucket (GET /bucket/{bucket}).
func (s *SupabaseStore) ProbeBucket(ctx context.Context, bucket string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/bucket/%s", s.baseURL, url.PathEscape(bucket)), http.NoBody)
	if err != nil {
		return fmt.Errorf("создание запроса: %w", err)
	}
	s.authorize(req)

	resp, err := s.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return fmt.Errorf("Supabase Storage недоступен: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Supabase Storage вернул статус %d для bucket %s", resp.StatusCode, bucket)
	}
	return nil
}

// doJSON выполняет авторизованный POST с JSON-телом.
// Вызывающий код обязан закрыть resp.Body.
func (s *SupabaseStore) doJSON(ctx context.Context, reqURL string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("сериализация запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	return s.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
}

// authorize добавляет service role key в заголовки запроса.
func (s *SupabaseStore) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}

// statusError формирует ошибку по неуспешному ответу Storage.
// 404 и "not_found" в теле превращаются в ErrObjectNotFound.
func (s *SupabaseStore) statusError(resp *http.Response, bucket, path string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var se struct {
		StatusCode string `json:"statusCode"`
		Error      string `json:"error"`
		Message    string `json:"message"`
	}
	_ = json.Unmarshal(body, &se)

	if resp.StatusCode == http.StatusNotFound || se.StatusCode == "404" || se.Error == "not_found" {
		return fmt.Errorf("%s/%s: %w", bucket, path, ErrObjectNotFound)
	}
	return fmt.Errorf("Storage вернул статус %d для %s/%s: %s", resp.StatusCode, bucket, path, string(body))
}

// absoluteURL приводит signedURL к абсолютному виду.
// Storage возвращает путь относительно /storage/v1 (например, /object/sign/...).
func (s *SupabaseStore) absoluteURL(raw string) (string, error) {
	if raw == "" {
		return "", ErrEmptySignedURL
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw, nil
	}
	return s.baseURL + "/" + strings.TrimLeft(raw, "/"), nil
}

// escapeObjectPath экранирует каждый сегмент пути объекта, сохраняя разделители.
func escapeObjectPath(path string) string {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// Проверка соответствия интерфейсу на этапе компиляции.
var (
	_ Store  = (*SupabaseStore)(nil)
	_ Prober = (*SupabaseStore)(nil)
)
