// Пакет authclient — HTTP-клиент Supabase Auth.
// Проверяет access token пользователя запросом GET /auth/v1/user.
package authclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
)

// ErrInvalidToken — Supabase Auth отклонил токен (401/403).
var ErrInvalidToken = errors.New("токен отклонён Supabase Auth")

// userResponse — ответ GET /auth/v1/user (используемые поля).
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Client — HTTP-клиент для Supabase Auth.
type Client struct {
	httpClient *http.Client
	authURL    string
	apiKey     string //nolint:gosec // G101: поле структуры, секрет приходит из конфигурации
	logger     *slog.Logger
}

// New создаёт клиент Supabase Auth.
// supabaseURL — URL проекта (https://<ref>.supabase.co).
// apiKey — значение заголовка apikey (anon key, при его отсутствии service role key).
// caCertPath — путь к CA-сертификату для TLS (пустая строка — стандартный пул).
// timeout — таймаут HTTP-запросов (из конфигурации JJ_SUPABASE_TIMEOUT).
func New(
	supabaseURL string,
	apiKey string,
	caCertPath string,
	timeout time.Duration,
	logger *slog.Logger,
) (*Client, error) {
	httpClient := &http.Client{Timeout: timeout}

	if caCertPath != "" {
		tlsConfig, err := buildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата Auth: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: tlsConfig,
		}
		logger.Info("CA-сертификат Auth добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	return &Client{
		httpClient: httpClient,
		authURL:    strings.TrimRight(supabaseURL, "/") + "/auth/v1",
		apiKey:     apiKey,
		logger:     logger.With(slog.String("component", "auth_client")),
	}, nil
}

// Verify возвращает пользователя, которому принадлежит token.
// GET /auth/v1/user с Bearer token пользователя и apikey проекта.
func (c *Client) Verify(ctx context.Context, token string) (*model.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authURL+"/user", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса GetUser: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.apiKey)

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return nil, fmt.Errorf("запрос GetUser к %s: %w", c.authURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("Supabase Auth вернул статус %d: %s", resp.StatusCode, string(body))
	}

	var u userResponse
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("декодирование ответа GetUser: %w", err)
	}
	if u.ID == "" {
		return nil, fmt.Errorf("пустой id пользователя в ответе Supabase Auth")
	}

	c.logger.Debug("Пользователь подтверждён Supabase Auth",
		slog.String("user_id", u.ID),
	)

	return &model.User{ID: u.ID, Email: u.Email, Role: u.Role}, nil
}

// ReadinessChecker — проверка доступности Supabase Auth (GET /auth/v1/health).
type ReadinessChecker struct {
	client *Client
}

// NewReadinessChecker создаёт checker доступности Supabase Auth.
func NewReadinessChecker(client *Client) *ReadinessChecker {
	return &ReadinessChecker{client: client}
}

// CheckReady проверяет, что Supabase Auth отвечает 200 на health endpoint.
func (r *ReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.client.authURL+"/health", http.NoBody)
	if err != nil {
		return "fail", "ошибка создания запроса: " + err.Error()
	}
	req.Header.Set("apikey", r.client.apiKey)

	resp, err := r.client.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return "fail", fmt.Sprintf("Supabase Auth недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "fail", fmt.Sprintf("Supabase Auth вернул статус %d", resp.StatusCode)
	}
	return "ok", "Supabase Auth доступен"
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
