// auth.go — аутентификация запросов к /ask-jiji.
// Authenticator извлекает токен из Authorization и проверяет его через IdentityVerifier.
// JWTVerifier — локальная проверка Supabase JWT по JWKS проекта
// (альтернатива сетевой проверке через authclient).
package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/learnjiji/jiji-api/internal/api/errors"
	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyUser — аутентифицированный пользователь в контексте запроса.
const ContextKeyUser contextKey = "jiji_user"

// IdentityVerifier — проверка access token пользователя.
// Возвращает пользователя или ошибку, если токен не принят.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*model.User, error)
}

// Authenticator — middleware аутентификации через IdentityVerifier.
type Authenticator struct {
	verifier IdentityVerifier
	logger   *slog.Logger
}

// NewAuthenticator создаёт middleware аутентификации.
func NewAuthenticator(verifier IdentityVerifier, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		logger:   logger.With(slog.String("component", "authenticator")),
	}
}

// Middleware возвращает HTTP middleware аутентификации.
// Токен — часть заголовка после первого пробела; без пробела — заголовок целиком.
// Схема ("Bearer") не проверяется.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Missing Authorization Header")
				return
			}

			token := extractToken(authHeader)
			if token == "" {
				apierrors.Unauthorized(w, "Invalid User Token")
				return
			}

			user, err := a.verifier.Verify(r.Context(), token)
			if err != nil {
				a.logger.Debug("Токен не принят",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Authentication Failed")
				return
			}
			if user == nil {
				apierrors.Unauthorized(w, "Invalid User Token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// extractToken возвращает токен из значения заголовка Authorization.
func extractToken(header string) string {
	if _, token, found := strings.Cut(header, " "); found {
		return token
	}
	return header
}

// ContextWithUser помещает пользователя в контекст.
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// UserFromContext извлекает пользователя из контекста запроса.
// Возвращает nil, если запрос не прошёл Authenticator.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(ContextKeyUser).(*model.User)
	return user
}

// ErrMissingSubject — в JWT нет claim sub.
var ErrMissingSubject = errors.New("отсутствует sub в токене")

// supabaseClaims — claims access token Supabase Auth.
type supabaseClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// JWTVerifier — проверка Supabase JWT по JWKS (RS256/ES256).
type JWTVerifier struct {
	jwks      keyfunc.Keyfunc
	issuer    string
	audience  string
	jwtLeeway time.Duration
	logger    *slog.Logger
}

// NewJWTVerifier создаёт проверку JWT с JWKS из Supabase Auth.
// jwksURL — URL JWKS endpoint ({SUPABASE_URL}/auth/v1/.well-known/jwks.json).
// caCertPath — опциональный путь к CA-сертификату для TLS.
// issuer, audience — ожидаемые iss и aud (пустая строка — не проверяется).
// jwksClientTimeout — таймаут HTTP-клиента JWKS.
// jwksRefreshInterval — интервал обновления JWKS-ключей.
// jwtLeeway — допустимое отклонение времени при проверке JWT.
func NewJWTVerifier(
	jwksURL string,
	caCertPath string,
	issuer string,
	audience string,
	jwksClientTimeout time.Duration,
	jwksRefreshInterval time.Duration,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) (*JWTVerifier, error) {
	httpClient := &http.Client{Timeout: jwksClientTimeout}
	if caCertPath != "" {
		var err error
		httpClient, err = httpClientWithCA(caCertPath, jwksClientTimeout)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата %s: %w", caCertPath, err)
		}
		logger.Info("CA-сертификат для JWKS добавлен в пул доверия",
			slog.String("ca_cert", caCertPath),
		)
	}

	// NoErrorReturnFirstHTTPReq — стартуем даже если Supabase Auth ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    httpClient,
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           jwksRefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTVerifierWithKeyfunc(k, issuer, audience, jwtLeeway, logger), nil
}

// NewJWTVerifierWithKeyfunc создаёт проверку JWT с готовым keyfunc (для тестов).
func NewJWTVerifierWithKeyfunc(
	k keyfunc.Keyfunc,
	issuer string,
	audience string,
	jwtLeeway time.Duration,
	logger *slog.Logger,
) *JWTVerifier {
	return &JWTVerifier{
		jwks:      k,
		issuer:    issuer,
		audience:  audience,
		jwtLeeway: jwtLeeway,
		logger:    logger.With(slog.String("component", "jwt_verifier")),
	}
}

// Verify проверяет подпись и срок действия токена, возвращает пользователя из claims.
func (j *JWTVerifier) Verify(ctx context.Context, token string) (*model.User, error) {
	claims := &supabaseClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(j.jwtLeeway),
	}
	if j.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(j.issuer))
	}
	if j.audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(j.audience))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, j.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("валидация JWT: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("невалидный токен")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrMissingSubject
	}

	return &model.User{
		ID:    subject,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}

// httpClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func httpClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}
