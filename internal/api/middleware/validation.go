// validation.go — валидация входящих запросов по OpenAPI-контракту (kin-openapi).
// Маршрут ищется по контракту; запросы вне контракта пропускаются без проверки,
// их обрабатывает роутер.
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/bigkaa/learnjiji/jiji-api/internal/api/errors"
)

// RequestValidator — middleware проверки запросов по OpenAPI-документу.
type RequestValidator struct {
	router routers.Router
	logger *slog.Logger
}

// NewRequestValidator создаёт валидатор для документа doc.
func NewRequestValidator(doc *openapi3.T, logger *slog.Logger) (*RequestValidator, error) {
	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("построение роутера OpenAPI: %w", err)
	}
	return &RequestValidator{
		router: router,
		logger: logger.With(slog.String("component", "request_validator")),
	}, nil
}

// Middleware возвращает HTTP middleware валидации.
// Аутентификация в контракте не описана: её выполняет Authenticator.
func (v *RequestValidator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			// Тело без Content-Type разбирается как JSON
			if r.Header.Get("Content-Type") == "" {
				r.Header.Set("Content-Type", "application/json")
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}

			// ValidateRequest читает тело и возвращает его в r.Body
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				v.logger.Debug("Запрос не соответствует контракту",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validationMessage формирует короткое описание ошибки для клиента.
func validationMessage(err error) string {
	var schemaErr *openapi3.SchemaError
	if errors.As(err, &schemaErr) {
		return "Invalid request body: " + schemaErr.Reason
	}

	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) && reqErr.Reason != "" {
		return "Invalid request: " + reqErr.Reason
	}
	return "Invalid request"
}
