// handler.go — основной обработчик API Jiji.
// Объединяет health и бизнес-обработчики; маршруты монтирует пакет server.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
	"github.com/bigkaa/learnjiji/jiji-api/internal/service"
)

// Asker — сценарий ответа на вопрос (service.AskService).
type Asker interface {
	Ask(ctx context.Context, user *model.User, query string) (*service.AskResult, error)
}

// APIHandler — основной обработчик API Jiji.
type APIHandler struct {
	health *HealthHandler
	asker  Asker
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	asker Asker,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health: health,
		asker:  asker,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// Root — статус сервиса для фронтенда.
func (h *APIHandler) Root(w http.ResponseWriter, r *http.Request) {
	h.health.Root(w, r)
}

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
