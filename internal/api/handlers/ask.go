// ask.go — обработчик POST /ask-jiji.
// Аутентификация и валидация схемы — на уровне middleware.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/learnjiji/jiji-api/internal/api/errors"
	"github.com/bigkaa/learnjiji/jiji-api/internal/api/middleware"
	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
	"github.com/bigkaa/learnjiji/jiji-api/internal/service"
)

// askRequest — тело POST /ask-jiji.
type askRequest struct {
	Query string `json:"query"`
}

// askResponse — ответ POST /ask-jiji.
type askResponse struct {
	Answer    string           `json:"answer"`
	Resources []model.Resource `json:"resources"`
}

// AskJiji — реализация POST /ask-jiji.
func (h *APIHandler) AskJiji(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Missing Authorization Header")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Invalid JSON body")
		return
	}

	res, err := h.asker.Ask(r.Context(), user, req.Query)
	switch {
	case errors.Is(err, service.ErrEmptyQuery):
		apierrors.ValidationError(w, "Query cannot be empty")
		return
	case err != nil:
		h.logger.Error("Ошибка обработки вопроса",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Internal server error")
		return
	}

	resources := res.Resources
	if resources == nil {
		resources = []model.Resource{}
	}

	writeJSON(w, http.StatusOK, askResponse{
		Answer:    res.Answer,
		Resources: resources,
	})
}
