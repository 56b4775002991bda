package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/bigkaa/learnjiji/jiji-api/internal/api/middleware"
	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
	"github.com/bigkaa/learnjiji/jiji-api/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockAsker — мок Asker.
type mockAsker struct {
	askFn func(ctx context.Context, user *model.User, query string) (*service.AskResult, error)
}

func (m *mockAsker) Ask(ctx context.Context, user *model.User, query string) (*service.AskResult, error) {
	return m.askFn(ctx, user, query)
}

func newTestHandler(asker Asker) *APIHandler {
	return NewAPIHandler(NewHealthHandler(nil, nil, nil), asker, testLogger())
}

// askRequestWithUser формирует запрос к /ask-jiji с пользователем в контексте.
func askRequestWithUser(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ask-jiji", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.ContextWithUser(req.Context(), &model.User{ID: "user-1"}))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("декодирование ошибки: %v", err)
	}
	return body.Error.Code
}

func TestAskJiji_Success(t *testing.T) {
	desc := "Intro deck"
	asker := &mockAsker{askFn: func(_ context.Context, user *model.User, query string) (*service.AskResult, error) {
		if user.ID != "user-1" {
			t.Errorf("user = %q", user.ID)
		}
		if query != "What is gravity?" {
			t.Errorf("query = %q", query)
		}
		return &service.AskResult{
			Answer: "Gravity is ...",
			Resources: []model.Resource{
				{ID: "r1", Title: "Gravity", Description: &desc, Type: model.ResourceTypeSlides, URL: "https://s/1"},
				{ID: "r2", Title: "Gravity video", Type: model.ResourceTypeVideo, URL: "#"},
			},
		}, nil
	}}

	rec := httptest.NewRecorder()
	newTestHandler(asker).AskJiji(rec, askRequestWithUser(`{"query":"What is gravity?"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	if resp["answer"] != "Gravity is ..." {
		t.Errorf("answer = %v", resp["answer"])
	}

	resources, ok := resp["resources"].([]any)
	if !ok || len(resources) != 2 {
		t.Fatalf("resources = %v", resp["resources"])
	}
	first := resources[0].(map[string]any)
	if first["type"] != "ppt" || first["description"] != "Intro deck" || first["url"] != "https://s/1" {
		t.Errorf("resources[0] = %v", first)
	}
	second := resources[1].(map[string]any)
	if _, present := second["description"]; present {
		t.Errorf("description без значения не должно сериализоваться: %v", second)
	}
	if second["url"] != "#" {
		t.Errorf("resources[1].url = %v", second["url"])
	}
}

func TestAskJiji_EmptyResourcesIsArray(t *testing.T) {
	asker := &mockAsker{askFn: func(context.Context, *model.User, string) (*service.AskResult, error) {
		return &service.AskResult{Answer: "fallback"}, nil
	}}

	rec := httptest.NewRecorder()
	newTestHandler(asker).AskJiji(rec, askRequestWithUser(`{"query":"volcanoes"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"resources":[]`) {
		t.Errorf("body = %s, ожидался пустой массив resources", rec.Body.String())
	}
}

func TestAskJiji_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty query", service.ErrEmptyQuery, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"retrieval", fmt.Errorf("%w: connection refused", service.ErrRetrieval), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asker := &mockAsker{askFn: func(context.Context, *model.User, string) (*service.AskResult, error) {
				return nil, tt.err
			}}

			rec := httptest.NewRecorder()
			newTestHandler(asker).AskJiji(rec, askRequestWithUser(`{"query":"  "}`))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("code = %q, ожидался %q", code, tt.wantCode)
			}
		})
	}
}

func TestAskJiji_InvalidJSON(t *testing.T) {
	asker := &mockAsker{askFn: func(context.Context, *model.User, string) (*service.AskResult, error) {
		t.Error("Ask не должен вызываться")
		return nil, nil
	}}

	rec := httptest.NewRecorder()
	newTestHandler(asker).AskJiji(rec, askRequestWithUser(`{"query":`))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, ожидался 400", rec.Code)
	}
}

func TestAskJiji_NoUser(t *testing.T) {
	asker := &mockAsker{askFn: func(context.Context, *model.User, string) (*service.AskResult, error) {
		t.Error("Ask не должен вызываться")
		return nil, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/ask-jiji", strings.NewReader(`{"query":"gravity"}`))
	rec := httptest.NewRecorder()
	newTestHandler(asker).AskJiji(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, ожидался 401", rec.Code)
	}
}
