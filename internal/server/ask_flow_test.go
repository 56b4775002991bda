package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bigkaa/learnjiji/jiji-api/internal/api/handlers"
	"github.com/bigkaa/learnjiji/jiji-api/internal/api/middleware"
	"github.com/bigkaa/learnjiji/jiji-api/internal/api/openapi"
	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
	"github.com/bigkaa/learnjiji/jiji-api/internal/objectstore"
	"github.com/bigkaa/learnjiji/jiji-api/internal/server"
	"github.com/bigkaa/learnjiji/jiji-api/internal/service"
)

const gravityAnswer = "Gravity is a fundamental interaction which causes mutual attraction between all things that have mass or energy."

// --- Mocks ---

type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (*model.User, error) {
	if token != "good-token" {
		return nil, errors.New("token rejected")
	}
	return &model.User{ID: "student-1", Role: "authenticated"}, nil
}

type catalogRepo struct {
	terms []string
}

func (c *catalogRepo) SearchContains(_ context.Context, term string, _ int) ([]*model.ResourceRecord, error) {
	c.terms = append(c.terms, term)
	path := "physics/gravity.pptx"
	desc := "Newton and apples"
	return []*model.ResourceRecord{
		{ID: "r1", Title: "Gravity Basics", Description: &desc, Type: model.ResourceTypeSlides, StoragePath: &path},
		{ID: "r2", Title: "Orbits", Type: model.ResourceTypeVideo},
	}, nil
}

type auditSink struct {
	err     error
	entries []*model.QueryLogEntry
}

func (a *auditSink) Insert(_ context.Context, entry *model.QueryLogEntry) error {
	a.entries = append(a.entries, entry)
	return a.err
}

type signingStore struct {
	signed []string
}

func (s *signingStore) SignedURL(_ context.Context, bucket, path string, _ time.Duration) (string, error) {
	s.signed = append(s.signed, bucket+"/"+path)
	return "https://storage.test/" + bucket + "/" + path + "?token=sig", nil
}

func (s *signingStore) List(context.Context, string, string) ([]objectstore.Entry, error) {
	return nil, nil
}

type okChecker struct{}

func (okChecker) CheckReady() (string, string) { return "ok", "" }

// askStack — роутер со всей цепочкой /ask-jiji, как в main.
type askStack struct {
	router  http.Handler
	catalog *catalogRepo
	audit   *auditSink
	store   *signingStore
}

func newAskStack(t *testing.T, auditErr error) *askStack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	doc, err := openapi.Load(context.Background())
	if err != nil {
		t.Fatalf("openapi.Load ошибка: %v", err)
	}
	validator, err := middleware.NewRequestValidator(doc, logger)
	if err != nil {
		t.Fatalf("NewRequestValidator ошибка: %v", err)
	}

	st := &askStack{
		catalog: &catalogRepo{},
		audit:   &auditSink{err: auditErr},
		store:   &signingStore{},
	}

	links := service.NewLinkService(st.store, "learning-content", time.Hour, logger)
	retrieval := service.NewRetrievalService(st.catalog, links, 5, logger)
	asker := service.NewAskService(retrieval, st.audit, 5, logger)
	health := handlers.NewHealthHandler(okChecker{}, okChecker{}, nil)

	st.router = server.NewRouter(
		[]string{"http://localhost:3000"},
		handlers.NewAPIHandler(health, asker, logger),
		[]func(http.Handler) http.Handler{
			middleware.NewAuthenticator(tokenVerifier{}, logger).Middleware(),
			validator.Middleware(),
		},
	)
	return st
}

func (st *askStack) ask(authHeader, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/ask-jiji", strings.NewReader(body))
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	st.router.ServeHTTP(rec, req)
	return rec
}

type askBody struct {
	Answer    string           `json:"answer"`
	Resources []model.Resource `json:"resources"`
}

// --- Тесты ---

func TestAskFlow_Gravity(t *testing.T) {
	st := newAskStack(t, nil)

	rec := st.ask("Bearer good-token", "application/json", `{"query":"Tell me about Gravity?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200: %s", rec.Code, rec.Body.String())
	}

	if len(st.catalog.terms) != 1 || st.catalog.terms[0] != "gravity" {
		t.Errorf("термины каталога = %v, ожидался [gravity]", st.catalog.terms)
	}

	var body askBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("декодирование ответа: %v", err)
	}
	if body.Answer != gravityAnswer {
		t.Errorf("answer = %q", body.Answer)
	}
	if len(body.Resources) != 2 {
		t.Fatalf("resources = %d, ожидалось 2", len(body.Resources))
	}
	if body.Resources[0].URL != "https://storage.test/learning-content/physics/gravity.pptx?token=sig" {
		t.Errorf("url[0] = %q", body.Resources[0].URL)
	}
	if body.Resources[1].URL != "" {
		t.Errorf("url[1] = %q, ожидалась пустая строка", body.Resources[1].URL)
	}

	if len(st.audit.entries) != 1 {
		t.Fatalf("записей журнала = %d, ожидалась 1", len(st.audit.entries))
	}
	entry := st.audit.entries[0]
	if entry.UserID != "student-1" || entry.QueryText != "Tell me about Gravity?" {
		t.Errorf("запись журнала = %+v", entry)
	}
}

func TestAskFlow_WithoutContentType(t *testing.T) {
	st := newAskStack(t, nil)

	rec := st.ask("Bearer good-token", "", `{"query":"gravity"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200: %s", rec.Code, rec.Body.String())
	}
	if len(st.catalog.terms) != 1 {
		t.Errorf("обращений к каталогу = %d, ожидалось 1", len(st.catalog.terms))
	}
}

func TestAskFlow_RejectedBeforeServices(t *testing.T) {
	tests := []struct {
		name       string
		auth       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"no header", "", `{"query":"gravity"}`, http.StatusUnauthorized, "Missing Authorization Header"},
		{"bad token", "Bearer wrong", `{"query":"gravity"}`, http.StatusUnauthorized, "Authentication Failed"},
		{"bad token and bad body", "Bearer wrong", `{"query":42}`, http.StatusUnauthorized, "Authentication Failed"},
		{"blank query", "Bearer good-token", `{"query":"   "}`, http.StatusBadRequest, "Query cannot be empty"},
		{"non-string query", "Bearer good-token", `{"query":42}`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newAskStack(t, nil)

			rec := st.ask(tt.auth, "application/json", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, ожидался %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantMsg != "" && !strings.Contains(rec.Body.String(), tt.wantMsg) {
				t.Errorf("body = %s, ожидалось сообщение %q", rec.Body.String(), tt.wantMsg)
			}
			if len(st.catalog.terms) != 0 || len(st.audit.entries) != 0 || len(st.store.signed) != 0 {
				t.Errorf("сервисы вызваны: каталог %d, журнал %d, подписи %d",
					len(st.catalog.terms), len(st.audit.entries), len(st.store.signed))
			}
		})
	}
}

func TestAskFlow_AuditFailureKeepsResponse(t *testing.T) {
	const body = `{"query":"What is gravity?"}`

	healthy := newAskStack(t, nil)
	okRec := healthy.ask("Bearer good-token", "application/json", body)

	failing := newAskStack(t, errors.New("queries table is read-only"))
	failRec := failing.ask("Bearer good-token", "application/json", body)

	if okRec.Code != http.StatusOK || failRec.Code != http.StatusOK {
		t.Fatalf("status = %d / %d, ожидался 200 в обоих случаях", okRec.Code, failRec.Code)
	}
	if !bytes.Equal(okRec.Body.Bytes(), failRec.Body.Bytes()) {
		t.Errorf("ответы различаются:\n%s\n%s", okRec.Body.String(), failRec.Body.String())
	}
	if len(failing.audit.entries) != 1 {
		t.Errorf("попыток записи журнала = %d, ожидалась 1", len(failing.audit.entries))
	}
}
