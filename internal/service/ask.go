// ask.go — обработка вопроса: проверка, ответ, подбор материалов, журнал.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
	"github.com/bigkaa/learnjiji/jiji-api/internal/repository"
)

// ErrEmptyQuery — вопрос пуст после обрезки пробелов.
var ErrEmptyQuery = errors.New("пустой вопрос")

var (
	askTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jj_ask_total",
		Help: "Количество обработанных вопросов по результату.",
	}, []string{"result"})
	auditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jj_audit_failures_total",
		Help: "Количество неудачных записей в журнал запросов.",
	})
)

// ResourceMatcher — подбор материалов по вопросу.
type ResourceMatcher interface {
	Match(ctx context.Context, query string, limit int) ([]model.Resource, error)
}

// AskResult — ответ на вопрос.
type AskResult struct {
	Answer    string
	Resources []model.Resource
}

// AskService — сценарий POST /ask-jiji после аутентификации.
type AskService struct {
	matcher ResourceMatcher
	queries repository.QueryLogRepository
	limit   int
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
}

// NewAskService создаёт сервис вопросов.
// limit передаётся в ResourceMatcher как есть.
func NewAskService(
	matcher ResourceMatcher,
	queries repository.QueryLogRepository,
	limit int,
	logger *slog.Logger,
) *AskService {
	return &AskService{
		matcher: matcher,
		queries: queries,
		limit:   limit,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  logger.With(slog.String("component", "ask_service")),
	}
}

// Ask отвечает на вопрос пользователя user.
// Ошибка подбора материалов возвращается вызывающему коду; ошибка записи журнала
// логируется и не влияет на ответ.
func (s *AskService) Ask(ctx context.Context, user *model.User, query string) (*AskResult, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		askTotal.WithLabelValues("empty").Inc()
		return nil, ErrEmptyQuery
	}

	answer := Synthesize(q)

	resources, err := s.matcher.Match(ctx, q, s.limit)
	if err != nil {
		askTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if resources == nil {
		resources = []model.Resource{}
	}

	s.audit(ctx, user, q, resources)

	askTotal.WithLabelValues("ok").Inc()
	return &AskResult{Answer: answer, Resources: resources}, nil
}

// audit записывает вопрос в журнал queries.
func (s *AskService) audit(ctx context.Context, user *model.User, query string, resources []model.Resource) {
	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		ids = append(ids, r.ID)
	}

	var userID string
	if user != nil {
		userID = user.ID
	}

	entry := &model.QueryLogEntry{
		ID:                 s.newID(),
		UserID:             userID,
		QueryText:          query,
		MatchedResourceIDs: ids,
		CreatedAt:          s.now().UTC(),
	}

	if err := s.queries.Insert(ctx, entry); err != nil {
		auditFailures.Inc()
		s.logger.Warn("Не удалось записать вопрос в журнал",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}
