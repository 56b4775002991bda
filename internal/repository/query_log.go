package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
)

// QueryLogRepository — интерфейс записи журнала запросов.
type QueryLogRepository interface {
	// Insert добавляет одну запись в журнал.
	Insert(ctx context.Context, entry *model.QueryLogEntry) error
}

// queryLogRepo — реализация QueryLogRepository через pgx.
type queryLogRepo struct {
	db DBTX
}

// NewQueryLogRepository создаёт репозиторий журнала запросов.
func NewQueryLogRepository(db DBTX) QueryLogRepository {
	return &queryLogRepo{db: db}
}

// Insert сохраняет запись в таблицу queries.
func (r *queryLogRepo) Insert(ctx context.Context, entry *model.QueryLogEntry) error {
	query := `
		INSERT INTO queries (id, user_id, query_text, matched_resource_ids, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	ids := entry.MatchedResourceIDs
	if ids == nil {
		ids = []string{}
	}

	if _, err := r.db.Exec(ctx, query,
		entry.ID, entry.UserID, entry.QueryText, ids, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("ошибка записи журнала запросов: %w", err)
	}
	return nil
}
