package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/bigkaa/learnjiji/jiji-api/internal/domain/model"
)

// resourceColumns — столбцы таблицы resources для SELECT-запросов.
// id приводится к text, чтобы не зависеть от типа столбца (uuid или text).
const resourceColumns = `id::text, title, description, type, storage_path`

// ResourceRepository — интерфейс чтения каталога учебных материалов.
type ResourceRepository interface {
	// SearchContains возвращает до limit записей, у которых title или description
	// содержит term без учёта регистра. Порядок определяется каталогом.
	SearchContains(ctx context.Context, term string, limit int) ([]*model.ResourceRecord, error)
}

// resourceRepo — реализация ResourceRepository через pgx.
type resourceRepo struct {
	db DBTX
}

// NewResourceRepository создаёт репозиторий каталога.
func NewResourceRepository(db DBTX) ResourceRepository {
	return &resourceRepo{db: db}
}

// SearchContains выполняет ILIKE-поиск по title и description.
func (r *resourceRepo) SearchContains(ctx context.Context, term string, limit int) ([]*model.ResourceRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM resources WHERE title ILIKE $1 OR description ILIKE $1 LIMIT $2`,
		resourceColumns,
	)

	rows, err := r.db.Query(ctx, query, buildContainsPattern(term), limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска ресурсов: %w", err)
	}
	defer rows.Close()

	var result []*model.ResourceRecord
	for rows.Next() {
		rec := &model.ResourceRecord{}
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Description, &rec.Type, &rec.StoragePath); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ресурса: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}

// likeEscaper экранирует метасимволы LIKE (escape-символ по умолчанию — обратный слеш).
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildContainsPattern оборачивает term в %...% для поиска подстроки.
// Пустой term даёт "%%" — совпадение с любой строкой.
func buildContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
