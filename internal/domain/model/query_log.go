package model

import "time"

// QueryLogEntry — запись журнала запросов (таблица queries).
// Пишется best-effort после формирования ответа и никогда не читается сервисом.
type QueryLogEntry struct {
	ID                 string
	UserID             string
	QueryText          string
	MatchedResourceIDs []string
	CreatedAt          time.Time
}
