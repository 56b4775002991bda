// Пакет model — доменные модели Jiji API.
// ResourceRecord — маппинг таблицы resources (каталог учебных материалов).
package model

// ResourceType — тип учебного материала в каталоге.
type ResourceType string

const (
	// ResourceTypeSlides — презентация (slide deck).
	ResourceTypeSlides ResourceType = "ppt"
	// ResourceTypeVideo — видео.
	ResourceTypeVideo ResourceType = "video"
)

// ResourceRecord — строка каталога resources.
// Каталог наполняется извне, сервис использует его только для чтения.
type ResourceRecord struct {
	// ID — идентификатор ресурса (UUID в текстовом виде)
	ID string
	// Title — заголовок
	Title string
	// Description — описание (опционально)
	Description *string
	// Type — тип ресурса: ppt, video
	Type ResourceType
	// StoragePath — путь объекта в bucket (nil или пусто — файла нет)
	StoragePath *string
}

// Resource — ресурс в ответе пользователю: запись каталога
// с уже материализованной ссылкой на файл.
type Resource struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description,omitempty"`
	Type        ResourceType `json:"type"`
	// URL — подписанная ссылка, "" (нет файла) или "#" (подписать не удалось)
	URL string `json:"url"`
}
