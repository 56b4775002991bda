package model

// User — проверенная личность вызывающего.
// Живёт в контексте одного запроса.
type User struct {
	// ID — идентификатор пользователя в IdP (sub)
	ID string
	// Email — электронная почта (может быть пустой)
	Email string
	// Role — роль из токена (authenticated, service_role и т.п.)
	Role string
}
