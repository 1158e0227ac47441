package model

import "time"

// APICredential — API-ключ для программного создания ссылок.
// Сырой ключ не хранится, только SHA-256 хеш и префикс для отображения.
// Хранится в таблице api_credentials.
type APICredential struct {
	// ID — UUID записи
	ID string
	// Name — человекочитаемое имя интеграции
	Name string
	// KeyHash — hex SHA-256 от сырого ключа
	KeyHash string
	// Prefix — первые символы ключа для идентификации в списках
	Prefix string
	// Active — ключ действует (деактивация вместо удаления)
	Active bool
	// CreatedBy — кто создал ключ (sub администратора)
	CreatedBy string
	// LastUsedAt — время последнего успешного использования
	LastUsedAt *time.Time
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time
}
