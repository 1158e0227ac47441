package model

import "time"

// AllowListEntry — адрес или CIDR-диапазон, допущенный к программному API.
// Хранится в таблице ip_allowlist. Пустой список означает «разрешено всем».
type AllowListEntry struct {
	// ID — UUID записи
	ID string
	// CIDR — адрес (192.0.2.10) или диапазон (10.0.0.0/8)
	CIDR string
	// Description — пояснение (опционально)
	Description *string
	// CreatedBy — кто добавил запись
	CreatedBy string
	// CreatedAt — время создания записи
	CreatedAt time.Time
}
