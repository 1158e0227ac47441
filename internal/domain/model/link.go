// Пакет model — доменные модели сервиса одноразовых ссылок.
package model

import "time"

// LinkStatus — статус ссылки в жизненном цикле раскрытия.
type LinkStatus string

const (
	// LinkStatusPending — ссылка создана, письмо ещё не отправлено.
	LinkStatusPending LinkStatus = "pending"
	// LinkStatusSent — ссылка отправлена получателю.
	LinkStatusSent LinkStatus = "sent"
	// LinkStatusViewed — секрет раскрыт (конечное состояние).
	LinkStatusViewed LinkStatus = "viewed"
	// LinkStatusRevoked — ссылка отозвана сотрудником (конечное состояние).
	LinkStatusRevoked LinkStatus = "revoked"
	// LinkStatusExpired — срок жизни ссылки истёк (конечное состояние).
	LinkStatusExpired LinkStatus = "expired"
)

// ParseLinkStatus преобразует строку в LinkStatus.
func ParseLinkStatus(s string) (LinkStatus, bool) {
	st := LinkStatus(s)
	switch st {
	case LinkStatusPending, LinkStatusSent, LinkStatusViewed, LinkStatusRevoked, LinkStatusExpired:
		return st, true
	default:
		return "", false
	}
}

// LinkSource — способ создания ссылки.
type LinkSource string

const (
	// LinkSourceInteractive — создана сотрудником через админку.
	LinkSourceInteractive LinkSource = "interactive"
	// LinkSourceBatch — создана пакетной загрузкой.
	LinkSourceBatch LinkSource = "batch"
	// LinkSourceAPI — создана внешней системой по API-ключу.
	LinkSourceAPI LinkSource = "api"
)

// Link — одноразовая ссылка на секрет.
// Хранится в таблице links.
type Link struct {
	// ID — 128-битный случайный идентификатор (hex), он же capability-токен в URL
	ID string

	// Ciphertext — зашифрованный секрет (пустой после раскрытия/отзыва)
	Ciphertext []byte
	// IV — вектор инициализации AES-GCM (пустой после раскрытия/отзыва)
	IV []byte
	// AuthTag — тег аутентификации AES-GCM (пустой после раскрытия/отзыва)
	AuthTag []byte

	// RecipientEmail — адрес получателя
	RecipientEmail string
	// RecipientName — отображаемое имя получателя (опционально)
	RecipientName *string
	// Notes — внутренние заметки, получателю не показываются (опционально)
	Notes *string

	// CreatedBy — идентификатор создателя (sub из JWT или ID API-ключа)
	CreatedBy string
	// CreatedByEmail — email создателя (опционально)
	CreatedByEmail *string
	// CreatedAt — время создания
	CreatedAt time.Time

	// Status — текущий статус
	Status LinkStatus
	// ViewedAt — время раскрытия
	ViewedAt *time.Time
	// ViewedIP — IP-адрес, с которого секрет был раскрыт
	ViewedIP *string

	// EmailSent — письмо со ссылкой доставлено
	EmailSent bool
	// EmailSentAt — время последней доставки письма
	EmailSentAt *time.Time

	// Source — способ создания (interactive, batch, api)
	Source LinkSource
	// APICredentialID — ID API-ключа, если ссылка создана по API
	APICredentialID *string

	// RegeneratedFrom — ID ссылки, которую заменила эта ссылка
	RegeneratedFrom *string
	// RegeneratedTo — ID ссылки, которой заменена эта ссылка
	RegeneratedTo *string

	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time
}

// HasSecret сообщает, хранит ли запись ещё зашифрованный секрет.
func (l *Link) HasSecret() bool {
	return len(l.Ciphertext) > 0 && len(l.IV) > 0 && len(l.AuthTag) > 0
}

// ScrubSecret безвозвратно очищает шифртекст, IV и тег.
func (l *Link) ScrubSecret() {
	l.Ciphertext = []byte{}
	l.IV = []byte{}
	l.AuthTag = []byte{}
}
