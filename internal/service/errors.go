// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"

	"github.com/bigkaa/passlink/internal/crypto"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — ресурс уже существует")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")

	// ErrAlreadyConsumed — ссылка уже раскрыта, отозвана или истекла.
	ErrAlreadyConsumed = errors.New("ссылка уже использована или недействительна")
	// ErrInvalidState — операция недопустима в текущем статусе ссылки.
	ErrInvalidState = errors.New("операция недопустима в текущем статусе ссылки")

	// ErrAuthentication — отсутствует или неизвестен API-ключ / токен.
	ErrAuthentication = errors.New("ошибка аутентификации")
	// ErrPermission — роль вызывающего не позволяет выполнить операцию.
	ErrPermission = errors.New("недостаточно прав")
	// ErrForbidden — адрес источника не входит в allow-list.
	ErrForbidden = errors.New("доступ с этого адреса запрещён")

	// ErrCrypto — тег не прошёл проверку или ключ некорректен.
	// Не повторяется, всегда логируется как возможная подмена данных.
	ErrCrypto = crypto.ErrCrypto
	// ErrTransient — конкурентный доступ не разрешился за отведённые повторы.
	// Клиент может безопасно повторить запрос.
	ErrTransient = errors.New("временный конфликт хранилища, повторите запрос")
	// ErrDelivery — письмо не доставлено; ссылка при этом сохранена.
	ErrDelivery = errors.New("ошибка доставки письма")
)
