// Пакет linkstate — конечный автомат статусов одноразовой ссылки.
//
// Жизненный цикл:
//   - pending → sent (доставка письма, повторная отправка оставляет sent)
//   - pending | sent → viewed (раскрытие секрета)
//   - pending | sent → revoked (отзыв или перевыпуск)
//   - pending | sent → expired (истечение срока)
//
// viewed, revoked, expired — конечные состояния, переходы из них запрещены.
// Автомат не хранит состояние: проверяет переход для значения, прочитанного
// из хранилища внутри транзакции.
package linkstate

import (
	"fmt"

	"github.com/bigkaa/passlink/internal/domain/model"
)

// Operation — операция, меняющая статус ссылки.
type Operation string

const (
	OpMarkSent   Operation = "mark_sent"
	OpReveal     Operation = "reveal"
	OpRevoke     Operation = "revoke"
	OpRegenerate Operation = "regenerate"
	OpExpire     Operation = "expire"
)

// transitions — матрица допустимых переходов.
// Ключ — операция, значение — исходные статусы и целевой статус.
var transitions = map[Operation]struct {
	from map[model.LinkStatus]bool
	to   model.LinkStatus
}{
	OpMarkSent: {
		from: map[model.LinkStatus]bool{model.LinkStatusPending: true, model.LinkStatusSent: true},
		to:   model.LinkStatusSent,
	},
	OpReveal: {
		from: map[model.LinkStatus]bool{model.LinkStatusPending: true, model.LinkStatusSent: true},
		to:   model.LinkStatusViewed,
	},
	OpRevoke: {
		from: map[model.LinkStatus]bool{model.LinkStatusPending: true, model.LinkStatusSent: true},
		to:   model.LinkStatusRevoked,
	},
	OpRegenerate: {
		from: map[model.LinkStatus]bool{model.LinkStatusPending: true, model.LinkStatusSent: true},
		to:   model.LinkStatusRevoked,
	},
	OpExpire: {
		from: map[model.LinkStatus]bool{model.LinkStatusPending: true, model.LinkStatusSent: true},
		to:   model.LinkStatusExpired,
	},
}

// IsTerminal сообщает, является ли статус конечным.
func IsTerminal(s model.LinkStatus) bool {
	switch s {
	case model.LinkStatusViewed, model.LinkStatusRevoked, model.LinkStatusExpired:
		return true
	default:
		return false
	}
}

// IsOpen сообщает, можно ли раскрыть или отозвать ссылку в этом статусе.
func IsOpen(s model.LinkStatus) bool {
	return s == model.LinkStatusPending || s == model.LinkStatusSent
}

// Next возвращает целевой статус операции или TransitionError.
func Next(current model.LinkStatus, op Operation) (model.LinkStatus, error) {
	t, ok := transitions[op]
	if !ok {
		return "", &TransitionError{
			Op:      op,
			From:    current,
			Message: fmt.Sprintf("неизвестная операция %q", op),
		}
	}
	if !t.from[current] {
		return "", &TransitionError{
			Op:      op,
			From:    current,
			Message: fmt.Sprintf("операция %s недопустима в статусе %s", op, current),
		}
	}
	return t.to, nil
}

// TransitionError — недопустимый переход статуса.
type TransitionError struct {
	Op      Operation
	From    model.LinkStatus
	Message string
}

func (e *TransitionError) Error() string {
	return "INVALID_TRANSITION: " + e.Message
}
