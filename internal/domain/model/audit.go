package model

import "time"

// AuditAction — вид действия в журнале аудита.
type AuditAction string

const (
	AuditActionCreate           AuditAction = "create"
	AuditActionSendEmail        AuditAction = "send_email"
	AuditActionView             AuditAction = "view"
	AuditActionRevoke           AuditAction = "revoke"
	AuditActionRegenerate       AuditAction = "regenerate"
	AuditActionExpire           AuditAction = "expire"
	AuditActionDelete           AuditAction = "delete"
	AuditActionCreateCredential AuditAction = "create_api_credential"
	AuditActionDeactivateCred   AuditAction = "deactivate_api_credential"
	AuditActionAllowListAdd     AuditAction = "allowlist_add"
	AuditActionAllowListRemove  AuditAction = "allowlist_remove"
)

// AuditRecord — неизменяемая запись журнала аудита.
// Хранится в таблице audit_log, только добавление.
type AuditRecord struct {
	// ID — UUID записи
	ID string
	// Action — вид действия
	Action AuditAction
	// ActorID — кто выполнил действие (опционально для действий получателя)
	ActorID *string
	// ActorEmail — email исполнителя (опционально)
	ActorEmail *string
	// TargetID — ID ссылки или другого объекта (опционально)
	TargetID *string
	// Details — произвольные структурированные детали
	Details map[string]any
	// SourceIP — IP-адрес источника запроса
	SourceIP string
	// CreatedAt — время действия
	CreatedAt time.Time
}
