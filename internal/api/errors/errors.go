// Пакет errors — ответы с ошибками в едином формате passlink.
// Формат: {"error": {"code": "...", "message": "..."}}.
// Программный endpoint /api/v1/external/links использует собственный
// формат интеграции (см. handlers/external.go).
package errors

import (
	"encoding/json"
	"net/http"
)

// Машиночитаемые коды ошибок.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeLinkUnavailable = "LINK_UNAVAILABLE"
	CodeInvalidState    = "INVALID_STATE"
	CodeTransient       = "TRANSIENT"
	CodeDeliveryFailed  = "DELIVERY_FAILED"
	CodeInternalError   = "INTERNAL_ERROR"
)

// LinkUnavailableMessage — единый ответ получателю: не раскрывает,
// была ли ссылка раскрыта, отозвана, истекла или не существовала.
const LinkUnavailableMessage = "Ссылка недействительна: срок истёк или она уже использована"

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// ValidationError — 400.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// Conflict — 409, дублирующийся ресурс.
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeConflict, message)
}

// InvalidState — 409, операция недопустима в текущем статусе ссылки.
func InvalidState(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeInvalidState, message)
}

// LinkUnavailable — 410 с фиксированным сообщением.
func LinkUnavailable(w http.ResponseWriter) {
	WriteError(w, http.StatusGone, CodeLinkUnavailable, LinkUnavailableMessage)
}

// Transient — 503, повторы исчерпаны; запрос можно безопасно повторить.
func Transient(w http.ResponseWriter, message string) {
	w.Header().Set("Retry-After", "1")
	WriteError(w, http.StatusServiceUnavailable, CodeTransient, message)
}

// InternalError — 500.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}

// DeliveryFailed — 502, SMTP не принял письмо; ссылка при этом сохранена.
func DeliveryFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeDeliveryFailed, message)
}
