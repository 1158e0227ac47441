// handler.go — общий обработчик API passlink: зависимости, JSON-ответы,
// перевод ошибок сервисного слоя в HTTP и контекст запроса.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/bigkaa/passlink/internal/api/errors"
	"github.com/bigkaa/passlink/internal/api/middleware"
	"github.com/bigkaa/passlink/internal/domain/model"
	"github.com/bigkaa/passlink/internal/repository"
	"github.com/bigkaa/passlink/internal/service"
)

// maxBodyBytes — предел тела JSON-запроса.
const maxBodyBytes = 64 << 10

// LinkService — операции протокола раскрытия (service.DisclosureService).
type LinkService interface {
	Create(ctx context.Context, rc service.RequestContext, in service.CreateLinkInput) (*service.IssuedLink, error)
	Check(ctx context.Context, id string) (*service.CheckResult, error)
	Reveal(ctx context.Context, rc service.RequestContext, id string) (*service.RevealResult, error)
	Revoke(ctx context.Context, rc service.RequestContext, id string) (*model.Link, error)
	SendEmail(ctx context.Context, rc service.RequestContext, id string) (*model.Link, error)
	Regenerate(ctx context.Context, rc service.RequestContext, originalID, password string) (*service.IssuedLink, error)
	Get(ctx context.Context, rc service.RequestContext, id string) (*model.Link, error)
	List(ctx context.Context, rc service.RequestContext, filters repository.LinkListFilters, limit, offset int) ([]*model.Link, int, error)
	Delete(ctx context.Context, rc service.RequestContext, id string) error
	LinkURL(id string) string
}

// CredentialService — управление API-ключами (service.APICredentialService).
type CredentialService interface {
	Create(ctx context.Context, rc service.RequestContext, name string) (*service.IssuedCredential, error)
	List(ctx context.Context, rc service.RequestContext, limit, offset int) ([]*model.APICredential, int, error)
	Deactivate(ctx context.Context, rc service.RequestContext, id string) (*model.APICredential, error)
}

// AllowListService — управление allow-list (service.AllowListService).
type AllowListService interface {
	Add(ctx context.Context, rc service.RequestContext, cidr, description string) (*model.AllowListEntry, error)
	List(ctx context.Context, rc service.RequestContext) ([]*model.AllowListEntry, error)
	Remove(ctx context.Context, rc service.RequestContext, id string) error
}

// AuditQuerier — чтение журнала аудита (service.AuditRecorder).
type AuditQuerier interface {
	Query(ctx context.Context, rc service.RequestContext, filters repository.AuditListFilters, limit, offset int) ([]*model.AuditRecord, int, error)
}

// APIHandler — обработчики REST API passlink.
type APIHandler struct {
	links  LinkService
	creds  CredentialService
	allow  AllowListService
	audit  AuditQuerier
	logger *slog.Logger
}

// NewAPIHandler создаёт обработчик API.
func NewAPIHandler(
	links LinkService,
	creds CredentialService,
	allow AllowListService,
	audit AuditQuerier,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		links:  links,
		creds:  creds,
		allow:  allow,
		audit:  audit,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// --- контекст запроса ---

// staffContext — исполнитель из JWT сотрудника.
func staffContext(r *http.Request) service.RequestContext {
	rc := service.RequestContext{SourceIP: middleware.ClientIP(r)}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		rc.Actor = &service.Actor{
			ID:    claims.Subject,
			Email: claims.Email,
			Role:  claims.Role,
		}
	}
	return rc
}

// programmaticContext — исполнитель по API-ключу.
func programmaticContext(r *http.Request) service.RequestContext {
	rc := service.RequestContext{SourceIP: middleware.ClientIP(r)}
	if cred := middleware.CredentialFromContext(r.Context()); cred != nil {
		rc.Actor = &service.Actor{
			ID:              "api:" + cred.ID,
			APICredentialID: cred.ID,
		}
	}
	return rc
}

// recipientContext — получатель без аутентификации.
func recipientContext(r *http.Request) service.RequestContext {
	return service.RequestContext{SourceIP: middleware.ClientIP(r)}
}

// --- JSON ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса в dst. Неизвестные поля допускаются.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("некорректное тело запроса: %w", err)
	}
	return nil
}

// --- ошибки ---

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrAuthentication):
		apierrors.Unauthorized(w, "Требуется аутентификация")
	case errors.Is(err, service.ErrPermission):
		apierrors.Forbidden(w, "Недостаточно прав")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Доступ с этого адреса запрещён")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ресурс не найден")
	case errors.Is(err, service.ErrInvalidState):
		apierrors.InvalidState(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrAlreadyConsumed):
		apierrors.LinkUnavailable(w)
	case errors.Is(err, service.ErrTransient):
		apierrors.Transient(w, "Временный конфликт, повторите запрос")
	case errors.Is(err, service.ErrDelivery):
		apierrors.DeliveryFailed(w, "Письмо не доставлено")
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("method", r.Method),
			slog.String("path", middleware.NormalizePath(r.URL.Path)),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// --- параметры запроса ---

// pagination читает limit/offset: limit 1..1000 (по умолчанию 100), offset ≥ 0.
func pagination(r *http.Request) (limit, offset int, err error) {
	limit, offset = 100, 0
	q := r.URL.Query()

	if s := q.Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: limit должен быть числом", service.ErrValidation)
		}
		limit = min(max(limit, 1), 1000)
	}
	if s := q.Get("offset"); s != "" {
		offset, err = strconv.Atoi(s)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: offset должен быть неотрицательным числом", service.ErrValidation)
		}
	}
	return limit, offset, nil
}

// timeParam читает необязательный параметр RFC 3339.
func timeParam(r *http.Request, name string) (*time.Time, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s должен быть в формате RFC 3339", service.ErrValidation, name)
	}
	return &t, nil
}

// listResponse — страница списка.
type listResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
