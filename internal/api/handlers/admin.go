// admin.go — администрирование: API-ключи, allow-list, журнал аудита.
// Все маршруты доступны только роли admin (RequireRole в роутере,
// проверка роли повторяется в сервисах).
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/passlink/internal/api/errors"
	"github.com/bigkaa/passlink/internal/domain/model"
	"github.com/bigkaa/passlink/internal/repository"
	"github.com/bigkaa/passlink/internal/service"
)

// --- API-ключи ---

type credentialResponse struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Prefix     string  `json:"prefix"`
	Active     bool    `json:"active"`
	CreatedBy  string  `json:"createdBy"`
	CreatedAt  string  `json:"createdAt"`
	LastUsedAt *string `json:"lastUsedAt,omitempty"`
}

func toCredentialResponse(c *model.APICredential) credentialResponse {
	return credentialResponse{
		ID:         c.ID,
		Name:       c.Name,
		Prefix:     c.Prefix,
		Active:     c.Active,
		CreatedBy:  c.CreatedBy,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
		LastUsedAt: formatTime(c.LastUsedAt),
	}
}

type createCredentialRequest struct {
	Name string `json:"name"`
}

// issuedCredentialResponse — rawCredential возвращается только здесь.
type issuedCredentialResponse struct {
	ID            string `json:"id"`
	RawCredential string `json:"rawCredential"`
	Name          string `json:"name"`
	Prefix        string `json:"prefix"`
}

// CreateAPICredential — POST /api/v1/api-credentials.
func (h *APIHandler) CreateAPICredential(w http.ResponseWriter, r *http.Request) {
	var req createCredentialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	issued, err := h.creds.Create(r.Context(), staffContext(r), req.Name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, issuedCredentialResponse{
		ID:            issued.Credential.ID,
		RawCredential: issued.RawKey,
		Name:          issued.Credential.Name,
		Prefix:        issued.Credential.Prefix,
	})
}

// ListAPICredentials — GET /api/v1/api-credentials.
func (h *APIHandler) ListAPICredentials(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	creds, total, err := h.creds.List(r.Context(), staffContext(r), limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]credentialResponse, 0, len(creds))
	for _, c := range creds {
		items = append(items, toCredentialResponse(c))
	}
	writeJSON(w, http.StatusOK, listResponse[credentialResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
}

// DeactivateAPICredential — POST /api/v1/api-credentials/{id}/deactivate.
func (h *APIHandler) DeactivateAPICredential(w http.ResponseWriter, r *http.Request) {
	cred, err := h.creds.Deactivate(r.Context(), staffContext(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCredentialResponse(cred))
}

// --- allow-list ---

type allowListEntryResponse struct {
	ID          string  `json:"id"`
	CIDR        string  `json:"cidr"`
	Description *string `json:"description,omitempty"`
	CreatedBy   string  `json:"createdBy"`
	CreatedAt   string  `json:"createdAt"`
}

func toAllowListResponse(e *model.AllowListEntry) allowListEntryResponse {
	return allowListEntryResponse{
		ID:          e.ID,
		CIDR:        e.CIDR,
		Description: e.Description,
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type addAllowListRequest struct {
	CIDR        string `json:"cidr"`
	Description string `json:"description"`
}

// AddAllowListEntry — POST /api/v1/ip-allowlist.
func (h *APIHandler) AddAllowListEntry(w http.ResponseWriter, r *http.Request) {
	var req addAllowListRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	entry, err := h.allow.Add(r.Context(), staffContext(r), req.CIDR, req.Description)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAllowListResponse(entry))
}

// ListAllowList — GET /api/v1/ip-allowlist.
func (h *APIHandler) ListAllowList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.allow.List(r.Context(), staffContext(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]allowListEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, toAllowListResponse(e))
	}
	writeJSON(w, http.StatusOK, listResponse[allowListEntryResponse]{Items: items, Total: len(items), Limit: len(items)})
}

// RemoveAllowListEntry — DELETE /api/v1/ip-allowlist/{id}.
func (h *APIHandler) RemoveAllowListEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.allow.Remove(r.Context(), staffContext(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- аудит ---

type auditRecordResponse struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	ActorID    *string        `json:"actorId,omitempty"`
	ActorEmail *string        `json:"actorEmail,omitempty"`
	TargetID   *string        `json:"targetId,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	SourceIP   string         `json:"sourceIp,omitempty"`
	CreatedAt  string         `json:"createdAt"`
}

// ListAudit — GET /api/v1/audit?target_id=&action=&from=&to=&limit=&offset=.
func (h *APIHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	var filters repository.AuditListFilters
	q := r.URL.Query()
	if s := q.Get("target_id"); s != "" {
		filters.TargetID = &s
	}
	if s := q.Get("action"); s != "" {
		if !isAuditAction(s) {
			h.writeServiceError(w, r, fmt.Errorf("%w: неизвестный action %q", service.ErrValidation, s))
			return
		}
		a := model.AuditAction(s)
		filters.Action = &a
	}
	if filters.From, err = timeParam(r, "from"); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if filters.To, err = timeParam(r, "to"); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	records, total, err := h.audit.Query(r.Context(), staffContext(r), filters, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]auditRecordResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, auditRecordResponse{
			ID:         rec.ID,
			Action:     string(rec.Action),
			ActorID:    rec.ActorID,
			ActorEmail: rec.ActorEmail,
			TargetID:   rec.TargetID,
			Details:    rec.Details,
			SourceIP:   rec.SourceIP,
			CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, listResponse[auditRecordResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
}

func isAuditAction(s string) bool {
	switch model.AuditAction(s) {
	case model.AuditActionCreate, model.AuditActionSendEmail, model.AuditActionView,
		model.AuditActionRevoke, model.AuditActionRegenerate, model.AuditActionExpire,
		model.AuditActionDelete, model.AuditActionCreateCredential, model.AuditActionDeactivateCred,
		model.AuditActionAllowListAdd, model.AuditActionAllowListRemove:
		return true
	}
	return false
}
