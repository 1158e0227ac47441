// links.go — интерактивные операции над ссылками (сотрудники, JWT).
//
//	POST   /api/v1/links                    — создание
//	GET    /api/v1/links                    — список
//	GET    /api/v1/links/{id}               — метаданные (без секрета)
//	POST   /api/v1/links/{id}/revoke        — отзыв
//	POST   /api/v1/links/{id}/regenerate    — перевыпуск
//	POST   /api/v1/links/{id}/send-email    — (повторная) отправка письма
//	DELETE /api/v1/links/{id}               — удаление (admin)
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

// linkResponse — метаданные ссылки. Секрет и шифртекст не отдаются.
type linkResponse struct {
	ID              string  `json:"id"`
	Link            string  `json:"link"`
	RecipientEmail  string  `json:"recipientEmail"`
	RecipientName   *string `json:"recipientName,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	Status          string  `json:"status"`
	Source          string  `json:"source"`
	CreatedBy       string  `json:"createdBy"`
	CreatedByEmail  *string `json:"createdByEmail,omitempty"`
	CreatedAt       string  `json:"createdAt"`
	ViewedAt        *string `json:"viewedAt,omitempty"`
	ViewedIP        *string `json:"viewedIp,omitempty"`
	EmailSent       bool    `json:"emailSent"`
	EmailSentAt     *string `json:"emailSentAt,omitempty"`
	APICredentialID *string `json:"apiCredentialId,omitempty"`
	RegeneratedFrom *string `json:"regeneratedFrom,omitempty"`
	RegeneratedTo   *string `json:"regeneratedTo,omitempty"`
}

func (h *APIHandler) toLinkResponse(l *model.Link) linkResponse {
	return linkResponse{
		ID:              l.ID,
		Link:            h.links.LinkURL(l.ID),
		RecipientEmail:  l.RecipientEmail,
		RecipientName:   l.RecipientName,
		Notes:           l.Notes,
		Status:          string(l.Status),
		Source:          string(l.Source),
		CreatedBy:       l.CreatedBy,
		CreatedByEmail:  l.CreatedByEmail,
		CreatedAt:       l.CreatedAt.UTC().Format(time.RFC3339),
		ViewedAt:        formatTime(l.ViewedAt),
		ViewedIP:        l.ViewedIP,
		EmailSent:       l.EmailSent,
		EmailSentAt:     formatTime(l.EmailSentAt),
		APICredentialID: l.APICredentialID,
		RegeneratedFrom: l.RegeneratedFrom,
		RegeneratedTo:   l.RegeneratedTo,
	}
}

// createLinkRequest — тело POST /api/v1/links.
type createLinkRequest struct {
	RecipientEmail   string `json:"recipientEmail"`
	RecipientName    string `json:"recipientName"`
	Password         string `json:"password"`
	Notes            string `json:"notes"`
	SendNotification bool   `json:"sendNotification"`
	Source           string `json:"source"`
}

// issuedLinkResponse — ответ на создание и перевыпуск. Пароль возвращается
// создателю один раз; EmailError — ссылка создана, но письмо не ушло.
type issuedLinkResponse struct {
	ID             string  `json:"id"`
	Password       string  `json:"password"`
	Link           string  `json:"link"`
	RecipientEmail string  `json:"recipientEmail"`
	RecipientName  *string `json:"recipientName"`
	Status         string  `json:"status"`
	EmailError     string  `json:"emailError,omitempty"`
}

func toIssuedResponse(issued *service.IssuedLink) issuedLinkResponse {
	resp := issuedLinkResponse{
		ID:             issued.Link.ID,
		Password:       issued.Password,
		Link:           issued.URL,
		RecipientEmail: issued.Link.RecipientEmail,
		RecipientName:  issued.Link.RecipientName,
		Status:         string(issued.Link.Status),
	}
	if issued.DeliveryErr != nil {
		resp.EmailError = "Ссылка создана, но письмо не доставлено"
	}
	return resp
}

// CreateLink — POST /api/v1/links.
func (h *APIHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req createLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	issued, err := h.links.Create(r.Context(), staffContext(r), service.CreateLinkInput{
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		Password:       req.Password,
		Notes:          req.Notes,
		Source:         model.LinkSource(req.Source),
		SendEmail:      req.SendNotification,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toIssuedResponse(issued))
}

// ListLinks — GET /api/v1/links?status=&source=&created_from=&created_to=&limit=&offset=.
func (h *APIHandler) ListLinks(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	filters, err := linkFilters(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	links, total, err := h.links.List(r.Context(), staffContext(r), filters, limit, offset)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]linkResponse, 0, len(links))
	for _, l := range links {
		items = append(items, h.toLinkResponse(l))
	}
	writeJSON(w, http.StatusOK, listResponse[linkResponse]{Items: items, Total: total, Limit: limit, Offset: offset})
}

func linkFilters(r *http.Request) (repository.LinkListFilters, error) {
	var f repository.LinkListFilters
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		st, ok := model.ParseLinkStatus(s)
		if !ok {
			return f, fmt.Errorf("%w: неизвестный status %q", service.ErrValidation, s)
		}
		f.Status = &st
	}
	if s := q.Get("source"); s != "" {
		src := model.LinkSource(s)
		switch src {
		case model.LinkSourceInteractive, model.LinkSourceBatch, model.LinkSourceAPI:
			f.Source = &src
		default:
			return f, fmt.Errorf("%w: неизвестный source %q", service.ErrValidation, s)
		}
	}

	var err error
	if f.CreatedFrom, err = timeParam(r, "created_from"); err != nil {
		return f, err
	}
	if f.CreatedTo, err = timeParam(r, "created_to"); err != nil {
		return f, err
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil && f.CreatedTo.Before(*f.CreatedFrom) {
		return f, fmt.Errorf("%w: created_to раньше created_from", service.ErrValidation)
	}
	return f, nil
}

// GetLink — GET /api/v1/links/{id}.
func (h *APIHandler) GetLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Get(r.Context(), staffContext(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toLinkResponse(link))
}

// RevokeLink — POST /api/v1/links/{id}/revoke.
func (h *APIHandler) RevokeLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.Revoke(r.Context(), staffContext(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toLinkResponse(link))
}

// regenerateRequest — тело POST /api/v1/links/{id}/regenerate.
type regenerateRequest struct {
	Password string `json:"password"`
}

// RegenerateLink — POST /api/v1/links/{id}/regenerate.
func (h *APIHandler) RegenerateLink(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	issued, err := h.links.Regenerate(r.Context(), staffContext(r), chi.URLParam(r, "id"), req.Password)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIssuedResponse(issued))
}

// SendLinkEmail — POST /api/v1/links/{id}/send-email.
func (h *APIHandler) SendLinkEmail(w http.ResponseWriter, r *http.Request) {
	link, err := h.links.SendEmail(r.Context(), staffContext(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toLinkResponse(link))
}

// DeleteLink — DELETE /api/v1/links/{id}.
func (h *APIHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	if err := h.links.Delete(r.Context(), staffContext(r), chi.URLParam(r, "id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
