// public.go — страница получателя: проверка и раскрытие ссылки.
// Любое «ссылка недействительна» (не найдена, раскрыта, отозвана, истекла)
// отдаётся одинаково: 410 LINK_UNAVAILABLE с фиксированным текстом.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/passlink/internal/api/errors"
	"github.com/bigkaa/passlink/internal/service"
)

type checkLinkResponse struct {
	Valid         bool    `json:"valid"`
	RecipientName *string `json:"recipientName,omitempty"`
}

type revealLinkResponse struct {
	Password      string  `json:"password"`
	RecipientName *string `json:"recipientName,omitempty"`
}

// CheckLink — GET /api/v1/public/links/{id}.
func (h *APIHandler) CheckLink(w http.ResponseWriter, r *http.Request) {
	res, err := h.links.Check(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, checkLinkResponse{Valid: res.Valid, RecipientName: res.RecipientName})
}

// RevealLink — POST /api/v1/public/links/{id}/reveal.
func (h *APIHandler) RevealLink(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	res, err := h.links.Reveal(r.Context(), recipientContext(r), chi.URLParam(r, "id"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, revealLinkResponse{Password: res.Password, RecipientName: res.RecipientName})
	case errors.Is(err, service.ErrAlreadyConsumed), errors.Is(err, service.ErrNotFound):
		apierrors.LinkUnavailable(w)
	case errors.Is(err, service.ErrTransient):
		apierrors.Transient(w, "Сервис занят, повторите попытку")
	case errors.Is(err, service.ErrCrypto):
		// Подробности уже в журнале; получателю — без деталей
		h.logger.Error("Раскрытие прервано ошибкой расшифровки", slog.String("source_ip", recipientContext(r).SourceIP))
		apierrors.InternalError(w, "Не удалось получить пароль, обратитесь к отправителю")
	default:
		h.writeServiceError(w, r, err)
	}
}
