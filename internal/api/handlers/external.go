// external.go — программное создание ссылок внешними системами.
//
// POST /api/v1/external/links, заголовок с API-ключом (PL_API_KEY_HEADER).
// Формат ответа зафиксирован интеграциями:
//
//	201 {"success": true, "id": "...", "link": "...", "status": "pending|sent"}
//	4xx/5xx {"success": false, "error": "..."}
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bigkaa/passlink/internal/domain/model"
	"github.com/bigkaa/passlink/internal/service"
)

type externalCreateRequest struct {
	RecipientEmail string `json:"recipientEmail"`
	RecipientName  string `json:"recipientName"`
	Password       string `json:"password"`
	Notes          string `json:"notes"`
	SendEmail      bool   `json:"sendEmail"`
}

type externalCreateResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Link    string `json:"link"`
	Status  string `json:"status"`
}

type externalErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeExternalError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, externalErrorResponse{Success: false, Error: message})
}

// RequirePOST отвечает 405 на любой метод, кроме POST, до проверки ключа.
func RequirePOST(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeExternalError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteExternalAuthError — ответ APIKeyAuth в формате интеграции.
func WriteExternalAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAuthentication):
		writeExternalError(w, http.StatusUnauthorized, "Invalid or missing API key")
	case errors.Is(err, service.ErrForbidden):
		writeExternalError(w, http.StatusForbidden, "IP address not allowed")
	default:
		slog.Default().Error("Ошибка проверки API-ключа", slog.String("error", err.Error()))
		writeExternalError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// CreateExternalLink — POST /api/v1/external/links.
func (h *APIHandler) CreateExternalLink(w http.ResponseWriter, r *http.Request) {
	var req externalCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeExternalError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.RecipientEmail == "" || req.Password == "" {
		writeExternalError(w, http.StatusBadRequest, "recipientEmail and password are required")
		return
	}

	issued, err := h.links.Create(r.Context(), programmaticContext(r), service.CreateLinkInput{
		RecipientEmail: req.RecipientEmail,
		RecipientName:  req.RecipientName,
		Password:       req.Password,
		Notes:          req.Notes,
		Source:         model.LinkSourceAPI,
		SendEmail:      req.SendEmail,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			writeExternalError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAuthentication):
			writeExternalError(w, http.StatusUnauthorized, "Invalid or missing API key")
		case errors.Is(err, service.ErrTransient):
			writeExternalError(w, http.StatusServiceUnavailable, "Temporary conflict, retry the request")
		default:
			h.logger.Error("Ошибка программного создания ссылки", slog.String("error", err.Error()))
			writeExternalError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	if issued.DeliveryErr != nil {
		h.logger.Warn("Ссылка создана по API, письмо не доставлено",
			slog.String("link_id", issued.Link.ID),
			slog.String("error", issued.DeliveryErr.Error()),
		)
	}

	writeJSON(w, http.StatusCreated, externalCreateResponse{
		Success: true,
		ID:      issued.Link.ID,
		Link:    issued.URL,
		Status:  string(issued.Link.Status),
	})
}
