// notification.go — Notification Dispatch: письмо получателю со ссылкой.
//
// Отправка идёт вне транзакции смены статуса. Ошибка доставки
// возвращается как ErrDelivery и не откатывает созданную ссылку.
package service

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"log/slog"
	texttemplate "text/template"

	"github.com/bigkaa/passlink/internal/domain/model"
	"github.com/bigkaa/passlink/internal/mailer"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// defaultSubject — тема письма со ссылкой.
const defaultSubject = "Пароль для вас"

// Mailer — транспорт доставки писем (SMTP).
type Mailer interface {
	Send(ctx context.Context, msg *mailer.Message) error
}

// emailData — данные для шаблонов письма.
type emailData struct {
	Subject       string
	RecipientName string
	URL           string
}

// NotificationService рендерит письмо и передаёт его Mailer.
type NotificationService struct {
	mailer  Mailer
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
	logger  *slog.Logger
}

// NewNotificationService парсит встроенные шаблоны.
func NewNotificationService(m Mailer, logger *slog.Logger) (*NotificationService, error) {
	html, err := htmltemplate.ParseFS(templatesFS, "templates/link_email.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("разбор HTML-шаблона письма: %w", err)
	}
	text, err := texttemplate.ParseFS(templatesFS, "templates/link_email.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("разбор текстового шаблона письма: %w", err)
	}
	return &NotificationService{
		mailer:  m,
		subject: defaultSubject,
		html:    html,
		text:    text,
		logger:  logger.With(slog.String("component", "notification")),
	}, nil
}

// Render собирает письмо для ссылки.
func (n *NotificationService) Render(link *model.Link, url string) (*mailer.Message, error) {
	data := emailData{Subject: n.subject, URL: url}
	if link.RecipientName != nil {
		data.RecipientName = *link.RecipientName
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := n.html.Execute(&htmlBuf, data); err != nil {
		return nil, fmt.Errorf("рендеринг HTML письма: %w", err)
	}
	if err := n.text.Execute(&textBuf, data); err != nil {
		return nil, fmt.Errorf("рендеринг текста письма: %w", err)
	}

	return &mailer.Message{
		To:      link.RecipientEmail,
		ToName:  data.RecipientName,
		Subject: n.subject,
		HTML:    htmlBuf.String(),
		Text:    textBuf.String(),
	}, nil
}

// SendLink рендерит и отправляет письмо. Любая ошибка — ErrDelivery.
func (n *NotificationService) SendLink(ctx context.Context, link *model.Link, url string) error {
	msg, err := n.Render(link, url)
	if err != nil {
		emailDeliveriesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		emailDeliveriesTotal.WithLabelValues("failed").Inc()
		n.logger.Error("Ошибка SMTP-доставки",
			slog.String("link_id", link.ID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	emailDeliveriesTotal.WithLabelValues("sent").Inc()
	n.logger.Info("Письмо со ссылкой отправлено", slog.String("link_id", link.ID))
	return nil
}
