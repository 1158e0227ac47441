// Пакет mailer — доставка писем получателям ссылок через SMTP (go-mail).
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// Message — готовое к отправке письмо: тема и тела уже отрендерены.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Config — параметры SMTP-сервера.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLSPolicy — mandatory, opportunistic, none
	TLSPolicy string
	Timeout   time.Duration
}

// SMTPMailer отправляет письма через SMTP.
// Клиент создаётся на каждую отправку, общего состояния между запросами нет.
type SMTPMailer struct {
	cfg       Config
	tlsPolicy mail.TLSPolicy
	logger    *slog.Logger
}

// NewSMTPMailer проверяет конфигурацию и создаёт отправителя.
func NewSMTPMailer(cfg Config, logger *slog.Logger) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("не задан SMTP-хост")
	}
	policy, err := ParseTLSPolicy(cfg.TLSPolicy)
	if err != nil {
		return nil, err
	}
	// Проверяем адрес отправителя заранее, а не при первой отправке
	if err := mail.NewMsg().From(cfg.From); err != nil {
		return nil, fmt.Errorf("некорректный адрес отправителя %q: %w", cfg.From, err)
	}

	return &SMTPMailer{
		cfg:       cfg,
		tlsPolicy: policy,
		logger:    logger.With(slog.String("component", "smtp_mailer")),
	}, nil
}

// ParseTLSPolicy преобразует строку конфигурации в политику go-mail.
func ParseTLSPolicy(s string) (mail.TLSPolicy, error) {
	switch s {
	case "", "mandatory":
		return mail.TLSMandatory, nil
	case "opportunistic":
		return mail.TLSOpportunistic, nil
	case "none":
		return mail.NoTLS, nil
	default:
		return mail.TLSMandatory, fmt.Errorf("недопустимая политика TLS %q", s)
	}
}

// Send отправляет письмо. Ошибка означает, что письмо не доставлено на SMTP-сервер.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	em, err := m.buildMsg(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTLSPolicy(m.tlsPolicy),
	}
	if m.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(m.cfg.Timeout))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("создание SMTP-клиента: %w", err)
	}

	start := time.Now()
	if err := client.DialAndSendWithContext(ctx, em); err != nil {
		return fmt.Errorf("отправка письма через %s: %w", m.cfg.Host, err)
	}

	m.logger.Debug("Письмо отправлено",
		slog.String("host", m.cfg.Host),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// buildMsg собирает multipart/alternative письмо (text + html).
func (m *SMTPMailer) buildMsg(msg *Message) (*mail.Msg, error) {
	em := mail.NewMsg()
	if err := em.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("адрес отправителя: %w", err)
	}

	var err error
	if msg.ToName != "" {
		err = em.AddToFormat(msg.ToName, msg.To)
	} else {
		err = em.To(msg.To)
	}
	if err != nil {
		return nil, fmt.Errorf("адрес получателя %q: %w", msg.To, err)
	}

	em.Subject(msg.Subject)
	em.SetDate()
	em.SetMessageID()
	em.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		em.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return em, nil
}
