// disclosure.go — протокол одноразового раскрытия.
//
// Все изменения статуса ссылки идут через LinkRepository.InTx
// (SERIALIZABLE + SELECT ... FOR UPDATE). Конфликт сериализации
// повторяется с экспоненциальной задержкой не более maxRetries раз,
// после чего возвращается ErrTransient. Секрет отдаётся вызывающему
// только после успешного коммита.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bigkaa/passlink/internal/crypto"
	"github.com/bigkaa/passlink/internal/domain/linkstate"
	"github.com/bigkaa/passlink/internal/domain/model"
	"github.com/bigkaa/passlink/internal/domain/rbac"
	"github.com/bigkaa/passlink/internal/repository"
)

// Ограничения входных данных.
const (
	maxEmailLen    = 320
	maxNameLen     = 255
	maxNotesLen    = 4000
	maxPasswordLen = 4096
)

// LinkNotifier — доставка ссылки получателю (см. NotificationService).
type LinkNotifier interface {
	SendLink(ctx context.Context, link *model.Link, url string) error
}

// DisclosureConfig — неизменяемые параметры протокола.
type DisclosureConfig struct {
	// PublicBaseURL — база публичной ссылки: <base>/reveal/<id>
	PublicBaseURL string
	// MaxRetries — число повторов при конфликте сериализации
	MaxRetries int
	// LinkTTL — срок жизни открытой ссылки (0 — без ограничения)
	LinkTTL time.Duration
}

// DisclosureService — конечный автомат ссылки и атомарное раскрытие.
type DisclosureService struct {
	links    repository.LinkRepository
	cipher   *crypto.Cipher
	audit    Auditor
	notifier LinkNotifier
	cfg      DisclosureConfig
	logger   *slog.Logger

	now   func() time.Time
	newID func() (string, error)
	// initialBackoff — первая задержка перед повтором транзакции
	initialBackoff time.Duration
}

// NewDisclosureService создаёт сервис. notifier может быть nil — тогда
// отправка писем недоступна и возвращает ErrDelivery.
func NewDisclosureService(
	links repository.LinkRepository,
	cipher *crypto.Cipher,
	audit Auditor,
	notifier LinkNotifier,
	cfg DisclosureConfig,
	logger *slog.Logger,
) *DisclosureService {
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
	return &DisclosureService{
		links:          links,
		cipher:         cipher,
		audit:          audit,
		notifier:       notifier,
		cfg:            cfg,
		logger:         logger.With(slog.String("component", "disclosure")),
		now:            func() time.Time { return time.Now().UTC() },
		newID:          crypto.GenerateLinkID,
		initialBackoff: 20 * time.Millisecond,
	}
}

// CreateLinkInput — данные для создания ссылки.
type CreateLinkInput struct {
	RecipientEmail string
	RecipientName  string
	Password       string
	Notes          string
	Source         model.LinkSource
	// SendEmail — отправить письмо сразу после создания
	SendEmail bool
}

// IssuedLink — результат создания или перевыпуска.
type IssuedLink struct {
	Link *model.Link
	URL  string
	// Password — секрет в открытом виде, возвращается создателю один раз
	Password string
	// DeliveryErr — письмо не ушло (ссылка при этом создана и осталась pending)
	DeliveryErr error
}

// CheckResult — ответ публичной проверки ссылки.
type CheckResult struct {
	Valid         bool
	RecipientName *string
}

// RevealResult — раскрытый секрет.
type RevealResult struct {
	Password      string
	RecipientName *string
}

// LinkURL возвращает публичный адрес ссылки.
func (s *DisclosureService) LinkURL(id string) string {
	return s.cfg.PublicBaseURL + "/reveal/" + id
}

// --- create ---

// Create шифрует секрет и сохраняет ссылку в статусе pending.
// При SendEmail после коммита пытается отправить письмо; ошибка доставки
// не откатывает создание и возвращается в IssuedLink.DeliveryErr.
func (s *DisclosureService) Create(ctx context.Context, rc RequestContext, in CreateLinkInput) (*IssuedLink, error) {
	if !rc.IsProgrammatic() {
		if err := authorizeStaff(rc); err != nil {
			return nil, err
		}
	}
	if err := validateCreate(&in); err != nil {
		return nil, err
	}
	if in.Source == "" {
		in.Source = model.LinkSourceInteractive
	}
	if rc.IsProgrammatic() {
		in.Source = model.LinkSourceAPI
	}

	link, err := s.newLink(rc, in.RecipientEmail, in.RecipientName, in.Notes, in.Password, in.Source)
	if err != nil {
		return nil, err
	}

	err = s.retry(ctx, "create", func() error {
		return s.links.InTx(ctx, func(tx repository.LinkTx) error {
			return tx.Insert(ctx, link)
		})
	})
	if err != nil {
		return nil, s.mapStoreError(err, "создание ссылки")
	}

	linksCreatedTotal.WithLabelValues(string(link.Source)).Inc()
	s.audit.Record(model.AuditActionCreate, rc, link.ID, map[string]any{
		"recipient_email": link.RecipientEmail,
		"source":          string(link.Source),
	})
	s.logger.Info("Ссылка создана",
		slog.String("link_id", link.ID),
		slog.String("source", string(link.Source)),
	)

	issued := &IssuedLink{Link: link, URL: s.LinkURL(link.ID), Password: in.Password}

	if in.SendEmail {
		sent, err := s.SendEmail(ctx, rc, link.ID)
		if err != nil {
			issued.DeliveryErr = err
		} else {
			issued.Link = sent
		}
	}
	return issued, nil
}

// newLink шифрует секрет и собирает новую запись (ещё не сохранённую).
func (s *DisclosureService) newLink(
	rc RequestContext,
	email, name, notes, password string,
	source model.LinkSource,
) (*model.Link, error) {
	sealed, err := s.cipher.Encrypt([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("шифрование секрета: %w", err)
	}
	id, err := s.newID()
	if err != nil {
		return nil, fmt.Errorf("генерация ID ссылки: %w", err)
	}

	link := &model.Link{
		ID:             id,
		Ciphertext:     sealed.Ciphertext,
		IV:             sealed.IV,
		AuthTag:        sealed.AuthTag,
		RecipientEmail: email,
		RecipientName:  optional(name),
		Notes:          optional(notes),
		Status:         model.LinkStatusPending,
		Source:         source,
		CreatedByEmail: rc.actorEmail(),
	}
	if rc.Actor != nil {
		link.CreatedBy = rc.Actor.ID
		if rc.IsProgrammatic() {
			credID := rc.Actor.APICredentialID
			link.APICredentialID = &credID
			if link.CreatedBy == "" {
				link.CreatedBy = "api:" + credID
			}
		}
	}
	return link, nil
}

func validateCreate(in *CreateLinkInput) error {
	in.RecipientEmail = strings.TrimSpace(in.RecipientEmail)
	in.RecipientName = strings.TrimSpace(in.RecipientName)
	in.Notes = strings.TrimSpace(in.Notes)

	if in.RecipientEmail == "" {
		return fmt.Errorf("%w: recipientEmail обязателен", ErrValidation)
	}
	if !strings.Contains(in.RecipientEmail, "@") || len(in.RecipientEmail) > maxEmailLen {
		return fmt.Errorf("%w: некорректный recipientEmail", ErrValidation)
	}
	if err := validatePassword(in.Password); err != nil {
		return err
	}
	if len(in.RecipientName) > maxNameLen {
		return fmt.Errorf("%w: recipientName длиннее %d символов", ErrValidation, maxNameLen)
	}
	if len(in.Notes) > maxNotesLen {
		return fmt.Errorf("%w: notes длиннее %d символов", ErrValidation, maxNotesLen)
	}
	switch in.Source {
	case "", model.LinkSourceInteractive, model.LinkSourceBatch, model.LinkSourceAPI:
	default:
		return fmt.Errorf("%w: неизвестный источник %q", ErrValidation, in.Source)
	}
	return nil
}

func validatePassword(p string) error {
	if p == "" {
		return fmt.Errorf("%w: password обязателен", ErrValidation)
	}
	if len(p) > maxPasswordLen {
		return fmt.Errorf("%w: password длиннее %d байт", ErrValidation, maxPasswordLen)
	}
	return nil
}

// --- check ---

// Check — публичная проверка перед раскрытием. Неизвестная, раскрытая,
// отозванная и истёкшая ссылки одинаково дают Valid=false.
func (s *DisclosureService) Check(ctx context.Context, id string) (*CheckResult, error) {
	if !crypto.IsLinkID(id) {
		return &CheckResult{Valid: false}, nil
	}

	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &CheckResult{Valid: false}, nil
		}
		return nil, fmt.Errorf("проверка ссылки: %w", err)
	}

	if !linkstate.IsOpen(link.Status) || !link.HasSecret() || s.ttlExceeded(link) {
		return &CheckResult{Valid: false}, nil
	}
	return &CheckResult{Valid: true, RecipientName: link.RecipientName}, nil
}

// --- reveal ---

// Reveal атомарно расшифровывает секрет, стирает его и переводит ссылку
// в viewed. Из N одновременных вызовов успешен ровно один, остальные
// получают ErrAlreadyConsumed. Ошибка расшифровки откатывает транзакцию
// без изменения статуса.
func (s *DisclosureService) Reveal(ctx context.Context, rc RequestContext, id string) (*RevealResult, error) {
	if !crypto.IsLinkID(id) {
		revealsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}

	var (
		result  *RevealResult
		expired bool
	)

	err := s.retry(ctx, "reveal", func() error {
		result, expired = nil, false
		return s.links.InTx(ctx, func(tx repository.LinkTx) error {
			link, err := tx.GetForUpdate(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return ErrNotFound
				}
				return err
			}

			if !linkstate.IsOpen(link.Status) || !link.HasSecret() {
				return ErrAlreadyConsumed
			}

			// Срок вышел, а фоновая задача ещё не дошла — закрываем здесь же
			if s.ttlExceeded(link) {
				if err := s.applyExpire(ctx, tx, link); err != nil {
					return err
				}
				expired = true
				return nil
			}

			next, err := linkstate.Next(link.Status, linkstate.OpReveal)
			if err != nil {
				return ErrAlreadyConsumed
			}

			plaintext, err := s.cipher.Decrypt(link.Ciphertext, link.IV, link.AuthTag)
			if err != nil {
				return err
			}

			now := s.now()
			ip := rc.SourceIP
			link.Status = next
			link.ScrubSecret()
			link.ViewedAt = &now
			link.ViewedIP = &ip
			if err := tx.Save(ctx, link); err != nil {
				return err
			}

			result = &RevealResult{Password: string(plaintext), RecipientName: link.RecipientName}
			return nil
		})
	})

	switch {
	case err == nil && expired:
		s.recordExpired(id)
		revealsTotal.WithLabelValues("consumed").Inc()
		return nil, ErrAlreadyConsumed
	case err == nil:
		revealsTotal.WithLabelValues("success").Inc()
		s.audit.Record(model.AuditActionView, rc, id, nil)
		s.logger.Info("Секрет раскрыт",
			slog.String("link_id", id),
			slog.String("source_ip", rc.SourceIP),
		)
		return result, nil
	case errors.Is(err, ErrAlreadyConsumed):
		revealsTotal.WithLabelValues("consumed").Inc()
		return nil, ErrAlreadyConsumed
	case errors.Is(err, ErrNotFound):
		revealsTotal.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	case errors.Is(err, ErrCrypto):
		revealsTotal.WithLabelValues("crypto_error").Inc()
		cryptoFailuresTotal.Inc()
		s.logger.Error("Тег аутентификации не прошёл проверку: возможна подмена или порча данных",
			slog.String("link_id", id),
			slog.String("source_ip", rc.SourceIP),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	err = s.mapStoreError(err, "раскрытие ссылки")
	if errors.Is(err, ErrTransient) {
		revealsTotal.WithLabelValues("transient").Inc()
	}
	return nil, err
}

// --- revoke ---

// Revoke отзывает открытую ссылку. Повторный отзыв — ErrInvalidState.
func (s *DisclosureService) Revoke(ctx context.Context, rc RequestContext, id string) (*model.Link, error) {
	if err := authorizeStaff(rc); err != nil {
		return nil, err
	}

	var revoked *model.Link
	err := s.retry(ctx, "revoke", func() error {
		return s.links.InTx(ctx, func(tx repository.LinkTx) error {
			link, err := s.lockForTransition(ctx, tx, id, linkstate.OpRevoke)
			if err != nil {
				return err
			}
			link.Status = model.LinkStatusRevoked
			link.ScrubSecret()
			if err := tx.Save(ctx, link); err != nil {
				return err
			}
			revoked = link
			return nil
		})
	})
	if err != nil {
		return nil, s.mapStoreError(err, "отзыв ссылки")
	}

	s.audit.Record(model.AuditActionRevoke, rc, id, nil)
	s.logger.Info("Ссылка отозвана", slog.String("link_id", id))
	return revoked, nil
}

// --- mark sent / send email ---

// MarkSent отмечает успешную доставку письма. Для sent — идемпотентно
// (статус остаётся sent, время обновляется).
func (s *DisclosureService) MarkSent(ctx context.Context, rc RequestContext, id string) (*model.Link, error) {
	var sent *model.Link
	err := s.retry(ctx, "mark_sent", func() error {
		return s.links.InTx(ctx, func(tx repository.LinkTx) error {
			link, err := s.lockForTransition(ctx, tx, id, linkstate.OpMarkSent)
			if err != nil {
				return err
			}
			if s.ttlExceeded(link) {
				return fmt.Errorf("%w: срок жизни ссылки истёк", ErrInvalidState)
			}
			now := s.now()
			link.Status = model.LinkStatusSent
			link.EmailSent = true
			link.EmailSentAt = &now
			if err := tx.Save(ctx, link); err != nil {
				return err
			}
			sent = link
			return nil
		})
	})
	if err != nil {
		return nil, s.mapStoreError(err, "отметка об отправке")
	}

	s.audit.Record(model.AuditActionSendEmail, rc, id, map[string]any{
		"recipient_email": sent.RecipientEmail,
	})
	return sent, nil
}

// SendEmail отправляет письмо со ссылкой вне транзакции и затем вызывает
// MarkSent. Ошибка доставки — ErrDelivery, статус не меняется.
func (s *DisclosureService) SendEmail(ctx context.Context, rc RequestContext, id string) (*model.Link, error) {
	if !rc.IsProgrammatic() {
		if err := authorizeStaff(rc); err != nil {
			return nil, err
		}
	}

	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение ссылки: %w", err)
	}
	if !linkstate.IsOpen(link.Status) {
		return nil, fmt.Errorf("%w: ссылка в статусе %s", ErrInvalidState, link.Status)
	}
	if s.ttlExceeded(link) {
		// Письмо не уходит, ссылка закрывается сразу, не дожидаясь воркера
		if _, err := s.Expire(ctx, id); err != nil {
			s.logger.Warn("Не удалось закрыть просроченную ссылку",
				slog.String("link_id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("%w: срок жизни ссылки истёк", ErrInvalidState)
	}

	if s.notifier == nil {
		return nil, fmt.Errorf("%w: отправка писем не настроена", ErrDelivery)
	}
	if err := s.notifier.SendLink(ctx, link, s.LinkURL(link.ID)); err != nil {
		s.logger.Warn("Письмо со ссылкой не доставлено",
			slog.String("link_id", id),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, ErrDelivery) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	return s.MarkSent(ctx, rc, id)
}

// --- regenerate ---

// Regenerate выпускает новую ссылку тому же получателю с новым секретом
// и в той же транзакции отзывает исходную. Цепочка regenerated_from /
// regenerated_to фиксируется обеими сторонами или не фиксируется вовсе.
func (s *DisclosureService) Regenerate(ctx context.Context, rc RequestContext, originalID, password string) (*IssuedLink, error) {
	if err := authorizeStaff(rc); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	var next *model.Link
	err := s.retry(ctx, "regenerate", func() error {
		next = nil
		return s.links.InTx(ctx, func(tx repository.LinkTx) error {
			orig, err := s.lockForTransition(ctx, tx, originalID, linkstate.OpRegenerate)
			if err != nil {
				return err
			}

			var name, notes string
			if orig.RecipientName != nil {
				name = *orig.RecipientName
			}
			if orig.Notes != nil {
				notes = *orig.Notes
			}
			link, err := s.newLink(rc, orig.RecipientEmail, name, notes, password, model.LinkSourceInteractive)
			if err != nil {
				return err
			}
			link.RegeneratedFrom = &orig.ID
			if err := tx.Insert(ctx, link); err != nil {
				return err
			}

			orig.Status = model.LinkStatusRevoked
			orig.ScrubSecret()
			orig.RegeneratedTo = &link.ID
			if err := tx.Save(ctx, orig); err != nil {
				return err
			}

			next = link
			return nil
		})
	})
	if err != nil {
		return nil, s.mapStoreError(err, "перевыпуск ссылки")
	}

	linksCreatedTotal.WithLabelValues(string(next.Source)).Inc()
	s.audit.Record(model.AuditActionRegenerate, rc, originalID, map[string]any{"new_id": next.ID})
	s.audit.Record(model.AuditActionCreate, rc, next.ID, map[string]any{
		"recipient_email":  next.RecipientEmail,
		"source":           string(next.Source),
		"regenerated_from": originalID,
	})
	s.logger.Info("Ссылка перевыпущена",
		slog.String("original_id", originalID),
		slog.String("new_id", next.ID),
	)

	return &IssuedLink{Link: next, URL: s.LinkURL(next.ID), Password: password}, nil
}

// --- expire ---

// Expire закрывает открытую ссылку, если её срок жизни истёк.
// Возвращает true, если ссылка переведена в expired.
func (s *DisclosureService) Expire(ctx context.Context, id string) (bool, error) {
	expired := false
	err := s.retry(ctx, "expire", func() error {
		expired = false
		return s.links.InTx(ctx, func(tx repository.LinkTx) error {
			link, err := tx.GetForUpdate(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					return nil
				}
				return err
			}
			if !linkstate.IsOpen(link.Status) || !s.ttlExceeded(link) {
				return nil
			}
			if err := s.applyExpire(ctx, tx, link); err != nil {
				return err
			}
			expired = true
			return nil
		})
	})
	if err != nil {
		return false, s.mapStoreError(err, "истечение срока ссылки")
	}
	if expired {
		s.recordExpired(id)
	}
	return expired, nil
}

func (s *DisclosureService) applyExpire(ctx context.Context, tx repository.LinkTx, link *model.Link) error {
	next, err := linkstate.Next(link.Status, linkstate.OpExpire)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	link.Status = next
	link.ScrubSecret()
	return tx.Save(ctx, link)
}

func (s *DisclosureService) recordExpired(id string) {
	linksExpiredTotal.Inc()
	s.audit.Record(model.AuditActionExpire, RequestContext{}, id, map[string]any{
		"ttl": s.cfg.LinkTTL.String(),
	})
	s.logger.Info("Срок ссылки истёк", slog.String("link_id", id))
}

func (s *DisclosureService) ttlExceeded(link *model.Link) bool {
	return s.cfg.LinkTTL > 0 && s.now().Sub(link.CreatedAt) >= s.cfg.LinkTTL
}

// --- администрирование ---

// Get возвращает метаданные ссылки (секрет наружу не отдаётся).
func (s *DisclosureService) Get(ctx context.Context, rc RequestContext, id string) (*model.Link, error) {
	if err := authorizeStaff(rc); err != nil {
		return nil, err
	}
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение ссылки: %w", err)
	}
	return link, nil
}

// List возвращает ссылки по фильтрам и общее количество.
func (s *DisclosureService) List(
	ctx context.Context,
	rc RequestContext,
	filters repository.LinkListFilters,
	limit, offset int,
) ([]*model.Link, int, error) {
	if err := authorizeStaff(rc); err != nil {
		return nil, 0, err
	}

	links, err := s.links.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка ссылок: %w", err)
	}
	total, err := s.links.Count(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт ссылок: %w", err)
	}
	return links, total, nil
}

// Delete физически удаляет ссылку. Только admin, вне протокола раскрытия.
func (s *DisclosureService) Delete(ctx context.Context, rc RequestContext, id string) error {
	if err := authorizeAdmin(rc); err != nil {
		return err
	}
	if err := s.links.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление ссылки: %w", err)
	}

	s.audit.Record(model.AuditActionDelete, rc, id, nil)
	s.logger.Warn("Ссылка удалена администратором",
		slog.String("link_id", id),
		slog.String("actor_id", rc.Actor.ID),
	)
	return nil
}

// --- вспомогательные ---

// lockForTransition блокирует ссылку и проверяет допустимость операции.
func (s *DisclosureService) lockForTransition(
	ctx context.Context,
	tx repository.LinkTx,
	id string,
	op linkstate.Operation,
) (*model.Link, error) {
	link, err := tx.GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if _, err := linkstate.Next(link.Status, op); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	return link, nil
}

// retry повторяет fn при repository.ErrTransient; прочие ошибки не повторяются.
func (s *DisclosureService) retry(ctx context.Context, op string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.initialBackoff
	eb.MaxInterval = 50 * s.initialBackoff
	eb.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(eb, uint64(max(s.cfg.MaxRetries, 0)))
	b = backoff.WithContext(b, ctx)

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrTransient) {
			txConflictsTotal.WithLabelValues(op).Inc()
			s.logger.Debug("Конфликт сериализации, повтор",
				slog.String("operation", op),
				slog.String("error", err.Error()),
			)
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

// mapStoreError приводит ошибки хранилища к ошибкам сервиса.
func (s *DisclosureService) mapStoreError(err error, action string) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrAlreadyConsumed),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrCrypto):
		return err
	case errors.Is(err, repository.ErrTransient):
		s.logger.Warn("Повторы исчерпаны",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %s", ErrTransient, action)
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", action, err)
	}
}

// optional возвращает nil для пустой строки.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IsAdmin — удобная проверка для слоя API.
func IsAdmin(rc RequestContext) bool {
	return rc.Actor != nil && rbac.CanAdminister(rc.Actor.Role)
}
