// api_credentials.go — управление API-ключами внешних систем.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/passlink/internal/crypto"
	"github.com/bigkaa/passlink/internal/domain/model"
	"github.com/bigkaa/passlink/internal/repository"
)

const maxCredentialNameLen = 100

// APICredentialService — выпуск, просмотр и отключение API-ключей (только admin).
type APICredentialService struct {
	repo   repository.APICredentialRepository
	audit  Auditor
	logger *slog.Logger
}

// NewAPICredentialService создаёт сервис API-ключей.
func NewAPICredentialService(repo repository.APICredentialRepository, audit Auditor, logger *slog.Logger) *APICredentialService {
	return &APICredentialService{
		repo:   repo,
		audit:  audit,
		logger: logger.With(slog.String("component", "api_credentials")),
	}
}

// IssuedCredential — новый ключ. RawKey возвращается один раз и нигде не хранится.
type IssuedCredential struct {
	Credential *model.APICredential
	RawKey     string
}

// Create выпускает новый API-ключ.
func (s *APICredentialService) Create(ctx context.Context, rc RequestContext, name string) (*IssuedCredential, error) {
	if err := authorizeAdmin(rc); err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name обязателен", ErrValidation)
	}
	if len(name) > maxCredentialNameLen {
		return nil, fmt.Errorf("%w: name длиннее %d символов", ErrValidation, maxCredentialNameLen)
	}

	raw, err := crypto.GenerateCredential()
	if err != nil {
		return nil, fmt.Errorf("генерация API-ключа: %w", err)
	}

	cred := &model.APICredential{
		ID:        uuid.New().String(),
		Name:      name,
		KeyHash:   crypto.HashCredential(raw),
		Prefix:    crypto.DisplayPrefix(raw),
		Active:    true,
		CreatedBy: rc.Actor.ID,
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return nil, fmt.Errorf("сохранение API-ключа: %w", err)
	}

	s.audit.Record(model.AuditActionCreateCredential, rc, cred.ID, map[string]any{
		"name":   cred.Name,
		"prefix": cred.Prefix,
	})
	s.logger.Info("API-ключ выпущен",
		slog.String("credential_id", cred.ID),
		slog.String("name", cred.Name),
		slog.String("prefix", cred.Prefix),
	)

	return &IssuedCredential{Credential: cred, RawKey: raw}, nil
}

// List возвращает ключи (без хешей наружу) и их количество.
func (s *APICredentialService) List(ctx context.Context, rc RequestContext, limit, offset int) ([]*model.APICredential, int, error) {
	if err := authorizeAdmin(rc); err != nil {
		return nil, 0, err
	}
	creds, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка API-ключей: %w", err)
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт API-ключей: %w", err)
	}
	return creds, total, nil
}

// Deactivate отключает ключ. Ключ не удаляется: ссылки сохраняют ссылку на него.
func (s *APICredentialService) Deactivate(ctx context.Context, rc RequestContext, id string) (*model.APICredential, error) {
	if err := authorizeAdmin(rc); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("отключение API-ключа: %w", err)
	}
	cred, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("получение API-ключа: %w", err)
	}

	s.audit.Record(model.AuditActionDeactivateCred, rc, id, map[string]any{"prefix": cred.Prefix})
	s.logger.Info("API-ключ отключён", slog.String("credential_id", id))
	return cred, nil
}
