// allowlist.go — управление IP allow-list программного API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/passlink/internal/domain/model"
	"github.com/bigkaa/passlink/internal/repository"
)

// AllowListService — добавление, просмотр и удаление записей (только admin).
type AllowListService struct {
	repo   repository.AllowListRepository
	audit  Auditor
	logger *slog.Logger
}

// NewAllowListService создаёт сервис allow-list.
func NewAllowListService(repo repository.AllowListRepository, audit Auditor, logger *slog.Logger) *AllowListService {
	return &AllowListService{
		repo:   repo,
		audit:  audit,
		logger: logger.With(slog.String("component", "allowlist")),
	}
}

// Add добавляет адрес или CIDR в каноническом виде.
func (s *AllowListService) Add(ctx context.Context, rc RequestContext, cidr, description string) (*model.AllowListEntry, error) {
	if err := authorizeAdmin(rc); err != nil {
		return nil, err
	}

	normalized, err := NormalizeCIDR(cidr)
	if err != nil {
		return nil, err
	}

	entry := &model.AllowListEntry{
		ID:          uuid.New().String(),
		CIDR:        normalized,
		Description: optional(strings.TrimSpace(description)),
		CreatedBy:   rc.Actor.ID,
	}
	if err := s.repo.Add(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %s уже в allow-list", ErrConflict, normalized)
		}
		return nil, fmt.Errorf("добавление в allow-list: %w", err)
	}

	s.audit.Record(model.AuditActionAllowListAdd, rc, entry.ID, map[string]any{"cidr": normalized})
	s.logger.Info("Запись добавлена в allow-list", slog.String("cidr", normalized))
	return entry, nil
}

// List возвращает все записи allow-list.
func (s *AllowListService) List(ctx context.Context, rc RequestContext) ([]*model.AllowListEntry, error) {
	if err := authorizeAdmin(rc); err != nil {
		return nil, err
	}
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение allow-list: %w", err)
	}
	return entries, nil
}

// Remove удаляет запись. Удаление последней записи открывает API для всех адресов.
func (s *AllowListService) Remove(ctx context.Context, rc RequestContext, id string) error {
	if err := authorizeAdmin(rc); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("удаление из allow-list: %w", err)
	}

	s.audit.Record(model.AuditActionAllowListRemove, rc, id, nil)

	remaining, err := s.repo.List(ctx)
	if err == nil && len(remaining) == 0 {
		s.logger.Warn("Allow-list пуст: программный API доступен с любого адреса")
	}
	return nil
}
