package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/passlink/internal/domain/model"
)

// AllowListRepository — интерфейс для таблицы ip_allowlist.
type AllowListRepository interface {
	// Add добавляет адрес или диапазон. Дубликат — ErrConflict.
	Add(ctx context.Context, e *model.AllowListEntry) error
	// List возвращает все записи (список небольшой, без пагинации).
	List(ctx context.Context) ([]*model.AllowListEntry, error)
	// Delete удаляет запись по UUID.
	Delete(ctx context.Context, id string) error
}

type allowListRepo struct {
	db DBTX
}

// NewAllowListRepository создаёт репозиторий allow-list.
func NewAllowListRepository(db DBTX) AllowListRepository {
	return &allowListRepo{db: db}
}

func (r *allowListRepo) Add(ctx context.Context, e *model.AllowListEntry) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO ip_allowlist (id, cidr, description, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		e.ID, e.CIDR, e.Description, e.CreatedBy,
	).Scan(&e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s уже в allow-list", ErrConflict, e.CIDR)
		}
		return fmt.Errorf("ошибка добавления в allow-list: %w", err)
	}
	return nil
}

func (r *allowListRepo) List(ctx context.Context) ([]*model.AllowListEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, cidr, description, created_by, created_at
		FROM ip_allowlist
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения allow-list: %w", err)
	}
	defer rows.Close()

	var result []*model.AllowListEntry
	for rows.Next() {
		e := &model.AllowListEntry{}
		if err := rows.Scan(&e.ID, &e.CIDR, &e.Description, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования allow-list: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (r *allowListRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM ip_allowlist WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления из allow-list: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
