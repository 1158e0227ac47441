package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/passlink/internal/domain/model"
)

// LinkListFilters — фильтры для списка ссылок.
type LinkListFilters struct {
	Status      *model.LinkStatus
	Source      *model.LinkSource
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// LinkTx — операции над ссылками внутри одной транзакции.
// Изменение статуса возможно только через LinkTx.
type LinkTx interface {
	// GetForUpdate читает ссылку с блокировкой строки (SELECT ... FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*model.Link, error)
	// Insert создаёт новую ссылку.
	Insert(ctx context.Context, l *model.Link) error
	// Save сохраняет изменяемые поля ссылки (статус, секрет, отметки, цепочку).
	Save(ctx context.Context, l *model.Link) error
}

// LinkRepository — хранилище одноразовых ссылок (таблица links).
type LinkRepository interface {
	// InTx выполняет fn в SERIALIZABLE-транзакции.
	// Конфликт с конкурентной транзакцией — ErrTransient.
	InTx(ctx context.Context, fn func(tx LinkTx) error) error
	// GetByID возвращает ссылку без блокировки.
	GetByID(ctx context.Context, id string) (*model.Link, error)
	// List возвращает ссылки по фильтрам, новые первыми.
	List(ctx context.Context, filters LinkListFilters, limit, offset int) ([]*model.Link, error)
	// Count возвращает количество ссылок по фильтрам.
	Count(ctx context.Context, filters LinkListFilters) (int, error)
	// ListOpenCreatedBefore возвращает ID открытых (pending, sent) ссылок,
	// созданных раньше before. Используется фоновым истечением срока.
	ListOpenCreatedBefore(ctx context.Context, before time.Time, limit int) ([]string, error)
	// Delete физически удаляет ссылку (административное действие).
	Delete(ctx context.Context, id string) error
}

// linkRepo — реализация LinkRepository.
type linkRepo struct {
	db DBTX
	tx *TxRunner
}

// Pool — пул подключений, пригодный и для запросов, и для транзакций.
type Pool interface {
	DBTX
	TxBeginner
}

// NewLinkRepository создаёт репозиторий ссылок.
func NewLinkRepository(pool Pool) LinkRepository {
	return &linkRepo{db: pool, tx: NewSerializableTxRunner(pool)}
}

const linkColumns = `id, ciphertext, iv, auth_tag, recipient_email, recipient_name, notes,
	created_by, created_by_email, created_at, status, viewed_at, viewed_ip,
	email_sent, email_sent_at, source, api_credential_id, regenerated_from, regenerated_to,
	updated_at`

// scanLink сканирует строку результата в модель Link.
func scanLink(row pgx.Row) (*model.Link, error) {
	l := &model.Link{}
	err := row.Scan(
		&l.ID, &l.Ciphertext, &l.IV, &l.AuthTag, &l.RecipientEmail, &l.RecipientName, &l.Notes,
		&l.CreatedBy, &l.CreatedByEmail, &l.CreatedAt, &l.Status, &l.ViewedAt, &l.ViewedIP,
		&l.EmailSent, &l.EmailSentAt, &l.Source, &l.APICredentialID, &l.RegeneratedFrom, &l.RegeneratedTo,
		&l.UpdatedAt,
	)
	return l, err
}

func (r *linkRepo) InTx(ctx context.Context, fn func(tx LinkTx) error) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		return fn(&linkTx{db: tx})
	})
}

func (r *linkRepo) GetByID(ctx context.Context, id string) (*model.Link, error) {
	query := fmt.Sprintf(`SELECT %s FROM links WHERE id = $1`, linkColumns)
	l, err := scanLink(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения ссылки: %w", err)
	}
	return l, nil
}

// buildLinkWhere строит WHERE-условие и аргументы для фильтрации ссылок.
func buildLinkWhere(filters LinkListFilters, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filters.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, string(*filters.Status))
		argNum++
	}
	if filters.Source != nil {
		conditions = append(conditions, fmt.Sprintf("source = $%d", argNum))
		args = append(args, string(*filters.Source))
		argNum++
	}
	if filters.CreatedFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, *filters.CreatedFrom)
		argNum++
	}
	if filters.CreatedTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argNum))
		args = append(args, *filters.CreatedTo)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *linkRepo) List(ctx context.Context, filters LinkListFilters, limit, offset int) ([]*model.Link, error) {
	where, args := buildLinkWhere(filters, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT %s
		FROM links
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`, linkColumns, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка ссылок: %w", err)
	}
	defer rows.Close()

	var result []*model.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования ссылки: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func (r *linkRepo) Count(ctx context.Context, filters LinkListFilters) (int, error) {
	where, args := buildLinkWhere(filters, 1)
	query := "SELECT COUNT(*) FROM links " + where

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта ссылок: %w", err)
	}
	return count, nil
}

func (r *linkRepo) ListOpenCreatedBefore(ctx context.Context, before time.Time, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM links
		WHERE status IN ('pending', 'sent') AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска истёкших ссылок: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ID ссылки: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *linkRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM links WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления ссылки: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// linkTx — LinkTx поверх pgx.Tx.
type linkTx struct {
	db DBTX
}

func (t *linkTx) GetForUpdate(ctx context.Context, id string) (*model.Link, error) {
	query := fmt.Sprintf(`SELECT %s FROM links WHERE id = $1 FOR UPDATE`, linkColumns)
	l, err := scanLink(t.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка блокировки ссылки: %w", err)
	}
	return l, nil
}

func (t *linkTx) Insert(ctx context.Context, l *model.Link) error {
	query := `
		INSERT INTO links (id, ciphertext, iv, auth_tag, recipient_email, recipient_name, notes,
			created_by, created_by_email, status, source, api_credential_id, regenerated_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err := t.db.QueryRow(ctx, query,
		l.ID, l.Ciphertext, l.IV, l.AuthTag, l.RecipientEmail, l.RecipientName, l.Notes,
		l.CreatedBy, l.CreatedByEmail, string(l.Status), string(l.Source), l.APICredentialID, l.RegeneratedFrom,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ссылка с таким ID уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания ссылки: %w", err)
	}
	return nil
}

func (t *linkTx) Save(ctx context.Context, l *model.Link) error {
	query := `
		UPDATE links
		SET ciphertext = $2, iv = $3, auth_tag = $4, status = $5,
			viewed_at = $6, viewed_ip = $7, email_sent = $8, email_sent_at = $9,
			regenerated_from = $10, regenerated_to = $11, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := t.db.QueryRow(ctx, query,
		l.ID, l.Ciphertext, l.IV, l.AuthTag, string(l.Status),
		l.ViewedAt, l.ViewedIP, l.EmailSent, l.EmailSentAt,
		l.RegeneratedFrom, l.RegeneratedTo,
	).Scan(&l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка сохранения ссылки: %w", err)
	}
	return nil
}
