package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/passlink/internal/domain/model"
)

// APICredentialRepository — интерфейс для таблицы api_credentials.
type APICredentialRepository interface {
	// Create создаёт новый API-ключ (хранится только хеш).
	Create(ctx context.Context, c *model.APICredential) error
	// GetByID возвращает ключ по UUID.
	GetByID(ctx context.Context, id string) (*model.APICredential, error)
	// GetActiveByHash ищет активный ключ по SHA-256 хешу.
	GetActiveByHash(ctx context.Context, keyHash string) (*model.APICredential, error)
	// List возвращает список ключей, новые первыми.
	List(ctx context.Context, limit, offset int) ([]*model.APICredential, error)
	// Count возвращает количество ключей.
	Count(ctx context.Context) (int, error)
	// Deactivate отключает ключ. Повторная деактивация не ошибка.
	Deactivate(ctx context.Context, id string) error
	// TouchLastUsed обновляет время последнего использования.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

type apiCredentialRepo struct {
	db DBTX
}

// NewAPICredentialRepository создаёт репозиторий API-ключей.
func NewAPICredentialRepository(db DBTX) APICredentialRepository {
	return &apiCredentialRepo{db: db}
}

const credentialColumns = `id, name, key_hash, prefix, active, created_by, last_used_at, created_at, updated_at`

func scanCredential(row pgx.Row) (*model.APICredential, error) {
	c := &model.APICredential{}
	err := row.Scan(
		&c.ID, &c.Name, &c.KeyHash, &c.Prefix, &c.Active, &c.CreatedBy,
		&c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *apiCredentialRepo) Create(ctx context.Context, c *model.APICredential) error {
	query := `
		INSERT INTO api_credentials (id, name, key_hash, prefix, active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.ID, c.Name, c.KeyHash, c.Prefix, c.Active, c.CreatedBy,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: API-ключ с таким хешем уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания API-ключа: %w", err)
	}
	return nil
}

func (r *apiCredentialRepo) GetByID(ctx context.Context, id string) (*model.APICredential, error) {
	query := fmt.Sprintf(`SELECT %s FROM api_credentials WHERE id = $1`, credentialColumns)
	c, err := scanCredential(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения API-ключа: %w", err)
	}
	return c, nil
}

func (r *apiCredentialRepo) GetActiveByHash(ctx context.Context, keyHash string) (*model.APICredential, error) {
	query := fmt.Sprintf(`SELECT %s FROM api_credentials WHERE key_hash = $1 AND active`, credentialColumns)
	c, err := scanCredential(r.db.QueryRow(ctx, query, keyHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска API-ключа: %w", err)
	}
	return c, nil
}

func (r *apiCredentialRepo) List(ctx context.Context, limit, offset int) ([]*model.APICredential, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM api_credentials
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, credentialColumns)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка API-ключей: %w", err)
	}
	defer rows.Close()

	var result []*model.APICredential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования API-ключа: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *apiCredentialRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM api_credentials`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта API-ключей: %w", err)
	}
	return count, nil
}

func (r *apiCredentialRepo) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE api_credentials SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка деактивации API-ключа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *apiCredentialRepo) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `UPDATE api_credentials SET last_used_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("ошибка обновления last_used_at: %w", err)
	}
	return nil
}
