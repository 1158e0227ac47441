package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bigkaa/passlink/internal/domain/model"
)

// AuditListFilters — фильтры журнала аудита.
type AuditListFilters struct {
	TargetID *string
	Action   *model.AuditAction
	From     *time.Time
	To       *time.Time
}

// AuditRepository — журнал аудита (таблица audit_log, только добавление).
type AuditRepository interface {
	// Append добавляет запись.
	Append(ctx context.Context, rec *model.AuditRecord) error
	// List возвращает записи по фильтрам, новые первыми.
	List(ctx context.Context, filters AuditListFilters, limit, offset int) ([]*model.AuditRecord, error)
	// Count возвращает количество записей по фильтрам.
	Count(ctx context.Context, filters AuditListFilters) (int, error)
}

type auditRepo struct {
	db DBTX
}

// NewAuditRepository создаёт репозиторий журнала аудита.
func NewAuditRepository(db DBTX) AuditRepository {
	return &auditRepo{db: db}
}

func (r *auditRepo) Append(ctx context.Context, rec *model.AuditRecord) error {
	details := rec.Details
	if details == nil {
		details = map[string]any{}
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO audit_log (id, action, actor_id, actor_email, target_id, details, source_ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		rec.ID, string(rec.Action), rec.ActorID, rec.ActorEmail, rec.TargetID, details, rec.SourceIP, rec.CreatedAt,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи аудита: %w", err)
	}
	return nil
}

// buildAuditWhere строит WHERE-условие для журнала аудита.
func buildAuditWhere(filters AuditListFilters, startArg int) (string, []any) {
	var conditions []string
	var args []any
	argNum := startArg

	if filters.TargetID != nil {
		conditions = append(conditions, fmt.Sprintf("target_id = $%d", argNum))
		args = append(args, *filters.TargetID)
		argNum++
	}
	if filters.Action != nil {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argNum))
		args = append(args, string(*filters.Action))
		argNum++
	}
	if filters.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argNum))
		args = append(args, *filters.From)
		argNum++
	}
	if filters.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", argNum))
		args = append(args, *filters.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

func (r *auditRepo) List(ctx context.Context, filters AuditListFilters, limit, offset int) ([]*model.AuditRecord, error) {
	where, args := buildAuditWhere(filters, 1)
	argNum := len(args) + 1

	query := fmt.Sprintf(`
		SELECT id, action, actor_id, actor_email, target_id, details, source_ip, created_at
		FROM audit_log
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения журнала аудита: %w", err)
	}
	defer rows.Close()

	var result []*model.AuditRecord
	for rows.Next() {
		rec := &model.AuditRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.Action, &rec.ActorID, &rec.ActorEmail, &rec.TargetID,
			&rec.Details, &rec.SourceIP, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи аудита: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *auditRepo) Count(ctx context.Context, filters AuditListFilters) (int, error) {
	where, args := buildAuditWhere(filters, 1)

	var count int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM audit_log "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей аудита: %w", err)
	}
	return count, nil
}
