// audit.go — асинхронная запись журнала аудита.
//
// Record не блокирует основную операцию: запись кладётся в буферизованную
// очередь, её разбирает одна горутина-писатель. Если очередь переполнена,
// запись уходит в отдельной горутине напрямую в БД. Ошибки записи
// логируются и считаются в passlink_audit_write_failures_total.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/passlink/internal/domain/model"
	"github.com/bigkaa/passlink/internal/repository"
)

// auditWriteTimeout — таймаут одной записи в БД.
const auditWriteTimeout = 5 * time.Second

// Auditor — приёмник записей аудита.
type Auditor interface {
	Record(action model.AuditAction, rc RequestContext, targetID string, details map[string]any)
}

// AuditRecorder — единственный писатель таблицы audit_log.
type AuditRecorder struct {
	repo   repository.AuditRepository
	queue  chan *model.AuditRecord
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	done   chan struct{}
}

// NewAuditRecorder создаёт recorder и запускает горутину-писателя.
func NewAuditRecorder(repo repository.AuditRepository, queueSize int, logger *slog.Logger) *AuditRecorder {
	if queueSize < 1 {
		queueSize = 1
	}
	a := &AuditRecorder{
		repo:   repo,
		queue:  make(chan *model.AuditRecord, queueSize),
		logger: logger.With(slog.String("component", "audit")),
		now:    func() time.Time { return time.Now().UTC() },
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Record ставит запись в очередь. Никогда не возвращает ошибку вызывающему.
// targetID может быть пустым.
func (a *AuditRecorder) Record(action model.AuditAction, rc RequestContext, targetID string, details map[string]any) {
	rec := &model.AuditRecord{
		ID:         uuid.New().String(),
		Action:     action,
		ActorID:    rc.actorID(),
		ActorEmail: rc.actorEmail(),
		Details:    details,
		SourceIP:   rc.SourceIP,
		CreatedAt:  a.now(),
	}
	if targetID != "" {
		rec.TargetID = &targetID
	}
	if rc.IsProgrammatic() {
		merged := make(map[string]any, len(details)+1)
		for k, v := range details {
			merged[k] = v
		}
		merged["api_credential_id"] = rc.Actor.APICredentialID
		rec.Details = merged
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		// После Close пишем синхронно: фоновых писателей уже нет
		a.write(rec)
		return
	}

	select {
	case a.queue <- rec:
	default:
		auditQueueOverflowTotal.Inc()
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.write(rec)
		}()
	}
}

// run разбирает очередь до её закрытия.
func (a *AuditRecorder) run() {
	defer close(a.done)
	for rec := range a.queue {
		a.write(rec)
	}
}

func (a *AuditRecorder) write(rec *model.AuditRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := a.repo.Append(ctx, rec); err != nil {
		auditFailuresTotal.Inc()
		attrs := []any{
			slog.String("audit_id", rec.ID),
			slog.String("action", string(rec.Action)),
			slog.String("error", err.Error()),
		}
		if rec.TargetID != nil {
			attrs = append(attrs, slog.String("target_id", *rec.TargetID))
		}
		a.logger.Error("Не удалось записать аудит", attrs...)
	}
}

// Close перестаёт принимать записи в очередь и ждёт, пока она опустеет.
func (a *AuditRecorder) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		<-a.done
		a.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		a.logger.Info("Очередь аудита записана")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("очередь аудита не записана до таймаута: %w", ctx.Err())
	}
}

// Query возвращает журнал аудита (только admin).
func (a *AuditRecorder) Query(
	ctx context.Context,
	rc RequestContext,
	filters repository.AuditListFilters,
	limit, offset int,
) ([]*model.AuditRecord, int, error) {
	if err := authorizeAdmin(rc); err != nil {
		return nil, 0, err
	}

	recs, err := a.repo.List(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение журнала аудита: %w", err)
	}
	total, err := a.repo.Count(ctx, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт записей аудита: %w", err)
	}
	return recs, total, nil
}
