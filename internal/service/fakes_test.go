// fakes_test.go — in-memory реализации репозиториев для unit-тестов сервисов.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bigkaa/passlink/internal/domain/model"
	"github.com/bigkaa/passlink/internal/mailer"
	"github.com/bigkaa/passlink/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cloneLink(l *model.Link) *model.Link {
	c := *l
	c.Ciphertext = bytes.Clone(l.Ciphertext)
	c.IV = bytes.Clone(l.IV)
	c.AuthTag = bytes.Clone(l.AuthTag)
	return &c
}

// --- LinkRepository ---

// fakeLinkRepo сериализует транзакции одним мьютексом: изменения
// накапливаются в staged и применяются только при успешном fn.
type fakeLinkRepo struct {
	mu    sync.Mutex
	links map[string]*model.Link
	now   func() time.Time

	// transientFailures — столько ближайших InTx вернут ErrTransient
	transientFailures int
	// failSaveID — Save этой ссылки вернёт ошибку
	failSaveID string
	txCalls    int
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{
		links: make(map[string]*model.Link),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *fakeLinkRepo) InTx(ctx context.Context, fn func(tx repository.LinkTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.txCalls++
	if r.transientFailures > 0 {
		r.transientFailures--
		return fmt.Errorf("%w: could not serialize access (40001)", repository.ErrTransient)
	}

	tx := &fakeLinkTx{repo: r, staged: make(map[string]*model.Link)}
	if err := fn(tx); err != nil {
		return err
	}
	for id, l := range tx.staged {
		r.links[id] = cloneLink(l)
	}
	return nil
}

func (r *fakeLinkRepo) GetByID(_ context.Context, id string) (*model.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneLink(l), nil
}

func (r *fakeLinkRepo) List(_ context.Context, f repository.LinkListFilters, limit, offset int) ([]*model.Link, error) {
	all := r.filter(f)
	if offset >= len(all) {
		return nil, nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], nil
}

func (r *fakeLinkRepo) Count(_ context.Context, f repository.LinkListFilters) (int, error) {
	return len(r.filter(f)), nil
}

func (r *fakeLinkRepo) filter(f repository.LinkListFilters) []*model.Link {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*model.Link
	for _, l := range r.links {
		if f.Status != nil && l.Status != *f.Status {
			continue
		}
		if f.Source != nil && l.Source != *f.Source {
			continue
		}
		if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && !l.CreatedAt.Before(*f.CreatedTo) {
			continue
		}
		out = append(out, cloneLink(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *fakeLinkRepo) ListOpenCreatedBefore(_ context.Context, before time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, l := range r.links {
		open := l.Status == model.LinkStatusPending || l.Status == model.LinkStatusSent
		if open && l.CreatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *fakeLinkRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.links[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.links, id)
	return nil
}

// stored возвращает копию сохранённой ссылки (nil, если нет).
func (r *fakeLinkRepo) stored(id string) *model.Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return nil
	}
	return cloneLink(l)
}

// mutate меняет сохранённую ссылку в обход протокола (порча данных в тестах).
func (r *fakeLinkRepo) mutate(id string, fn func(l *model.Link)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.links[id])
}

type fakeLinkTx struct {
	repo   *fakeLinkRepo
	staged map[string]*model.Link
}

func (tx *fakeLinkTx) GetForUpdate(_ context.Context, id string) (*model.Link, error) {
	if l, ok := tx.staged[id]; ok {
		return cloneLink(l), nil
	}
	l, ok := tx.repo.links[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneLink(l), nil
}

func (tx *fakeLinkTx) Insert(_ context.Context, l *model.Link) error {
	if _, ok := tx.repo.links[l.ID]; ok {
		return fmt.Errorf("%w: ссылка %s уже существует", repository.ErrConflict, l.ID)
	}
	now := tx.repo.now()
	l.CreatedAt = now
	l.UpdatedAt = now
	tx.staged[l.ID] = cloneLink(l)
	return nil
}

func (tx *fakeLinkTx) Save(ctx context.Context, l *model.Link) error {
	if _, err := tx.GetForUpdate(ctx, l.ID); err != nil {
		return err
	}
	if tx.repo.failSaveID == l.ID {
		return errors.New("connection reset by peer")
	}
	l.UpdatedAt = tx.repo.now()
	tx.staged[l.ID] = cloneLink(l)
	return nil
}

// --- Auditor ---

// recordingAuditor — синхронный Auditor, запоминает записи.
type recordingAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

type auditEntry struct {
	Action   model.AuditAction
	TargetID string
	Details  map[string]any
	SourceIP string
}

func (a *recordingAuditor) Record(action model.AuditAction, rc RequestContext, targetID string, details map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{Action: action, TargetID: targetID, Details: details, SourceIP: rc.SourceIP})
}

func (a *recordingAuditor) actions(targetID string) []model.AuditAction {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []model.AuditAction
	for _, e := range a.entries {
		if e.TargetID == targetID {
			out = append(out, e.Action)
		}
	}
	return out
}

// --- AuditRepository ---

type fakeAuditRepo struct {
	mu    sync.Mutex
	recs  []*model.AuditRecord
	err   error
	delay time.Duration
}

func (r *fakeAuditRepo) Append(ctx context.Context, rec *model.AuditRecord) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.recs = append(r.recs, rec)
	return nil
}

func (r *fakeAuditRepo) List(_ context.Context, f repository.AuditListFilters, limit, offset int) ([]*model.AuditRecord, error) {
	all := r.filter(f)
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (r *fakeAuditRepo) Count(_ context.Context, f repository.AuditListFilters) (int, error) {
	return len(r.filter(f)), nil
}

func (r *fakeAuditRepo) filter(f repository.AuditListFilters) []*model.AuditRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AuditRecord
	for _, rec := range r.recs {
		if f.TargetID != nil && (rec.TargetID == nil || *rec.TargetID != *f.TargetID) {
			continue
		}
		if f.Action != nil && rec.Action != *f.Action {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (r *fakeAuditRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

// --- APICredentialRepository ---

type fakeCredRepo struct {
	mu       sync.Mutex
	byID     map[string]*model.APICredential
	touched  map[string]time.Time
	touchErr error
}

func newFakeCredRepo() *fakeCredRepo {
	return &fakeCredRepo{
		byID:    make(map[string]*model.APICredential),
		touched: make(map[string]time.Time),
	}
}

func (r *fakeCredRepo) Create(_ context.Context, c *model.APICredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.KeyHash == c.KeyHash {
			return repository.ErrConflict
		}
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.byID[c.ID] = &cp
	return nil
}

func (r *fakeCredRepo) GetByID(_ context.Context, id string) (*model.APICredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCredRepo) GetActiveByHash(_ context.Context, keyHash string) (*model.APICredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.byID {
		if c.KeyHash == keyHash && c.Active {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeCredRepo) List(_ context.Context, limit, offset int) ([]*model.APICredential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.APICredential
	for _, c := range r.byID {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (r *fakeCredRepo) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID), nil
}

func (r *fakeCredRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	c.Active = false
	return nil
}

func (r *fakeCredRepo) TouchLastUsed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.touchErr != nil {
		return r.touchErr
	}
	r.touched[id] = at
	return nil
}

// --- AllowListRepository ---

type fakeAllowRepo struct {
	mu      sync.Mutex
	entries []*model.AllowListEntry
	listErr error
}

func (r *fakeAllowRepo) Add(_ context.Context, e *model.AllowListEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.entries {
		if existing.CIDR == e.CIDR {
			return repository.ErrConflict
		}
	}
	e.CreatedAt = time.Now().UTC()
	cp := *e
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *fakeAllowRepo) List(_ context.Context) ([]*model.AllowListEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*model.AllowListEntry, 0, len(r.entries))
	for _, e := range r.entries {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeAllowRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// --- Mailer ---

type fakeMailer struct {
	mu   sync.Mutex
	sent []*mailer.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg *mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// --- request contexts ---

func adminRC() RequestContext {
	return RequestContext{
		Actor:    &Actor{ID: "admin-sub", Email: "admin@example.org", Role: "admin"},
		SourceIP: "10.0.0.1",
	}
}

func technicianRC() RequestContext {
	return RequestContext{
		Actor:    &Actor{ID: "tech-sub", Email: "tech@example.org", Role: "technician"},
		SourceIP: "10.0.0.2",
	}
}

func recipientRC(ip string) RequestContext {
	return RequestContext{SourceIP: ip}
}

func programmaticRC(credID string) RequestContext {
	return RequestContext{
		Actor:    &Actor{ID: "api:" + credID, APICredentialID: credID},
		SourceIP: "192.0.2.10",
	}
}

// contains — подстрока без учёта регистра (для проверки текста писем).
func contains(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
