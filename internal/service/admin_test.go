package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bigkaa/passlink/internal/crypto"
	"github.com/bigkaa/passlink/internal/domain/model"
)

// TestAPICredentialService_Lifecycle — выпуск, использование и отключение ключа.
func TestAPICredentialService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newFakeCredRepo()
	audit := &recordingAuditor{}
	svc := NewAPICredentialService(repo, audit, discardLogger())
	gate := NewAccessGate(repo, &fakeAllowRepo{}, discardLogger())

	if _, err := svc.Create(ctx, technicianRC(), "crm"); !errors.Is(err, ErrPermission) {
		t.Errorf("Create() technician = %v, ожидается ErrPermission", err)
	}
	if _, err := svc.Create(ctx, adminRC(), "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("Create() без имени = %v, ожидается ErrValidation", err)
	}

	issued, err := svc.Create(ctx, adminRC(), "crm")
	if err != nil {
		t.Fatalf("Create() вернул ошибку: %v", err)
	}
	if !strings.HasPrefix(issued.RawKey, crypto.CredentialPrefix) {
		t.Errorf("RawKey = %q, ожидается префикс %q", issued.RawKey, crypto.CredentialPrefix)
	}
	if issued.Credential.KeyHash == issued.RawKey || issued.Credential.KeyHash != crypto.HashCredential(issued.RawKey) {
		t.Error("хранится не хеш ключа")
	}
	if !strings.HasPrefix(issued.RawKey, issued.Credential.Prefix) {
		t.Errorf("Prefix = %q не является началом ключа", issued.Credential.Prefix)
	}

	for _, e := range audit.entries {
		for _, v := range e.Details {
			if s, ok := v.(string); ok && s == issued.RawKey {
				t.Fatal("сырой ключ попал в аудит")
			}
		}
	}

	if _, err := gate.AuthenticateAPIKey(ctx, issued.RawKey, "192.0.2.1"); err != nil {
		t.Fatalf("AuthenticateAPIKey() новым ключом: %v", err)
	}

	creds, total, err := svc.List(ctx, adminRC(), 10, 0)
	if err != nil || total != 1 || len(creds) != 1 {
		t.Fatalf("List() = (%d, %d, %v)", len(creds), total, err)
	}

	deactivated, err := svc.Deactivate(ctx, adminRC(), issued.Credential.ID)
	if err != nil {
		t.Fatalf("Deactivate() вернул ошибку: %v", err)
	}
	if deactivated.Active {
		t.Error("ключ остался активным")
	}
	if _, err := gate.AuthenticateAPIKey(ctx, issued.RawKey, "192.0.2.1"); !errors.Is(err, ErrAuthentication) {
		t.Errorf("AuthenticateAPIKey() отключённым ключом = %v, ожидается ErrAuthentication", err)
	}

	if _, err := svc.Deactivate(ctx, adminRC(), "6f1c2a1e-0000-4c1a-9d1e-000000000000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deactivate() неизвестного ключа = %v, ожидается ErrNotFound", err)
	}
	if _, err := svc.Deactivate(ctx, adminRC(), "not-a-uuid"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Deactivate() некорректного ID = %v, ожидается ErrNotFound", err)
	}

	actions := audit.actions(issued.Credential.ID)
	if len(actions) != 2 || actions[0] != model.AuditActionCreateCredential || actions[1] != model.AuditActionDeactivateCred {
		t.Errorf("аудит = %v", actions)
	}
}

// TestAllowListService проверяет управление allow-list и его влияние на допуск.
func TestAllowListService(t *testing.T) {
	ctx := context.Background()
	allowRepo := &fakeAllowRepo{}
	audit := &recordingAuditor{}
	svc := NewAllowListService(allowRepo, audit, discardLogger())

	if _, err := svc.Add(ctx, technicianRC(), "10.0.0.0/8", ""); !errors.Is(err, ErrPermission) {
		t.Errorf("Add() technician = %v, ожидается ErrPermission", err)
	}
	if _, err := svc.Add(ctx, adminRC(), "10.0.0.0/99", ""); !errors.Is(err, ErrValidation) {
		t.Errorf("Add() некорректного CIDR = %v, ожидается ErrValidation", err)
	}

	entry, err := svc.Add(ctx, adminRC(), "10.9.8.7/8", "офис")
	if err != nil {
		t.Fatalf("Add() вернул ошибку: %v", err)
	}
	if entry.CIDR != "10.0.0.0/8" {
		t.Errorf("CIDR = %q, ожидается 10.0.0.0/8", entry.CIDR)
	}
	if entry.Description == nil || *entry.Description != "офис" {
		t.Errorf("Description = %v", entry.Description)
	}
	if _, err := svc.Add(ctx, adminRC(), "10.0.0.0/8", ""); !errors.Is(err, ErrConflict) {
		t.Errorf("повторный Add() = %v, ожидается ErrConflict", err)
	}

	entries, err := svc.List(ctx, adminRC())
	if err != nil || len(entries) != 1 {
		t.Fatalf("List() = (%d, %v)", len(entries), err)
	}

	if err := svc.Remove(ctx, adminRC(), entry.ID); err != nil {
		t.Fatalf("Remove() вернул ошибку: %v", err)
	}
	if err := svc.Remove(ctx, adminRC(), entry.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Remove() = %v, ожидается ErrNotFound", err)
	}

	actions := audit.actions(entry.ID)
	if len(actions) != 2 || actions[0] != model.AuditActionAllowListAdd || actions[1] != model.AuditActionAllowListRemove {
		t.Errorf("аудит = %v", actions)
	}
}
