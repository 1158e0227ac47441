// request.go — явный контекст запроса: кто действует и откуда.
package service

import "github.com/bigkaa/passlink/internal/domain/rbac"

// Actor — аутентифицированный исполнитель.
// Для сотрудника заполнены ID/Email/Role, для внешней системы — APICredentialID.
type Actor struct {
	ID              string
	Email           string
	Role            string
	APICredentialID string
}

// RequestContext передаётся в каждую операцию, которой нужен исполнитель
// или адрес источника. Для действий получателя Actor == nil.
type RequestContext struct {
	Actor    *Actor
	SourceIP string
}

// IsProgrammatic сообщает, что запрос пришёл по API-ключу.
func (rc RequestContext) IsProgrammatic() bool {
	return rc.Actor != nil && rc.Actor.APICredentialID != ""
}

func (rc RequestContext) actorID() *string {
	if rc.Actor == nil || rc.Actor.ID == "" {
		return nil
	}
	id := rc.Actor.ID
	return &id
}

func (rc RequestContext) actorEmail() *string {
	if rc.Actor == nil || rc.Actor.Email == "" {
		return nil
	}
	email := rc.Actor.Email
	return &email
}

// authorizeStaff — интерактивный путь: admin или technician.
func authorizeStaff(rc RequestContext) error {
	if rc.Actor == nil {
		return ErrAuthentication
	}
	if !rbac.CanManageLinks(rc.Actor.Role) {
		return ErrPermission
	}
	return nil
}

// authorizeAdmin — только admin.
func authorizeAdmin(rc RequestContext) error {
	if rc.Actor == nil {
		return ErrAuthentication
	}
	if !rbac.CanAdminister(rc.Actor.Role) {
		return ErrPermission
	}
	return nil
}
