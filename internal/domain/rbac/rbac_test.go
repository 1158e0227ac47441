package rbac

import (
	"testing"
)

func TestHighestRole(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  string
	}{
		{name: "пустой набор", roles: nil, want: ""},
		{name: "один admin", roles: []string{RoleAdmin}, want: RoleAdmin},
		{name: "один technician", roles: []string{RoleTechnician}, want: RoleTechnician},
		{name: "admin + technician", roles: []string{RoleAdmin, RoleTechnician}, want: RoleAdmin},
		{name: "technician + admin", roles: []string{RoleTechnician, RoleAdmin}, want: RoleAdmin},
		{name: "все technician", roles: []string{RoleTechnician, RoleTechnician}, want: RoleTechnician},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HighestRole(tt.roles)
			if got != tt.want {
				t.Errorf("HighestRole(%v) = %q, хотели %q", tt.roles, got, tt.want)
			}
		})
	}
}

func TestMapGroupsToRole(t *testing.T) {
	adminGroups := []string{"passlink-admins"}
	technicianGroups := []string{"passlink-technicians", "helpdesk"}

	tests := []struct {
		name   string
		groups []string
		want   string
	}{
		{name: "нет групп", groups: nil, want: ""},
		{name: "посторонняя группа", groups: []string{"accounting"}, want: ""},
		{name: "группа администраторов", groups: []string{"passlink-admins"}, want: RoleAdmin},
		{name: "вторая группа техников", groups: []string{"helpdesk"}, want: RoleTechnician},
		{name: "обе группы — admin", groups: []string{"helpdesk", "passlink-admins"}, want: RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapGroupsToRole(tt.groups, adminGroups, technicianGroups)
			if got != tt.want {
				t.Errorf("MapGroupsToRole(%v) = %q, хотели %q", tt.groups, got, tt.want)
			}
		})
	}
}

func TestPermissions(t *testing.T) {
	tests := []struct {
		role       string
		manage     bool
		administer bool
	}{
		{RoleAdmin, true, true},
		{RoleTechnician, true, false},
		{"readonly", false, false},
		{"", false, false},
	}

	for _, tt := range tests {
		if got := CanManageLinks(tt.role); got != tt.manage {
			t.Errorf("CanManageLinks(%q) = %v, хотели %v", tt.role, got, tt.manage)
		}
		if got := CanAdminister(tt.role); got != tt.administer {
			t.Errorf("CanAdminister(%q) = %v, хотели %v", tt.role, got, tt.administer)
		}
	}
}

func TestIsValidRole(t *testing.T) {
	if !IsValidRole(RoleAdmin) || !IsValidRole(RoleTechnician) {
		t.Error("admin и technician должны быть допустимыми ролями")
	}
	if IsValidRole("readonly") {
		t.Error("readonly не должна быть допустимой ролью")
	}
}
