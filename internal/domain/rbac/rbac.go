// Пакет rbac — определение роли сотрудника и прав на операции со ссылками.
// Роль вычисляется из групп IdP (Keycloak) или из realm_access.roles.
// При нескольких совпадениях берётся роль с максимальными привилегиями.
package rbac

// Роли в порядке возрастания привилегий.
const (
	RoleTechnician = "technician"
	RoleAdmin      = "admin"
)

// roleWeight — вес роли для сравнения.
// Чем выше вес, тем больше привилегий.
var roleWeight = map[string]int{
	RoleTechnician: 1,
	RoleAdmin:      2,
}

// maxRole возвращает роль с максимальными привилегиями из двух.
func maxRole(a, b string) string {
	wa := roleWeight[a]
	wb := roleWeight[b]
	if wa >= wb {
		return a
	}
	return b
}

// HighestRole возвращает максимальную роль из набора.
// Если набор пуст — возвращает пустую строку.
func HighestRole(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	highest := roles[0]
	for _, r := range roles[1:] {
		highest = maxRole(highest, r)
	}
	return highest
}

// MapGroupsToRole определяет роль пользователя на основе его групп IdP.
// Возвращает максимальную роль из всех совпадений или пустую строку.
func MapGroupsToRole(groups []string, adminGroups, technicianGroups []string) string {
	adminSet := toSet(adminGroups)
	technicianSet := toSet(technicianGroups)

	var roles []string
	for _, g := range groups {
		if adminSet[g] {
			roles = append(roles, RoleAdmin)
		}
		if technicianSet[g] {
			roles = append(roles, RoleTechnician)
		}
	}

	return HighestRole(roles)
}

// IsValidRole проверяет, является ли строка допустимой ролью.
func IsValidRole(role string) bool {
	_, ok := roleWeight[role]
	return ok
}

// CanManageLinks — создание, отзыв, перевыпуск и отправка ссылок.
func CanManageLinks(role string) bool {
	return role == RoleAdmin || role == RoleTechnician
}

// CanAdminister — API-ключи, allow-list, журнал аудита, удаление ссылок.
func CanAdminister(role string) bool {
	return role == RoleAdmin
}

// toSet конвертирует срез строк в map для быстрого поиска.
func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}
