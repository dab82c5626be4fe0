package models

// Role - роль участника инцидента
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleRescuer    Role = "rescuer"
	RoleDispatcher Role = "dispatcher"
	RoleAdmin      Role = "admin"
	RoleDashboard  Role = "dashboard"
	RoleSystem     Role = "system"
)

// IsValid проверяет, что роль известна
func (r Role) IsValid() bool {
	switch r {
	case RoleCitizen, RoleRescuer, RoleDispatcher, RoleAdmin, RoleDashboard, RoleSystem:
		return true
	}
	return false
}

// Actor - тот, кто выполняет операцию
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// CanDispatch сообщает, может ли актор управлять инцидентами
func (a Actor) CanDispatch() bool {
	return a.Role == RoleDispatcher || a.Role == RoleAdmin || a.Role == RoleSystem
}
