package rbac

type Role string
type Action string

const (
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

const (
	ActionChecklistRead   Action = "checklist:read"
	ActionChecklistWrite  Action = "checklist:write"
	ActionMessagesWrite   Action = "messages:write"
	ActionClientsManage   Action = "clients:manage"
	ActionTemplatesManage Action = "templates:manage"
)

// Can reports whether role may perform action at all. Which client the
// action targets is checked separately.
func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleAgent:
		return action == ActionChecklistRead || action == ActionChecklistWrite || action == ActionMessagesWrite || action == ActionClientsManage
	case RoleClient:
		return action == ActionChecklistRead || action == ActionChecklistWrite || action == ActionMessagesWrite
	default:
		return false
	}
}

// Normalize maps unknown role strings onto the least privileged role.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleClient, RoleAgent, RoleAdmin:
		return Role(role)
	default:
		return RoleClient
	}
}
