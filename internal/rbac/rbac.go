package rbac

type Role string
type Action string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

const (
	// ActionRead covers public content and a signed-in user's own data.
	ActionRead Action = "read"
	// ActionWrite covers mutations a signed-in user may make to their own
	// records (preferences, linked accounts).
	ActionWrite Action = "write"
	// ActionAdmin covers site administration: blog authoring, notes, audit
	// log, asset uploads, and the terminal bridge.
	ActionAdmin Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleUser:
		return action == ActionRead || action == ActionWrite
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleAdmin:
		return Role(role)
	default:
		return RoleUser
	}
}
