package rbac

type Role string
type Action string

const (
	RoleClient    Role = "client"
	RoleTeam      Role = "team"
	RoleArchitect Role = "architect"
	RoleAdmin     Role = "admin"
)

const (
	ActionRead    Action = "read"
	ActionComment Action = "comment"
	ActionTriage  Action = "triage"
	ActionAdmin   Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleArchitect:
		return action == ActionRead || action == ActionComment || action == ActionTriage
	case RoleTeam:
		return action == ActionRead || action == ActionComment
	case RoleClient:
		return action == ActionRead || action == ActionComment
	default:
		return false
	}
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleClient, RoleTeam, RoleArchitect, RoleAdmin:
		return Role(role)
	default:
		return RoleClient
	}
}
