package domain

// Role is the closed set of identities that can act on a project.
type Role string

const (
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

// Action names an operation that requires a capability.
type Action string

const (
	ActionCreateProject     Action = "project.create"
	ActionDeleteProject     Action = "project.delete"
	ActionApply             Action = "application.create"
	ActionAcceptApplication Action = "application.accept"
	ActionRejectApplication Action = "application.reject"
	ActionListApplications  Action = "application.list"
	ActionSubmitWork        Action = "project.submit"
	ActionApproveWork       Action = "project.approve"
	ActionRejectWork        Action = "project.reject"
	ActionSuspend           Action = "project.suspend"
	ActionReinstate         Action = "project.reinstate"
	ActionViewAnyProject    Action = "project.view_any"
)

var capabilities = map[Role]map[Action]struct{}{
	RoleClient: set(
		ActionCreateProject,
		ActionDeleteProject,
		ActionAcceptApplication,
		ActionRejectApplication,
		ActionListApplications,
		ActionApproveWork,
		ActionRejectWork,
	),
	RoleFreelancer: set(
		ActionApply,
		ActionSubmitWork,
	),
	RoleAdmin: set(
		ActionSuspend,
		ActionReinstate,
		ActionListApplications,
		ActionViewAnyProject,
	),
}

func set(actions ...Action) map[Action]struct{} {
	m := make(map[Action]struct{}, len(actions))
	for _, a := range actions {
		m[a] = struct{}{}
	}
	return m
}

func (r Role) Can(a Action) bool {
	_, ok := capabilities[r][a]
	return ok
}

// Caller is a verified identity acting on the system, bound either to an HTTP
// request or to a socket session.
type Caller struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func (c Caller) Can(a Action) bool {
	return c.ID != "" && c.Role.Can(a)
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}
