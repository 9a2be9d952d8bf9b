package project

import "time"

// Status enumerates project states. The archived condition is derived from
// status; there is no separately stored flag.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusOnHold    Status = "ON_HOLD"
	StatusCompleted Status = "COMPLETED"
	StatusArchived  Status = "ARCHIVED"
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusOnHold, StatusCompleted, StatusArchived:
		return true
	}
	return false
}

// Project is the top-level container for tasks, milestones, and memberships.
type Project struct {
	ID          string
	Name        string
	Description string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Archived reports whether the project has reached its terminal soft state.
func (p Project) Archived() bool { return p.Status == StatusArchived }

// Role binds a user to a project with a fixed capability set.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Capability is a named permission checked before restricted reads and all
// mutations.
type Capability string

const (
	CapView          Capability = "view"
	CapEdit          Capability = "edit"
	CapManageMembers Capability = "manage_members"
	CapArchive       Capability = "archive"
	CapDelete        Capability = "delete"
)

// Allows reports whether the role grants the capability. Higher roles retain
// every capability of the roles below them.
func (r Role) Allows(cap Capability) bool {
	switch cap {
	case CapView:
		return r.Valid()
	case CapEdit:
		return r == RoleMember || r == RoleAdmin || r == RoleOwner
	case CapManageMembers:
		return r == RoleAdmin || r == RoleOwner
	case CapArchive, CapDelete:
		return r == RoleOwner
	}
	return false
}

// Membership is the (project, user, role) relation. At most one membership
// exists per (project, user) pair.
type Membership struct {
	ID        int64
	ProjectID string
	UserID    string
	Role      Role
	JoinedAt  time.Time
}

// Milestone is a dated checkpoint owned by exactly one project.
type Milestone struct {
	ID          string
	ProjectID   string
	Title       string
	Description string
	DueDate     time.Time
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Activity is one append-only audit record for a project mutation.
type Activity struct {
	ID          int64
	ProjectID   string
	UserID      string
	Description string
	OccurredAt  time.Time
}

// Stats summarizes task completion for a project.
type Stats struct {
	TotalTasks     int
	CompletedTasks int
	CompletionRate float64
	StatusCounts   map[string]int
	AssigneeCounts map[string]int
}
