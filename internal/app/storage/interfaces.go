package storage

import (
	"context"
	"errors"

	"github.com/taskforge/taskforge/internal/app/domain/project"
	"github.com/taskforge/taskforge/internal/app/domain/task"
	"github.com/taskforge/taskforge/internal/app/domain/token"
	"github.com/taskforge/taskforge/internal/app/domain/user"
)

// Sentinel errors shared by every store implementation. Services translate
// them into the typed error taxonomy; implementations map their driver
// errors (sql.ErrNoRows, pq unique_violation) onto them.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Tx runs fn inside a single atomic unit. Every write issued through the
// store within fn commits together or not at all; an error or context
// cancellation rolls the whole unit back.
type Tx interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// UserStore persists the identity read projection.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	// DeleteUser removes the user, cascades memberships, and nulls task
	// assignee references.
	DeleteUser(ctx context.Context, id string) error
}

// ProjectStore persists projects. Projects are never hard-deleted; archive is
// the terminal state.
type ProjectStore interface {
	CreateProject(ctx context.Context, p project.Project) (project.Project, error)
	UpdateProject(ctx context.Context, p project.Project) (project.Project, error)
	GetProject(ctx context.Context, id string) (project.Project, error)
	// ListProjectsForUser returns the projects the user holds a membership
	// in, newest first.
	ListProjectsForUser(ctx context.Context, userID string) ([]project.Project, error)
}

// MembershipStore persists the (project, user, role) relation. CreateMembership
// returns ErrDuplicate when the pair already exists; the uniqueness constraint
// serializes concurrent writers.
type MembershipStore interface {
	CreateMembership(ctx context.Context, m project.Membership) (project.Membership, error)
	UpdateMembership(ctx context.Context, m project.Membership) (project.Membership, error)
	GetMembership(ctx context.Context, projectID, userID string) (project.Membership, error)
	DeleteMembership(ctx context.Context, projectID, userID string) error
	ListMemberships(ctx context.Context, projectID string) ([]project.Membership, error)
	CountMembershipsByRole(ctx context.Context, projectID string, role project.Role) (int, error)
}

// MilestoneStore persists milestones.
type MilestoneStore interface {
	CreateMilestone(ctx context.Context, m project.Milestone) (project.Milestone, error)
	UpdateMilestone(ctx context.Context, m project.Milestone) (project.Milestone, error)
	GetMilestone(ctx context.Context, id string) (project.Milestone, error)
	ListMilestones(ctx context.Context, projectID string) ([]project.Milestone, error)
}

// ActivityStore is the append-only project audit trail.
type ActivityStore interface {
	AppendActivity(ctx context.Context, a project.Activity) (project.Activity, error)
	ListActivities(ctx context.Context, projectID string, limit int) ([]project.Activity, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, t task.Task) (task.Task, error)
	UpdateTask(ctx context.Context, t task.Task) (task.Task, error)
	GetTask(ctx context.Context, id string) (task.Task, error)
	ListTasks(ctx context.Context, filter task.Filter) ([]task.Task, error)
}

// CommentStore persists task comments.
type CommentStore interface {
	CreateComment(ctx context.Context, c task.Comment) (task.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]task.Comment, error)
}

// NoteStore persists task notes. Notes cascade with their task and author.
type NoteStore interface {
	CreateNote(ctx context.Context, n task.Note) (task.Note, error)
	ListNotes(ctx context.Context, taskID string) ([]task.Note, error)
}

// AttachmentStore persists attachment reference records. File contents live
// elsewhere; the store never sees them.
type AttachmentStore interface {
	CreateAttachment(ctx context.Context, a task.Attachment) (task.Attachment, error)
	ListAttachments(ctx context.Context, taskID string) ([]task.Attachment, error)
}

// HistoryStore is the append-only task audit trail.
type HistoryStore interface {
	AppendHistory(ctx context.Context, h task.History) (task.History, error)
	ListHistory(ctx context.Context, taskID string) ([]task.History, error)
}

// TokenStore persists token issuance records keyed by token hash. Issuance
// records are the authority for revocation: a missing record means the token
// is no longer honored regardless of its embedded expiry.
type TokenStore interface {
	PutIssuance(ctx context.Context, iss token.Issuance) error
	GetIssuance(ctx context.Context, hash string) (token.Issuance, error)
	DeleteIssuance(ctx context.Context, hash string) error
	DeleteIssuancesForUser(ctx context.Context, userID string) error
}
