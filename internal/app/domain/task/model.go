package task

import (
	"fmt"
	"time"
)

// Status enumerates task lifecycle states.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusReview     Status = "REVIEW"
	StatusDone       Status = "DONE"
)

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Priority is ordinal, 1 (low) through 4 (urgent).
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

// Valid reports whether p is within the 1-4 range.
func (p Priority) Valid() bool { return p >= PriorityLow && p <= PriorityUrgent }

// Task is a unit of work owned by exactly one project. The assignee is a weak
// reference: removing the user nulls the field rather than deleting the task.
type Task struct {
	ID          string
	Title       string
	Description string
	ProjectID   string
	AssigneeID  string
	CreatorID   string
	Status      Status
	Priority    Priority
	DueDate     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Completed is derived from status; it is never stored independently.
func (t Task) Completed() bool { return t.Status == StatusDone }

// Overdue reports whether the task has a due date in the past and is not done.
func (t Task) Overdue(now time.Time) bool {
	return !t.DueDate.IsZero() && now.After(t.DueDate) && t.Status != StatusDone
}

// Comment is a message attached to a task.
type Comment struct {
	ID        string
	TaskID    string
	AuthorID  string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Note is a lightweight annotation on a task. Notes are never referenced
// externally, so they carry table-local sequential ids.
type Note struct {
	ID        int64
	TaskID    string
	UserID    string
	Note      string
	CreatedAt time.Time
}

// Attachment is a reference pointer to a file stored elsewhere. The service
// never touches file contents; Reference is an opaque locator.
type Attachment struct {
	ID         string
	TaskID     string
	UploaderID string
	FileName   string
	Reference  string
	CreatedAt  time.Time
}

// History is one append-only audit record for a task mutation.
type History struct {
	ID         int64
	TaskID     string
	UserID     string
	Action     string
	OccurredAt time.Time
}

// Patch enumerates the mutable task fields. Nil pointers mean "leave as is";
// the diff against the current value drives both the update and the history
// summary, replacing the original's attribute-by-name mutation.
type Patch struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	DueDate     *time.Time
}

// Change records a single field transition produced by applying a patch.
type Change struct {
	Field string
	Old   string
	New   string
}

// Apply mutates t with every field the patch sets and returns the list of
// fields that actually changed. A patch that sets fields to their current
// values produces no changes.
func (p Patch) Apply(t *Task) []Change {
	var changes []Change

	if p.Title != nil && *p.Title != t.Title {
		changes = append(changes, Change{Field: "title", Old: t.Title, New: *p.Title})
		t.Title = *p.Title
	}
	if p.Description != nil && *p.Description != t.Description {
		changes = append(changes, Change{Field: "description", Old: t.Description, New: *p.Description})
		t.Description = *p.Description
	}
	if p.Status != nil && *p.Status != t.Status {
		changes = append(changes, Change{Field: "status", Old: string(t.Status), New: string(*p.Status)})
		t.Status = *p.Status
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		changes = append(changes, Change{Field: "priority", Old: fmt.Sprintf("%d", t.Priority), New: fmt.Sprintf("%d", *p.Priority)})
		t.Priority = *p.Priority
	}
	if p.DueDate != nil && !p.DueDate.Equal(t.DueDate) {
		changes = append(changes, Change{Field: "due_date", Old: formatDue(t.DueDate), New: formatDue(*p.DueDate)})
		t.DueDate = *p.DueDate
	}

	return changes
}

func formatDue(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.UTC().Format(time.RFC3339)
}

// Filter narrows a task listing. Zero values match everything; the filter is
// purely conjunctive and applies no authorization narrowing.
type Filter struct {
	ProjectID  string
	Status     Status
	AssigneeID string
}

// Matches reports whether the task satisfies every set field of the filter.
func (f Filter) Matches(t Task) bool {
	if f.ProjectID != "" && t.ProjectID != f.ProjectID {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.AssigneeID != "" && t.AssigneeID != f.AssigneeID {
		return false
	}
	return true
}
