// Package tasks manages task lifecycle, comments and the per-task history
// trail.
package tasks

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/app/domain/project"
	"github.com/taskforge/taskforge/internal/app/domain/task"
	"github.com/taskforge/taskforge/internal/app/services/memberships"
	"github.com/taskforge/taskforge/internal/app/storage"
	"github.com/taskforge/taskforge/internal/errors"
	"github.com/taskforge/taskforge/pkg/logger"
)

// commentPreviewLen caps the comment excerpt embedded in history entries.
const commentPreviewLen = 50

// Service owns task records and everything attached to them.
type Service struct {
	tx          storage.Tx
	tasks       storage.TaskStore
	comments    storage.CommentStore
	notes       storage.NoteStore
	attachments storage.AttachmentStore
	history     storage.HistoryStore
	projects    storage.ProjectStore
	authz       *memberships.Service
	log         *logger.Logger
}

// New constructs a task service.
func New(tx storage.Tx, tasks storage.TaskStore, comments storage.CommentStore, notes storage.NoteStore, attachments storage.AttachmentStore, history storage.HistoryStore, projects storage.ProjectStore, authz *memberships.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("tasks")
	}
	return &Service{
		tx:          tx,
		tasks:       tasks,
		comments:    comments,
		notes:       notes,
		attachments: attachments,
		history:     history,
		projects:    projects,
		authz:       authz,
		log:         log,
	}
}

// Create inserts a task with its creation history entry. The creator must be
// a member of the target project; status and priority default to TODO and
// medium when unset.
func (s *Service) Create(ctx context.Context, creatorID string, t task.Task) (task.Task, error) {
	if err := s.authz.Require(ctx, creatorID, t.ProjectID, project.CapEdit); err != nil {
		return task.Task{}, err
	}
	if _, err := s.projects.GetProject(ctx, t.ProjectID); err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return task.Task{}, errors.NotFound("project", t.ProjectID)
		}
		return task.Task{}, errors.Storage("get project", err)
	}

	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return task.Task{}, errors.InvalidInput("task title is required")
	}
	if t.Status == "" {
		t.Status = task.StatusTodo
	}
	if !t.Status.Valid() {
		return task.Task{}, errors.InvalidInput(fmt.Sprintf("invalid task status %q", t.Status))
	}
	if t.Priority == 0 {
		t.Priority = task.PriorityMedium
	}
	if !t.Priority.Valid() {
		return task.Task{}, errors.InvalidInput(fmt.Sprintf("priority %d out of range", t.Priority))
	}
	if t.AssigneeID != "" {
		ok, err := s.authz.IsMember(ctx, t.AssigneeID, t.ProjectID)
		if err != nil {
			return task.Task{}, err
		}
		if !ok {
			return task.Task{}, errors.InvalidInput("assignee must be a member of the project")
		}
	}

	t.ID = uuid.NewString()
	t.CreatorID = creatorID

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.tasks.CreateTask(ctx, t)
		if err != nil {
			return errors.Storage("create task", err)
		}
		_, err = s.history.AppendHistory(ctx, task.History{
			TaskID: t.ID,
			UserID: creatorID,
			Action: fmt.Sprintf("Created task: %s", t.Title),
		})
		if err != nil {
			return errors.Storage("append history", err)
		}
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}

	s.log.WithField("task_id", t.ID).WithField("project_id", t.ProjectID).Info("task created")
	return t, nil
}

// Get returns the task to any member of its project.
func (s *Service) Get(ctx context.Context, actorID, taskID string) (task.Task, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if err := s.authz.Require(ctx, actorID, t.ProjectID, project.CapView); err != nil {
		return task.Task{}, err
	}
	return t, nil
}

func (s *Service) load(ctx context.Context, taskID string) (task.Task, error) {
	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return task.Task{}, errors.NotFound("task", taskID)
		}
		return task.Task{}, errors.Storage("get task", err)
	}
	return t, nil
}

// Update applies the patch and writes one history entry summarizing every
// changed field. A patch that changes nothing writes no history at all.
func (s *Service) Update(ctx context.Context, actorID, taskID string, p task.Patch) (task.Task, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if err := s.authz.Require(ctx, actorID, t.ProjectID, project.CapEdit); err != nil {
		return task.Task{}, err
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return task.Task{}, errors.InvalidInput("task title is required")
	}
	if p.Status != nil && !p.Status.Valid() {
		return task.Task{}, errors.InvalidInput(fmt.Sprintf("invalid task status %q", *p.Status))
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return task.Task{}, errors.InvalidInput(fmt.Sprintf("priority %d out of range", *p.Priority))
	}

	changes := p.Apply(&t)
	if len(changes) == 0 {
		return t, nil
	}

	summaries := make([]string, 0, len(changes))
	for _, c := range changes {
		summaries = append(summaries, fmt.Sprintf("%s: %s -> %s", c.Field, c.Old, c.New))
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.tasks.UpdateTask(ctx, t)
		if err != nil {
			return errors.Storage("update task", err)
		}
		_, err = s.history.AppendHistory(ctx, task.History{
			TaskID: t.ID,
			UserID: actorID,
			Action: fmt.Sprintf("Updated %s", strings.Join(summaries, ", ")),
		})
		if err != nil {
			return errors.Storage("append history", err)
		}
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// Assign sets the assignee. The assignee must hold a membership in the
// task's project; an empty assignee clears the field.
func (s *Service) Assign(ctx context.Context, actorID, taskID, assigneeID string) (task.Task, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if err := s.authz.Require(ctx, actorID, t.ProjectID, project.CapEdit); err != nil {
		return task.Task{}, err
	}
	if assigneeID != "" {
		ok, err := s.authz.IsMember(ctx, assigneeID, t.ProjectID)
		if err != nil {
			return task.Task{}, err
		}
		if !ok {
			return task.Task{}, errors.InvalidInput("assignee must be a member of the project")
		}
	}
	if t.AssigneeID == assigneeID {
		return t, nil
	}

	t.AssigneeID = assigneeID
	action := fmt.Sprintf("Assigned task to user %s", assigneeID)
	if assigneeID == "" {
		action = "Unassigned task"
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.tasks.UpdateTask(ctx, t)
		if err != nil {
			return errors.Storage("update task", err)
		}
		_, err = s.history.AppendHistory(ctx, task.History{
			TaskID: t.ID,
			UserID: actorID,
			Action: action,
		})
		if err != nil {
			return errors.Storage("append history", err)
		}
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// MarkComplete moves the task to DONE. Only the first transition writes a
// history entry; repeating the call succeeds silently.
func (s *Service) MarkComplete(ctx context.Context, actorID, taskID string) (task.Task, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return task.Task{}, err
	}
	if err := s.authz.Require(ctx, actorID, t.ProjectID, project.CapEdit); err != nil {
		return task.Task{}, err
	}
	if t.Completed() {
		return t, nil
	}

	t.Status = task.StatusDone
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.tasks.UpdateTask(ctx, t)
		if err != nil {
			return errors.Storage("update task", err)
		}
		_, err = s.history.AppendHistory(ctx, task.History{
			TaskID: t.ID,
			UserID: actorID,
			Action: "Marked task as complete",
		})
		if err != nil {
			return errors.Storage("append history", err)
		}
		return nil
	})
	if err != nil {
		return task.Task{}, err
	}
	return t, nil
}

// AddComment attaches a comment and records a history entry carrying a
// truncated preview of the content.
func (s *Service) AddComment(ctx context.Context, authorID, taskID, content string) (task.Comment, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return task.Comment{}, err
	}
	if err := s.authz.Require(ctx, authorID, t.ProjectID, project.CapEdit); err != nil {
		return task.Comment{}, err
	}
	content = strings.TrimSpace(content)
	if len(content) < 2 {
		return task.Comment{}, errors.InvalidInput("comment must be at least 2 characters")
	}

	c := task.Comment{
		ID:       uuid.NewString(),
		TaskID:   taskID,
		AuthorID: authorID,
		Content:  content,
	}

	preview := content
	if len(preview) > commentPreviewLen {
		// Cut on a rune boundary so multibyte content stays valid.
		cut := commentPreviewLen
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.comments.CreateComment(ctx, c)
		if err != nil {
			return errors.Storage("create comment", err)
		}
		_, err = s.history.AppendHistory(ctx, task.History{
			TaskID: taskID,
			UserID: authorID,
			Action: fmt.Sprintf("Commented: %s", preview),
		})
		if err != nil {
			return errors.Storage("append history", err)
		}
		return nil
	})
	if err != nil {
		return task.Comment{}, err
	}
	return c, nil
}

// ListComments returns a task's comments in creation order.
func (s *Service) ListComments(ctx context.Context, actorID, taskID string) ([]task.Comment, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, actorID, t.ProjectID, project.CapView); err != nil {
		return nil, err
	}
	comments, err := s.comments.ListComments(ctx, taskID)
	if err != nil {
		return nil, errors.Storage("list comments", err)
	}
	return comments, nil
}

// AddNote attaches a note to a task. Notes are annotations, not audited
// mutations: no history entry is written.
func (s *Service) AddNote(ctx context.Context, authorID, taskID, content string) (task.Note, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return task.Note{}, err
	}
	if err := s.authz.Require(ctx, authorID, t.ProjectID, project.CapEdit); err != nil {
		return task.Note{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return task.Note{}, errors.InvalidInput("note must not be empty")
	}

	n, err := s.notes.CreateNote(ctx, task.Note{TaskID: taskID, UserID: authorID, Note: content})
	if err != nil {
		return task.Note{}, errors.Storage("create note", err)
	}
	return n, nil
}

// ListNotes returns a task's notes in creation order.
func (s *Service) ListNotes(ctx context.Context, actorID, taskID string) ([]task.Note, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, actorID, t.ProjectID, project.CapView); err != nil {
		return nil, err
	}
	notes, err := s.notes.ListNotes(ctx, taskID)
	if err != nil {
		return nil, errors.Storage("list notes", err)
	}
	return notes, nil
}

// AddAttachment records a reference to a file stored elsewhere. The file name
// and the reference locator are both required; contents never pass through
// the service. The attachment is journaled in the task history alongside the
// record itself.
func (s *Service) AddAttachment(ctx context.Context, uploaderID, taskID, fileName, reference string) (task.Attachment, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return task.Attachment{}, err
	}
	if err := s.authz.Require(ctx, uploaderID, t.ProjectID, project.CapEdit); err != nil {
		return task.Attachment{}, err
	}
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return task.Attachment{}, errors.InvalidInput("attachment file name is required")
	}
	if strings.TrimSpace(reference) == "" {
		return task.Attachment{}, errors.InvalidInput("attachment reference is required")
	}

	a := task.Attachment{
		ID:         uuid.NewString(),
		TaskID:     taskID,
		UploaderID: uploaderID,
		FileName:   fileName,
		Reference:  reference,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.attachments.CreateAttachment(ctx, a)
		if err != nil {
			return errors.Storage("create attachment", err)
		}
		_, err = s.history.AppendHistory(ctx, task.History{
			TaskID: taskID,
			UserID: uploaderID,
			Action: fmt.Sprintf("Attached file: %s", fileName),
		})
		if err != nil {
			return errors.Storage("append history", err)
		}
		return nil
	})
	if err != nil {
		return task.Attachment{}, err
	}
	return a, nil
}

// ListAttachments returns a task's attachment records, oldest first.
func (s *Service) ListAttachments(ctx context.Context, actorID, taskID string) ([]task.Attachment, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, actorID, t.ProjectID, project.CapView); err != nil {
		return nil, err
	}
	attachments, err := s.attachments.ListAttachments(ctx, taskID)
	if err != nil {
		return nil, errors.Storage("list attachments", err)
	}
	return attachments, nil
}

// List returns the tasks matching the filter. Conditions combine
// conjunctively. A project filter is gated on membership; without one the
// results are restricted to the actor's own projects.
func (s *Service) List(ctx context.Context, actorID string, f task.Filter) ([]task.Task, error) {
	if f.ProjectID != "" {
		if err := s.authz.Require(ctx, actorID, f.ProjectID, project.CapView); err != nil {
			return nil, err
		}
	}
	tasks, err := s.tasks.ListTasks(ctx, f)
	if err != nil {
		return nil, errors.Storage("list tasks", err)
	}
	if f.ProjectID == "" {
		projects, err := s.projects.ListProjectsForUser(ctx, actorID)
		if err != nil {
			return nil, errors.Storage("list projects", err)
		}
		visible := make(map[string]bool, len(projects))
		for _, p := range projects {
			visible[p.ID] = true
		}
		scoped := tasks[:0]
		for _, t := range tasks {
			if visible[t.ProjectID] {
				scoped = append(scoped, t)
			}
		}
		tasks = scoped
	}
	return tasks, nil
}

// History returns the task's audit trail, oldest first.
func (s *Service) History(ctx context.Context, actorID, taskID string) ([]task.History, error) {
	t, err := s.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, actorID, t.ProjectID, project.CapView); err != nil {
		return nil, err
	}
	entries, err := s.history.ListHistory(ctx, taskID)
	if err != nil {
		return nil, errors.Storage("list history", err)
	}
	return entries, nil
}

// OverdueScan counts open tasks past their due date, grouped by project.
func (s *Service) OverdueScan(ctx context.Context, now time.Time) (map[string]int, error) {
	tasks, err := s.tasks.ListTasks(ctx, task.Filter{})
	if err != nil {
		return nil, errors.Storage("list tasks", err)
	}
	counts := make(map[string]int)
	for _, t := range tasks {
		if t.Overdue(now) {
			counts[t.ProjectID]++
		}
	}
	return counts, nil
}
