package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/taskforge/taskforge/internal/app/domain/project"
	"github.com/taskforge/taskforge/internal/app/domain/task"
	"github.com/taskforge/taskforge/internal/app/domain/token"
	"github.com/taskforge/taskforge/internal/app/domain/user"
	"github.com/taskforge/taskforge/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.Tx = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.ProjectStore = (*Store)(nil)
var _ storage.MembershipStore = (*Store)(nil)
var _ storage.MilestoneStore = (*Store)(nil)
var _ storage.ActivityStore = (*Store)(nil)
var _ storage.TaskStore = (*Store)(nil)
var _ storage.CommentStore = (*Store)(nil)
var _ storage.NoteStore = (*Store)(nil)
var _ storage.AttachmentStore = (*Store)(nil)
var _ storage.HistoryStore = (*Store)(nil)
var _ storage.TokenStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type ctxKey struct{}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the transaction bound to ctx, or the root handle.
func (s *Store) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(ctxKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.db
}

// InTx runs fn inside a database transaction. Store calls made with the
// context passed to fn join the transaction; an error or context cancellation
// rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(ctxKey{}).(*sql.Tx); ok {
		// Already inside a transaction; join it.
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, ctxKey{}, tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// mapErr translates driver errors onto the storage sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return storage.ErrDuplicate
	}
	return err
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO tf_users (id, email, display_name, active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, u.ID, u.Email, u.DisplayName, u.Active, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = time.Now().UTC()

	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE tf_users
		SET email = $2, display_name = $3, active = $4, password_hash = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.Email, u.DisplayName, u.Active, u.PasswordHash, u.UpdatedAt)
	if err != nil {
		return user.User{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.scanUser(s.q(ctx).QueryRowContext(ctx, `
		SELECT id, email, display_name, active, password_hash, created_at, updated_at
		FROM tf_users
		WHERE id = $1
	`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return s.scanUser(s.q(ctx).QueryRowContext(ctx, `
		SELECT id, email, display_name, active, password_hash, created_at, updated_at
		FROM tf_users
		WHERE lower(email) = lower($1)
	`, email))
}

func (s *Store) scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Active, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.InTx(ctx, func(ctx context.Context) error {
		q := s.q(ctx)
		// Assignee references go weak; memberships cascade via FK.
		if _, err := q.ExecContext(ctx, `UPDATE tf_tasks SET assignee_id = NULL WHERE assignee_id = $1`, id); err != nil {
			return mapErr(err)
		}
		result, err := q.ExecContext(ctx, `DELETE FROM tf_users WHERE id = $1`, id)
		if err != nil {
			return mapErr(err)
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

// --- ProjectStore -----------------------------------------------------------

func (s *Store) CreateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO tf_projects (id, name, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Name, p.Description, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return project.Project{}, mapErr(err)
	}
	return p, nil
}

func (s *Store) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	p.UpdatedAt = time.Now().UTC()

	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE tf_projects
		SET name = $2, description = $3, status = $4, updated_at = $5
		WHERE id = $1
	`, p.ID, p.Name, p.Description, string(p.Status), p.UpdatedAt)
	if err != nil {
		return project.Project{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return project.Project{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProject(ctx context.Context, id string) (project.Project, error) {
	var p project.Project
	var status string
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, name, description, status, created_at, updated_at
		FROM tf_projects
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Description, &status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return project.Project{}, mapErr(err)
	}
	p.Status = project.Status(status)
	return p, nil
}

func (s *Store) ListProjectsForUser(ctx context.Context, userID string) ([]project.Project, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT p.id, p.name, p.description, p.status, p.created_at, p.updated_at
		FROM tf_projects p
		JOIN tf_memberships m ON m.project_id = p.id
		WHERE m.user_id = $1
		ORDER BY p.created_at DESC
	`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []project.Project
	for rows.Next() {
		var p project.Project
		var status string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		p.Status = project.Status(status)
		result = append(result, p)
	}
	return result, rows.Err()
}

// --- MembershipStore --------------------------------------------------------

func (s *Store) CreateMembership(ctx context.Context, m project.Membership) (project.Membership, error) {
	m.JoinedAt = time.Now().UTC()

	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO tf_memberships (project_id, user_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, m.ProjectID, m.UserID, string(m.Role), m.JoinedAt).Scan(&m.ID)
	if err != nil {
		return project.Membership{}, mapErr(err)
	}
	return m, nil
}

func (s *Store) UpdateMembership(ctx context.Context, m project.Membership) (project.Membership, error) {
	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE tf_memberships
		SET role = $3
		WHERE project_id = $1 AND user_id = $2
	`, m.ProjectID, m.UserID, string(m.Role))
	if err != nil {
		return project.Membership{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return project.Membership{}, storage.ErrNotFound
	}
	return s.GetMembership(ctx, m.ProjectID, m.UserID)
}

func (s *Store) GetMembership(ctx context.Context, projectID, userID string) (project.Membership, error) {
	var m project.Membership
	var role string
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, project_id, user_id, role, joined_at
		FROM tf_memberships
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID).Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.JoinedAt)
	if err != nil {
		return project.Membership{}, mapErr(err)
	}
	m.Role = project.Role(role)
	return m, nil
}

func (s *Store) DeleteMembership(ctx context.Context, projectID, userID string) error {
	result, err := s.q(ctx).ExecContext(ctx, `
		DELETE FROM tf_memberships WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListMemberships(ctx context.Context, projectID string) ([]project.Membership, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, project_id, user_id, role, joined_at
		FROM tf_memberships
		WHERE project_id = $1
		ORDER BY id
	`, projectID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []project.Membership
	for rows.Next() {
		var m project.Membership
		var role string
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &role, &m.JoinedAt); err != nil {
			return nil, mapErr(err)
		}
		m.Role = project.Role(role)
		result = append(result, m)
	}
	return result, rows.Err()
}

func (s *Store) CountMembershipsByRole(ctx context.Context, projectID string, role project.Role) (int, error) {
	var count int
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT count(*) FROM tf_memberships WHERE project_id = $1 AND role = $2
	`, projectID, string(role)).Scan(&count)
	if err != nil {
		return 0, mapErr(err)
	}
	return count, nil
}

// --- MilestoneStore ---------------------------------------------------------

func (s *Store) CreateMilestone(ctx context.Context, m project.Milestone) (project.Milestone, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO tf_milestones (id, project_id, title, description, due_date, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID, m.ProjectID, m.Title, m.Description, m.DueDate, m.Completed, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return project.Milestone{}, mapErr(err)
	}
	return m, nil
}

func (s *Store) UpdateMilestone(ctx context.Context, m project.Milestone) (project.Milestone, error) {
	m.UpdatedAt = time.Now().UTC()

	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE tf_milestones
		SET title = $2, description = $3, due_date = $4, completed = $5, updated_at = $6
		WHERE id = $1
	`, m.ID, m.Title, m.Description, m.DueDate, m.Completed, m.UpdatedAt)
	if err != nil {
		return project.Milestone{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return project.Milestone{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) GetMilestone(ctx context.Context, id string) (project.Milestone, error) {
	var m project.Milestone
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, project_id, title, description, due_date, completed, created_at, updated_at
		FROM tf_milestones
		WHERE id = $1
	`, id).Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.DueDate, &m.Completed, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return project.Milestone{}, mapErr(err)
	}
	return m, nil
}

func (s *Store) ListMilestones(ctx context.Context, projectID string) ([]project.Milestone, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, project_id, title, description, due_date, completed, created_at, updated_at
		FROM tf_milestones
		WHERE project_id = $1
		ORDER BY due_date
	`, projectID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []project.Milestone
	for rows.Next() {
		var m project.Milestone
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title, &m.Description, &m.DueDate, &m.Completed, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// --- ActivityStore ----------------------------------------------------------

func (s *Store) AppendActivity(ctx context.Context, a project.Activity) (project.Activity, error) {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	}

	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO tf_activities (project_id, user_id, description, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, a.ProjectID, a.UserID, a.Description, a.OccurredAt).Scan(&a.ID)
	if err != nil {
		return project.Activity{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) ListActivities(ctx context.Context, projectID string, limit int) ([]project.Activity, error) {
	query := `
		SELECT id, project_id, user_id, description, occurred_at
		FROM tf_activities
		WHERE project_id = $1
		ORDER BY id DESC
	`
	args := []any{projectID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []project.Activity
	for rows.Next() {
		var a project.Activity
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.UserID, &a.Description, &a.OccurredAt); err != nil {
			return nil, mapErr(err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// --- TaskStore --------------------------------------------------------------

func (s *Store) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO tf_tasks (id, title, description, project_id, assignee_id, creator_id, status, priority, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, t.ID, t.Title, t.Description, t.ProjectID, toNullString(t.AssigneeID), t.CreatorID,
		string(t.Status), int(t.Priority), toNullTime(t.DueDate), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return task.Task{}, mapErr(err)
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.UpdatedAt = time.Now().UTC()

	result, err := s.q(ctx).ExecContext(ctx, `
		UPDATE tf_tasks
		SET title = $2, description = $3, assignee_id = $4, status = $5, priority = $6, due_date = $7, updated_at = $8
		WHERE id = $1
	`, t.ID, t.Title, t.Description, toNullString(t.AssigneeID), string(t.Status), int(t.Priority),
		toNullTime(t.DueDate), t.UpdatedAt)
	if err != nil {
		return task.Task{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return task.Task{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (task.Task, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, title, description, project_id, assignee_id, creator_id, status, priority, due_date, created_at, updated_at
		FROM tf_tasks
		WHERE id = $1
	`, id)
	return scanTask(row)
}

func (s *Store) ListTasks(ctx context.Context, filter task.Filter) ([]task.Task, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, title, description, project_id, assignee_id, creator_id, status, priority, due_date, created_at, updated_at
		FROM tf_tasks
		WHERE ($1 = '' OR project_id = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3 = '' OR assignee_id = $3)
		ORDER BY created_at DESC
	`, filter.ProjectID, string(filter.Status), filter.AssigneeID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(scanner rowScanner) (task.Task, error) {
	var (
		t        task.Task
		status   string
		priority int
		assignee sql.NullString
		due      sql.NullTime
	)
	if err := scanner.Scan(&t.ID, &t.Title, &t.Description, &t.ProjectID, &assignee, &t.CreatorID,
		&status, &priority, &due, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return task.Task{}, mapErr(err)
	}
	t.Status = task.Status(status)
	t.Priority = task.Priority(priority)
	if assignee.Valid {
		t.AssigneeID = assignee.String
	}
	if due.Valid {
		t.DueDate = due.Time.UTC()
	}
	return t, nil
}

// --- CommentStore -----------------------------------------------------------

func (s *Store) CreateComment(ctx context.Context, c task.Comment) (task.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO tf_comments (id, task_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, c.ID, c.TaskID, c.AuthorID, c.Content, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return task.Comment{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) ListComments(ctx context.Context, taskID string) ([]task.Comment, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, task_id, author_id, content, created_at, updated_at
		FROM tf_comments
		WHERE task_id = $1
		ORDER BY created_at DESC
	`, taskID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []task.Comment
	for rows.Next() {
		var c task.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, mapErr(err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// --- NoteStore --------------------------------------------------------------

func (s *Store) CreateNote(ctx context.Context, n task.Note) (task.Note, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO tf_task_notes (task_id, user_id, note, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, n.TaskID, n.UserID, n.Note, n.CreatedAt).Scan(&n.ID)
	if err != nil {
		return task.Note{}, mapErr(err)
	}
	return n, nil
}

func (s *Store) ListNotes(ctx context.Context, taskID string) ([]task.Note, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, task_id, user_id, note, created_at
		FROM tf_task_notes
		WHERE task_id = $1
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []task.Note
	for rows.Next() {
		var n task.Note
		if err := rows.Scan(&n.ID, &n.TaskID, &n.UserID, &n.Note, &n.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// --- AttachmentStore --------------------------------------------------------

func (s *Store) CreateAttachment(ctx context.Context, a task.Attachment) (task.Attachment, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO tf_attachments (id, task_id, uploader_id, file_name, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.TaskID, a.UploaderID, a.FileName, a.Reference, a.CreatedAt)
	if err != nil {
		return task.Attachment{}, mapErr(err)
	}
	return a, nil
}

func (s *Store) ListAttachments(ctx context.Context, taskID string) ([]task.Attachment, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, task_id, uploader_id, file_name, reference, created_at
		FROM tf_attachments
		WHERE task_id = $1
		ORDER BY created_at
	`, taskID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []task.Attachment
	for rows.Next() {
		var a task.Attachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.UploaderID, &a.FileName, &a.Reference, &a.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// --- HistoryStore -----------------------------------------------------------

func (s *Store) AppendHistory(ctx context.Context, h task.History) (task.History, error) {
	if h.OccurredAt.IsZero() {
		h.OccurredAt = time.Now().UTC()
	}

	err := s.q(ctx).QueryRowContext(ctx, `
		INSERT INTO tf_history (task_id, user_id, action, occurred_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, h.TaskID, h.UserID, h.Action, h.OccurredAt).Scan(&h.ID)
	if err != nil {
		return task.History{}, mapErr(err)
	}
	return h, nil
}

func (s *Store) ListHistory(ctx context.Context, taskID string) ([]task.History, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, task_id, user_id, action, occurred_at
		FROM tf_history
		WHERE task_id = $1
		ORDER BY id
	`, taskID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []task.History
	for rows.Next() {
		var h task.History
		if err := rows.Scan(&h.ID, &h.TaskID, &h.UserID, &h.Action, &h.OccurredAt); err != nil {
			return nil, mapErr(err)
		}
		result = append(result, h)
	}
	return result, rows.Err()
}

// --- TokenStore -------------------------------------------------------------

func (s *Store) PutIssuance(ctx context.Context, iss token.Issuance) error {
	_, err := s.q(ctx).ExecContext(ctx, `
		INSERT INTO tf_tokens (hash, user_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hash) DO UPDATE SET user_id = $2, issued_at = $3, expires_at = $4
	`, iss.Hash, iss.UserID, iss.IssuedAt, iss.ExpiresAt)
	return mapErr(err)
}

func (s *Store) GetIssuance(ctx context.Context, hash string) (token.Issuance, error) {
	var iss token.Issuance
	err := s.q(ctx).QueryRowContext(ctx, `
		SELECT hash, user_id, issued_at, expires_at
		FROM tf_tokens
		WHERE hash = $1
	`, hash).Scan(&iss.Hash, &iss.UserID, &iss.IssuedAt, &iss.ExpiresAt)
	if err != nil {
		return token.Issuance{}, mapErr(err)
	}
	return iss, nil
}

func (s *Store) DeleteIssuance(ctx context.Context, hash string) error {
	result, err := s.q(ctx).ExecContext(ctx, `DELETE FROM tf_tokens WHERE hash = $1`, hash)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteIssuancesForUser(ctx context.Context, userID string) error {
	_, err := s.q(ctx).ExecContext(ctx, `DELETE FROM tf_tokens WHERE user_id = $1`, userID)
	return mapErr(err)
}

// Helper functions

func toNullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func toNullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
