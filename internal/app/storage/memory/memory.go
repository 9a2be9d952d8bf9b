package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/app/domain/project"
	"github.com/taskforge/taskforge/internal/app/domain/task"
	"github.com/taskforge/taskforge/internal/app/domain/token"
	"github.com/taskforge/taskforge/internal/app/domain/user"
	"github.com/taskforge/taskforge/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. Transactions serialize against each other; partial rollback is
// not simulated.
type Store struct {
	mu          sync.RWMutex
	txMu        sync.Mutex
	nextID      int64
	users       map[string]user.User
	projects    map[string]project.Project
	memberships map[string]project.Membership // key: projectID + "/" + userID
	milestones  map[string]project.Milestone
	activities  map[string][]project.Activity
	tasks       map[string]task.Task
	comments    map[string][]task.Comment
	notes       map[string][]task.Note
	attachments map[string][]task.Attachment
	history     map[string][]task.History
	issuances   map[string]token.Issuance
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

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		users:       make(map[string]user.User),
		projects:    make(map[string]project.Project),
		memberships: make(map[string]project.Membership),
		milestones:  make(map[string]project.Milestone),
		activities:  make(map[string][]project.Activity),
		tasks:       make(map[string]task.Task),
		comments:    make(map[string][]task.Comment),
		notes:       make(map[string][]task.Note),
		attachments: make(map[string][]task.Attachment),
		history:     make(map[string][]task.History),
		issuances:   make(map[string]token.Issuance),
	}
}

func (s *Store) nextIDLocked() int64 {
	id := s.nextID
	s.nextID++
	return id
}

func membershipKey(projectID, userID string) string {
	return projectID + "/" + userID
}

// InTx serializes multi-step writes. The memory store applies each write
// immediately, so fn observes its own effects; concurrent transactions never
// interleave.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	} else if _, exists := s.users[u.ID]; exists {
		return user.User{}, storage.ErrDuplicate
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return user.User{}, storage.ErrDuplicate
		}
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UpdateUser(_ context.Context, u user.User) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.users[u.ID]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}

	u.CreatedAt = original.CreatedAt
	u.UpdatedAt = time.Now().UTC()

	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return user.User{}, storage.ErrNotFound
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.users, id)

	// Memberships cascade with the user; assignee references go weak.
	for key, m := range s.memberships {
		if m.UserID == id {
			delete(s.memberships, key)
		}
	}
	for tid, t := range s.tasks {
		if t.AssigneeID == id {
			t.AssigneeID = ""
			s.tasks[tid] = t
		}
	}
	for tid, notes := range s.notes {
		kept := notes[:0]
		for _, n := range notes {
			if n.UserID != id {
				kept = append(kept, n)
			}
		}
		s.notes[tid] = kept
	}
	return nil
}

// ProjectStore implementation -------------------------------------------------

func (s *Store) CreateProject(_ context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, exists := s.projects[p.ID]; exists {
		return project.Project{}, storage.ErrDuplicate
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.projects[p.ID] = p
	return p, nil
}

func (s *Store) UpdateProject(_ context.Context, p project.Project) (project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.projects[p.ID]
	if !ok {
		return project.Project{}, storage.ErrNotFound
	}

	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.projects[p.ID] = p
	return p, nil
}

func (s *Store) GetProject(_ context.Context, id string) (project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return project.Project{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProjectsForUser(_ context.Context, userID string) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]project.Project, 0)
	for _, m := range s.memberships {
		if m.UserID != userID {
			continue
		}
		if p, ok := s.projects[m.ProjectID]; ok {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// MembershipStore implementation ----------------------------------------------

func (s *Store) CreateMembership(_ context.Context, m project.Membership) (project.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey(m.ProjectID, m.UserID)
	if _, exists := s.memberships[key]; exists {
		return project.Membership{}, storage.ErrDuplicate
	}

	m.ID = s.nextIDLocked()
	m.JoinedAt = time.Now().UTC()

	s.memberships[key] = m
	return m, nil
}

func (s *Store) UpdateMembership(_ context.Context, m project.Membership) (project.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey(m.ProjectID, m.UserID)
	original, ok := s.memberships[key]
	if !ok {
		return project.Membership{}, storage.ErrNotFound
	}

	m.ID = original.ID
	m.JoinedAt = original.JoinedAt

	s.memberships[key] = m
	return m, nil
}

func (s *Store) GetMembership(_ context.Context, projectID, userID string) (project.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memberships[membershipKey(projectID, userID)]
	if !ok {
		return project.Membership{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) DeleteMembership(_ context.Context, projectID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := membershipKey(projectID, userID)
	if _, ok := s.memberships[key]; !ok {
		return storage.ErrNotFound
	}
	delete(s.memberships, key)
	return nil
}

func (s *Store) ListMemberships(_ context.Context, projectID string) ([]project.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]project.Membership, 0)
	for _, m := range s.memberships {
		if m.ProjectID == projectID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (s *Store) CountMembershipsByRole(_ context.Context, projectID string, role project.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, m := range s.memberships {
		if m.ProjectID == projectID && m.Role == role {
			count++
		}
	}
	return count, nil
}

// MilestoneStore implementation -----------------------------------------------

func (s *Store) CreateMilestone(_ context.Context, m project.Milestone) (project.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	} else if _, exists := s.milestones[m.ID]; exists {
		return project.Milestone{}, storage.ErrDuplicate
	}

	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	s.milestones[m.ID] = m
	return m, nil
}

func (s *Store) UpdateMilestone(_ context.Context, m project.Milestone) (project.Milestone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.milestones[m.ID]
	if !ok {
		return project.Milestone{}, storage.ErrNotFound
	}

	m.CreatedAt = original.CreatedAt
	m.UpdatedAt = time.Now().UTC()

	s.milestones[m.ID] = m
	return m, nil
}

func (s *Store) GetMilestone(_ context.Context, id string) (project.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.milestones[id]
	if !ok {
		return project.Milestone{}, storage.ErrNotFound
	}
	return m, nil
}

func (s *Store) ListMilestones(_ context.Context, projectID string) ([]project.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]project.Milestone, 0)
	for _, m := range s.milestones {
		if m.ProjectID == projectID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DueDate.Before(result[j].DueDate)
	})
	return result, nil
}

// ActivityStore implementation ------------------------------------------------

func (s *Store) AppendActivity(_ context.Context, a project.Activity) (project.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a.ID = s.nextIDLocked()
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	}

	s.activities[a.ProjectID] = append(s.activities[a.ProjectID], a)
	return a, nil
}

func (s *Store) ListActivities(_ context.Context, projectID string, limit int) ([]project.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.activities[projectID]
	result := make([]project.Activity, len(entries))
	copy(result, entries)
	// Newest first.
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// TaskStore implementation ----------------------------------------------------

func (s *Store) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	} else if _, exists := s.tasks[t.ID]; exists {
		return task.Task{}, storage.ErrDuplicate
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.tasks[t.ID]
	if !ok {
		return task.Task{}, storage.ErrNotFound
	}

	t.CreatedAt = original.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	s.tasks[t.ID] = t
	return t, nil
}

func (s *Store) GetTask(_ context.Context, id string) (task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return task.Task{}, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTasks(_ context.Context, filter task.Filter) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]task.Task, 0)
	for _, t := range s.tasks {
		if filter.Matches(t) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CommentStore implementation -------------------------------------------------

func (s *Store) CreateComment(_ context.Context, c task.Comment) (task.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[c.TaskID]; !ok {
		return task.Comment{}, storage.ErrNotFound
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	s.comments[c.TaskID] = append(s.comments[c.TaskID], c)
	return c, nil
}

func (s *Store) ListComments(_ context.Context, taskID string) ([]task.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.comments[taskID]
	result := make([]task.Comment, len(entries))
	copy(result, entries)
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// NoteStore implementation ----------------------------------------------------

func (s *Store) CreateNote(_ context.Context, n task.Note) (task.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[n.TaskID]; !ok {
		return task.Note{}, storage.ErrNotFound
	}

	n.ID = s.nextIDLocked()
	n.CreatedAt = time.Now().UTC()

	s.notes[n.TaskID] = append(s.notes[n.TaskID], n)
	return n, nil
}

func (s *Store) ListNotes(_ context.Context, taskID string) ([]task.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.notes[taskID]
	result := make([]task.Note, len(entries))
	copy(result, entries)
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// AttachmentStore implementation ----------------------------------------------

func (s *Store) CreateAttachment(_ context.Context, a task.Attachment) (task.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[a.TaskID]; !ok {
		return task.Attachment{}, storage.ErrNotFound
	}

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = time.Now().UTC()

	s.attachments[a.TaskID] = append(s.attachments[a.TaskID], a)
	return a, nil
}

func (s *Store) ListAttachments(_ context.Context, taskID string) ([]task.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.attachments[taskID]
	result := make([]task.Attachment, len(entries))
	copy(result, entries)
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// HistoryStore implementation -------------------------------------------------

func (s *Store) AppendHistory(_ context.Context, h task.History) (task.History, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h.ID = s.nextIDLocked()
	if h.OccurredAt.IsZero() {
		h.OccurredAt = time.Now().UTC()
	}

	s.history[h.TaskID] = append(s.history[h.TaskID], h)
	return h, nil
}

func (s *Store) ListHistory(_ context.Context, taskID string) ([]task.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[taskID]
	result := make([]task.History, len(entries))
	copy(result, entries)
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// TokenStore implementation ---------------------------------------------------

func (s *Store) PutIssuance(_ context.Context, iss token.Issuance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issuances[iss.Hash] = iss
	return nil
}

func (s *Store) GetIssuance(_ context.Context, hash string) (token.Issuance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	iss, ok := s.issuances[hash]
	if !ok {
		return token.Issuance{}, storage.ErrNotFound
	}
	return iss, nil
}

func (s *Store) DeleteIssuance(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issuances[hash]; !ok {
		return storage.ErrNotFound
	}
	delete(s.issuances, hash)
	return nil
}

func (s *Store) DeleteIssuancesForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for hash, iss := range s.issuances {
		if iss.UserID == userID {
			delete(s.issuances, hash)
		}
	}
	return nil
}
