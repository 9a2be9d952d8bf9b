// Package projects manages project lifecycle, milestones, the activity feed
// and aggregate statistics.
package projects

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/taskforge/taskforge/internal/app/domain/project"
	"github.com/taskforge/taskforge/internal/app/domain/task"
	"github.com/taskforge/taskforge/internal/app/services/memberships"
	"github.com/taskforge/taskforge/internal/app/storage"
	"github.com/taskforge/taskforge/internal/errors"
	"github.com/taskforge/taskforge/pkg/logger"
)

// DefaultActivityLimit caps the activity feed when the caller does not ask
// for a specific window.
const DefaultActivityLimit = 20

// Service owns project records and everything scoped directly under them.
type Service struct {
	tx         storage.Tx
	projects   storage.ProjectStore
	members    storage.MembershipStore
	milestones storage.MilestoneStore
	activities storage.ActivityStore
	tasks      storage.TaskStore
	authz      *memberships.Service
	log        *logger.Logger
}

// New constructs a project service.
func New(tx storage.Tx, projects storage.ProjectStore, members storage.MembershipStore, milestones storage.MilestoneStore, activities storage.ActivityStore, tasks storage.TaskStore, authz *memberships.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("projects")
	}
	return &Service{
		tx:         tx,
		projects:   projects,
		members:    members,
		milestones: milestones,
		activities: activities,
		tasks:      tasks,
		authz:      authz,
		log:        log,
	}
}

// Create inserts the project, the creator's Owner membership and the creation
// activity in one transaction. A project never exists without an owner.
func (s *Service) Create(ctx context.Context, creatorID, name, description string) (project.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return project.Project{}, errors.InvalidInput("project name is required")
	}

	p := project.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      project.StatusActive,
	}

	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.projects.CreateProject(ctx, p)
		if err != nil {
			return errors.Storage("create project", err)
		}
		_, err = s.members.CreateMembership(ctx, project.Membership{
			ProjectID: p.ID,
			UserID:    creatorID,
			Role:      project.RoleOwner,
		})
		if err != nil {
			return errors.Storage("create owner membership", err)
		}
		_, err = s.activities.AppendActivity(ctx, project.Activity{
			ProjectID:   p.ID,
			UserID:      creatorID,
			Description: fmt.Sprintf("Project created: %s", p.Name),
		})
		if err != nil {
			return errors.Storage("append activity", err)
		}
		return nil
	})
	if err != nil {
		return project.Project{}, err
	}

	s.log.WithField("project_id", p.ID).WithField("owner_id", creatorID).Info("project created")
	return p, nil
}

// Get returns the project to any member.
func (s *Service) Get(ctx context.Context, actorID, projectID string) (project.Project, error) {
	if err := s.authz.Require(ctx, actorID, projectID, project.CapView); err != nil {
		return project.Project{}, err
	}
	return s.get(ctx, projectID)
}

func (s *Service) get(ctx context.Context, projectID string) (project.Project, error) {
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return project.Project{}, errors.NotFound("project", projectID)
		}
		return project.Project{}, errors.Storage("get project", err)
	}
	return p, nil
}

// Update edits name, description and status. Archiving goes through Archive,
// not through a status write here.
func (s *Service) Update(ctx context.Context, actorID, projectID string, name, description *string, status *project.Status) (project.Project, error) {
	if err := s.authz.Require(ctx, actorID, projectID, project.CapEdit); err != nil {
		return project.Project{}, err
	}
	p, err := s.get(ctx, projectID)
	if err != nil {
		return project.Project{}, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return project.Project{}, errors.InvalidInput("project name is required")
		}
		p.Name = trimmed
	}
	if description != nil {
		p.Description = *description
	}
	if status != nil {
		if !status.Valid() {
			return project.Project{}, errors.InvalidInput(fmt.Sprintf("invalid project status %q", *status))
		}
		if *status == project.StatusArchived {
			return project.Project{}, errors.InvalidInput("archive a project through the archive operation")
		}
		p.Status = *status
	}

	p, err = s.projects.UpdateProject(ctx, p)
	if err != nil {
		return project.Project{}, errors.Storage("update project", err)
	}
	return p, nil
}

// Archive marks the project archived. Archiving an archived project is a
// no-op that reports success without a second activity entry.
func (s *Service) Archive(ctx context.Context, actorID, projectID string) (project.Project, error) {
	if err := s.authz.Require(ctx, actorID, projectID, project.CapArchive); err != nil {
		return project.Project{}, err
	}
	p, err := s.get(ctx, projectID)
	if err != nil {
		return project.Project{}, err
	}
	if p.Archived() {
		return p, nil
	}

	p.Status = project.StatusArchived
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.projects.UpdateProject(ctx, p)
		if err != nil {
			return errors.Storage("update project", err)
		}
		_, err = s.activities.AppendActivity(ctx, project.Activity{
			ProjectID:   p.ID,
			UserID:      actorID,
			Description: "Project archived",
		})
		if err != nil {
			return errors.Storage("append activity", err)
		}
		return nil
	})
	if err != nil {
		return project.Project{}, err
	}

	s.log.WithField("project_id", p.ID).Info("project archived")
	return p, nil
}

// ListFor returns the projects the user belongs to, newest first.
func (s *Service) ListFor(ctx context.Context, userID string) ([]project.Project, error) {
	list, err := s.projects.ListProjectsForUser(ctx, userID)
	if err != nil {
		return nil, errors.Storage("list projects", err)
	}
	return list, nil
}

// Activities returns the most recent feed entries, newest first. limit <= 0
// falls back to DefaultActivityLimit.
func (s *Service) Activities(ctx context.Context, actorID, projectID string, limit int) ([]project.Activity, error) {
	if err := s.authz.Require(ctx, actorID, projectID, project.CapView); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	acts, err := s.activities.ListActivities(ctx, projectID, limit)
	if err != nil {
		return nil, errors.Storage("list activities", err)
	}
	return acts, nil
}

// Stats aggregates task counts for the project. A project with no tasks
// reports a zero completion rate, not a division error.
func (s *Service) Stats(ctx context.Context, actorID, projectID string) (project.Stats, error) {
	if err := s.authz.Require(ctx, actorID, projectID, project.CapView); err != nil {
		return project.Stats{}, err
	}
	if _, err := s.get(ctx, projectID); err != nil {
		return project.Stats{}, err
	}

	tasks, err := s.tasks.ListTasks(ctx, task.Filter{ProjectID: projectID})
	if err != nil {
		return project.Stats{}, errors.Storage("list tasks", err)
	}

	stats := project.Stats{
		StatusCounts:   make(map[string]int),
		AssigneeCounts: make(map[string]int),
	}
	for _, t := range tasks {
		stats.TotalTasks++
		stats.StatusCounts[string(t.Status)]++
		if t.Completed() {
			stats.CompletedTasks++
		}
		if t.AssigneeID != "" {
			stats.AssigneeCounts[t.AssigneeID]++
		}
	}
	if stats.TotalTasks > 0 {
		stats.CompletionRate = float64(stats.CompletedTasks) / float64(stats.TotalTasks) * 100
	}
	return stats, nil
}

// CreateMilestone adds a milestone. The due date is checked against the
// clock at operation time, never re-checked later.
func (s *Service) CreateMilestone(ctx context.Context, actorID, projectID, title, description string, dueDate time.Time) (project.Milestone, error) {
	if err := s.authz.Require(ctx, actorID, projectID, project.CapEdit); err != nil {
		return project.Milestone{}, err
	}
	if _, err := s.get(ctx, projectID); err != nil {
		return project.Milestone{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return project.Milestone{}, errors.InvalidInput("milestone title is required")
	}
	if dueDate.Before(time.Now().UTC()) {
		return project.Milestone{}, errors.InvalidInput("milestone due date cannot be in the past")
	}

	m, err := s.milestones.CreateMilestone(ctx, project.Milestone{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		DueDate:     dueDate,
	})
	if err != nil {
		return project.Milestone{}, errors.Storage("create milestone", err)
	}
	return m, nil
}

// CompleteMilestone marks a milestone done and records it in the feed.
// Completing a completed milestone is a no-op.
func (s *Service) CompleteMilestone(ctx context.Context, actorID, projectID, milestoneID string) (project.Milestone, error) {
	if err := s.authz.Require(ctx, actorID, projectID, project.CapEdit); err != nil {
		return project.Milestone{}, err
	}
	m, err := s.milestones.GetMilestone(ctx, milestoneID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return project.Milestone{}, errors.NotFound("milestone", milestoneID)
		}
		return project.Milestone{}, errors.Storage("get milestone", err)
	}
	if m.ProjectID != projectID {
		return project.Milestone{}, errors.NotFound("milestone", milestoneID)
	}
	if m.Completed {
		return m, nil
	}

	m.Completed = true
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		m, err = s.milestones.UpdateMilestone(ctx, m)
		if err != nil {
			return errors.Storage("update milestone", err)
		}
		_, err = s.activities.AppendActivity(ctx, project.Activity{
			ProjectID:   projectID,
			UserID:      actorID,
			Description: fmt.Sprintf("Completed milestone: %s", m.Title),
		})
		if err != nil {
			return errors.Storage("append activity", err)
		}
		return nil
	})
	if err != nil {
		return project.Milestone{}, err
	}
	return m, nil
}

// ListMilestones returns the project's milestones.
func (s *Service) ListMilestones(ctx context.Context, actorID, projectID string) ([]project.Milestone, error) {
	if err := s.authz.Require(ctx, actorID, projectID, project.CapView); err != nil {
		return nil, err
	}
	list, err := s.milestones.ListMilestones(ctx, projectID)
	if err != nil {
		return nil, errors.Storage("list milestones", err)
	}
	return list, nil
}
