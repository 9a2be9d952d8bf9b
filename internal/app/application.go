package app

import (
	"context"
	"fmt"
	"time"

	"github.com/taskforge/taskforge/internal/app/metrics"
	authsvc "github.com/taskforge/taskforge/internal/app/services/auth"
	"github.com/taskforge/taskforge/internal/app/services/memberships"
	projectsvc "github.com/taskforge/taskforge/internal/app/services/projects"
	tasksvc "github.com/taskforge/taskforge/internal/app/services/tasks"
	"github.com/taskforge/taskforge/internal/app/storage"
	"github.com/taskforge/taskforge/internal/app/storage/memory"
	"github.com/taskforge/taskforge/internal/app/system"
	"github.com/taskforge/taskforge/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation; a nil Tx defaults to the same backend so audit
// writes stay atomic with the mutations they describe.
type Stores struct {
	Tx          storage.Tx
	Users       storage.UserStore
	Projects    storage.ProjectStore
	Memberships storage.MembershipStore
	Milestones  storage.MilestoneStore
	Activities  storage.ActivityStore
	Tasks       storage.TaskStore
	Comments    storage.CommentStore
	Notes       storage.NoteStore
	Attachments storage.AttachmentStore
	History     storage.HistoryStore
	Tokens      storage.TokenStore
}

// Options tunes application construction.
type Options struct {
	// AuthSecret signs session tokens. Required outside tests.
	AuthSecret []byte
	// TokenTTL overrides the default session lifetime when positive.
	TokenTTL time.Duration
	// SweepInterval controls the overdue task sweep cadence.
	SweepInterval time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Auth        *authsvc.Service
	Memberships *memberships.Service
	Projects    *projectsvc.Service
	Tasks       *tasksvc.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if len(opts.AuthSecret) == 0 {
		return nil, fmt.Errorf("auth secret is required")
	}

	mem := memory.New()
	if stores.Tx == nil {
		stores.Tx = mem
	}
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Projects == nil {
		stores.Projects = mem
	}
	if stores.Memberships == nil {
		stores.Memberships = mem
	}
	if stores.Milestones == nil {
		stores.Milestones = mem
	}
	if stores.Activities == nil {
		stores.Activities = mem
	}
	if stores.Tasks == nil {
		stores.Tasks = mem
	}
	if stores.Comments == nil {
		stores.Comments = mem
	}
	if stores.Notes == nil {
		stores.Notes = mem
	}
	if stores.Attachments == nil {
		stores.Attachments = mem
	}
	if stores.History == nil {
		stores.History = mem
	}
	if stores.Tokens == nil {
		stores.Tokens = mem
	}

	manager := system.NewManager()

	authService := authsvc.New(stores.Users, stores.Tokens, opts.AuthSecret, opts.TokenTTL, log)
	membershipService := memberships.New(stores.Tx, stores.Memberships, stores.Users, stores.Activities, log)
	projectService := projectsvc.New(stores.Tx, stores.Projects, stores.Memberships, stores.Milestones, stores.Activities, stores.Tasks, membershipService, log)
	taskService := tasksvc.New(stores.Tx, stores.Tasks, stores.Comments, stores.Notes, stores.Attachments, stores.History, stores.Projects, membershipService, log)

	for _, name := range []string{"auth", "memberships", "projects", "tasks"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	sweeper := tasksvc.NewSweeper(taskService, opts.SweepInterval, metrics.SetOverdueTasks, log)
	if err := manager.Register(sweeper); err != nil {
		return nil, fmt.Errorf("register %s: %w", sweeper.Name(), err)
	}

	return &Application{
		manager:     manager,
		log:         log,
		Auth:        authService,
		Memberships: membershipService,
		Projects:    projectService,
		Tasks:       taskService,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
