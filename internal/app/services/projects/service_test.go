package projects

import (
	"context"
	"testing"
	"time"

	"github.com/taskforge/taskforge/internal/app/domain/project"
	"github.com/taskforge/taskforge/internal/app/domain/task"
	"github.com/taskforge/taskforge/internal/app/domain/user"
	"github.com/taskforge/taskforge/internal/app/services/memberships"
	"github.com/taskforge/taskforge/internal/app/storage/memory"
	"github.com/taskforge/taskforge/internal/errors"
)

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	authz := memberships.New(store, store, store, store, nil)
	return New(store, store, store, store, store, store, authz, nil), store
}

func seedUsers(t *testing.T, store *memory.Store) (owner, viewer, outsider user.User) {
	t.Helper()
	ctx := context.Background()
	var err error
	owner, err = store.CreateUser(ctx, user.User{Email: "owner@example.com", Active: true})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	viewer, err = store.CreateUser(ctx, user.User{Email: "viewer@example.com", Active: true})
	if err != nil {
		t.Fatalf("create viewer: %v", err)
	}
	outsider, err = store.CreateUser(ctx, user.User{Email: "outsider@example.com", Active: true})
	if err != nil {
		t.Fatalf("create outsider: %v", err)
	}
	return owner, viewer, outsider
}

func TestCreateBootstrapsOwnership(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner, _, _ := seedUsers(t, store)

	p, err := svc.Create(ctx, owner.ID, "  Launch  ", "ship it")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Name != "Launch" {
		t.Fatalf("expected trimmed name, got %q", p.Name)
	}
	if p.Status != project.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", p.Status)
	}

	m, err := store.GetMembership(ctx, p.ID, owner.ID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m.Role != project.RoleOwner {
		t.Fatalf("creator is %s, want OWNER", m.Role)
	}

	acts, err := store.ListActivities(ctx, p.ID, 10)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(acts) != 1 || acts[0].Description != "Project created: Launch" {
		t.Fatalf("unexpected activities: %+v", acts)
	}

	if _, err := svc.Create(ctx, owner.ID, "   ", ""); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for blank name, got %v", err)
	}
}

func TestGetAndUpdateAuthorization(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner, viewer, outsider := seedUsers(t, store)

	p, err := svc.Create(ctx, owner.ID, "Launch", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateMembership(ctx, project.Membership{ProjectID: p.ID, UserID: viewer.ID, Role: project.RoleViewer}); err != nil {
		t.Fatalf("add viewer: %v", err)
	}

	if _, err := svc.Get(ctx, viewer.ID, p.ID); err != nil {
		t.Fatalf("viewer get: %v", err)
	}
	if _, err := svc.Get(ctx, outsider.ID, p.ID); !errors.IsCode(err, errors.CodeNotAMember) {
		t.Fatalf("expected NOT_A_MEMBER for outsider, got %v", err)
	}

	name := "Relaunch"
	if _, err := svc.Update(ctx, viewer.ID, p.ID, &name, nil, nil); !errors.IsCode(err, errors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for viewer update, got %v", err)
	}

	bad := project.Status("SHELVED")
	if _, err := svc.Update(ctx, owner.ID, p.ID, nil, nil, &bad); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for bad status, got %v", err)
	}
	archived := project.StatusArchived
	if _, err := svc.Update(ctx, owner.ID, p.ID, nil, nil, &archived); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for status write to ARCHIVED, got %v", err)
	}

	hold := project.StatusOnHold
	updated, err := svc.Update(ctx, owner.ID, p.ID, &name, nil, &hold)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Relaunch" || updated.Status != project.StatusOnHold {
		t.Fatalf("unexpected project after update: %+v", updated)
	}
}

func TestArchiveIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner, viewer, _ := seedUsers(t, store)

	p, err := svc.Create(ctx, owner.ID, "Launch", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateMembership(ctx, project.Membership{ProjectID: p.ID, UserID: viewer.ID, Role: project.RoleAdmin}); err != nil {
		t.Fatalf("add admin: %v", err)
	}

	// Archive requires Owner, Admin is not enough.
	if _, err := svc.Archive(ctx, viewer.ID, p.ID); !errors.IsCode(err, errors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for admin archive, got %v", err)
	}

	archived, err := svc.Archive(ctx, owner.ID, p.ID)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if !archived.Archived() {
		t.Fatalf("project not archived: %+v", archived)
	}

	again, err := svc.Archive(ctx, owner.ID, p.ID)
	if err != nil {
		t.Fatalf("second archive: %v", err)
	}
	if !again.Archived() {
		t.Fatalf("idempotent archive lost state")
	}

	acts, _ := store.ListActivities(ctx, p.ID, 10)
	archives := 0
	for _, a := range acts {
		if a.Description == "Project archived" {
			archives++
		}
	}
	if archives != 1 {
		t.Fatalf("expected exactly one archive activity, got %d", archives)
	}
}

func TestStatsDistribution(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner, viewer, _ := seedUsers(t, store)

	p, err := svc.Create(ctx, owner.ID, "Launch", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stats, err := svc.Stats(ctx, owner.ID, p.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTasks != 0 || stats.CompletionRate != 0 {
		t.Fatalf("expected zero stats for empty project, got %+v", stats)
	}

	for _, seed := range []task.Task{
		{ProjectID: p.ID, Title: "a", Status: task.StatusDone, Priority: task.PriorityMedium, AssigneeID: viewer.ID},
		{ProjectID: p.ID, Title: "b", Status: task.StatusDone, Priority: task.PriorityMedium, AssigneeID: viewer.ID},
		{ProjectID: p.ID, Title: "c", Status: task.StatusTodo, Priority: task.PriorityMedium},
		{ProjectID: p.ID, Title: "d", Status: task.StatusInProgress, Priority: task.PriorityMedium, AssigneeID: owner.ID},
	} {
		if _, err := store.CreateTask(ctx, seed); err != nil {
			t.Fatalf("seed task: %v", err)
		}
	}

	stats, err = svc.Stats(ctx, owner.ID, p.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalTasks != 4 || stats.CompletedTasks != 2 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.CompletionRate != 50 {
		t.Fatalf("expected 50%% completion, got %v", stats.CompletionRate)
	}
	if stats.StatusCounts["DONE"] != 2 || stats.StatusCounts["TODO"] != 1 || stats.StatusCounts["IN_PROGRESS"] != 1 {
		t.Fatalf("unexpected status counts: %+v", stats.StatusCounts)
	}
	if stats.AssigneeCounts[viewer.ID] != 2 || stats.AssigneeCounts[owner.ID] != 1 {
		t.Fatalf("unexpected assignee counts: %+v", stats.AssigneeCounts)
	}
}

func TestListForOrdersNewestFirst(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner, _, _ := seedUsers(t, store)

	first, err := svc.Create(ctx, owner.ID, "First", "")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := svc.Create(ctx, owner.ID, "Second", "")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}

	list, err := svc.ListFor(ctx, owner.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestMilestones(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()
	owner, _, _ := seedUsers(t, store)

	p, err := svc.Create(ctx, owner.ID, "Launch", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.CreateMilestone(ctx, owner.ID, p.ID, "Beta", "", time.Now().Add(-time.Hour)); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT for past due date, got %v", err)
	}

	m, err := svc.CreateMilestone(ctx, owner.ID, p.ID, "Beta", "feature freeze", time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("create milestone: %v", err)
	}
	if m.Completed {
		t.Fatalf("new milestone already completed")
	}

	done, err := svc.CompleteMilestone(ctx, owner.ID, p.ID, m.ID)
	if err != nil {
		t.Fatalf("complete milestone: %v", err)
	}
	if !done.Completed {
		t.Fatalf("milestone not completed")
	}
	// Completing twice stays successful and silent.
	if _, err := svc.CompleteMilestone(ctx, owner.ID, p.ID, m.ID); err != nil {
		t.Fatalf("second complete: %v", err)
	}

	acts, _ := store.ListActivities(ctx, p.ID, 10)
	completions := 0
	for _, a := range acts {
		if a.Description == "Completed milestone: Beta" {
			completions++
		}
	}
	if completions != 1 {
		t.Fatalf("expected one completion activity, got %d", completions)
	}

	list, err := svc.ListMilestones(ctx, owner.ID, p.ID)
	if err != nil {
		t.Fatalf("list milestones: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 milestone, got %d", len(list))
	}
}
