package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/taskforge/taskforge/internal/app/domain/project"
	"github.com/taskforge/taskforge/internal/app/domain/task"
	"github.com/taskforge/taskforge/internal/app/domain/token"
	"github.com/taskforge/taskforge/internal/app/domain/user"
	"github.com/taskforge/taskforge/internal/app/storage"
)

func TestUserEmailUniqueness(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateUser(ctx, user.User{Email: "a@example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.CreateUser(ctx, user.User{Email: "A@Example.COM"}); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for case-folded email, got %v", err)
	}
	if _, err := store.GetUserByEmail(ctx, "a@example.com"); err != nil {
		t.Fatalf("get by email: %v", err)
	}
}

func TestMembershipUniquenessAndSequentialIDs(t *testing.T) {
	store := New()
	ctx := context.Background()

	m1, err := store.CreateMembership(ctx, project.Membership{ProjectID: "p", UserID: "u1", Role: project.RoleOwner})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	m2, err := store.CreateMembership(ctx, project.Membership{ProjectID: "p", UserID: "u2", Role: project.RoleMember})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if m2.ID <= m1.ID {
		t.Fatalf("ids not increasing: %d then %d", m1.ID, m2.ID)
	}
	if _, err := store.CreateMembership(ctx, project.Membership{ProjectID: "p", UserID: "u1", Role: project.RoleAdmin}); !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	owners, err := store.CountMembershipsByRole(ctx, "p", project.RoleOwner)
	if err != nil || owners != 1 {
		t.Fatalf("count owners: %d, %v", owners, err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	store := New()
	ctx := context.Background()

	u, err := store.CreateUser(ctx, user.User{Email: "x@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	p, err := store.CreateProject(ctx, project.Project{Name: "p", Status: project.StatusActive})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := store.CreateMembership(ctx, project.Membership{ProjectID: p.ID, UserID: u.ID, Role: project.RoleOwner}); err != nil {
		t.Fatalf("create membership: %v", err)
	}
	created, err := store.CreateTask(ctx, task.Task{ProjectID: p.ID, Title: "t", Status: task.StatusTodo, Priority: task.PriorityLow, AssigneeID: u.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if _, err := store.CreateNote(ctx, task.Note{TaskID: created.ID, UserID: u.ID, Note: "mine"}); err != nil {
		t.Fatalf("create note: %v", err)
	}

	if err := store.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if _, err := store.GetMembership(ctx, p.ID, u.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("membership survived: %v", err)
	}
	got, err := store.GetTask(ctx, created.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.AssigneeID != "" {
		t.Fatalf("assignee not cleared: %+v", got)
	}
	notes, err := store.ListNotes(ctx, created.ID)
	if err != nil || len(notes) != 0 {
		t.Fatalf("notes survived user deletion: %+v, %v", notes, err)
	}
}

func TestActivityOrderingAndLimit(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := store.AppendActivity(ctx, project.Activity{ProjectID: "p", UserID: "u", Description: "e"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	acts, err := store.ListActivities(ctx, "p", 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(acts) != 3 {
		t.Fatalf("limit not applied: %d", len(acts))
	}
	for i := 1; i < len(acts); i++ {
		if acts[i-1].ID < acts[i].ID {
			t.Fatalf("not newest first: %+v", acts)
		}
	}
}

func TestProjectListOrdering(t *testing.T) {
	store := New()
	ctx := context.Background()

	first, _ := store.CreateProject(ctx, project.Project{Name: "first", Status: project.StatusActive})
	time.Sleep(2 * time.Millisecond)
	second, _ := store.CreateProject(ctx, project.Project{Name: "second", Status: project.StatusActive})

	for _, id := range []string{first.ID, second.ID} {
		if _, err := store.CreateMembership(ctx, project.Membership{ProjectID: id, UserID: "u", Role: project.RoleOwner}); err != nil {
			t.Fatalf("membership: %v", err)
		}
	}

	list, err := store.ListProjectsForUser(ctx, "u")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("not newest first: %+v", list)
	}
}

func TestTokenLifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	iss := token.Issuance{Hash: "h1", UserID: "u", IssuedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.PutIssuance(ctx, iss); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.PutIssuance(ctx, token.Issuance{Hash: "h2", UserID: "u"}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if _, err := store.GetIssuance(ctx, "h1"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := store.DeleteIssuance(ctx, "h1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetIssuance(ctx, "h1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.DeleteIssuancesForUser(ctx, "u"); err != nil {
		t.Fatalf("delete for user: %v", err)
	}
	if _, err := store.GetIssuance(ctx, "h2"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after user revoke, got %v", err)
	}
}

func TestInTxSerializes(t *testing.T) {
	store := New()
	ctx := context.Background()

	err := store.InTx(ctx, func(ctx context.Context) error {
		_, err := store.CreateProject(ctx, project.Project{Name: "in tx", Status: project.StatusActive})
		return err
	})
	if err != nil {
		t.Fatalf("in tx: %v", err)
	}

	wantErr := errors.New("boom")
	if err := store.InTx(ctx, func(context.Context) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("expected fn error propagated, got %v", err)
	}
}
