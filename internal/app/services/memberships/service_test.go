package memberships

import (
	"context"
	"testing"

	"github.com/taskforge/taskforge/internal/app/domain/project"
	"github.com/taskforge/taskforge/internal/app/domain/user"
	"github.com/taskforge/taskforge/internal/app/storage/memory"
	"github.com/taskforge/taskforge/internal/errors"
)

func seed(t *testing.T, store *memory.Store) (owner, member, outsider user.User, proj project.Project) {
	t.Helper()
	ctx := context.Background()

	var err error
	owner, err = store.CreateUser(ctx, user.User{ID: "u-owner", Email: "owner@example.com", Active: true})
	if err != nil {
		t.Fatalf("create owner: %v", err)
	}
	member, err = store.CreateUser(ctx, user.User{ID: "u-member", Email: "member@example.com", Active: true})
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	outsider, err = store.CreateUser(ctx, user.User{ID: "u-outsider", Email: "outsider@example.com", Active: true})
	if err != nil {
		t.Fatalf("create outsider: %v", err)
	}

	proj, err = store.CreateProject(ctx, project.Project{ID: "p1", Name: "Rollout", Status: project.StatusActive})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := store.CreateMembership(ctx, project.Membership{ProjectID: proj.ID, UserID: owner.ID, Role: project.RoleOwner}); err != nil {
		t.Fatalf("create owner membership: %v", err)
	}
	return owner, member, outsider, proj
}

func TestCanAndRequire(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil)
	ctx := context.Background()
	owner, _, outsider, proj := seed(t, store)

	ok, err := svc.Can(ctx, owner.ID, proj.ID, project.CapDelete)
	if err != nil || !ok {
		t.Fatalf("expected owner to hold delete, got ok=%v err=%v", ok, err)
	}
	ok, err = svc.Can(ctx, outsider.ID, proj.ID, project.CapView)
	if err != nil || ok {
		t.Fatalf("expected outsider denied, got ok=%v err=%v", ok, err)
	}

	if err := svc.Require(ctx, outsider.ID, proj.ID, project.CapView); !errors.IsCode(err, errors.CodeNotAMember) {
		t.Fatalf("expected NOT_A_MEMBER, got %v", err)
	}
}

func TestAddMemberRecordsActivity(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil)
	ctx := context.Background()
	owner, member, outsider, proj := seed(t, store)

	m, err := svc.AddMember(ctx, owner.ID, proj.ID, member.ID, project.RoleMember)
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if m.Role != project.RoleMember {
		t.Fatalf("unexpected role: %s", m.Role)
	}

	if _, err := svc.AddMember(ctx, owner.ID, proj.ID, member.ID, project.RoleAdmin); !errors.IsCode(err, errors.CodeConflict) {
		t.Fatalf("expected CONFLICT on duplicate membership, got %v", err)
	}
	if _, err := svc.AddMember(ctx, member.ID, proj.ID, outsider.ID, project.RoleViewer); !errors.IsCode(err, errors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN for member actor, got %v", err)
	}
	if _, err := svc.AddMember(ctx, outsider.ID, proj.ID, outsider.ID, project.RoleViewer); !errors.IsCode(err, errors.CodeNotAMember) {
		t.Fatalf("expected NOT_A_MEMBER for outsider actor, got %v", err)
	}
	if _, err := svc.AddMember(ctx, owner.ID, proj.ID, "no-such-user", project.RoleViewer); !errors.IsCode(err, errors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown user, got %v", err)
	}

	acts, err := store.ListActivities(ctx, proj.ID, 10)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(acts) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(acts))
	}
	if acts[0].Description != "Added member@example.com as MEMBER" {
		t.Fatalf("unexpected activity: %q", acts[0].Description)
	}
}

func TestLastOwnerProtection(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil)
	ctx := context.Background()
	owner, member, _, proj := seed(t, store)

	if err := svc.RemoveMember(ctx, owner.ID, proj.ID, owner.ID); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected last-owner removal rejected, got %v", err)
	}
	if _, err := svc.ChangeRole(ctx, owner.ID, proj.ID, owner.ID, project.RoleAdmin); !errors.IsCode(err, errors.CodeInvalidInput) {
		t.Fatalf("expected last-owner demotion rejected, got %v", err)
	}

	// With a second owner both operations go through.
	if _, err := svc.AddMember(ctx, owner.ID, proj.ID, member.ID, project.RoleOwner); err != nil {
		t.Fatalf("add second owner: %v", err)
	}
	if _, err := svc.ChangeRole(ctx, owner.ID, proj.ID, owner.ID, project.RoleAdmin); err != nil {
		t.Fatalf("demote original owner: %v", err)
	}
	if err := svc.RemoveMember(ctx, member.ID, proj.ID, owner.ID); err != nil {
		t.Fatalf("remove demoted owner: %v", err)
	}
}

func TestChangeRoleAndList(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, nil)
	ctx := context.Background()
	owner, member, outsider, proj := seed(t, store)

	if _, err := svc.AddMember(ctx, owner.ID, proj.ID, member.ID, project.RoleViewer); err != nil {
		t.Fatalf("add member: %v", err)
	}
	updated, err := svc.ChangeRole(ctx, owner.ID, proj.ID, member.ID, project.RoleAdmin)
	if err != nil {
		t.Fatalf("change role: %v", err)
	}
	if updated.Role != project.RoleAdmin {
		t.Fatalf("role not updated: %s", updated.Role)
	}

	// Same-role change is a no-op without a new activity entry.
	before, _ := store.ListActivities(ctx, proj.ID, 20)
	if _, err := svc.ChangeRole(ctx, owner.ID, proj.ID, member.ID, project.RoleAdmin); err != nil {
		t.Fatalf("no-op change role: %v", err)
	}
	after, _ := store.ListActivities(ctx, proj.ID, 20)
	if len(after) != len(before) {
		t.Fatalf("no-op role change recorded an activity")
	}

	members, err := svc.ListMembers(ctx, member.ID, proj.ID)
	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if _, err := svc.ListMembers(ctx, outsider.ID, proj.ID); !errors.IsCode(err, errors.CodeNotAMember) {
		t.Fatalf("expected NOT_A_MEMBER for outsider list, got %v", err)
	}
}
