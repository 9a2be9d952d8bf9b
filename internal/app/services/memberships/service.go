// Package memberships is the single chokepoint for project authorization
// decisions. Every restricted read and mutation asks this service before
// touching a project-scoped entity.
package memberships

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/taskforge/taskforge/internal/app/domain/project"
	"github.com/taskforge/taskforge/internal/app/storage"
	"github.com/taskforge/taskforge/internal/errors"
	"github.com/taskforge/taskforge/pkg/logger"
)

// Service resolves role-based capabilities and manages the membership
// relation.
type Service struct {
	tx         storage.Tx
	members    storage.MembershipStore
	users      storage.UserStore
	activities storage.ActivityStore
	log        *logger.Logger
}

// New constructs a membership service.
func New(tx storage.Tx, members storage.MembershipStore, users storage.UserStore, activities storage.ActivityStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("memberships")
	}
	return &Service{tx: tx, members: members, users: users, activities: activities, log: log}
}

// Can reports whether the user holds the capability on the project. Absence
// of a membership denies everything project-scoped.
func (s *Service) Can(ctx context.Context, userID, projectID string, cap project.Capability) (bool, error) {
	m, err := s.members.GetMembership(ctx, projectID, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, errors.Storage("get membership", err)
	}
	return m.Role.Allows(cap), nil
}

// Require returns a typed error unless the user holds the capability: a user
// with no membership at all gets NotAMember, a member lacking the capability
// gets Forbidden.
func (s *Service) Require(ctx context.Context, userID, projectID string, cap project.Capability) error {
	m, err := s.members.GetMembership(ctx, projectID, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotAMember(projectID)
		}
		return errors.Storage("get membership", err)
	}
	if !m.Role.Allows(cap) {
		return errors.Forbidden(fmt.Sprintf("role %s lacks %s on project %s", m.Role, cap, projectID))
	}
	return nil
}

// AddMember binds a user to the project. The actor needs ManageMembers; a
// second membership for the same (project, user) pair fails with Conflict.
func (s *Service) AddMember(ctx context.Context, actorID, projectID, userID string, role project.Role) (project.Membership, error) {
	if !role.Valid() {
		return project.Membership{}, errors.InvalidInput(fmt.Sprintf("invalid role %q", role))
	}
	if err := s.Require(ctx, actorID, projectID, project.CapManageMembers); err != nil {
		return project.Membership{}, err
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return project.Membership{}, errors.NotFound("user", userID)
		}
		return project.Membership{}, errors.Storage("get user", err)
	}

	var created project.Membership
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		created, err = s.members.CreateMembership(ctx, project.Membership{
			ProjectID: projectID,
			UserID:    userID,
			Role:      role,
		})
		if err != nil {
			if stderrors.Is(err, storage.ErrDuplicate) {
				return errors.Conflict(fmt.Sprintf("user %s is already a member of project %s", userID, projectID))
			}
			return errors.Storage("create membership", err)
		}

		_, err = s.activities.AppendActivity(ctx, project.Activity{
			ProjectID:   projectID,
			UserID:      actorID,
			Description: fmt.Sprintf("Added %s as %s", u.Email, role),
		})
		if err != nil {
			return errors.Storage("append activity", err)
		}
		return nil
	})
	if err != nil {
		return project.Membership{}, err
	}

	s.log.WithField("project_id", projectID).
		WithField("user_id", userID).
		WithField("role", string(role)).
		Info("member added")
	return created, nil
}

// RemoveMember unbinds a user from the project. Removing the last Owner is
// rejected so the ownership invariant survives membership churn.
func (s *Service) RemoveMember(ctx context.Context, actorID, projectID, userID string) error {
	if err := s.Require(ctx, actorID, projectID, project.CapManageMembers); err != nil {
		return err
	}

	m, err := s.members.GetMembership(ctx, projectID, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return errors.NotFound("membership", projectID+"/"+userID)
		}
		return errors.Storage("get membership", err)
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if m.Role == project.RoleOwner {
			owners, err := s.members.CountMembershipsByRole(ctx, projectID, project.RoleOwner)
			if err != nil {
				return errors.Storage("count owners", err)
			}
			if owners <= 1 {
				return errors.InvalidInput("cannot remove the last owner of a project")
			}
		}

		if err := s.members.DeleteMembership(ctx, projectID, userID); err != nil {
			return errors.Storage("delete membership", err)
		}

		_, err := s.activities.AppendActivity(ctx, project.Activity{
			ProjectID:   projectID,
			UserID:      actorID,
			Description: fmt.Sprintf("Removed member %s", userID),
		})
		if err != nil {
			return errors.Storage("append activity", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.WithField("project_id", projectID).
		WithField("user_id", userID).
		Info("member removed")
	return nil
}

// ChangeRole updates a member's role under the same gate as AddMember.
// Demoting the last Owner is rejected.
func (s *Service) ChangeRole(ctx context.Context, actorID, projectID, userID string, role project.Role) (project.Membership, error) {
	if !role.Valid() {
		return project.Membership{}, errors.InvalidInput(fmt.Sprintf("invalid role %q", role))
	}
	if err := s.Require(ctx, actorID, projectID, project.CapManageMembers); err != nil {
		return project.Membership{}, err
	}

	m, err := s.members.GetMembership(ctx, projectID, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return project.Membership{}, errors.NotFound("membership", projectID+"/"+userID)
		}
		return project.Membership{}, errors.Storage("get membership", err)
	}
	if m.Role == role {
		return m, nil
	}

	var updated project.Membership
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if m.Role == project.RoleOwner && role != project.RoleOwner {
			owners, err := s.members.CountMembershipsByRole(ctx, projectID, project.RoleOwner)
			if err != nil {
				return errors.Storage("count owners", err)
			}
			if owners <= 1 {
				return errors.InvalidInput("cannot demote the last owner of a project")
			}
		}

		m.Role = role
		updated, err = s.members.UpdateMembership(ctx, m)
		if err != nil {
			return errors.Storage("update membership", err)
		}

		_, err = s.activities.AppendActivity(ctx, project.Activity{
			ProjectID:   projectID,
			UserID:      actorID,
			Description: fmt.Sprintf("Changed role of %s to %s", userID, role),
		})
		if err != nil {
			return errors.Storage("append activity", err)
		}
		return nil
	})
	if err != nil {
		return project.Membership{}, err
	}

	s.log.WithField("project_id", projectID).
		WithField("user_id", userID).
		WithField("role", string(role)).
		Info("member role changed")
	return updated, nil
}

// ListMembers returns the project's memberships. Any member may view.
func (s *Service) ListMembers(ctx context.Context, actorID, projectID string) ([]project.Membership, error) {
	if err := s.Require(ctx, actorID, projectID, project.CapView); err != nil {
		return nil, err
	}
	members, err := s.members.ListMemberships(ctx, projectID)
	if err != nil {
		return nil, errors.Storage("list memberships", err)
	}
	return members, nil
}

// IsMember reports whether the user holds any membership on the project.
func (s *Service) IsMember(ctx context.Context, userID, projectID string) (bool, error) {
	_, err := s.members.GetMembership(ctx, projectID, userID)
	if err != nil {
		if stderrors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, errors.Storage("get membership", err)
	}
	return true, nil
}
