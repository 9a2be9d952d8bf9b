// Package migrations applies the relational schema in order. Statements are
// idempotent so Apply can run at every startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS tf_users (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		password_hash TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tf_projects (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tf_memberships (
		id BIGSERIAL PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES tf_projects(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES tf_users(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL,
		UNIQUE (project_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tf_milestones (
		id UUID PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES tf_projects(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		due_date TIMESTAMPTZ NOT NULL,
		completed BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tf_activities (
		id BIGSERIAL PRIMARY KEY,
		project_id UUID NOT NULL REFERENCES tf_projects(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		description TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tf_tasks (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		project_id UUID NOT NULL REFERENCES tf_projects(id) ON DELETE CASCADE,
		assignee_id UUID REFERENCES tf_users(id) ON DELETE SET NULL,
		creator_id UUID NOT NULL,
		status TEXT NOT NULL DEFAULT 'TODO',
		priority INT NOT NULL DEFAULT 2,
		due_date TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tf_comments (
		id UUID PRIMARY KEY,
		task_id UUID NOT NULL REFERENCES tf_tasks(id) ON DELETE CASCADE,
		author_id UUID NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tf_task_notes (
		id BIGSERIAL PRIMARY KEY,
		task_id UUID NOT NULL REFERENCES tf_tasks(id) ON DELETE CASCADE,
		user_id UUID NOT NULL REFERENCES tf_users(id) ON DELETE CASCADE,
		note TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tf_attachments (
		id UUID PRIMARY KEY,
		task_id UUID NOT NULL REFERENCES tf_tasks(id) ON DELETE CASCADE,
		uploader_id UUID NOT NULL,
		file_name TEXT NOT NULL,
		reference TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tf_history (
		id BIGSERIAL PRIMARY KEY,
		task_id UUID NOT NULL REFERENCES tf_tasks(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		action TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS tf_tokens (
		hash TEXT PRIMARY KEY,
		user_id UUID NOT NULL,
		issued_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tf_tasks_project_status_idx ON tf_tasks (project_id, status)`,
	`CREATE INDEX IF NOT EXISTS tf_tokens_user_idx ON tf_tokens (user_id)`,
}

// Apply executes every migration statement in order against db.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Count returns the number of migration statements. Exposed for tests.
func Count() int { return len(statements) }
