package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration represents a versioned schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations returns the full ordered migration set. Migrations run once
// at startup; request handlers never touch the schema.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(255) NOT NULL UNIQUE,
					password_hash VARCHAR(255) NOT NULL,
					role VARCHAR(20) NOT NULL DEFAULT 'user',
					created_by_admin_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					telegram_chat_id BIGINT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_role ON users(role);
				CREATE INDEX idx_users_created_by_admin_id ON users(created_by_admin_id);
			`,
		},
		{
			Version:     2,
			Description: "Create authorized_emails table",
			SQL: `
				CREATE TABLE IF NOT EXISTS authorized_emails (
					id BIGSERIAL PRIMARY KEY,
					email VARCHAR(320) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_authorized_emails_email ON authorized_emails(email);
			`,
		},
		{
			Version:     3,
			Description: "Create user_authorized_emails table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_authorized_emails (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					authorized_email_id BIGINT NOT NULL REFERENCES authorized_emails(id) ON DELETE CASCADE,
					assigned_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					assigned_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, authorized_email_id)
				);

				CREATE INDEX idx_user_authorized_emails_user_id ON user_authorized_emails(user_id);
				CREATE INDEX idx_user_authorized_emails_email_id ON user_authorized_emails(authorized_email_id);
			`,
		},
		{
			Version:     4,
			Description: "Create admin_allowed_emails table",
			SQL: `
				CREATE TABLE IF NOT EXISTS admin_allowed_emails (
					id BIGSERIAL PRIMARY KEY,
					admin_user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					authorized_email_id BIGINT NOT NULL REFERENCES authorized_emails(id) ON DELETE CASCADE,
					UNIQUE(admin_user_id, authorized_email_id)
				);

				CREATE INDEX idx_admin_allowed_emails_admin ON admin_allowed_emails(admin_user_id);
			`,
		},
		{
			Version:     5,
			Description: "Create permission_templates table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permission_templates (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					email_ids JSONB NOT NULL DEFAULT '[]',
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_permission_templates_name ON permission_templates(name);
			`,
		},
		{
			Version:     6,
			Description: "Create platforms and platform_subject_assignments tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS platforms (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE
				);

				CREATE TABLE IF NOT EXISTS platform_subject_assignments (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					platform_id BIGINT NOT NULL REFERENCES platforms(id) ON DELETE CASCADE,
					subject_keyword VARCHAR(255) NOT NULL,
					UNIQUE(user_id, platform_id, subject_keyword)
				);

				CREATE INDEX idx_platform_subject_assignments_user ON platform_subject_assignments(user_id);
				CREATE INDEX idx_platform_subject_assignments_platform ON platform_subject_assignments(platform_id);
			`,
		},
		{
			Version:     7,
			Description: "Create activity_logs table",
			SQL: `
				CREATE TABLE IF NOT EXISTS activity_logs (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
					event_type VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					detail JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_activity_logs_user_id ON activity_logs(user_id);
				CREATE INDEX idx_activity_logs_event_type ON activity_logs(event_type);
				CREATE INDEX idx_activity_logs_created_at ON activity_logs(created_at);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range Migrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		logger.Info("running migration",
			"version", migration.Version,
			"description", migration.Description,
		)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
