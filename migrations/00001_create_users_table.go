package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateUsersTable, downCreateUsersTable)
}

func upCreateUsersTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE users (
			id UUID PRIMARY KEY,
			username VARCHAR(50) NOT NULL UNIQUE,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			first_name VARCHAR(50) NOT NULL,
			last_name VARCHAR(50) NOT NULL,
			cin VARCHAR(8) NOT NULL UNIQUE,
			phone VARCHAR(10),
			birth_date DATE,
			birth_place VARCHAR(100),
			address TEXT,
			gender VARCHAR(6),
			photo TEXT,
			role VARCHAR(20) NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			locked BOOLEAN NOT NULL DEFAULT FALSE,
			class_id UUID,
			parent_id UUID REFERENCES users(id) ON DELETE SET NULL,
			reset_token VARCHAR(64),
			reset_token_expiry TIMESTAMP WITH TIME ZONE,
			last_login TIMESTAMP WITH TIME ZONE,
			last_login_ip VARCHAR(64),
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			CONSTRAINT users_role_check CHECK (role IN ('ADMINISTRATOR', 'TEACHER', 'STUDENT', 'PARENT')),
			CONSTRAINT users_student_fields_check CHECK (role = 'STUDENT' OR (class_id IS NULL AND parent_id IS NULL))
		);

		CREATE INDEX idx_users_role ON users (role);
		CREATE UNIQUE INDEX idx_users_reset_token ON users (reset_token) WHERE reset_token IS NOT NULL;

		CREATE TABLE refresh_tokens (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			revoked_at TIMESTAMP WITH TIME ZONE,
			ip_address VARCHAR(64),
			user_agent TEXT
		);

		CREATE TABLE audit_logs (
			id UUID PRIMARY KEY,
			user_id UUID,
			action VARCHAR(64) NOT NULL,
			resource VARCHAR(64) NOT NULL,
			resource_id VARCHAR(64),
			old_values JSONB,
			new_values JSONB,
			ip_address VARCHAR(64),
			user_agent TEXT,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateUsersTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS audit_logs; DROP TABLE IF EXISTS refresh_tokens; DROP TABLE IF EXISTS users;`)
	return err
}
