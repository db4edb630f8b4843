package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateAcademicStructure, downCreateAcademicStructure)
}

func upCreateAcademicStructure(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE departments (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE TABLE levels (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			department_id UUID NOT NULL REFERENCES departments(id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			UNIQUE (department_id, name)
		);

		CREATE TABLE programs (
			id UUID PRIMARY KEY,
			description TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);

		CREATE TABLE classes (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			level_id UUID NOT NULL REFERENCES levels(id) ON DELETE RESTRICT,
			program_id UUID REFERENCES programs(id) ON DELETE SET NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
		CREATE INDEX idx_classes_program ON classes (program_id);

		CREATE TABLE subjects (
			id UUID PRIMARY KEY,
			name VARCHAR(100) NOT NULL UNIQUE,
			program_id UUID REFERENCES programs(id) ON DELETE SET NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
		CREATE INDEX idx_subjects_program ON subjects (program_id);

		ALTER TABLE users
			ADD CONSTRAINT users_class_fk FOREIGN KEY (class_id) REFERENCES classes(id) ON DELETE SET NULL;
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateAcademicStructure(ctx context.Context, tx *sql.Tx) error {
	query := `
		ALTER TABLE users DROP CONSTRAINT IF EXISTS users_class_fk;
		DROP TABLE IF EXISTS subjects;
		DROP TABLE IF EXISTS classes;
		DROP TABLE IF EXISTS programs;
		DROP TABLE IF EXISTS levels;
		DROP TABLE IF EXISTS departments;
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}
