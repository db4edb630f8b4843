package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateAssessmentTables, downCreateAssessmentTables)
}

func upCreateAssessmentTables(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE activities (
			id UUID PRIMARY KEY,
			type VARCHAR(20) NOT NULL,
			title VARCHAR(200) NOT NULL,
			activity_date TIMESTAMP WITH TIME ZONE,
			resources TEXT,
			description TEXT,
			subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
		CREATE INDEX idx_activities_subject ON activities (subject_id);

		CREATE TABLE grades (
			id UUID PRIMARY KEY,
			value NUMERIC(4,2) NOT NULL CHECK (value >= 0 AND value <= 20),
			student_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			activity_id UUID NOT NULL REFERENCES activities(id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
		CREATE INDEX idx_grades_student ON grades (student_id);
		CREATE INDEX idx_grades_activity ON grades (activity_id);

		CREATE TABLE absences (
			id UUID PRIMARY KEY,
			absence_date DATE NOT NULL,
			justified BOOLEAN NOT NULL DEFAULT FALSE,
			remark TEXT,
			status VARCHAR(20) NOT NULL,
			justification_text TEXT,
			student_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
		);
		CREATE INDEX idx_absences_student ON absences (student_id);
		CREATE INDEX idx_absences_date ON absences (absence_date);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateAssessmentTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS absences; DROP TABLE IF EXISTS grades; DROP TABLE IF EXISTS activities;`)
	return err
}
