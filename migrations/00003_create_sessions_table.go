package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateSessionsTable, downCreateSessionsTable)
}

// The exclusion constraint is the last line of defence against double booking:
// two rows of the same teacher may not share any instant of [start_time, end_time).
func upCreateSessionsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE EXTENSION IF NOT EXISTS btree_gist;

		CREATE TABLE sessions (
			id UUID PRIMARY KEY,
			start_time TIMESTAMP WITH TIME ZONE NOT NULL,
			end_time TIMESTAMP WITH TIME ZONE NOT NULL,
			teacher_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
			CONSTRAINT sessions_time_order CHECK (start_time < end_time),
			CONSTRAINT sessions_teacher_no_overlap EXCLUDE USING gist (
				teacher_id WITH =,
				tstzrange(start_time, end_time, '[)') WITH &&
			)
		);

		CREATE INDEX idx_sessions_teacher_start ON sessions (teacher_id, start_time);
		CREATE INDEX idx_sessions_subject ON sessions (subject_id);
	`

	_, err := tx.ExecContext(ctx, query)
	return err
}

func downCreateSessionsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS sessions;`)
	return err
}
