package models

import "time"

// Subject is a taught discipline, optionally attached to a program.
type Subject struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	ProgramID *string   `db:"program_id" json:"program_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter defines filter criteria for listing subjects.
type SubjectFilter struct {
	ProgramID string
	ClassID   string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
